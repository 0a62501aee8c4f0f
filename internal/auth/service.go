package auth

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/tunebox/internal/storage"
	"github.com/2beens/tunebox/internal/telemetry/tracing"
)

const clientLockStripes = 64

// Service runs the login, signup and logout flows against the storage of
// one client at a time.
type Service struct {
	backend  storage.Backend
	validate *validator.Validate

	// serialises read-modify-write cycles of the same client in this process
	clientLocks [clientLockStripes]sync.Mutex

	// ability to inject the clock (for unit testing)
	Now func() time.Time
}

func NewService(backend storage.Backend) *Service {
	return &Service{
		backend:  backend,
		validate: newFormValidator(),
		Now:      time.Now,
	}
}

func (s *Service) lockClient(clientID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	m := &s.clientLocks[h.Sum32()%clientLockStripes]
	m.Lock()
	return m.Unlock
}

// Login checks the form and the credentials, and on success replaces the
// client's session. On failure the session is left as it was.
func (s *Service) Login(ctx context.Context, clientID string, form LoginForm) (*Session, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.login")
	defer span.End()

	form.Normalize()
	fields, err := validateForm(s.validate, &form, loginMessages)
	if err != nil {
		return nil, fmt.Errorf("validate login form: %w", err)
	}
	if fields != nil {
		return nil, newFormError(ErrInvalidForm, fields)
	}

	unlock := s.lockClient(clientID)
	defer unlock()

	clientStorage := s.backend.ForClient(clientID)
	account, err := NewCredentialStore(clientStorage).FindByLogin(ctx, form.Login, form.Password)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if account == nil {
		log.Debugf("auth service, login: no account matches [%s]", form.Login)
		return nil, newFormError(ErrInvalidCredentials, map[string]string{
			"password": msgWrongCredentials,
		})
	}

	session := Session{
		Email:      account.Email,
		Name:       account.Name,
		RememberMe: form.RememberMe,
	}
	if err := NewSessionHolder(clientStorage).Set(ctx, session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &session, nil
}

// Signup registers a new account and logs it in. The account list is left
// untouched when any field is invalid.
func (s *Service) Signup(ctx context.Context, clientID string, form SignupForm) (*Session, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.signup")
	defer span.End()

	form.Normalize()
	fields, err := validateForm(s.validate, &form, signupMessages)
	if err != nil {
		return nil, fmt.Errorf("validate signup form: %w", err)
	}

	unlock := s.lockClient(clientID)
	defer unlock()

	clientStorage := s.backend.ForClient(clientID)
	credentials := NewCredentialStore(clientStorage)

	// the duplicate check only runs for an otherwise valid email
	if _, emailInvalid := fields["email"]; !emailInvalid {
		taken, err := credentials.EmailTaken(ctx, form.Email)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if taken {
			if fields == nil {
				fields = make(map[string]string, 1)
			}
			fields["email"] = msgEmailTaken
		}
	}
	if fields != nil {
		return nil, newFormError(ErrInvalidForm, fields)
	}

	account := Account{
		Email:     form.Email,
		Password:  form.Password,
		Name:      form.Name,
		CreatedAt: s.Now().UTC().Truncate(time.Millisecond),
	}
	if err := credentials.Append(ctx, account); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	session := Session{
		Email:      account.Email,
		Name:       account.Name,
		RememberMe: true,
	}
	if err := NewSessionHolder(clientStorage).Set(ctx, session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log.Debugf("auth service, new account registered: %s", account.Email)
	return &session, nil
}

// Logout removes the client's session, if any.
func (s *Service) Logout(ctx context.Context, clientID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.logout")
	defer span.End()

	unlock := s.lockClient(clientID)
	defer unlock()

	return NewSessionHolder(s.backend.ForClient(clientID)).Clear(ctx)
}

// CurrentSession returns the client's session, or nil when nobody is logged in.
func (s *Service) CurrentSession(ctx context.Context, clientID string) (*Session, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.currentSession")
	defer span.End()

	unlock := s.lockClient(clientID)
	defer unlock()

	return NewSessionHolder(s.backend.ForClient(clientID)).Get(ctx)
}

func (s *Service) IsLogged(ctx context.Context, clientID string) (bool, error) {
	session, err := s.CurrentSession(ctx, clientID)
	if err != nil {
		return false, err
	}
	return session != nil, nil
}
