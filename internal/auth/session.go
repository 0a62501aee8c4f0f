package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2beens/tunebox/internal/storage"
)

// SessionHolder keeps the single current session of one client.
// The stored record is not signed.
type SessionHolder struct {
	storage storage.Storage
}

func NewSessionHolder(s storage.Storage) *SessionHolder {
	return &SessionHolder{
		storage: s,
	}
}

// Get returns the current session, or nil when nobody is logged in.
func (sh *SessionHolder) Get(ctx context.Context) (*Session, error) {
	raw, found, err := sh.storage.GetItem(ctx, SessionStorageKey)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !found {
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (sh *SessionHolder) Set(ctx context.Context, session Session) error {
	sessionJson, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := sh.storage.SetItem(ctx, SessionStorageKey, string(sessionJson)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the session whether or not one exists.
func (sh *SessionHolder) Clear(ctx context.Context) error {
	if err := sh.storage.RemoveItem(ctx, SessionStorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
