package auth

import "context"

var _ Checker = (*Service)(nil)

// Checker tells whether a client currently has a session.
type Checker interface {
	IsLogged(ctx context.Context, clientID string) (bool, error)
}
