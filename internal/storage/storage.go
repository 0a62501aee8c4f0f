// Package storage models a browser's local key-value storage on the server.
// Every client (browser) owns one namespace; keys of one client are never
// visible to another.
package storage

import (
	"context"
	"errors"
)

var ErrEmptyClientID = errors.New("empty client id")

// Storage is the key-value namespace of a single client.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Backend hands out per-client storage namespaces.
type Backend interface {
	ForClient(clientID string) Storage
}
