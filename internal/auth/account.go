package auth

import (
	"encoding/json"
	"time"
)

// Storage keys, shared with the player page scripts.
const (
	UsersStorageKey   = "spotifyUsers"
	SessionStorageKey = "spotifyCurrentUser"
)

// Account is a registered user. The password is kept in plaintext.
type Account struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// createdAtLayout matches the page scripts' Date.toISOString output.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON writes createdAt in UTC with millisecond precision.
// Decoding uses the default RFC 3339 parsing, which accepts that layout.
func (a Account) MarshalJSON() ([]byte, error) {
	type plainAccount Account
	return json.Marshal(struct {
		plainAccount
		CreatedAt string `json:"createdAt"`
	}{
		plainAccount: plainAccount(a),
		CreatedAt:    a.CreatedAt.UTC().Format(createdAtLayout),
	})
}

// Session records who is logged in on one client.
type Session struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	RememberMe bool   `json:"rememberMe"`
}
