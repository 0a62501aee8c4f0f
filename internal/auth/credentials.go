package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2beens/tunebox/internal/storage"
)

// CredentialStore keeps the list of registered accounts of one client as a
// single JSON array.
type CredentialStore struct {
	storage storage.Storage
}

func NewCredentialStore(s storage.Storage) *CredentialStore {
	return &CredentialStore{
		storage: s,
	}
}

// All returns the accounts in registration order.
func (cs *CredentialStore) All(ctx context.Context) ([]Account, error) {
	raw, found, err := cs.storage.GetItem(ctx, UsersStorageKey)
	if err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	if !found {
		return []Account{}, nil
	}

	var accounts []Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal accounts: %w", err)
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

// FindByLogin returns the first account whose email or name matches login
// (case-insensitive) and whose password matches exactly. Nil when none does.
func (cs *CredentialStore) FindByLogin(ctx context.Context, login, password string) (*Account, error) {
	accounts, err := cs.All(ctx)
	if err != nil {
		return nil, err
	}

	for i := range accounts {
		a := accounts[i]
		nameOrEmail := strings.EqualFold(a.Email, login) || strings.EqualFold(a.Name, login)
		if nameOrEmail && a.Password == password {
			return &a, nil
		}
	}
	return nil, nil
}

func (cs *CredentialStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	accounts, err := cs.All(ctx)
	if err != nil {
		return false, err
	}

	for _, a := range accounts {
		if strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// Append adds the account at the end of the list and writes the whole list
// back. Callers check EmailTaken first.
func (cs *CredentialStore) Append(ctx context.Context, account Account) error {
	accounts, err := cs.All(ctx)
	if err != nil {
		return err
	}

	accounts = append(accounts, account)
	accountsJson, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("marshal accounts: %w", err)
	}

	if err := cs.storage.SetItem(ctx, UsersStorageKey, string(accountsJson)); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}
