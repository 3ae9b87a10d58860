package authcore

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the service tests. All mutations
// run under one mutex, which satisfies the per-account atomicity contract.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	creds    map[string]*Credential
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*Account),
		creds:    make(map[string]*Credential),
	}
}

func copyAccount(a *Account) *Account {
	out := *a
	return &out
}

func copyCredential(c *Credential) *Credential {
	out := *c
	out.BackupCodeHashes = append([]string(nil), c.BackupCodeHashes...)
	return &out
}

func (m *memStore) FindAccountByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email && !a.Deleted {
			return copyAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindAccountByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, ErrNotFound
}

func (m *memStore) FindAccountByProvider(_ context.Context, provider, providerAccountID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID && !a.Deleted {
			return copyAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindCredentialByAccountID(_ context.Context, accountID string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.creds[accountID]; ok {
		return copyCredential(c), nil
	}
	return nil, ErrNotFound
}

func (m *memStore) FindCredentialByResetToken(_ context.Context, token string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.ResetToken != "" && c.ResetToken == token {
			return copyCredential(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindCredentialByVerificationToken(_ context.Context, token string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.VerifyToken != "" && c.VerifyToken == token {
			return copyCredential(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) CreateAccountWithCredential(_ context.Context, account *Account, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == account.Email && !a.Deleted {
			return ErrAlreadyExists
		}
	}
	m.accounts[account.ID] = copyAccount(account)
	m.creds[cred.AccountID] = copyCredential(cred)
	return nil
}

func (m *memStore) UpdateAccount(_ context.Context, id string, update AccountUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if update.Email != nil {
		a.Email = *update.Email
	}
	if update.Name != nil {
		a.Name = *update.Name
	}
	if update.Active != nil {
		a.Active = *update.Active
	}
	if update.Deleted != nil {
		a.Deleted = *update.Deleted
	}
	if update.EmailVerified != nil {
		a.EmailVerified = *update.EmailVerified
	}
	if update.Provider != nil {
		a.Provider = *update.Provider
	}
	if update.ProviderAccountID != nil {
		a.ProviderAccountID = *update.ProviderAccountID
	}
	if update.LastLoginAt != nil {
		t := *update.LastLoginAt
		a.LastLoginAt = &t
	}
	return nil
}

func (m *memStore) UpdateCredential(_ context.Context, accountID string, update CredentialUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[accountID]
	if !ok {
		return ErrNotFound
	}
	if update.PasswordHash != nil {
		c.PasswordHash = *update.PasswordHash
	}
	if update.FailedLoginAttempts != nil {
		c.FailedLoginAttempts = *update.FailedLoginAttempts
	}
	if update.LastFailedLoginAt != nil {
		t := *update.LastFailedLoginAt
		c.LastFailedLoginAt = &t
	}
	if update.ClearLockout {
		c.LockedUntil = nil
		c.LastFailedLoginAt = nil
	} else if update.LockedUntil != nil {
		t := *update.LockedUntil
		c.LockedUntil = &t
	}
	if update.MFAEnabled != nil {
		c.MFAEnabled = *update.MFAEnabled
	}
	if update.MFASecret != nil {
		c.MFASecret = *update.MFASecret
	}
	if update.BackupCodeHashes != nil {
		c.BackupCodeHashes = append([]string(nil), (*update.BackupCodeHashes)...)
	}
	if update.ResetToken != nil {
		c.ResetToken = *update.ResetToken
	}
	if update.ResetTokenExpiresAt != nil {
		c.ResetTokenExpiresAt = nullableTime(*update.ResetTokenExpiresAt)
	}
	if update.VerifyToken != nil {
		c.VerifyToken = *update.VerifyToken
	}
	if update.VerifyTokenExpiresAt != nil {
		c.VerifyTokenExpiresAt = nullableTime(*update.VerifyTokenExpiresAt)
	}
	if update.PasswordChangedAt != nil {
		t := *update.PasswordChangedAt
		c.PasswordChangedAt = &t
	}
	return nil
}

func (m *memStore) IncrementFailedAttempts(_ context.Context, accountID string, at time.Time, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[accountID]
	if !ok {
		return 0, ErrNotFound
	}
	if c.LastFailedLoginAt != nil && at.Sub(*c.LastFailedLoginAt) > window {
		c.FailedLoginAttempts = 0
	}
	c.FailedLoginAttempts++
	t := at
	c.LastFailedLoginAt = &t
	return c.FailedLoginAttempts, nil
}

func (m *memStore) ConsumeBackupCode(_ context.Context, accountID, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[accountID]
	if !ok {
		return false, ErrNotFound
	}
	for i, h := range c.BackupCodeHashes {
		if h == codeHash {
			c.BackupCodeHashes = append(c.BackupCodeHashes[:i], c.BackupCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
