// Package auth authenticates staff and decides what each role may call.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"salon/internal/config"
	"salon/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Verifier checks credentials and returns the caller's role. A rejection
// wraps domain.ErrDenied.
type Verifier interface {
	Verify(ctx context.Context, creds Credentials) (Role, error)
}

type staffAccount struct {
	hash []byte
	role Role
}

// StaffVerifier checks credentials against the bcrypt hashes of the
// configured staff accounts. Unknown emails are compared against a
// placeholder hash so they cost as much as a wrong password.
type StaffVerifier struct {
	accounts    map[string]staffAccount
	unknownHash []byte
	compare     func(hash, password []byte) error
}

var placeholderHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("salon-no-such-account"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: placeholder hash: %v", err))
	}
	return h
})

var _ Verifier = (*StaffVerifier)(nil)

func NewStaffVerifier(staff []config.StaffAccount) *StaffVerifier {
	accounts := make(map[string]staffAccount, len(staff))
	for _, s := range staff {
		accounts[normalizeEmail(s.Email)] = staffAccount{hash: []byte(s.PasswordHash), role: Role(s.Role)}
	}
	return &StaffVerifier{
		accounts:    accounts,
		unknownHash: placeholderHash(),
		compare:     bcrypt.CompareHashAndPassword,
	}
}

func (v *StaffVerifier) Verify(_ context.Context, creds Credentials) (Role, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return "", fmt.Errorf("%w: email and password are required", domain.ErrDenied)
	}
	acc, ok := v.accounts[email]
	if !ok {
		_ = v.compare(v.unknownHash, []byte(creds.Password))
		return "", fmt.Errorf("%w: unknown account", domain.ErrDenied)
	}
	if err := v.compare(acc.hash, []byte(creds.Password)); err != nil {
		return "", fmt.Errorf("%w: wrong password", domain.ErrDenied)
	}
	return acc.role, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
