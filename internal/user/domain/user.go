package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the account that owns sessions. Only the fields the login and ban flows need are modelled.
type User struct {
	ID           string
	Login        string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	Ban          BanInfo
}

// BanInfo describes an account ban. BanDate and BanReason are empty while IsBanned is false.
type BanInfo struct {
	IsBanned  bool
	BanDate   *time.Time
	BanReason string
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Login) == "" {
		return errors.New("login is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
