// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"strings"
	"time"
)

const MaxUsernameLen = 36

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:36" json:"username"`
	DisplayName  string `gorm:"size:72" json:"display_name"`
	PasswordHash string `gorm:"size:128" json:"-"`
	CreatedAt    time.Time `json:"-"`
}

func NewUser(username, displayName string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{Username: username, DisplayName: strings.TrimSpace(displayName)}, nil
}

// DisplayNameOrUsername falls back to the username when no display name is set.
func (u *User) DisplayNameOrUsername() string {
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	return u.Username
}
