package models

import (
	"errors"

	"github.com/nichind/fastapi/internal/secret"
)

// User is an account record. Password and Token are stored encrypted;
// TokenHash is a deterministic digest kept alongside the token so bearer
// tokens can be looked up without decrypting every row.
type User struct {
	Record
	Username  *string `gorm:"size:48;uniqueIndex" json:"username,omitempty"`
	Email     *string `gorm:"size:128;uniqueIndex" json:"email,omitempty"`
	Password  string  `gorm:"size:256" json:"-"` // Hidden from JSON
	Token     string  `gorm:"size:256" json:"-"`
	TokenHash *string `gorm:"size:64;uniqueIndex" json:"-"`
	IsAdmin   bool    `json:"is_admin"`
}

func (User) TableName() string { return "users" }
func (User) Domain() string    { return "main" }

// Validate enforces the per-type invariant checked before create: an
// account needs at least one handle.
func (u User) Validate() error {
	if (u.Username == nil || *u.Username == "") && (u.Email == nil || *u.Email == "") {
		return errors.New("either username or email must be provided")
	}
	return nil
}

// UserPatch is a partial update for User. Nil fields are untouched.
type UserPatch struct {
	Username *string
	Email    *string
	Password *string
	Token    *string
	IsAdmin  *bool
}

func (p UserPatch) Changes() map[string]any {
	m := map[string]any{}
	if p.Username != nil {
		m["username"] = *p.Username
	}
	if p.Email != nil {
		m["email"] = *p.Email
	}
	if p.Password != nil {
		m["password"] = *p.Password
	}
	if p.Token != nil {
		m["token"] = *p.Token
		m["token_hash"] = secret.Hash(*p.Token)
	}
	if p.IsAdmin != nil {
		m["is_admin"] = *p.IsAdmin
	}
	return m
}
