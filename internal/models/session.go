package models

import (
	"time"

	"github.com/nichind/fastapi/internal/secret"
)

// Session is one issued bearer credential for a user. The token itself is
// sensitive and stored encrypted; TokenHash provides the lookup column.
type Session struct {
	Record
	UserID    uint       `gorm:"index" json:"user_id"`
	Token     string     `gorm:"size:256" json:"-"`
	TokenHash string     `gorm:"size:64;uniqueIndex" json:"-"`
	IP        string     `gorm:"size:64" json:"ip"`
	UserAgent string     `gorm:"size:256" json:"user_agent"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (Session) TableName() string { return "sessions" }
func (Session) Domain() string    { return "main" }

// SessionPatch is a partial update for Session.
type SessionPatch struct {
	Token     *string
	ExpiresAt *time.Time
}

func (p SessionPatch) Changes() map[string]any {
	m := map[string]any{}
	if p.Token != nil {
		m["token"] = *p.Token
		m["token_hash"] = secret.Hash(*p.Token)
	}
	if p.ExpiresAt != nil {
		m["expires_at"] = *p.ExpiresAt
	}
	return m
}
