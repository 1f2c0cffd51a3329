package session

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session has expired
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidSession is returned when session data is invalid
	ErrInvalidSession = errors.New("invalid session")
)

// Record is the persisted outcome of one tailoring request. Response holds the full response
// document as returned to the caller.
type Record struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	ProjectID    string          `json:"project_id" db:"project_id"`
	Task         string          `json:"task" db:"task"`
	TokenCount   int             `json:"token_count" db:"token_count"`
	QualityScore int             `json:"quality_score" db:"quality_score"`
	Degraded     bool            `json:"degraded" db:"degraded"`
	Response     json.RawMessage `json:"response,omitempty" db:"response"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at" db:"expires_at"`
}

// IsExpired reports whether the record is past its expiry at now
func (r *Record) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Validate checks the fields every stored record needs
func (r *Record) Validate() error {
	if r == nil || r.ID == "" || r.ProjectID == "" {
		return ErrInvalidSession
	}
	return nil
}
