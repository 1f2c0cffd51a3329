package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/session"
)

// JSONB is a JSON object column; jsonb on postgres, TEXT on sqlite
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}

// SessionArchive is the durable copy of a tailoring session record
type SessionArchive struct {
	ID           uuid.UUID `db:"id"`
	SessionID    string    `db:"session_id"`
	UserID       string    `db:"user_id"`
	ProjectID    string    `db:"project_id"`
	Task         string    `db:"task"`
	TokenCount   int       `db:"token_count"`
	QualityScore int       `db:"quality_score"`
	Degraded     bool      `db:"degraded"`
	Snapshot     JSONB     `db:"snapshot"`
	CreatedAt    time.Time `db:"created_at"`
	ArchivedAt   time.Time `db:"archived_at"`
}

// ArchiveFromRecord builds the archive row of a session record. The response document
// becomes the snapshot.
func ArchiveFromRecord(rec *session.Record, archivedAt time.Time) (*SessionArchive, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	var snapshot JSONB
	if len(rec.Response) > 0 {
		if err := json.Unmarshal(rec.Response, &snapshot); err != nil {
			return nil, fmt.Errorf("decode session response: %w", err)
		}
	}
	return &SessionArchive{
		ID:           uuid.New(),
		SessionID:    rec.ID,
		UserID:       rec.UserID,
		ProjectID:    rec.ProjectID,
		Task:         rec.Task,
		TokenCount:   rec.TokenCount,
		QualityScore: rec.QualityScore,
		Degraded:     rec.Degraded,
		Snapshot:     snapshot,
		CreatedAt:    rec.CreatedAt,
		ArchivedAt:   archivedAt,
	}, nil
}
