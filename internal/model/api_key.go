package model

import "time"

// APIKey is a service-to-service credential. Key holds the raw secret value;
// it is generated exactly once at creation, never regenerated, and only ever
// serialized in the creation response.
type APIKey struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Key       string     `json:"-" db:"key"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Revoked   bool       `json:"revoked" db:"revoked"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Active reports whether the key would currently be accepted. The database
// lookup applies the same predicate in SQL; this is for in-process checks.
func (k *APIKey) Active(now time.Time) bool {
	if k.Revoked || k.DeletedAt != nil {
		return false
	}
	return k.ExpiresAt == nil || !k.ExpiresAt.Before(now)
}

// APIKeyRevision is one audit snapshot of an APIKey. The raw key value is
// deliberately absent from snapshots.
type APIKeyRevision struct {
	HistoryID           int64      `json:"history_id" db:"history_id"`
	ID                  string     `json:"id" db:"id"`
	Name                string     `json:"name" db:"name"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Revoked             bool       `json:"revoked" db:"revoked"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	HistoryDate         time.Time  `json:"history_date" db:"history_date"`
	HistoryType         string     `json:"history_type" db:"history_type"`
	HistoryChangeReason string     `json:"history_change_reason" db:"history_change_reason"`
	HistoryUserID       *string    `json:"history_user_id,omitempty" db:"history_user_id"`
}
