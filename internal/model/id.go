package model

import "github.com/google/uuid"

// NewID returns a fresh entity identifier. IDs are UUIDv4 strings; they are
// assigned once at creation and never change.
func NewID() string {
	return uuid.NewString()
}
