package model

// Revision history_type values, stored as words so rows read without a
// decoder ring.
const (
	HistoryCreated = "created"
	HistoryChanged = "changed"
	HistoryDeleted = "deleted"
)
