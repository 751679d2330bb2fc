package request

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Cursor string
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParsePagination extracts limit and cursor from query parameters. The cursor
// is an entity id and is compared against a UUID column, so it gets the same
// format check as path ids.
func ParsePagination(r *http.Request) (Pagination, error) {
	p := Pagination{
		Limit:  DefaultLimit,
		Cursor: r.URL.Query().Get("cursor"),
	}

	if p.Cursor != "" {
		if _, err := uuid.Parse(p.Cursor); err != nil {
			return Pagination{}, fmt.Errorf("invalid cursor %q: must be a UUID", p.Cursor)
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			p.Limit = limit
		}
	}

	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	return p, nil
}
