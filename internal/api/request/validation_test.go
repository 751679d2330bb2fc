package request

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireID(t *testing.T) {
	const id = "5f0c2a1e-9d3b-4c7a-8e21-0b6f4d9c1a3e"

	got, err := RequireID(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = RequireID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required ID")

	// A non-UUID id must be rejected here, not forwarded to a query
	// against a uuid column.
	for _, bad := range []string{"not-a-uuid", "123", "5f0c2a1e-9d3b-4c7a-8e21"} {
		_, err = RequireID(bad)
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), "must be a UUID")
	}
}

func TestParsePagination(t *testing.T) {
	p, err := ParsePagination(httptest.NewRequest("GET", "/o/users", nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Empty(t, p.Cursor)

	p, err = ParsePagination(httptest.NewRequest("GET", "/o/users?limit=10&cursor=5f0c2a1e-9d3b-4c7a-8e21-0b6f4d9c1a3e", nil))
	require.NoError(t, err)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "5f0c2a1e-9d3b-4c7a-8e21-0b6f4d9c1a3e", p.Cursor)

	p, err = ParsePagination(httptest.NewRequest("GET", "/o/users?limit=9999", nil))
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, p.Limit)

	_, err = ParsePagination(httptest.NewRequest("GET", "/o/users?cursor=not-a-uuid", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cursor")
}
