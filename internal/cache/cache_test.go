package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// snapshotKey
// ---------------------------------------------------------------------------

func TestCache_SnapshotKey(t *testing.T) {
	// snapshotKey is a method on Cache but does not touch the underlying
	// Redis connection, so a zero-value Cache is sufficient.
	c := &Cache{}

	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{"uuid-style id", "550e8400-e29b-41d4-a716-446655440000", "percolate:snapshot:550e8400-e29b-41d4-a716-446655440000"},
		{"short id", "abc", "percolate:snapshot:abc"},
		{"empty id", "", "percolate:snapshot:"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, c.snapshotKey(tc.id))
		})
	}
}

func TestCache_SnapshotKey_Deterministic(t *testing.T) {
	c := &Cache{}
	assert.Equal(t, c.snapshotKey("x"), c.snapshotKey("x"))
}
