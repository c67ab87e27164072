package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// key
// ---------------------------------------------------------------------------

func TestStore_Key(t *testing.T) {
	// key only uses path.Join and does not touch the underlying S3
	// connection, so a zero-value Store is sufficient.
	st := &Store{}

	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{"uuid-style id", "550e8400-e29b-41d4-a716-446655440000", "snapshots/550e8400-e29b-41d4-a716-446655440000.gob"},
		{"short id", "abc", "snapshots/abc.gob"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, st.key(tc.id))
		})
	}
}

func TestNewStore_RejectsEmptyBucket(t *testing.T) {
	_, err := NewStore(context.Background(), "http://localhost:9000", "key", "secret", "", true, true)
	assert.Error(t, err)
}
