package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// IsNotFound
// ---------------------------------------------------------------------------

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error returns false", nil, false},
		{"pgx.ErrNoRows returns true", pgx.ErrNoRows, true},
		{"error containing 'not found' returns true", fmt.Errorf("registry: query log entry not found: qid 4"), true},
		{"wrapped pgx.ErrNoRows without message text returns false", fmt.Errorf("query failed: %w", pgx.ErrNoRows), false},
		{"generic error returns false", fmt.Errorf("connection refused"), false},
		{"errors.New with not found returns true", errors.New("entry not found"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsNotFound(tc.err))
		})
	}
}

func TestIsNotFound_PackageErrorPatterns(t *testing.T) {
	patterns := []string{
		"registry: query log entry not found: qid %d",
	}
	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			err := fmt.Errorf(pattern, 7)
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestIsNotFound_NonMatchingPackageErrors(t *testing.T) {
	patterns := []string{
		"registry: parse config: invalid dsn",
		"registry: connect: connection refused",
		"registry: ping: timeout",
		"registry: record add query: duplicate key",
		"registry: list recent: connection pool exhausted",
	}
	for _, msg := range patterns {
		t.Run(msg, func(t *testing.T) {
			assert.False(t, IsNotFound(errors.New(msg)))
		})
	}
}
