package metricsink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// RecordPercolate - empty batch is a no-op
// ---------------------------------------------------------------------------

func TestRecordPercolate_EmptyBatchIsNoOp(t *testing.T) {
	// A nil conn would panic on PrepareBatch; the empty-slice check must
	// short-circuit before that point, the same way the teacher's
	// BatchInsertEntries does for an empty entries slice.
	s := &Sink{}
	err := s.RecordPercolate(context.Background(), nil)
	assert.NoError(t, err)
}
