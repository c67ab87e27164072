package percolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClauseIndex_Inclusion(t *testing.T) {
	ci := newClauseIndex()
	ci.addInclusion("country", "US", 1)
	ci.addInclusion("country", "CA", 2)

	pre := NewPreheaters([]int{3})
	d := NewDocument([2]string{"country", "US"})
	bm := ci.candidates(pre.Expand(d), d)

	assert.True(t, bm.Contains(1))
	assert.False(t, bm.Contains(2))
}

func TestClauseIndex_ExclusionDefeatsNeedField(t *testing.T) {
	ci := newClauseIndex()
	// Qid 1 is the clause: NOT country:FR
	ci.addExclusion("country", "FR", 1)
	ci.addNeedField("country", 1)

	pre := NewPreheaters([]int{3})

	matches := NewDocument([2]string{"country", "US"})
	bm := ci.candidates(pre.Expand(matches), matches)
	assert.True(t, bm.Contains(1))

	excluded := NewDocument([2]string{"country", "FR"})
	bm = ci.candidates(pre.Expand(excluded), excluded)
	assert.False(t, bm.Contains(1))

	absent := NewDocument()
	bm = ci.candidates(pre.Expand(absent), absent)
	assert.False(t, bm.Contains(1), "no-vacuous-truth: field absent means the negated clause cannot be satisfied here")
}

func TestClauseIndex_AlwaysMatch(t *testing.T) {
	ci := newClauseIndex()
	ci.addAlwaysMatch(7)

	pre := NewPreheaters([]int{3})
	d := NewDocument()
	bm := ci.candidates(pre.Expand(d), d)
	assert.True(t, bm.Contains(7))
}

func TestClauseIndex_IntBucket_RangeClasses(t *testing.T) {
	ci := newClauseIndex()
	ci.addIntBucket("age", classGT, 18, 1)  // age > 18
	ci.addIntBucket("age", classLE, 65, 2)  // age <= 65
	ci.addIntBucket("age", classGE, 100, 3) // age >= 100

	pre := NewPreheaters([]int{3})

	young := NewDocument([2]string{"age", "10"})
	bm := ci.candidates(pre.Expand(young), young)
	assert.False(t, bm.Contains(1))
	assert.True(t, bm.Contains(2))
	assert.False(t, bm.Contains(3))

	adult := NewDocument([2]string{"age", "40"})
	bm = ci.candidates(pre.Expand(adult), adult)
	assert.True(t, bm.Contains(1))
	assert.True(t, bm.Contains(2))
	assert.False(t, bm.Contains(3))

	elder := NewDocument([2]string{"age", "150"})
	bm = ci.candidates(pre.Expand(elder), elder)
	assert.True(t, bm.Contains(1))
	assert.False(t, bm.Contains(2))
	assert.True(t, bm.Contains(3))
}

func TestIntBucketIndex_InsertIsSortedAndDeduped(t *testing.T) {
	idx := newIntBucketIndex(classGT)
	idx.insert(30, 1)
	idx.insert(10, 2)
	idx.insert(20, 3)
	idx.insert(20, 4) // same threshold, different qid

	assert.Equal(t, []int64{10, 20, 30}, idx.thresholds)
	assert.True(t, idx.bitmaps[1].Contains(3))
	assert.True(t, idx.bitmaps[1].Contains(4))
}
