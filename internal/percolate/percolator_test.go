package percolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

func TestBuilder_RejectsNonPositiveClauseMatchers(t *testing.T) {
	_, err := NewBuilder().WithNClauseMatchers(0).Build()
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestBuilder_RejectsEmptyPrefixSizes(t *testing.T) {
	_, err := NewBuilder().WithPrefixSizes(nil).Build()
	require.Error(t, err)
}

func TestBuilder_Defaults(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	require.NotNil(t, p)
}

// ---------------------------------------------------------------------------
// Stable Qids and ascending order (invariants 4, 6)
// ---------------------------------------------------------------------------

func TestPercolator_QidsAreStableAndAscending(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		qid := p.AddQuery(Lit(HasValue{Field: "k", Value: "v"}))
		assert.Equal(t, Qid(i), qid)
	}

	d := NewDocument([2]string{"k", "v"})
	got := p.Percolate(d)
	require.Len(t, got, 5)
	for i, qid := range got {
		assert.Equal(t, Qid(i), qid)
	}
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

// ---------------------------------------------------------------------------
// Monotone add (invariant 5)
// ---------------------------------------------------------------------------

func TestPercolator_MonotoneAdd(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)

	q0 := p.AddQuery(Lit(HasValue{Field: "a", Value: "1"}))
	d := NewDocument([2]string{"a", "1"})
	before := p.Percolate(d)

	p.AddQuery(Lit(HasValue{Field: "b", Value: "2"}))

	after := p.Percolate(d)
	assert.Contains(t, after, q0)
	assert.Equal(t, before, []Qid{q0})
}

// ---------------------------------------------------------------------------
// Empty-prefix equals field existence (invariant 7)
// ---------------------------------------------------------------------------

func TestPercolator_EmptyPrefixEqualsFieldExistence(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	qid := p.AddQuery(Lit(HasPrefix{Field: "tag", Prefix: ""}))

	assert.Contains(t, p.Percolate(NewDocument([2]string{"tag", "anything"})), qid)
	assert.NotContains(t, p.Percolate(NewDocument([2]string{"other", "x"})), qid)
}

// ---------------------------------------------------------------------------
// End-to-end scenario
//
// Queries, in add order:
//
//	0: A:a
//	1: A:a OR B:b
//	2: A:a AND B:b
//	3: NOT A:a
//	4: NOT A:a OR B:b
//	5: NOT A:a AND B:b
//	6: NOT A:a AND A:a          (must never match any document)
//	7: C:multi*
//	8: C:multi* AND NOT C:multimeter
//	9: A:aa AND B:bb AND C:cc AND D:bla*
//	10: P:*
//	11: L>1000
//	12: location H3IN 861f09b27ffffff
//
// Expected Qid sets below are recomputed under the no-vacuous-truth rule
// for Neg (see DESIGN.md): a negated literal only matches when its field is
// present in the document. This differs from plain classical negation for
// any document missing field A, which is why documents with no A field do
// not pick up Qid 3 or 5 here, and pick up Qid 4 only through its B:b
// disjunct.
// ---------------------------------------------------------------------------

func buildScenarioPercolator(t *testing.T) *Percolator {
	t.Helper()
	p, err := NewBuilder().WithNClauseMatchers(2).WithPrefixSizes([]int{3, 6, 10}).Build()
	require.NoError(t, err)

	aEqA := HasValue{Field: "A", Value: "a"}
	bEqB := HasValue{Field: "B", Value: "b"}

	p.AddQuery(Lit(aEqA))                                  // 0
	p.AddQuery(Or(Lit(aEqA), Lit(bEqB)))                    // 1
	p.AddQuery(And(Lit(aEqA), Lit(bEqB)))                   // 2
	p.AddQuery(Not(Lit(aEqA)))                              // 3
	p.AddQuery(Or(Not(Lit(aEqA)), Lit(bEqB)))               // 4
	p.AddQuery(And(Not(Lit(aEqA)), Lit(bEqB)))              // 5
	p.AddQuery(And(Not(Lit(aEqA)), Lit(aEqA)))              // 6
	p.AddQuery(Lit(HasPrefix{Field: "C", Prefix: "multi"})) // 7
	p.AddQuery(And( // 8
		Lit(HasPrefix{Field: "C", Prefix: "multi"}),
		Not(Lit(HasValue{Field: "C", Value: "multimeter"})),
	))
	p.AddQuery(And( // 9
		Lit(HasValue{Field: "A", Value: "aa"}),
		Lit(HasValue{Field: "B", Value: "bb"}),
		Lit(HasValue{Field: "C", Value: "cc"}),
		Lit(HasPrefix{Field: "D", Prefix: "bla"}),
	))
	p.AddQuery(Lit(HasPrefix{Field: "P", Prefix: ""}))                // 10
	p.AddQuery(Lit(IntCmp{Field: "L", Op: OpGT, N: 1000}))            // 11
	p.AddQuery(Lit(H3In{Field: "location", Cell: "861f09b27ffffff"})) // 12

	return p
}

func TestPercolator_EndToEndScenario(t *testing.T) {
	p := buildScenarioPercolator(t)

	tests := []struct {
		name string
		doc  Document
		want []Qid
	}{
		{
			name: "self cell",
			doc:  NewDocument([2]string{"location", "861f09b27ffffff"}),
			want: []Qid{12},
		},
		{
			name: "child cell",
			doc:  NewDocument([2]string{"location", "871f09b20ffffff"}),
			want: []Qid{12},
		},
		{
			name: "sibling cell",
			doc:  NewDocument([2]string{"location", "871f09b29ffffff"}),
			want: []Qid{},
		},
		{
			name: "int comparison",
			doc:  NewDocument([2]string{"L", "1001"}),
			want: []Qid{11},
		},
		{
			name: "empty-value prefix existence",
			doc:  NewDocument([2]string{"P", ""}),
			want: []Qid{10},
		},
		{
			name: "multi-field conjunction",
			doc: NewDocument(
				[2]string{"A", "aa"}, [2]string{"B", "bb"},
				[2]string{"C", "cc"}, [2]string{"D", "blabla"},
			),
			want: []Qid{3, 4, 9},
		},
		{
			name: "prefix match only",
			doc:  NewDocument([2]string{"C", "multi"}),
			want: []Qid{7, 8},
		},
		{
			name: "prefix match defeated by exact negation",
			doc:  NewDocument([2]string{"C", "multimeter"}),
			want: []Qid{7},
		},
		{
			name: "B present, A absent",
			doc:  NewDocument([2]string{"B", "b"}),
			want: []Qid{1, 4},
		},
		{
			name: "A and B both present",
			doc:  NewDocument([2]string{"A", "a"}, [2]string{"B", "b"}),
			want: []Qid{0, 1, 2, 4},
		},
		{
			name: "unrelated field",
			doc:  NewDocument([2]string{"X", "x"}),
			want: []Qid{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Percolate(tc.doc)
			assert.Equal(t, tc.want, got)
			assert.NotContains(t, got, Qid(6))
		})
	}
}

func TestPercolator_Qid6NeverMatchesAnyDocument(t *testing.T) {
	p := buildScenarioPercolator(t)

	docs := []Document{
		NewDocument(),
		NewDocument([2]string{"A", "a"}),
		NewDocument([2]string{"A", "a"}, [2]string{"B", "b"}),
		NewDocument([2]string{"A", "aa"}),
	}
	for _, d := range docs {
		assert.NotContains(t, p.Percolate(d), Qid(6))
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func TestPercolator_Stats(t *testing.T) {
	p := buildScenarioPercolator(t)
	stats := p.Stats()

	assert.Equal(t, 13, stats.TotalQueries)
	assert.Equal(t, 2, stats.NClauseMatchers)
	assert.NotEmpty(t, stats.ClauseCountHistogram)
	assert.NotEmpty(t, stats.String())
}
