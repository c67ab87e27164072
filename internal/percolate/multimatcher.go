package percolate

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// multiMatcher orchestrates N clause indices (§4.4). Clause i of a CNF
// query is inserted into clause index i; queries with fewer than N clauses
// are padded with a tautological (always-match) entry in the remaining
// slots so the percolate-time intersection is a fixed-width AND across
// exactly N bitsets, never a variable-width one.
type multiMatcher struct {
	clauseIndices []*clauseIndex
	pre           *Preheaters
}

func newMultiMatcher(n int, pre *Preheaters) *multiMatcher {
	cis := make([]*clauseIndex, n)
	for i := range cis {
		cis[i] = newClauseIndex()
	}
	return &multiMatcher{clauseIndices: cis, pre: pre}
}

// index inserts qid's CNF into the matcher. If q has more clauses than
// there are slots, the surplus clauses are not indexed at all: this spec
// mandates that confirmation (re-evaluating the full stored CNF) catches
// them, rather than unsoundly coalescing them into the last slot with OR.
func (m *multiMatcher) index(qid Qid, q CNFQuery) {
	if q.Unsatisfiable {
		return
	}
	n := len(m.clauseIndices)
	for slot := 0; slot < n; slot++ {
		if slot < len(q.Clauses) {
			negs := 0
			for _, lit := range q.Clauses[slot] {
				if _, ok := lit.(Neg); ok {
					negs++
				}
			}
			for _, lit := range q.Clauses[slot] {
				// With more than one negation in the clause, a present
				// forbidden value defeats only its own disjunct, so
				// only field presence is recorded.
				if neg, ok := lit.(Neg); ok && negs > 1 {
					m.clauseIndices[slot].addNeedField(neg.Inner.FieldName(), qid)
					continue
				}
				indexLiteral(m.clauseIndices[slot], m.pre, lit, qid)
			}
			continue
		}
		m.clauseIndices[slot].addAlwaysMatch(qid)
	}
}

// candidates intersects every clause index's candidate bitset for the
// document, yielding the sound over-approximation confirmation will
// filter down to the true match set.
func (m *multiMatcher) candidates(d Document) *roaring.Bitmap {
	projected := m.pre.Expand(d)
	var result *roaring.Bitmap
	for _, ci := range m.clauseIndices {
		bm := ci.candidates(projected, d)
		if result == nil {
			result = bm
			continue
		}
		result.And(bm)
	}
	if result == nil {
		return roaring.New()
	}
	return result
}

// indexLiteral decides which clause-index table a single literal belongs
// in at add time. Positive literals land in Inclusion, lowered through the
// pre-heaters when they are not an exact (field,value) match. Negative
// literals always record NeedField (no-vacuous-truth); only a negated
// exact HasValue additionally records Exclusion, since that is the only
// negation form the clause index can rule out precisely (§4.2, §9).
func indexLiteral(ci *clauseIndex, pre *Preheaters, lit Literal, qid Qid) {
	switch l := lit.(type) {
	case HasValue:
		ci.addInclusion(l.Field, l.Value, qid)
	case HasPrefix:
		if l.Prefix == "" {
			k := pre.existsKey(l.Field)
			ci.addInclusion(k.field, k.value, qid)
			return
		}
		k := pre.prefixIndexKey(l.Field, l.Prefix)
		ci.addInclusion(k.field, k.value, qid)
	case IntCmp:
		if l.Op == OpEQ {
			k := intEqIndexKey(l.Field, l.N)
			ci.addInclusion(k.field, k.value, qid)
			return
		}
		ci.addIntBucket(l.Field, classFor(l.Op), l.N, qid)
	case H3In:
		k := h3IndexKey(l.Field, l.Cell)
		ci.addInclusion(k.field, k.value, qid)
	case Neg:
		if hv, ok := l.Inner.(HasValue); ok {
			ci.addExclusion(hv.Field, hv.Value, qid)
		}
		ci.addNeedField(l.Inner.FieldName(), qid)
	default:
		panic(fmt.Sprintf("percolate: unhandled literal type %T", lit))
	}
}
