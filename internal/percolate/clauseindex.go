package percolate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// fieldValue is one projected (field, value) key, used both for the raw
// pairs a document carries and for the synthetic keys pre-heaters emit.
type fieldValue struct {
	field string
	value string
}

// encodeKey joins a field and value into a single map key. A NUL separator
// is used because neither field nor value names are expected to contain
// it, and it sorts before any printable character.
func encodeKey(field, value string) string {
	var b strings.Builder
	b.Grow(len(field) + len(value) + 1)
	b.WriteString(field)
	b.WriteByte(0)
	b.WriteString(value)
	return b.String()
}

// clauseIndex is one inverted index slot of the multi-matcher: it maps a
// document's projected keys to the Qids whose clause, assigned to this
// slot, might be satisfied by that key.
//
// Three tables share the key space (§4.2):
//   - inclusion: a positive literal directly hits a projected key.
//   - exclusion: a negated HasValue literal is defeated by the document
//     actually carrying the forbidden exact value.
//   - needField: the clause has a negative literal over a field, which by
//     the no-vacuous-truth rule requires that field be present.
//
// alwaysMatch holds Qids whose CNF has fewer clauses than this slot
// position: the multi-matcher pads them with a tautological clause here
// rather than special-casing shorter queries in the main loop.
type clauseIndex struct {
	inclusion   map[string]*roaring.Bitmap
	exclusion   map[string]*roaring.Bitmap
	needField   map[string]*roaring.Bitmap
	intBuckets  map[string]*intBucketIndex
	alwaysMatch *roaring.Bitmap
}

func newClauseIndex() *clauseIndex {
	return &clauseIndex{
		inclusion:   make(map[string]*roaring.Bitmap),
		exclusion:   make(map[string]*roaring.Bitmap),
		needField:   make(map[string]*roaring.Bitmap),
		intBuckets:  make(map[string]*intBucketIndex),
		alwaysMatch: roaring.New(),
	}
}

func addTo(table map[string]*roaring.Bitmap, key string, qid Qid) {
	bm, ok := table[key]
	if !ok {
		bm = roaring.New()
		table[key] = bm
	}
	bm.Add(qid)
}

func (ci *clauseIndex) addInclusion(field, value string, qid Qid) {
	addTo(ci.inclusion, encodeKey(field, value), qid)
}

func (ci *clauseIndex) addExclusion(field, value string, qid Qid) {
	addTo(ci.exclusion, encodeKey(field, value), qid)
}

func (ci *clauseIndex) addNeedField(field string, qid Qid) {
	addTo(ci.needField, field, qid)
}

func (ci *clauseIndex) addAlwaysMatch(qid Qid) {
	ci.alwaysMatch.Add(qid)
}

// cmpClass is the operator family an intBucketIndex serves; "=" is not a
// class here because it is indexed as an ordinary exact-match inclusion
// key (see intEqIndexKey), needing no range structure.
type cmpClass int

const (
	classLT cmpClass = iota
	classLE
	classGE
	classGT
)

func classFor(op CmpOp) cmpClass {
	switch op {
	case OpLT:
		return classLT
	case OpLE:
		return classLE
	case OpGE:
		return classGE
	default:
		return classGT
	}
}

// intBucketIndex holds every threshold indexed for one (field, operator
// class) pair in this clause-index slot, sorted ascending, so a document
// value can be resolved to the matching qids in O(log n + k) time (§4.3,
// §9: "implementations may use a sorted structure per (field, op)").
type intBucketIndex struct {
	class      cmpClass
	thresholds []int64
	bitmaps    []*roaring.Bitmap
}

func newIntBucketIndex(class cmpClass) *intBucketIndex {
	return &intBucketIndex{class: class}
}

func (idx *intBucketIndex) insert(n int64, qid Qid) {
	i := sort.Search(len(idx.thresholds), func(i int) bool { return idx.thresholds[i] >= n })
	if i < len(idx.thresholds) && idx.thresholds[i] == n {
		idx.bitmaps[i].Add(qid)
		return
	}
	idx.thresholds = append(idx.thresholds, 0)
	copy(idx.thresholds[i+1:], idx.thresholds[i:])
	idx.thresholds[i] = n

	bm := roaring.New()
	bm.Add(qid)
	idx.bitmaps = append(idx.bitmaps, nil)
	copy(idx.bitmaps[i+1:], idx.bitmaps[i:])
	idx.bitmaps[i] = bm
}

// query returns the union of every bitmap whose threshold n makes the
// original IntCmp literal (field, op, n) true for document value v.
func (idx *intBucketIndex) query(v int64) *roaring.Bitmap {
	result := roaring.New()
	var start, end int
	switch idx.class {
	case classGT: // v > n  =>  n < v
		start, end = 0, sort.Search(len(idx.thresholds), func(i int) bool { return idx.thresholds[i] >= v })
	case classGE: // v >= n =>  n <= v
		start, end = 0, sort.Search(len(idx.thresholds), func(i int) bool { return idx.thresholds[i] > v })
	case classLT: // v < n  =>  n > v
		start, end = sort.Search(len(idx.thresholds), func(i int) bool { return idx.thresholds[i] > v }), len(idx.thresholds)
	case classLE: // v <= n =>  n >= v
		start, end = sort.Search(len(idx.thresholds), func(i int) bool { return idx.thresholds[i] >= v }), len(idx.thresholds)
	}
	for i := start; i < end; i++ {
		result.Or(idx.bitmaps[i])
	}
	return result
}

func intBucketMapKey(field string, class cmpClass) string {
	return encodeKey(field, string(rune('0'+int(class))))
}

func (ci *clauseIndex) addIntBucket(field string, class cmpClass, n int64, qid Qid) {
	key := intBucketMapKey(field, class)
	idx, ok := ci.intBuckets[key]
	if !ok {
		idx = newIntBucketIndex(class)
		ci.intBuckets[key] = idx
	}
	idx.insert(n, qid)
}

// candidates computes the sound over-approximation of Qids whose clause in
// this slot might be satisfied by the document. projected is the union of
// the document's own (field,value) pairs and every pre-heater virtual key;
// raw is the original, unexpanded document, used for the exclusion and
// need-field lookups, which reason about real field presence and real
// values only (§4.2: "for (f,v) in d", "for f in fields(d)").
func (ci *clauseIndex) candidates(projected []fieldValue, raw Document) *roaring.Bitmap {
	incl := roaring.New()
	for _, kv := range projected {
		if bm, ok := ci.inclusion[encodeKey(kv.field, kv.value)]; ok {
			incl.Or(bm)
		}
	}

	for field, values := range raw {
		for _, v := range values {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				continue
			}
			for _, class := range []cmpClass{classLT, classLE, classGE, classGT} {
				if idx, ok := ci.intBuckets[intBucketMapKey(field, class)]; ok {
					incl.Or(idx.query(n))
				}
			}
		}
	}

	need := roaring.New()
	for field := range raw {
		if bm, ok := ci.needField[field]; ok {
			need.Or(bm)
		}
	}

	excl := roaring.New()
	for field, values := range raw {
		for _, v := range values {
			if bm, ok := ci.exclusion[encodeKey(field, v)]; ok {
				excl.Or(bm)
			}
		}
	}

	need.AndNot(excl)
	incl.Or(need)
	incl.Or(ci.alwaysMatch)
	return incl
}
