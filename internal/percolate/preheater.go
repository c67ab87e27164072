package percolate

import (
	"fmt"
	"strconv"
)

// Preheaters expands a document into the virtual keys its non-exact
// literals (prefix, integer comparison, H3) were indexed under, per §4.3.
// It also carries the small amount of state needed to keep prefix bucket
// choices sound when an indexed prefix is shorter than every configured
// bucket size (see bucketSizeForLiteral).
type Preheaters struct {
	sizes []int
	extra map[int]struct{}
}

// NewPreheaters builds a Preheaters from the builder's configured,
// ascending, non-empty prefix_sizes list.
func NewPreheaters(prefixSizes []int) *Preheaters {
	sizes := append([]int(nil), prefixSizes...)
	return &Preheaters{sizes: sizes, extra: make(map[int]struct{})}
}

func prefixBucketField(field string, size int) string {
	return fmt.Sprintf("prefix@%d:%s", size, field)
}

func existsField(field string) string {
	return fmt.Sprintf("exists:%s", field)
}

func h3Field(field string) string {
	return fmt.Sprintf("h3:%s", field)
}

func intEqField(field string) string {
	return fmt.Sprintf("inteq:%s", field)
}

// bucketSizeForLiteral picks the largest configured prefix size that is no
// larger than length (the indexed prefix's own length). If no configured
// size fits — the prefix is shorter than every configured bucket — the
// prefix's own length is registered as an ad hoc bucket so that documents
// whose values are at least that long still generate a matching virtual
// key (see allSizesUpTo); this keeps completeness (§8 property 2) without
// requiring prefix_sizes to include very small sizes.
func (p *Preheaters) bucketSizeForLiteral(length int) int {
	best := -1
	for _, s := range p.sizes {
		if s <= length && s > best {
			best = s
		}
	}
	if best == -1 {
		p.extra[length] = struct{}{}
		return length
	}
	return best
}

func (p *Preheaters) allSizesUpTo(length int) []int {
	out := make([]int, 0, len(p.sizes)+len(p.extra))
	for _, s := range p.sizes {
		if s <= length {
			out = append(out, s)
		}
	}
	for s := range p.extra {
		if s <= length {
			out = append(out, s)
		}
	}
	return out
}

// prefixIndexKey returns the synthetic inclusion key a HasPrefix(field,
// prefix) literal (prefix non-empty) is stored under at add time.
func (p *Preheaters) prefixIndexKey(field, prefix string) fieldValue {
	size := p.bucketSizeForLiteral(len(prefix))
	return fieldValue{field: prefixBucketField(field, size), value: prefix[:size]}
}

func (p *Preheaters) existsKey(field string) fieldValue {
	return fieldValue{field: existsField(field), value: "_"}
}

func h3IndexKey(field, cell string) fieldValue {
	return fieldValue{field: h3Field(field), value: cell}
}

func intEqIndexKey(field string, n int64) fieldValue {
	return fieldValue{field: intEqField(field), value: strconv.FormatInt(n, 10)}
}

// Expand projects a document into the full key set §4.2 probes: the
// document's own (field,value) pairs plus every pre-heater virtual key
// (field existence markers, prefix buckets, exact-integer keys, H3
// ancestor chains). Range (<, <=, >=, >) integer comparisons are not
// projected here; clauseIndex resolves them directly against its sorted
// bucket structures (see intBucketIndex) for the reasons given in
// DESIGN.md.
func (p *Preheaters) Expand(d Document) []fieldValue {
	var out []fieldValue
	for field, values := range d {
		if len(values) > 0 {
			out = append(out, p.existsKey(field))
		}
		for _, v := range values {
			out = append(out, fieldValue{field: field, value: v})

			for _, size := range p.allSizesUpTo(len(v)) {
				out = append(out, fieldValue{field: prefixBucketField(field, size), value: v[:size]})
			}

			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out = append(out, intEqIndexKey(field, n))
			}

			if cell, ok := parseH3Cell(v); ok {
				for _, ancestor := range h3Ancestors(cell) {
					out = append(out, fieldValue{field: h3Field(field), value: ancestor.String()})
				}
			}
		}
	}
	return out
}
