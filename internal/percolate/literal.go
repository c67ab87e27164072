package percolate

import (
	"fmt"
	"strconv"
)

// CmpOp is one of the five integer comparison operators IntCmp supports.
type CmpOp int

const (
	OpLT CmpOp = iota
	OpLE
	OpEQ
	OpGE
	OpGT
)

func (op CmpOp) String() string {
	switch op {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpEQ:
		return "="
	case OpGE:
		return ">="
	case OpGT:
		return ">"
	default:
		return "?"
	}
}

func (op CmpOp) apply(v, n int64) bool {
	switch op {
	case OpLT:
		return v < n
	case OpLE:
		return v <= n
	case OpEQ:
		return v == n
	case OpGE:
		return v >= n
	case OpGT:
		return v > n
	default:
		return false
	}
}

// Literal is a leaf predicate over one field of a document. Every literal
// knows how to test itself directly (used for confirmation and for tests)
// and which field it reads (used by the no-vacuous-truth rule for Neg).
type Literal interface {
	Test(d Document) bool
	FieldName() string
	String() string
	// Equal reports structural equality, used by CNF constant folding to
	// detect a clause containing both L and Neg(L).
	Equal(other Literal) bool
}

// HasValue is true iff the document contains the exact (Field, Value) pair.
type HasValue struct {
	Field string
	Value string
}

func (l HasValue) Test(d Document) bool {
	for _, v := range d[l.Field] {
		if v == l.Value {
			return true
		}
	}
	return false
}

func (l HasValue) FieldName() string { return l.Field }
func (l HasValue) String() string    { return fmt.Sprintf("%s:%s", l.Field, l.Value) }
func (l HasValue) Equal(other Literal) bool {
	o, ok := other.(HasValue)
	return ok && o.Field == l.Field && o.Value == l.Value
}

// HasPrefix is true iff any value of Field begins with Prefix. An empty
// Prefix means "Field is present" and matches any value of the field; the
// field must exist for either case.
type HasPrefix struct {
	Field  string
	Prefix string
}

func (l HasPrefix) Test(d Document) bool {
	values := d[l.Field]
	if len(values) == 0 {
		return false
	}
	if l.Prefix == "" {
		return true
	}
	for _, v := range values {
		if len(v) >= len(l.Prefix) && v[:len(l.Prefix)] == l.Prefix {
			return true
		}
	}
	return false
}

func (l HasPrefix) FieldName() string { return l.Field }
func (l HasPrefix) String() string    { return fmt.Sprintf("%s:%s*", l.Field, l.Prefix) }
func (l HasPrefix) Equal(other Literal) bool {
	o, ok := other.(HasPrefix)
	return ok && o.Field == l.Field && o.Prefix == l.Prefix
}

// IntCmp is true iff any value of Field parses as an int64 and satisfies
// the comparison against N. Values that fail to parse are ignored, not
// treated as false; other values of the same field may still satisfy it.
type IntCmp struct {
	Field string
	Op    CmpOp
	N     int64
}

func (l IntCmp) Test(d Document) bool {
	for _, v := range d[l.Field] {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		if l.Op.apply(n, l.N) {
			return true
		}
	}
	return false
}

func (l IntCmp) FieldName() string { return l.Field }
func (l IntCmp) String() string    { return fmt.Sprintf("%s%s%d", l.Field, l.Op, l.N) }
func (l IntCmp) Equal(other Literal) bool {
	o, ok := other.(IntCmp)
	return ok && o.Field == l.Field && o.Op == l.Op && o.N == l.N
}

// H3In is true iff any value of Field parses as an H3 cell that is Cell
// itself or a descendant of Cell.
type H3In struct {
	Field string
	Cell  string
}

func (l H3In) Test(d Document) bool {
	ancestor, ok := parseH3Cell(l.Cell)
	if !ok {
		return false
	}
	for _, v := range d[l.Field] {
		cell, ok := parseH3Cell(v)
		if !ok {
			continue
		}
		if h3IsDescendant(cell, ancestor) {
			return true
		}
	}
	return false
}

func (l H3In) FieldName() string { return l.Field }
func (l H3In) String() string    { return fmt.Sprintf("%s H3IN %s", l.Field, l.Cell) }
func (l H3In) Equal(other Literal) bool {
	o, ok := other.(H3In)
	return ok && o.Field == l.Field && o.Cell == l.Cell
}

// Neg is the logical negation of a literal. The no-vacuous-truth rule
// applies: Neg(L) implies the field L reads is present in the document. If
// the field is absent, Neg(L) is false, not true.
type Neg struct {
	Inner Literal
}

func (l Neg) Test(d Document) bool {
	if !d.Has(l.Inner.FieldName()) {
		return false
	}
	return !l.Inner.Test(d)
}

func (l Neg) FieldName() string { return l.Inner.FieldName() }
func (l Neg) String() string    { return "NOT " + l.Inner.String() }
func (l Neg) Equal(other Literal) bool {
	o, ok := other.(Neg)
	return ok && o.Inner.Equal(l.Inner)
}
