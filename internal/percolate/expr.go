package percolate

// exprKind distinguishes the node types of a boolean expression tree.
type exprKind int

const (
	exprLeaf exprKind = iota
	exprAnd
	exprOr
	exprNot
)

// Expr is a boolean expression tree: And, Or, Not, or Leaf(Literal). It is
// the input to CNF normalization; callers (the query-text parser, or tests)
// build one with the And/Or/Not/Lit constructors below.
type Expr struct {
	kind     exprKind
	leaf     Literal
	children []*Expr
}

// Lit wraps a single literal as a leaf expression.
func Lit(l Literal) *Expr { return &Expr{kind: exprLeaf, leaf: l} }

// And builds a conjunction of two or more sub-expressions.
func And(children ...*Expr) *Expr { return &Expr{kind: exprAnd, children: children} }

// Or builds a disjunction of two or more sub-expressions.
func Or(children ...*Expr) *Expr { return &Expr{kind: exprOr, children: children} }

// Not negates a sub-expression.
func Not(child *Expr) *Expr { return &Expr{kind: exprNot, children: []*Expr{child}} }

// Clause is a disjunction of literals; true iff at least one literal is
// true.
type Clause []Literal

// CNFQuery is an ordered conjunction of clauses; true iff every clause is
// true. A CNFQuery with zero clauses is trivially true for any non-empty
// document (§9 Open Question: "AND with an empty right-hand side").
// Unsatisfiable marks a query that CNF normalization proved can never be
// true for any document; it is still registered and stored, it simply
// never surfaces from percolation.
type CNFQuery struct {
	Clauses       []Clause
	Unsatisfiable bool
}

// Test evaluates the CNF directly against a document. This is the
// confirmation step: the sole source of truth for whether a query matches.
func (q CNFQuery) Test(d Document) bool {
	if q.Unsatisfiable {
		return false
	}
	if len(q.Clauses) == 0 {
		return len(d) > 0
	}
	for _, clause := range q.Clauses {
		satisfied := false
		for _, lit := range clause {
			if lit.Test(d) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// ToCNF normalizes an arbitrary boolean expression tree into a CNFQuery:
// negation is pushed to the leaves (de Morgan, double-negation
// elimination), Or is distributed over And, and each resulting clause is
// constant-folded (duplicate literals removed, tautological clauses
// dropped, literals that are false on every document removed). A clause
// that folds down to nothing, or a pair of single-literal clauses L and
// Neg(L), makes the whole query Unsatisfiable.
func ToCNF(e *Expr) CNFQuery {
	nnf := toNNF(e, false)
	raw := distributeCNF(nnf)

	q := CNFQuery{Clauses: make([]Clause, 0, len(raw))}
	for _, c := range raw {
		clause, tautology := foldClause(c)
		if tautology {
			continue
		}
		if len(clause) == 0 {
			return CNFQuery{Unsatisfiable: true}
		}
		q.Clauses = append(q.Clauses, clause)
	}
	for _, a := range q.Clauses {
		for _, b := range q.Clauses {
			if len(a) == 1 && len(b) == 1 && isComplementOf(a[0], b[0]) {
				return CNFQuery{Unsatisfiable: true}
			}
		}
	}
	return q
}

// toNNF pushes negation to the leaves. negate tracks whether the current
// subtree is under an odd number of enclosing Not nodes.
func toNNF(e *Expr, negate bool) *Expr {
	switch e.kind {
	case exprLeaf:
		if !negate {
			return e
		}
		return &Expr{kind: exprLeaf, leaf: negateLiteral(e.leaf)}
	case exprNot:
		return toNNF(e.children[0], !negate)
	case exprAnd, exprOr:
		kind := e.kind
		if negate {
			if kind == exprAnd {
				kind = exprOr
			} else {
				kind = exprAnd
			}
		}
		children := make([]*Expr, len(e.children))
		for i, c := range e.children {
			children[i] = toNNF(c, negate)
		}
		return &Expr{kind: kind, children: children}
	default:
		return e
	}
}

// negateLiteral negates a literal, collapsing Neg(Neg(x)) to x rather than
// double-wrapping.
func negateLiteral(l Literal) Literal {
	if n, ok := l.(Neg); ok {
		return n.Inner
	}
	return Neg{Inner: l}
}

// distributeCNF converts an NNF tree (And/Or/Leaf only) into a flat list of
// clauses by distributing Or over And.
func distributeCNF(e *Expr) []Clause {
	switch e.kind {
	case exprLeaf:
		return []Clause{{e.leaf}}
	case exprAnd:
		var out []Clause
		for _, c := range e.children {
			out = append(out, distributeCNF(c)...)
		}
		return out
	case exprOr:
		acc := distributeCNF(e.children[0])
		for _, c := range e.children[1:] {
			acc = crossOr(acc, distributeCNF(c))
		}
		return acc
	default:
		return nil
	}
}

// crossOr combines two clause sets produced by distributeCNF for an Or
// node's children: every clause of a disjuncted with every clause of b.
func crossOr(a, b []Clause) []Clause {
	out := make([]Clause, 0, len(a)*len(b))
	for _, ca := range a {
		for _, cb := range b {
			merged := make(Clause, 0, len(ca)+len(cb))
			merged = append(merged, ca...)
			merged = append(merged, cb...)
			out = append(out, merged)
		}
	}
	return out
}

// foldClause removes duplicate literals, reports whether the clause is a
// tautology (contains both L and Neg(L)), and drops literals that are
// false on every document regardless of content (e.g. Neg(HasPrefix(f,
// "")), which demands field f be both present and absent).
func foldClause(c Clause) (Clause, bool) {
	deduped := make(Clause, 0, len(c))
	for _, l := range c {
		if isTriviallyFalse(l) {
			continue
		}
		dup := false
		for _, seen := range deduped {
			if seen.Equal(l) {
				dup = true
				break
			}
		}
		if !dup {
			deduped = append(deduped, l)
		}
	}

	for i, a := range deduped {
		for j, b := range deduped {
			if i == j {
				continue
			}
			if isComplementOf(a, b) {
				return nil, true
			}
		}
	}
	return deduped, false
}

func isComplementOf(a, b Literal) bool {
	if na, ok := a.(Neg); ok {
		return na.Inner.Equal(b)
	}
	return false
}

func isTriviallyFalse(l Literal) bool {
	n, ok := l.(Neg)
	if !ok {
		return false
	}
	hp, ok := n.Inner.(HasPrefix)
	return ok && hp.Prefix == ""
}
