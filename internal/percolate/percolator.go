package percolate

import "sort"

// ConfigError reports a builder invariant violated at construction time
// (§4.7): the core never validates configuration per-call, only once, at
// Build.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "percolate: " + e.Msg }

// Options configures a Percolator's builder. Defaults mirror §4.5.
type Options struct {
	NClauseMatchers int
	PrefixSizes     []int
}

// DefaultOptions returns the documented defaults: 2 clause matchers, and
// prefix bucket sizes 3, 6, 10.
func DefaultOptions() Options {
	return Options{NClauseMatchers: 2, PrefixSizes: []int{3, 6, 10}}
}

// Builder constructs a Percolator from validated Options.
type Builder struct {
	opts Options
}

// NewBuilder starts from DefaultOptions.
func NewBuilder() *Builder {
	opts := DefaultOptions()
	return &Builder{opts: opts}
}

// WithNClauseMatchers sets N, the maximum clause count indexable without
// surplus clauses spilling to confirmation-only evaluation.
func (b *Builder) WithNClauseMatchers(n int) *Builder {
	b.opts.NClauseMatchers = n
	return b
}

// WithPrefixSizes sets the ordered prefix bucket sizes.
func (b *Builder) WithPrefixSizes(sizes []int) *Builder {
	b.opts.PrefixSizes = sizes
	return b
}

// Build validates Options and constructs a Percolator, or returns a
// ConfigError.
func (b *Builder) Build() (*Percolator, error) {
	if b.opts.NClauseMatchers <= 0 {
		return nil, &ConfigError{Msg: "n_clause_matchers must be a positive integer"}
	}
	if len(b.opts.PrefixSizes) == 0 {
		return nil, &ConfigError{Msg: "prefix_sizes must be a non-empty list"}
	}
	sizes := append([]int(nil), b.opts.PrefixSizes...)
	sort.Ints(sizes)

	pre := NewPreheaters(sizes)
	return &Percolator{
		opts:    b.opts,
		pre:     pre,
		matcher: newMultiMatcher(b.opts.NClauseMatchers, pre),
		stats:   newStatsAccumulator(b.opts.NClauseMatchers),
	}, nil
}

// Percolator is the public façade (§4.5): it owns the query registry
// (Qid -> original CNF, needed for confirmation) and the multi-matcher
// that produces candidate sets. It is single-threaded and synchronous
// (§5): Add and Percolate must not be called concurrently with each
// other on the same instance. Once population (the add phase) is
// finished, concurrent Percolate calls from multiple goroutines are safe,
// since nothing past that point mutates the percolator's state.
type Percolator struct {
	opts     Options
	pre      *Preheaters
	matcher  *multiMatcher
	registry []CNFQuery
	stats    *statsAccumulator
}

// AddQuery CNF-normalizes expr, assigns it the next dense Qid, stores the
// resulting CNF in the registry for confirmation, and indexes it. Qids are
// issued in construction order starting at 0 and are never reused.
func (p *Percolator) AddQuery(expr *Expr) Qid {
	return p.addCNF(ToCNF(expr))
}

// addCNF registers an already-normalized CNFQuery. It is the shared path
// between AddQuery and snapshot restoration: replaying a registry's CNFQuery
// list through addCNF in order reproduces the exact same Qid assignment,
// index contents, and stats as the original population did.
func (p *Percolator) addCNF(q CNFQuery) Qid {
	qid := Qid(len(p.registry))
	p.registry = append(p.registry, q)
	p.matcher.index(qid, q)
	p.stats.record(q)
	return qid
}

// Options returns the configuration the Percolator was built with.
func (p *Percolator) Options() Options {
	return p.opts
}

// Registry returns the CNF-normalized form of every registered query, in
// Qid order. Used by the snapshot collaborator to persist and restore
// percolator state without re-running CNF normalization.
func (p *Percolator) Registry() []CNFQuery {
	return p.registry
}

// Restore rebuilds a Percolator's index and stats from a previously saved
// registry, preserving Qids exactly (§8 invariant: "stable Qids"). opts must
// match the Options the registry was produced under.
func Restore(opts Options, registry []CNFQuery) (*Percolator, error) {
	b := NewBuilder().WithNClauseMatchers(opts.NClauseMatchers).WithPrefixSizes(opts.PrefixSizes)
	p, err := b.Build()
	if err != nil {
		return nil, err
	}
	for _, q := range registry {
		p.addCNF(q)
	}
	return p, nil
}

// Percolate reduces document to a candidate set via the multi-matcher,
// confirms every candidate by re-evaluating its stored CNF directly
// against the document, and returns the surviving Qids in strictly
// ascending order.
func (p *Percolator) Percolate(d Document) []Qid {
	candidates := p.matcher.candidates(d)

	// roaring.Bitmap.ToArray returns set bits in ascending order, which is
	// exactly the ordering guarantee percolate must provide.
	ids := candidates.ToArray()
	out := make([]Qid, 0, len(ids))
	for _, qid := range ids {
		if p.registry[qid].Test(d) {
			out = append(out, qid)
		}
	}
	return out
}

// Stats returns a snapshot of the histograms backing builder tuning
// decisions (§4.5).
func (p *Percolator) Stats() Stats {
	return p.stats.snapshot(len(p.registry), p.opts.NClauseMatchers)
}
