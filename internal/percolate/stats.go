package percolate

import (
	"fmt"
	"sort"
	"strings"
)

// Stats is a point-in-time snapshot of the histograms a builder uses to
// tune n_clause_matchers and prefix_sizes (§4.5, §8).
type Stats struct {
	TotalQueries         int
	UnsatisfiableQueries int
	NClauseMatchers      int

	// ClauseCountHistogram maps a satisfiable query's clause count to the
	// number of registered queries with that count.
	ClauseCountHistogram map[int]int

	// PrefixLengthHistogram maps an indexed prefix literal's length to the
	// number of times a literal of that length was registered.
	PrefixLengthHistogram map[int]int

	// PreheaterBucketCounts counts registered literals per pre-heater
	// family ("prefix", "exists", "intcmp", "h3").
	PreheaterBucketCounts map[string]int

	// SlotRealClauseCounts[i] is the number of registered queries whose
	// clause i is a real clause rather than an alwaysMatch pad.
	SlotRealClauseCounts []int
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "percolator: %d queries (%d unsatisfiable), %d clause matchers\n",
		s.TotalQueries, s.UnsatisfiableQueries, s.NClauseMatchers)
	fmt.Fprintf(&b, "  clause-count histogram: %s\n", formatIntHist(s.ClauseCountHistogram))
	fmt.Fprintf(&b, "  prefix-length histogram: %s\n", formatIntHist(s.PrefixLengthHistogram))
	fmt.Fprintf(&b, "  pre-heater buckets: %s\n", formatStrHist(s.PreheaterBucketCounts))
	fmt.Fprintf(&b, "  real clauses per slot: %v\n", s.SlotRealClauseCounts)
	return b.String()
}

func formatIntHist(h map[int]int) string {
	keys := make([]int, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", k, h[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatStrHist(h map[string]int) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, h[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// statsAccumulator is incrementally updated as queries are added, avoiding
// a full scan over the clause indices every time Stats is requested.
type statsAccumulator struct {
	unsatisfiableCount    int
	clauseCountHist       map[int]int
	prefixLenHist         map[int]int
	preheaterBucketCounts map[string]int
	slotRealClauseCounts  []int
}

func newStatsAccumulator(nClauseMatchers int) *statsAccumulator {
	return &statsAccumulator{
		clauseCountHist:       make(map[int]int),
		prefixLenHist:         make(map[int]int),
		preheaterBucketCounts: make(map[string]int),
		slotRealClauseCounts:  make([]int, nClauseMatchers),
	}
}

func (s *statsAccumulator) record(q CNFQuery) {
	if q.Unsatisfiable {
		s.unsatisfiableCount++
		return
	}
	s.clauseCountHist[len(q.Clauses)]++

	for slot := range s.slotRealClauseCounts {
		if slot < len(q.Clauses) {
			s.slotRealClauseCounts[slot]++
		}
	}

	for _, clause := range q.Clauses {
		for _, lit := range clause {
			inner := lit
			if n, ok := lit.(Neg); ok {
				inner = n.Inner
			}
			switch t := inner.(type) {
			case HasPrefix:
				if t.Prefix == "" {
					s.preheaterBucketCounts["exists"]++
					continue
				}
				s.prefixLenHist[len(t.Prefix)]++
				s.preheaterBucketCounts["prefix"]++
			case IntCmp:
				s.preheaterBucketCounts["intcmp"]++
			case H3In:
				s.preheaterBucketCounts["h3"]++
			}
		}
	}
}

func (s *statsAccumulator) snapshot(totalQueries, nClauseMatchers int) Stats {
	return Stats{
		TotalQueries:          totalQueries,
		UnsatisfiableQueries:  s.unsatisfiableCount,
		NClauseMatchers:       nClauseMatchers,
		ClauseCountHistogram:  copyIntMap(s.clauseCountHist),
		PrefixLengthHistogram: copyIntMap(s.prefixLenHist),
		PreheaterBucketCounts: copyStrMap(s.preheaterBucketCounts),
		SlotRealClauseCounts:  append([]int(nil), s.slotRealClauseCounts...),
	}
}

func copyIntMap(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
