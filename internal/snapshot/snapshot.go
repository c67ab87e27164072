// Package snapshot serializes and restores percolator state. A snapshot
// captures the CNF-normalized query registry and the builder options it was
// produced under; restoring one replays the registry through the same
// indexing path AddQuery uses, which reproduces the original Qid
// assignment, index contents, and stats exactly (§8: "stable Qids").
package snapshot

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/percolate/percolator/internal/percolate"
)

func init() {
	gob.Register(percolate.HasValue{})
	gob.Register(percolate.HasPrefix{})
	gob.Register(percolate.IntCmp{})
	gob.Register(percolate.H3In{})
	gob.Register(percolate.Neg{})
}

// Snapshot is the serializable form of a Percolator's state.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Options   percolate.Options
	Registry  []percolate.CNFQuery
}

// Capture builds a Snapshot from a live Percolator. CreatedAt is supplied
// by the caller rather than taken internally, so that callers control the
// clock (and so tests can pass a fixed time).
func Capture(p *percolate.Percolator, createdAt time.Time) Snapshot {
	return Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: createdAt,
		Options:   p.Options(),
		Registry:  p.Registry(),
	}
}

// Encode gob-encodes a Snapshot into a byte slice.
func Encode(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode gob-decodes a Snapshot previously produced by Encode.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return s, nil
}

// Restore rebuilds a Percolator from a Snapshot, preserving Qids.
func Restore(s Snapshot) (*percolate.Percolator, error) {
	p, err := percolate.Restore(s.Options, s.Registry)
	if err != nil {
		return nil, fmt.Errorf("snapshot: restore %s: %w", s.ID, err)
	}
	return p, nil
}

// RoundTrip encodes then immediately decodes and restores a Percolator,
// used by callers (and tests) that want to verify a snapshot reproduces an
// equivalent percolator without a durable store in between.
func RoundTrip(p *percolate.Percolator, createdAt time.Time) (*percolate.Percolator, error) {
	data, err := Encode(Capture(p, createdAt))
	if err != nil {
		return nil, err
	}
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Restore(s)
}
