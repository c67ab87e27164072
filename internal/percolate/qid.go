package percolate

// Qid is the opaque, dense, monotonically assigned identifier of a
// registered query. The first issued Qid is 0; Qids are never reused and
// are stable across serialization. Qids double as direct indices into the
// bitsets backing candidate sets, so the type matches the word width
// roaring.Bitmap operates on.
type Qid = uint32
