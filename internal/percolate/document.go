// Package percolate implements the matching engine described in the
// percolator design: it indexes boolean queries and, given a document,
// returns the identifiers of every indexed query the document satisfies.
package percolate

// Document is an unordered multimap of field to value. A single field may
// carry several values; order and duplication among a field's values are
// not significant to any literal.
type Document map[string][]string

// NewDocument builds a Document from a flat list of field/value pairs.
func NewDocument(pairs ...[2]string) Document {
	d := make(Document, len(pairs))
	for _, p := range pairs {
		d.Add(p[0], p[1])
	}
	return d
}

// Add appends a value for field, preserving any values already present.
func (d Document) Add(field, value string) {
	d[field] = append(d[field], value)
}

// Has reports whether field is present in the document with at least one
// value. This is the presence test the no-vacuous-truth rule relies on.
func (d Document) Has(field string) bool {
	return len(d[field]) > 0
}

// Fields returns the distinct field names present in the document.
func (d Document) Fields() []string {
	fields := make([]string, 0, len(d))
	for f := range d {
		fields = append(fields, f)
	}
	return fields
}
