package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percolate/percolator/internal/percolate"
)

// ---------------------------------------------------------------------------
// IngestDocument conversion
// ---------------------------------------------------------------------------

func TestIngestDocument_Document(t *testing.T) {
	in := IngestDocument{
		ID: "doc-1",
		Fields: map[string][]string{
			"city": {"boston"},
			"tag":  {"a", "b"},
		},
	}

	doc := in.Document()
	assert.True(t, doc.Has("city"))
	assert.ElementsMatch(t, []string{"a", "b"}, doc["tag"])
}

func TestIngestDocument_DocumentDoesNotAliasFields(t *testing.T) {
	in := IngestDocument{ID: "doc-1", Fields: map[string][]string{"city": {"boston"}}}
	doc := in.Document()
	doc["city"][0] = "mutated"
	assert.Equal(t, "boston", in.Fields["city"][0], "Document() must copy slices, not alias them")
}

// ---------------------------------------------------------------------------
// Wire round trips
// ---------------------------------------------------------------------------

func TestIngestDocument_JSONRoundTrip(t *testing.T) {
	original := IngestDocument{
		ID:     "doc-42",
		Fields: map[string][]string{"city": {"boston", "cambridge"}},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded IngestDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestMatchResult_JSONRoundTrip(t *testing.T) {
	original := MatchResult{DocumentID: "doc-7", Qids: []percolate.Qid{0, 3, 9}}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"document_id"`)

	var decoded MatchResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

// ---------------------------------------------------------------------------
// Subject helpers
// ---------------------------------------------------------------------------

func TestSubjectConstants(t *testing.T) {
	assert.Equal(t, "documents.ingest", subjectDocumentIngest)
	assert.Equal(t, "results.match", subjectMatchResult)
	assert.Equal(t, "percolator.queries.add", subjectQueryAdd)
}

func TestQueryAdd_JSONRoundTrip(t *testing.T) {
	original := QueryAdd{Text: `city:"boston" AND NOT tag:"archived"`}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text"`)

	var decoded QueryAdd
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

// ---------------------------------------------------------------------------
// NATSClient nil safety
// ---------------------------------------------------------------------------

func TestNATSClientCloseNilConn(t *testing.T) {
	client := &NATSClient{}
	assert.NotPanics(t, func() {
		client.Close()
	})
}
