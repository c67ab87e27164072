package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercolateHandler_MatchesRegisteredQueries(t *testing.T) {
	svc := newTestService(t)
	qh := NewQueryHandler(svc)
	doRequest(qh, http.MethodPost, `{"query":"city:boston"}`)
	doRequest(qh, http.MethodPost, `{"query":"city:seattle"}`)

	ph := NewPercolateHandler(svc)
	w := doRequest(ph, http.MethodPost, `{"document_id":"doc-1","fields":{"city":["boston"]}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PercolateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, []uint32{0}, resp.Qids)
}

func TestPercolateHandler_NoMatchesReturnsEmptySlice(t *testing.T) {
	svc := newTestService(t)
	doRequest(NewQueryHandler(svc), http.MethodPost, `{"query":"city:boston"}`)

	w := doRequest(NewPercolateHandler(svc), http.MethodPost, `{"document_id":"doc-2","fields":{"city":["seattle"]}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PercolateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.Qids)
}

func TestPercolateHandler_MalformedJSONIsBadRequest(t *testing.T) {
	w := doRequest(NewPercolateHandler(newTestService(t)), http.MethodPost, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
