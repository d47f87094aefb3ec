package retrieval

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:            srv.URL + "/",
		ScopedPath:         "/v1/search/documents",
		RouterPath:         "/v1/search/router",
		RouterDocumentGUID: "corpus-default",
	}, nil)
}

func TestSearchScoped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search/documents", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ScopedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is the power requirement?", req.Query)
		assert.Equal(t, []string{"g1", "g2"}, req.DocumentGUIDs)
		assert.Equal(t, ScopedLimit, req.Limit)

		_ = json.NewEncoder(w).Encode(SearchResponse{Results: []Result{
			{Content: "PSU: 1600W", DocumentGUID: "g1", ObjectKey: "HPE%20DL380a.pdf", Distance: 0.12},
			{Content: "Redundant supplies", DocumentGUID: "g2", ObjectKey: "b.pdf", Distance: 0.3},
		}})
	})

	results, err := client.Search(testContext(t), "What is the power requirement?", []string{"g1", "g2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "PSU: 1600W", results[0].Content)
	assert.Equal(t, "HPE%20DL380a.pdf", results[0].ObjectKey)
}

func TestSearchRouterWhenScopeEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search/router", r.URL.Path)

		var req RouterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "corpus-default", req.DocumentGUID)
		assert.Equal(t, RouterLimit, req.Limit)

		_, _ = w.Write([]byte(`{"results":[{"content":"c","document_guid":"g9","object_key":"k","distance":0.5}]}`))
	})

	results, err := client.Search(testContext(t), "q", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "g9", results[0].DocumentGUID)
}

func TestSearchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index offline", http.StatusServiceUnavailable)
	})

	_, err := client.Search(testContext(t), "q", []string{"g1"})
	require.Error(t, err)

	var searchErr *Error
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, ModeScoped, searchErr.Mode)
	assert.Equal(t, http.StatusServiceUnavailable, searchErr.StatusCode)
	assert.Contains(t, err.Error(), "index offline")
}

func TestSearchMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.Search(testContext(t), "q", nil)
	var searchErr *Error
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, ModeRouter, searchErr.Mode)
}

func TestSearchUnreachable(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", RouterPath: "/r"}, nil)
	_, err := client.Search(testContext(t), "q", nil)
	var searchErr *Error
	require.True(t, errors.As(err, &searchErr))
	assert.Zero(t, searchErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(err))
}
