package release

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPHostCreateRelease(t *testing.T) {
	var got Record
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/kingrea/curveforge/releases", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CreatedRelease{ID: 42, URL: "https://example.com/releases/42"})
	}))
	defer server.Close()

	host, err := NewHTTPHost(HostConfig{
		APIBase: server.URL,
		Owner:   "kingrea",
		Repo:    "curveforge",
		Token:   "sekrit",
	})
	require.NoError(t, err)

	created, err := host.CreateRelease(context.Background(), NewRecord("v1.2.0b2", "notes", true))
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, "v1.2.0b2", got.Tag)
	assert.True(t, got.Prerelease)
	assert.False(t, got.Draft)
}

func TestHTTPHostRejectionIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "validation failed", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	host, err := NewHTTPHost(HostConfig{APIBase: server.URL, Owner: "o", Repo: "r"})
	require.NoError(t, err)

	_, err = host.CreateRelease(context.Background(), NewRecord("v1.0.0", "", false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestRecordValidation(t *testing.T) {
	require.Error(t, Record{}.Validate())
	require.Error(t, Record{Tag: "v1.0.0", Draft: true}.Validate())
	require.NoError(t, NewRecord("v1.0.0", "", false).Validate())
}
