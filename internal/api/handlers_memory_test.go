package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

// fakeSearcher records the requested scope and returns canned turns.
type fakeSearcher struct {
	turns    []model.Turn
	err      error
	lastUser string
	lastK    int
}

func (f *fakeSearcher) Search(_ context.Context, userID, _ string, k int) ([]model.Turn, error) {
	f.lastUser = userID
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.turns, nil
}

func newSearchRouter(s Searcher) http.Handler {
	return NewRouter(&fakeEnqueuer{}, nil, s, "conversations", 5)
}

func TestSearchMemory(t *testing.T) {
	s := &fakeSearcher{turns: []model.Turn{
		{UserID: "alice", Role: model.RoleHuman, Content: "Mt. Hotaka was stunning", Timestamp: time.Now().UTC()},
	}}
	router := newSearchRouter(s)

	req := httptest.NewRequest("GET", "/api/users/alice/memory/search?q=mountain&k=3", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())
	assert.Equal(t, "alice", s.lastUser)
	assert.Equal(t, 3, s.lastK)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "mountain", resp["query"])
	assert.EqualValues(t, 1, resp["count"])
}

func TestSearchMemoryRequiresQuery(t *testing.T) {
	router := newSearchRouter(&fakeSearcher{})

	req := httptest.NewRequest("GET", "/api/users/alice/memory/search", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchMemoryRejectsBadK(t *testing.T) {
	router := newSearchRouter(&fakeSearcher{})

	req := httptest.NewRequest("GET", "/api/users/alice/memory/search?q=x&k=0", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchMemoryWithoutBackend(t *testing.T) {
	router := newSearchRouter(nil)

	req := httptest.NewRequest("GET", "/api/users/alice/memory/search?q=x", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearchMemoryBackendFailure(t *testing.T) {
	router := newSearchRouter(&fakeSearcher{err: fmt.Errorf("weaviate status 503")})

	req := httptest.NewRequest("GET", "/api/users/alice/memory/search?q=x", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
