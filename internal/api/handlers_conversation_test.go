package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnqueuer records enqueued tasks instead of talking to a dispatcher.
type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-123", Queue: "conversations", State: asynq.TaskStatePending}, nil
}

func newTestRouter(q *fakeEnqueuer) http.Handler {
	return NewRouter(q, nil, nil, "conversations", 5)
}

func TestCreateConversationAccepted(t *testing.T) {
	q := &fakeEnqueuer{}
	router := newTestRouter(q)

	body := bytes.NewBufferString(`{"user_id":"alice","message":"plan a day in Kyoto"}`)
	req := httptest.NewRequest("POST", "/api/conversations", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code, "body: %s", rr.Body.String())
	require.Len(t, q.tasks, 1)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "task-123", resp["taskId"])
	assert.Equal(t, "conversations", resp["queue"])
	assert.Equal(t, "pending", resp["state"])
}

func TestCreateConversationInvalidJSON(t *testing.T) {
	router := newTestRouter(&fakeEnqueuer{})

	req := httptest.NewRequest("POST", "/api/conversations", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateConversationEmptyMessage(t *testing.T) {
	q := &fakeEnqueuer{}
	router := newTestRouter(q)

	req := httptest.NewRequest("POST", "/api/conversations", bytes.NewBufferString(`{"user_id":"alice","message":""}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, q.tasks, "invalid payloads must never reach the queue")
}

func TestCreateConversationQueueDown(t *testing.T) {
	q := &fakeEnqueuer{err: fmt.Errorf("redis: connection refused")}
	router := newTestRouter(q)

	req := httptest.NewRequest("POST", "/api/conversations", bytes.NewBufferString(`{"user_id":"alice","message":"hi"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestGetHistoryWithoutBackingLog(t *testing.T) {
	router := newTestRouter(&fakeEnqueuer{})

	req := httptest.NewRequest("GET", "/api/users/alice/history", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetHistoryRejectsBadLimit(t *testing.T) {
	router := newTestRouter(&fakeEnqueuer{})

	req := httptest.NewRequest("GET", "/api/users/alice/history?limit=-3", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeEnqueuer{})

	req := httptest.NewRequest("GET", "/api/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp, "status")
}
