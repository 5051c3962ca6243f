package dune

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsBody = `{
	"execution_id": "exec-1",
	"state": "COMPLETED",
	"result": {
		"rows": [
			{"day": "2024-01-01", "tvl": 1000000.5},
			{"day": "2024-01-02", "tvl": 1100000.0}
		],
		"metadata": {"column_names": ["day", "tvl"]}
	}
}`

func TestResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query/42/results", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Dune-API-Key"))
		_, _ = w.Write([]byte(resultsBody))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", 0, 0)
	rs, err := c.Results(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"day", "tvl"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "2024-01-01", rs.Rows[0]["day"])
	assert.False(t, rs.Empty())
}

func TestResultsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid API key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, "wrong", 0, 0)
	_, err := c.Results(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestRunFreshPollsUntilCompleted(t *testing.T) {
	var statusCalls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query/execute/42":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte(`{"execution_id": "exec-1", "state": "PENDING"}`))
		case "/execution/exec-1/status":
			// Two in-flight polls, then completion.
			if statusCalls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"execution_id": "exec-1", "state": "EXECUTING"}`))
			} else {
				_, _ = w.Write([]byte(`{"execution_id": "exec-1", "state": "COMPLETED"}`))
			}
		case "/execution/exec-1/results":
			_, _ = w.Write([]byte(resultsBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", time.Millisecond, 0)
	rs, err := c.Run(context.Background(), 42, true)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.GreaterOrEqual(t, statusCalls.Load(), int64(3))
}

func TestRunFreshFailedExecution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query/execute/42":
			_, _ = w.Write([]byte(`{"execution_id": "exec-1", "state": "PENDING"}`))
		case "/execution/exec-1/status":
			_, _ = w.Write([]byte(`{"execution_id": "exec-1", "state": "FAILED"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", time.Millisecond, 0)
	_, err := c.Run(context.Background(), 42, true)
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "exec-1", execErr.ExecutionID)
	assert.Equal(t, StateFailed, execErr.State)
}

func TestRunCachedSkipsExecution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query/42/results", r.URL.Path)
		_, _ = w.Write([]byte(resultsBody))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", 0, 0)
	rs, err := c.Run(context.Background(), 42, false)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
}

func TestExecuteWithoutExecutionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", 0, 0)
	_, err := c.Execute(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no execution id")
}

func TestWaitForCompletionMaxWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"execution_id": "exec-1", "state": "EXECUTING"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", time.Millisecond, 20*time.Millisecond)
	err := c.WaitForCompletion(context.Background(), "exec-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestStateRunning(t *testing.T) {
	assert.True(t, StatePending.Running())
	assert.True(t, StateExecuting.Running())
	assert.False(t, StateCompleted.Running())
	assert.False(t, StateFailed.Running())
}

func TestResultSetEmpty(t *testing.T) {
	var rs *ResultSet
	assert.True(t, rs.Empty())
	assert.True(t, (&ResultSet{}).Empty())
	assert.False(t, (&ResultSet{Rows: []map[string]any{{"a": 1}}}).Empty())
}
