package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultlens/vaultlens/internal/export"
	"github.com/vaultlens/vaultlens/internal/platform/dune"
)

func duneResultsHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query/42/results", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}
}

func TestQueryExporterRun(t *testing.T) {
	server := httptest.NewServer(duneResultsHandler(t, `{
		"result": {
			"rows": [
				{"day": "2024-01-01", "tvl": 1000000.5},
				{"day": "2024-01-02", "tvl": 1100000.0}
			],
			"metadata": {"column_names": ["day", "tvl"]}
		}
	}`))
	defer server.Close()

	dir := t.TempDir()
	exporter := NewQueryExporter(
		dune.NewClient(server.URL, "secret", 0, 0),
		export.NewCSVExporter(dir),
		false,
		discardLogger(),
	)

	summary, err := exporter.Run(context.Background(), []QueryJob{
		{ID: 42, Filename: "tvl_daily.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Exported)
	assert.Equal(t, 0, summary.Failed)

	data, err := os.ReadFile(filepath.Join(dir, "tvl_daily.csv"))
	require.NoError(t, err)
	assert.Equal(t, "day,tvl\n2024-01-01,1000000.5\n2024-01-02,1100000\n", string(data))
}

func TestQueryExporterDefaultFilename(t *testing.T) {
	server := httptest.NewServer(duneResultsHandler(t, `{
		"result": {
			"rows": [{"day": "2024-01-01", "tvl": 100.0}],
			"metadata": {"column_names": ["day", "tvl"]}
		}
	}`))
	defer server.Close()

	dir := t.TempDir()
	exporter := NewQueryExporter(
		dune.NewClient(server.URL, "secret", 0, 0),
		export.NewCSVExporter(dir),
		false,
		discardLogger(),
	)
	exporter.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}

	summary, err := exporter.Run(context.Background(), []QueryJob{{ID: 42}})
	require.NoError(t, err)
	require.Len(t, summary.Files, 1)
	assert.Equal(t, filepath.Join(dir, "dune_query_42_20240315_103000.csv"), summary.Files[0])
}

func TestQueryExporterEmptyResultFails(t *testing.T) {
	server := httptest.NewServer(duneResultsHandler(t, `{
		"result": {"rows": [], "metadata": {"column_names": []}}
	}`))
	defer server.Close()

	dir := t.TempDir()
	exporter := NewQueryExporter(
		dune.NewClient(server.URL, "secret", 0, 0),
		export.NewCSVExporter(dir),
		false,
		discardLogger(),
	)

	summary, err := exporter.Run(context.Background(), []QueryJob{
		{ID: 42, Filename: "empty.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Exported)
	assert.Equal(t, 1, summary.Failed)

	_, statErr := os.Stat(filepath.Join(dir, "empty.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestQueryExporterFailedExecutionWritesNoFile(t *testing.T) {
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

	dir := t.TempDir()
	exporter := NewQueryExporter(
		dune.NewClient(server.URL, "secret", time.Millisecond, 0),
		export.NewCSVExporter(dir),
		true,
		discardLogger(),
	)

	summary, err := exporter.Run(context.Background(), []QueryJob{
		{ID: 42, Filename: "failed.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Exported)

	_, statErr := os.Stat(filepath.Join(dir, "failed.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestQueryExporterFailedQueryContinuesBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query/1/results":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/query/2/results":
			_, _ = w.Write([]byte(`{
				"result": {
					"rows": [{"day": "2024-01-01", "tvl": 100.0}],
					"metadata": {"column_names": ["day", "tvl"]}
				}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	exporter := NewQueryExporter(
		dune.NewClient(server.URL, "secret", 0, 0),
		export.NewCSVExporter(t.TempDir()),
		false,
		discardLogger(),
	)

	summary, err := exporter.Run(context.Background(), []QueryJob{
		{ID: 1, Filename: "a.csv"},
		{ID: 2, Filename: "b.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Exported)
}

func TestQueryExporterAppendMode(t *testing.T) {
	server := httptest.NewServer(duneResultsHandler(t, `{
		"result": {
			"rows": [{"day": "2024-01-01", "tvl": 100.0}],
			"metadata": {"column_names": ["day", "tvl"]}
		}
	}`))
	defer server.Close()

	dir := t.TempDir()
	exporter := NewQueryExporter(
		dune.NewClient(server.URL, "secret", 0, 0),
		export.NewCSVExporter(dir),
		false,
		discardLogger(),
	)

	job := QueryJob{ID: 42, Filename: "daily.csv", Append: true}
	_, err := exporter.Run(context.Background(), []QueryJob{job})
	require.NoError(t, err)
	_, err = exporter.Run(context.Background(), []QueryJob{job})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "daily.csv"))
	require.NoError(t, err)
	assert.Equal(t, "day,tvl\n2024-01-01,100\n2024-01-01,100\n", string(data))
}
