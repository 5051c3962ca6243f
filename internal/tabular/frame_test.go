package tabular

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameAppend(t *testing.T) {
	f := New("date", "tvl")

	require.True(t, f.Empty())
	require.NoError(t, f.Append("2024-01-01", "100"))
	require.False(t, f.Empty())

	err := f.Append("2024-01-02")
	require.Error(t, err)
	assert.Len(t, f.Rows, 1)
}

func TestFrameColumn(t *testing.T) {
	f := New("date", "tvl", "apy")

	assert.Equal(t, 0, f.Column("date"))
	assert.Equal(t, 2, f.Column("apy"))
	assert.Equal(t, -1, f.Column("missing"))
}

func TestFromRecordsWithColumnOrder(t *testing.T) {
	records := []map[string]any{
		{"day": "2024-01-01", "tvl": 1234.5},
		{"day": "2024-01-02", "tvl": 2000.0},
	}

	f := FromRecords(records, []string{"day", "tvl"})

	require.Equal(t, []string{"day", "tvl"}, f.Columns)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, []string{"2024-01-01", "1234.5"}, f.Rows[0])
	assert.Equal(t, []string{"2024-01-02", "2000"}, f.Rows[1])
}

func TestFromRecordsSortedKeyUnion(t *testing.T) {
	records := []map[string]any{
		{"b": 1.0, "a": 2.0},
		{"c": 3.0},
	}

	f := FromRecords(records, nil)

	require.Equal(t, []string{"a", "b", "c"}, f.Columns)
	assert.Equal(t, []string{"2", "1", ""}, f.Rows[0])
	assert.Equal(t, []string{"", "", "3"}, f.Rows[1])
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", FormatCell(nil))
	assert.Equal(t, "", FormatCell(math.NaN()))
	assert.Equal(t, "hello", FormatCell("hello"))
	assert.Equal(t, "true", FormatCell(true))
	assert.Equal(t, "1000000", FormatCell(1_000_000.0))
	assert.Equal(t, "3.25", FormatCell(3.25))
	assert.Equal(t, "42", FormatCell(42))
	assert.Equal(t, "2024-06-15", FormatCell(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)))
}

func TestReadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,tvl\n2024-01-01,100\n2024-01-02,200\n"), 0o644))

	f, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "tvl"}, f.Columns)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, []string{"2024-01-02", "200"}, f.Rows[1])
}

func TestReadCSVEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := ReadCSV(path)
	require.Error(t, err)
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
