package tools

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsqa/pkg/logging"
)

type fakeStore struct {
	rows      []map[string]any
	err       error
	lastQuery string
	lastArgs  map[string]any
}

func (f *fakeStore) QueryNamed(_ context.Context, query string, args map[string]any) ([]map[string]any, error) {
	f.lastQuery = query
	f.lastArgs = args
	return f.rows, f.err
}

func newTestExecutor(t *testing.T, store *fakeStore) *Executor {
	t.Helper()
	cat, err := Load()
	require.NoError(t, err)
	return NewExecutor(cat, store, logging.NewTestLogger(&bytes.Buffer{}))
}

func TestExecuteSingleRowBecomesRecord(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{
		{"max_cpu_usage_percent": 57.2, "sample_count": int64(12), "window_minutes": int64(120)},
	}}
	exec := newTestExecutor(t, store)

	result, err := exec.Execute(context.Background(), "req-1", "get_max_cpu_usage",
		map[string]any{"minutes": float64(120)})
	require.NoError(t, err)

	record, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 57.2, record["max_cpu_usage_percent"])
	_, hasRows := record["rows"]
	assert.False(t, hasRows)
}

func TestExecuteMultipleRowsBecomeList(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{
		{"ts": "2026-08-30 10:00:00", "cpu_usage_percent": 41.0},
		{"ts": "2026-08-30 10:00:10", "cpu_usage_percent": 44.5},
	}}
	exec := newTestExecutor(t, store)

	result, err := exec.Execute(context.Background(), "req-1", "get_cpu_usage_series",
		map[string]any{"minutes": float64(30)})
	require.NoError(t, err)

	wrapper, ok := result.(map[string]any)
	require.True(t, ok)
	rows, ok := wrapper["rows"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestExecuteEmptyResultIsNonNilList(t *testing.T) {
	store := &fakeStore{rows: nil}
	exec := newTestExecutor(t, store)

	result, err := exec.Execute(context.Background(), "req-1", "get_cpu_usage_series", nil)
	require.NoError(t, err)

	wrapper, ok := result.(map[string]any)
	require.True(t, ok)
	rows, ok := wrapper["rows"].([]map[string]any)
	require.True(t, ok)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestExecuteBindsEveryDeclaredParameter(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"avg_cpu_usage_percent": 12.0}}}
	exec := newTestExecutor(t, store)

	_, err := exec.Execute(context.Background(), "req-1", "get_avg_cpu_usage",
		map[string]any{"host_id": "web-01"})
	require.NoError(t, err)

	// minutes was absent but has a default; host_id was given.
	assert.Equal(t, int64(60), store.lastArgs["minutes"])
	assert.Equal(t, "web-01", store.lastArgs["host_id"])
}

func TestExecuteBindsNilForAbsentParameters(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"host_id": "a"}}}
	exec := newTestExecutor(t, store)

	_, err := exec.Execute(context.Background(), "req-1", "get_latest_snapshot", nil)
	require.NoError(t, err)

	value, present := store.lastArgs["host_id"]
	require.True(t, present)
	assert.Nil(t, value)
}

func TestExecuteUnknownTool(t *testing.T) {
	exec := newTestExecutor(t, &fakeStore{})

	_, err := exec.Execute(context.Background(), "req-1", "get_disk_usage", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestExecuteSchemaViolation(t *testing.T) {
	exec := newTestExecutor(t, &fakeStore{})

	// An object cannot be coerced toward integer, so validation rejects it.
	_, err := exec.Execute(context.Background(), "req-1", "get_max_cpu_usage",
		map[string]any{"minutes": map[string]any{"value": 30}})
	require.Error(t, err)
	assert.True(t, IsSchemaViolation(err))

	var sv *SchemaViolationError
	require.True(t, errors.As(err, &sv))
	assert.Equal(t, "get_max_cpu_usage", sv.Tool)
}

func TestExecuteQueryFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("database is locked")}
	exec := newTestExecutor(t, store)

	_, err := exec.Execute(context.Background(), "req-1", "get_max_cpu_usage", nil)
	require.Error(t, err)
	assert.False(t, IsSchemaViolation(err))
	assert.Contains(t, err.Error(), "database is locked")
}

func TestExecuteSanitizesBeforeQuery(t *testing.T) {
	store := &fakeStore{rows: []map[string]any{{"max_cpu_usage_percent": 90.0}}}
	exec := newTestExecutor(t, store)

	_, err := exec.Execute(context.Background(), "req-1", "get_max_cpu_usage",
		map[string]any{"minutes": "99999", "host_id": "null"})
	require.NoError(t, err)

	assert.Equal(t, int64(1440), store.lastArgs["minutes"], "string coerced then clamped")
	assert.Nil(t, store.lastArgs["host_id"], "placeholder normalized to nil")
}
