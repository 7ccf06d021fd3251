package tools

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsqa/pkg/logging"
	"metricsqa/pkg/storage"
)

// seedStore inserts one host with a few minutes of CPU/RAM/GPU samples and
// returns the executor and host ID.
func seedStore(t *testing.T) (*Executor, string) {
	t.Helper()

	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	hostID, err := store.UpsertHost(ctx, storage.Host{
		Hostname:   "node-1",
		OSName:     "Linux",
		RAMTotalMB: 32000,
		GPUName:    "NVIDIA T4",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, usage := range []float64{10.0, 57.2, 33.1} {
		ts := now.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, store.InsertCPUSample(ctx, storage.CPUSample{
			HostID: hostID, TS: ts, UsagePercent: usage,
		}))
		require.NoError(t, store.InsertRAMSample(ctx, storage.RAMSample{
			HostID: hostID, TS: ts, UsedMB: 8000 + int64(i)*100, AvailableMB: 24000, UsagePercent: 25.0 + float64(i),
		}))
		require.NoError(t, store.InsertGPUSample(ctx, storage.GPUSample{
			HostID: hostID, TS: ts, UtilizationPercent: 40.0 + float64(i), TemperatureC: 50.0 + float64(i), MemoryUsedMB: 2048,
		}))
	}

	cat, err := Load()
	require.NoError(t, err)
	return NewExecutor(cat, store, logging.NewTestLogger(&bytes.Buffer{})), hostID
}

func TestToolQueriesAgainstRealStore(t *testing.T) {
	exec, hostID := seedStore(t)
	ctx := context.Background()

	t.Run("max cpu", func(t *testing.T) {
		result, err := exec.Execute(ctx, "req-1", "get_max_cpu_usage",
			map[string]any{"minutes": float64(30), "host_id": hostID})
		require.NoError(t, err)

		record, ok := result.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 57.2, record["max_cpu_usage_percent"])
		assert.EqualValues(t, 3, record["sample_count"])
		assert.EqualValues(t, 30, record["window_minutes"])
	})

	t.Run("defaults when arguments omitted", func(t *testing.T) {
		result, err := exec.Execute(ctx, "req-1", "get_avg_cpu_usage", nil)
		require.NoError(t, err)

		record, ok := result.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 60, record["window_minutes"])
		assert.EqualValues(t, 3, record["sample_count"])
	})

	t.Run("hostname filter", func(t *testing.T) {
		result, err := exec.Execute(ctx, "req-1", "get_max_ram_usage",
			map[string]any{"host_id": "node-1"})
		require.NoError(t, err)

		record, ok := result.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 3, record["sample_count"])
	})

	t.Run("gpu temperature stats", func(t *testing.T) {
		result, err := exec.Execute(ctx, "req-1", "get_gpu_temperature_stats", nil)
		require.NoError(t, err)

		record, ok := result.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 50.0, record["min_gpu_temperature_c"])
		assert.EqualValues(t, 52.0, record["max_gpu_temperature_c"])
	})

	t.Run("latest snapshot", func(t *testing.T) {
		result, err := exec.Execute(ctx, "req-1", "get_latest_snapshot", nil)
		require.NoError(t, err)

		record, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, hostID, record["host_id"])
		assert.Equal(t, "node-1", record["hostname"])
		assert.EqualValues(t, 10.0, record["cpu_usage_percent"])
	})

	t.Run("cpu series returns rows", func(t *testing.T) {
		result, err := exec.Execute(ctx, "req-1", "get_cpu_usage_series",
			map[string]any{"minutes": float64(30), "limit": float64(2)})
		require.NoError(t, err)

		wrapper, ok := result.(map[string]any)
		require.True(t, ok)
		rows, ok := wrapper["rows"].([]map[string]any)
		require.True(t, ok)
		assert.Len(t, rows, 2)
	})

	t.Run("unknown hostname yields empty window", func(t *testing.T) {
		result, err := exec.Execute(ctx, "req-1", "get_max_cpu_usage",
			map[string]any{"host_id": "no-such-host"})
		require.NoError(t, err)

		record, ok := result.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 0, record["sample_count"])
		assert.Nil(t, record["max_cpu_usage_percent"])
	})
}
