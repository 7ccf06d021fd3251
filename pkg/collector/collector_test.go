package collector

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

type recordingStore struct {
	host storage.Host
	cpu  []storage.CPUSample
	ram  []storage.RAMSample
	gpu  []storage.GPUSample
}

func (r *recordingStore) UpsertHost(_ context.Context, h storage.Host) (string, error) {
	r.host = h
	return "host-1", nil
}

func (r *recordingStore) InsertCPUSample(_ context.Context, s storage.CPUSample) error {
	r.cpu = append(r.cpu, s)
	return nil
}

func (r *recordingStore) InsertRAMSample(_ context.Context, s storage.RAMSample) error {
	r.ram = append(r.ram, s)
	return nil
}

func (r *recordingStore) InsertGPUSample(_ context.Context, s storage.GPUSample) error {
	r.gpu = append(r.gpu, s)
	return nil
}

func TestCollectorSamplesAllSubsystems(t *testing.T) {
	store := &recordingStore{}
	c := New(store, logging.NewTestLogger(&bytes.Buffer{}), time.Second)
	c.runGPUQuery = func(context.Context) (string, error) {
		return "42, 61, 1024, NVIDIA T4\n", nil
	}

	ctx := context.Background()
	require.NoError(t, c.registerHost(ctx))
	assert.Equal(t, "host-1", c.hostID)
	assert.NotEmpty(t, store.host.Hostname)
	assert.Equal(t, "NVIDIA T4", store.host.GPUName)

	c.sampleOnce(ctx)

	require.Len(t, store.cpu, 1)
	assert.Equal(t, "host-1", store.cpu[0].HostID)
	require.Len(t, store.ram, 1)
	assert.Positive(t, store.ram[0].UsedMB)
	require.Len(t, store.gpu, 1)
	assert.Equal(t, 42.0, store.gpu[0].UtilizationPercent)
	assert.Equal(t, int64(1024), store.gpu[0].MemoryUsedMB)
}

func TestCollectorCPUTemperatureAndFrequency(t *testing.T) {
	store := &recordingStore{}
	c := New(store, logging.NewTestLogger(&bytes.Buffer{}), time.Second)
	c.hostID = "host-1"
	c.runGPUQuery = func(context.Context) (string, error) { return "", context.DeadlineExceeded }

	temp, freq := 68.5, 2400.0
	c.readCPUTemp = func(context.Context) *float64 { return &temp }
	c.readCPUFreq = func(context.Context) *float64 { return &freq }

	c.sampleOnce(context.Background())

	require.Len(t, store.cpu, 1)
	require.NotNil(t, store.cpu[0].TemperatureC)
	assert.Equal(t, 68.5, *store.cpu[0].TemperatureC)
	require.NotNil(t, store.cpu[0].FreqMHz)
	assert.Equal(t, 2400.0, *store.cpu[0].FreqMHz)

	// Hosts without sensors record NULLs instead of failing the sample.
	c.readCPUTemp = func(context.Context) *float64 { return nil }
	c.readCPUFreq = func(context.Context) *float64 { return nil }

	c.sampleOnce(context.Background())

	require.Len(t, store.cpu, 2)
	assert.Nil(t, store.cpu[1].TemperatureC)
	assert.Nil(t, store.cpu[1].FreqMHz)
}

func TestCollectorWithoutGPU(t *testing.T) {
	store := &recordingStore{}
	c := New(store, logging.NewTestLogger(&bytes.Buffer{}), time.Second)
	c.runGPUQuery = func(context.Context) (string, error) {
		return "", context.DeadlineExceeded
	}
	c.hostID = "host-1"

	c.sampleOnce(context.Background())

	assert.Len(t, store.cpu, 1)
	assert.Len(t, store.ram, 1)
	assert.Empty(t, store.gpu)
}

func TestCollectorRunStopsOnCancel(t *testing.T) {
	store := &recordingStore{}
	c := New(store, logging.NewTestLogger(&bytes.Buffer{}), time.Second)
	c.runGPUQuery = func(context.Context) (string, error) { return "", context.Canceled }

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
