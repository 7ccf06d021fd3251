// Package collector polls local machine telemetry and writes samples to the
// metrics store. GPU metrics come from nvidia-smi when available; hosts
// without one simply record no GPU rows.
package collector

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	gohost "github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"metricsqa/pkg/logging"
	"metricsqa/pkg/storage"
)

// SampleStore is the subset of the metrics store the collector writes to.
type SampleStore interface {
	UpsertHost(ctx context.Context, h storage.Host) (string, error)
	InsertCPUSample(ctx context.Context, sample storage.CPUSample) error
	InsertRAMSample(ctx context.Context, sample storage.RAMSample) error
	InsertGPUSample(ctx context.Context, sample storage.GPUSample) error
}

// Collector samples the local machine on a fixed interval.
type Collector struct {
	store    SampleStore
	logger   *logging.Logger
	interval time.Duration
	hostID   string

	// Hardware readers, swapped out in tests.
	runGPUQuery func(ctx context.Context) (string, error)
	readCPUTemp func(ctx context.Context) *float64
	readCPUFreq func(ctx context.Context) *float64
}

// New builds a collector. Intervals below one second are raised to one
// second to keep the sampler from busy-looping.
func New(store SampleStore, logger *logging.Logger, interval time.Duration) *Collector {
	if interval < time.Second {
		interval = time.Second
	}
	return &Collector{
		store:       store,
		logger:      logger,
		interval:    interval,
		runGPUQuery: runNvidiaSMI,
		readCPUTemp: readCPUTemperature,
		readCPUFreq: readCPUFrequency,
	}
}

// Run registers the local host and samples until the context is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.registerHost(ctx); err != nil {
		return fmt.Errorf("register host: %w", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sampleOnce(ctx)
		}
	}
}

func (c *Collector) registerHost(ctx context.Context) error {
	info, err := gohost.InfoWithContext(ctx)
	if err != nil {
		return fmt.Errorf("read host info: %w", err)
	}

	h := storage.Host{
		Hostname:  info.Hostname,
		OSName:    info.Platform,
		OSVersion: info.PlatformVersion,
	}

	if cpuInfo, err := cpu.InfoWithContext(ctx); err == nil && len(cpuInfo) > 0 {
		h.CPUModel = cpuInfo[0].ModelName
	}
	if cores, err := cpu.CountsWithContext(ctx, false); err == nil {
		h.CPUCores = cores
	}
	if threads, err := cpu.CountsWithContext(ctx, true); err == nil {
		h.CPUThreads = threads
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		h.RAMTotalMB = int(vm.Total / (1 << 20))
	}
	if gpus, err := c.queryGPUs(ctx); err == nil && len(gpus) > 0 {
		h.GPUName = gpus[0].Name
	}

	id, err := c.store.UpsertHost(ctx, h)
	if err != nil {
		return err
	}
	c.hostID = id

	c.logger.Info(logging.CategoryCollector, "host_registered",
		"local host registered", map[string]any{
			"host_id":  id,
			"hostname": h.Hostname,
			"gpu":      h.GPUName,
		})
	return nil
}

// sampleOnce takes one reading of each subsystem. Individual failures are
// logged and skipped; the sampler keeps running.
func (c *Collector) sampleOnce(ctx context.Context) {
	now := time.Now().UTC()

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		err := c.store.InsertCPUSample(ctx, storage.CPUSample{
			HostID:       c.hostID,
			TS:           now,
			UsagePercent: percents[0],
			TemperatureC: c.readCPUTemp(ctx),
			FreqMHz:      c.readCPUFreq(ctx),
		})
		c.logSampleError("cpu", err)
	} else {
		c.logSampleError("cpu", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		err := c.store.InsertRAMSample(ctx, storage.RAMSample{
			HostID:       c.hostID,
			TS:           now,
			UsedMB:       int64(vm.Used / (1 << 20)),
			AvailableMB:  int64(vm.Available / (1 << 20)),
			UsagePercent: vm.UsedPercent,
		})
		c.logSampleError("ram", err)
	} else {
		c.logSampleError("ram", err)
	}

	gpus, err := c.queryGPUs(ctx)
	if err != nil {
		// No nvidia-smi on this host; not an error worth repeating loudly.
		c.logger.Debug(logging.CategoryCollector, "gpu_unavailable",
			"gpu query failed", map[string]any{"error": err.Error()})
		return
	}
	for _, gpu := range gpus {
		err := c.store.InsertGPUSample(ctx, storage.GPUSample{
			HostID:             c.hostID,
			TS:                 now,
			UtilizationPercent: gpu.UtilizationPercent,
			TemperatureC:       gpu.TemperatureC,
			MemoryUsedMB:       gpu.MemoryUsedMB,
		})
		c.logSampleError("gpu", err)
	}
}

func (c *Collector) logSampleError(subsystem string, err error) {
	if err == nil {
		return
	}
	c.logger.Warn(logging.CategoryCollector, "sample_failed",
		"metric sample failed", map[string]any{
			"subsystem": subsystem,
			"error":     err.Error(),
		})
}

// readCPUTemperature returns the first plausible CPU temperature reading,
// or nil when the platform exposes no usable sensor.
func readCPUTemperature(ctx context.Context) *float64 {
	temps, err := sensors.TemperaturesWithContext(ctx)
	if err != nil || len(temps) == 0 {
		return nil
	}
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if t.Temperature <= 0 {
			continue
		}
		if strings.Contains(key, "coretemp") || strings.Contains(key, "k10temp") ||
			strings.Contains(key, "cpu") || strings.Contains(key, "package") {
			v := t.Temperature
			return &v
		}
	}
	if temps[0].Temperature > 0 {
		v := temps[0].Temperature
		return &v
	}
	return nil
}

// readCPUFrequency returns the advertised frequency of the first CPU in
// MHz, or nil when unavailable.
func readCPUFrequency(ctx context.Context) *float64 {
	info, err := cpu.InfoWithContext(ctx)
	if err != nil || len(info) == 0 || info[0].Mhz <= 0 {
		return nil
	}
	v := info[0].Mhz
	return &v
}

func runNvidiaSMI(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=utilization.gpu,temperature.gpu,memory.used,name",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return "", fmt.Errorf("nvidia-smi: %w", err)
	}
	return string(out), nil
}
