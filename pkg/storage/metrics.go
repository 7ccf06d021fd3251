package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// sqliteTimeFormat is the timestamp layout stored in the metrics tables.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// Host represents a monitored machine.
type Host struct {
	ID         string
	Hostname   string
	OSName     string
	OSVersion  string
	CPUModel   string
	CPUCores   int
	CPUThreads int
	RAMTotalMB int
	GPUName    string
}

// CPUSample is one CPU metrics row.
type CPUSample struct {
	HostID       string
	TS           time.Time
	UsagePercent float64
	TemperatureC *float64
	FreqMHz      *float64
}

// RAMSample is one RAM metrics row.
type RAMSample struct {
	HostID       string
	TS           time.Time
	UsedMB       int64
	AvailableMB  int64
	UsagePercent float64
}

// GPUSample is one GPU metrics row.
type GPUSample struct {
	HostID             string
	TS                 time.Time
	UtilizationPercent float64
	TemperatureC       float64
	MemoryUsedMB       int64
}

// UpsertHost inserts the host if its hostname is new, otherwise refreshes the
// inventory columns. The host ID is returned either way.
func (s *Store) UpsertHost(ctx context.Context, h Host) (string, error) {
	var existingID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM hosts WHERE hostname = ?`, h.Hostname).Scan(&existingID)
	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE hosts
			SET os_name = ?, os_version = ?, cpu_model = ?, cpu_cores = ?,
			    cpu_threads = ?, ram_total_mb = ?, gpu_name = ?
			WHERE id = ?
		`, h.OSName, h.OSVersion, h.CPUModel, h.CPUCores, h.CPUThreads, h.RAMTotalMB, h.GPUName, existingID)
		return existingID, err
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	id := h.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hosts (id, hostname, os_name, os_version, cpu_model, cpu_cores, cpu_threads, ram_total_mb, gpu_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, h.Hostname, h.OSName, h.OSVersion, h.CPUModel, h.CPUCores, h.CPUThreads, h.RAMTotalMB, h.GPUName)
	if err != nil {
		return "", err
	}
	return id, nil
}

// InsertCPUSample records one CPU metrics row.
func (s *Store) InsertCPUSample(ctx context.Context, sample CPUSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics_cpu (host_id, ts, usage_percent, temperature_c, freq_mhz)
		VALUES (?, ?, ?, ?, ?)
	`, sample.HostID, sample.TS.UTC().Format(sqliteTimeFormat), sample.UsagePercent, sample.TemperatureC, sample.FreqMHz)
	return err
}

// InsertRAMSample records one RAM metrics row.
func (s *Store) InsertRAMSample(ctx context.Context, sample RAMSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics_ram (host_id, ts, used_mb, available_mb, usage_percent)
		VALUES (?, ?, ?, ?, ?)
	`, sample.HostID, sample.TS.UTC().Format(sqliteTimeFormat), sample.UsedMB, sample.AvailableMB, sample.UsagePercent)
	return err
}

// InsertGPUSample records one GPU metrics row.
func (s *Store) InsertGPUSample(ctx context.Context, sample GPUSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics_gpu (host_id, ts, utilization_percent, temperature_c, memory_used_mb)
		VALUES (?, ?, ?, ?, ?)
	`, sample.HostID, sample.TS.UTC().Format(sqliteTimeFormat), sample.UtilizationPercent, sample.TemperatureC, sample.MemoryUsedMB)
	return err
}
