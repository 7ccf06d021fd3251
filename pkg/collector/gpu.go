package collector

import (
	"context"
	"strconv"
	"strings"
)

// GPUReading is one parsed nvidia-smi line.
type GPUReading struct {
	UtilizationPercent float64
	TemperatureC       float64
	MemoryUsedMB       int64
	Name               string
}

func (c *Collector) queryGPUs(ctx context.Context) ([]GPUReading, error) {
	out, err := c.runGPUQuery(ctx)
	if err != nil {
		return nil, err
	}
	return parseNvidiaCSV(out), nil
}

// parseNvidiaCSV parses `nvidia-smi --query-gpu=utilization.gpu,
// temperature.gpu,memory.used,name --format=csv,noheader,nounits` output,
// one GPU per line. Lines that do not parse are skipped.
func parseNvidiaCSV(out string) []GPUReading {
	var readings []GPUReading
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 4)
		if len(fields) != 4 {
			continue
		}

		util, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			continue
		}
		temp, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			continue
		}
		memUsed, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		if err != nil {
			continue
		}

		readings = append(readings, GPUReading{
			UtilizationPercent: util,
			TemperatureC:       temp,
			MemoryUsedMB:       memUsed,
			Name:               strings.TrimSpace(fields[3]),
		})
	}
	return readings
}
