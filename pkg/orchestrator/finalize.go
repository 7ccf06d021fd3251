package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"metricsqa/pkg/logging"
	"metricsqa/pkg/model"
)

// markerPattern extracts the numeric substrings that must survive any
// rephrasing of a grounded answer.
var markerPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// requiredMarkers returns every literal number in the grounded answer.
func requiredMarkers(text string) []string {
	return markerPattern.FindAllString(text, -1)
}

// finalize asks the model to restate the grounded answer conversationally,
// with tool use disabled. A restatement that drops any required marker, or a
// failed transport call, falls back to the deterministic rendering. The
// model is never trusted to invent or alter a number.
func (o *Orchestrator) finalize(ctx context.Context, requestID string, transcript []model.Message, grounded string) string {
	markers := requiredMarkers(grounded)

	messages := make([]model.Message, 0, len(transcript)+1)
	messages = append(messages, transcript...)
	messages = append(messages, model.Message{
		Role: "system",
		Content: "Aşağıdaki cevabı kullanıcıya doğal ve akıcı Türkçeyle aktar. " +
			"Sayıları AYNEN koru, yeni sayı ekleme, sayı çıkarma:\n" + grounded,
	})

	resp, err := o.client.ChatCompletion(ctx, model.ChatRequest{
		Messages:   messages,
		Tools:      o.catalog.Describe(),
		ToolChoice: "none",
	})
	if err != nil {
		o.log(logging.LevelWarn, "finalize_transport_failed", requestID, map[string]any{
			"error": err.Error(),
		}, "restatement call failed, using deterministic answer")
		return grounded
	}

	restated := strings.TrimSpace(resp.FirstMessage().Content)
	if restated == "" {
		return grounded
	}

	for _, marker := range markers {
		if !strings.Contains(restated, marker) {
			o.log(logging.LevelWarn, "marker_dropped", requestID, map[string]any{
				"marker":      marker,
				"restatement": truncate(restated, 500),
			}, "restatement dropped a required number, using deterministic answer")
			return grounded
		}
	}

	o.log(logging.LevelInfo, "finalized", requestID, map[string]any{
		"markers": markers,
	}, "restatement accepted")
	return restated
}

// formatAnswer renders a grounded Turkish answer directly from a tool's
// result fields. The second return value reports whether the tool is
// recognized; unrecognized tools leave the model to compose the answer.
func formatAnswer(tool string, result any) (string, bool) {
	record, ok := result.(map[string]any)
	if !ok {
		return "", false
	}

	switch tool {
	case "get_max_cpu_usage":
		return formatWindowMetric(record, "max_cpu_usage_percent",
			"Son %s dakikada en yüksek CPU kullanımı %%%s oldu.",
			"Son %s dakikada CPU ölçümü bulunamadı."), true
	case "get_avg_cpu_usage":
		return formatWindowMetric(record, "avg_cpu_usage_percent",
			"Son %s dakikada ortalama CPU kullanımı %%%s oldu.",
			"Son %s dakikada CPU ölçümü bulunamadı."), true
	case "get_max_ram_usage":
		return formatRAM(record, "max_ram_usage_percent", "max_ram_used_mb",
			"Son %s dakikada en yüksek RAM kullanımı %%%s oldu",
			"Son %s dakikada RAM ölçümü bulunamadı."), true
	case "get_avg_ram_usage":
		return formatRAM(record, "avg_ram_usage_percent", "avg_ram_used_mb",
			"Son %s dakikada ortalama RAM kullanımı %%%s oldu",
			"Son %s dakikada RAM ölçümü bulunamadı."), true
	case "get_max_gpu_utilization":
		return formatWindowMetric(record, "max_gpu_utilization_percent",
			"Son %s dakikada en yüksek GPU kullanımı %%%s oldu.",
			"Son %s dakikada GPU ölçümü bulunamadı."), true
	case "get_gpu_temperature_stats":
		return formatGPUTemps(record), true
	case snapshotTool:
		return formatSnapshot(record), true
	default:
		return "", false
	}
}

func formatWindowMetric(record map[string]any, field, withData, noData string) string {
	window := numberOr(record["window_minutes"], "60")
	value, ok := formatNumber(record[field])
	if !ok {
		return fmt.Sprintf(noData, window)
	}
	return fmt.Sprintf(withData, window, value)
}

func formatRAM(record map[string]any, percentField, mbField, withData, noData string) string {
	window := numberOr(record["window_minutes"], "60")
	percent, ok := formatNumber(record[percentField])
	if !ok {
		return fmt.Sprintf(noData, window)
	}
	answer := fmt.Sprintf(withData, window, percent)
	if mb, ok := formatNumber(record[mbField]); ok {
		return fmt.Sprintf("%s (%s MB).", answer, mb)
	}
	return answer + "."
}

func formatGPUTemps(record map[string]any) string {
	window := numberOr(record["window_minutes"], "60")
	minT, okMin := formatNumber(record["min_gpu_temperature_c"])
	maxT, okMax := formatNumber(record["max_gpu_temperature_c"])
	avgT, okAvg := formatNumber(record["avg_gpu_temperature_c"])
	if !okMin || !okMax || !okAvg {
		return fmt.Sprintf("Son %s dakikada GPU sıcaklık ölçümü bulunamadı.", window)
	}
	return fmt.Sprintf(
		"Son %s dakikada GPU sıcaklığı en düşük %s°C, en yüksek %s°C, ortalama %s°C oldu.",
		window, minT, maxT, avgT)
}

func formatSnapshot(record map[string]any) string {
	if _, hasRows := record["rows"]; hasRows {
		return "Kayıtlı makine ölçümü bulunamadı."
	}

	host := "bilinmeyen makine"
	if name, ok := record["hostname"].(string); ok && name != "" {
		host = name
	}

	parts := []string{}
	if cpu, ok := formatNumber(record["cpu_usage_percent"]); ok {
		parts = append(parts, fmt.Sprintf("CPU %%%s", cpu))
	}
	if ram, ok := formatNumber(record["ram_usage_percent"]); ok {
		parts = append(parts, fmt.Sprintf("RAM %%%s", ram))
	}
	if gpu, ok := formatNumber(record["gpu_utilization_percent"]); ok {
		parts = append(parts, fmt.Sprintf("GPU %%%s", gpu))
	}
	if temp, ok := formatNumber(record["gpu_temperature_c"]); ok {
		parts = append(parts, fmt.Sprintf("GPU sıcaklığı %s°C", temp))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%s makinesi için güncel ölçüm bulunamadı.", host)
	}
	return fmt.Sprintf("%s makinesinde şu an %s.", host, strings.Join(parts, ", "))
}

// formatNumber renders a result field as its literal numeric text. The
// boolean is false for nil or non-numeric fields.
func formatNumber(v any) (string, bool) {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case int:
		return strconv.Itoa(n), true
	case string:
		if strings.TrimSpace(n) != "" {
			return n, true
		}
	}
	return "", false
}

func numberOr(v any, fallback string) string {
	if s, ok := formatNumber(v); ok {
		return s
	}
	return fallback
}
