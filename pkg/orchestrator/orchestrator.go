// Package orchestrator drives the tool-calling conversation loop between
// the user's question, the model and the tool executor.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"metricsqa/pkg/logging"
	"metricsqa/pkg/model"
	"metricsqa/pkg/observability"
	"metricsqa/pkg/timewindow"
	"metricsqa/pkg/tools"
)

const systemPrompt = `Sen makine telemetri verilerini raporlayan bir asistansın.
Sorulara SADECE sana verilen tool'ların döndürdüğü verilerle cevap ver.
Kurallar:
- Asla SQL yazma, tablo veya sütun adlarından bahsetme.
- Kullanıcıdan asla host_id isteme; bilinmiyorsa host_id'yi null bırak.
- minutes parametresi her zaman TAM SAYI olmalı.
- Cevaplarını Türkçe ver ve tool sonuçlarındaki sayıları aynen kullan, asla sayı uydurma.`

// budgetAnswer terminates conversations whose model never stops asking for
// tools.
const budgetAnswer = "Tool çağrıları çok kez tekrarlandı; lütfen soruyu daha net sor."

// escapeAnswer replaces a post-tool "no data" deflection from the model.
const escapeAnswer = "Sorgu çalıştı ancak sonuçlardan net bir cevap çıkaramadım; lütfen soruyu farklı şekilde sormayı dene."

// snapshotTool supplies the auto-selected host when the model refuses to
// proceed without one.
const snapshotTool = "get_latest_snapshot"

// ChatClient is the transport to an OpenAI-compatible completions endpoint.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
}

// ToolExecutor runs a single tool call against the metrics store.
type ToolExecutor interface {
	Execute(ctx context.Context, requestID, name string, args map[string]any) (any, error)
}

// Orchestrator owns the multi-turn loop. It is stateless across requests;
// each Ask call builds a fresh transcript.
type Orchestrator struct {
	client        ChatClient
	executor      ToolExecutor
	catalog       *tools.Catalog
	logger        *logging.Logger
	maxIterations int
}

// New builds an orchestrator. maxIterations below 1 falls back to 5.
func New(client ChatClient, executor ToolExecutor, catalog *tools.Catalog, logger *logging.Logger, maxIterations int) *Orchestrator {
	if maxIterations < 1 {
		maxIterations = 5
	}
	return &Orchestrator{
		client:        client,
		executor:      executor,
		catalog:       catalog,
		logger:        logger,
		maxIterations: maxIterations,
	}
}

// Ask answers one natural-language question. The conversation is fresh per
// call and never persisted.
func (o *Orchestrator) Ask(ctx context.Context, requestID, question string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "conversation.ask")
	span.SetAttributes(
		observability.AttrRequestID.String(requestID),
		observability.AttrQuestion.Int(len(question)),
	)
	defer span.End()

	inferred, hasInferred := timewindow.Infer(question)

	transcript := []model.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: question},
	}
	descriptors := o.catalog.Describe()

	o.log(logging.LevelInfo, "conversation_started", requestID, map[string]any{
		"question":         question,
		"inferred_minutes": inferredLogValue(inferred, hasInferred),
	}, "conversation started")

	var (
		lastTool     string
		lastResult   any
		toolRan      bool
		fallbackUsed bool
	)

	for iteration := 0; iteration < o.maxIterations; iteration++ {
		resp, err := o.client.ChatCompletion(ctx, model.ChatRequest{
			Messages:   transcript,
			Tools:      descriptors,
			ToolChoice: "auto",
		})
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}
		msg := resp.FirstMessage()

		calls := msg.ToolCalls
		if len(calls) == 0 {
			if synthetic, ok := o.parseInlineToolCall(msg.Content); ok {
				o.log(logging.LevelInfo, "inline_tool_call", requestID, map[string]any{
					"tool": synthetic.Function.Name,
				}, "recovered tool call from inline text")
				calls = []model.ToolCall{synthetic}
				msg = model.Message{Role: "assistant", ToolCalls: calls}
			}
		}

		if len(calls) == 0 {
			text := strings.TrimSpace(msg.Content)

			if !toolRan && !fallbackUsed && looksLikeHostIDRefusal(text) {
				fallbackUsed = true
				hostID, err := o.fallbackHostID(ctx, requestID)
				if err != nil || hostID == "" {
					o.log(logging.LevelWarn, "hostid_fallback_failed", requestID, map[string]any{
						"error": errString(err),
					}, "snapshot lookup for host fallback failed")
					return text, nil
				}
				transcript = append(transcript, model.Message{
					Role: "system",
					Content: fmt.Sprintf(
						"host_id belirtilmediğinde %s makinesini kullan. Tool çağrısında host_id olarak bu değeri geç veya null bırak; kullanıcıya host_id sorma.",
						hostID),
				})
				o.log(logging.LevelInfo, "hostid_fallback", requestID, map[string]any{
					"host_id": hostID,
				}, "injected auto-selected host")
				continue
			}

			if toolRan && looksLikeEscape(text) {
				o.log(logging.LevelInfo, "escape_override", requestID, map[string]any{
					"model_text": text,
				}, "replaced post-tool no-data deflection")
				return escapeAnswer, nil
			}

			return text, nil
		}

		transcript = append(transcript, model.Message{
			Role:      "assistant",
			Content:   msg.Content,
			ToolCalls: calls,
		})

		for _, call := range calls {
			args := o.parseArguments(requestID, call.Function.Arguments)
			args = backfillMinutes(o.catalog, call.Function.Name, args, inferred, hasInferred)

			result, err := o.executor.Execute(ctx, requestID, call.Function.Name, args)
			if err != nil {
				return "", err
			}

			transcript = append(transcript, model.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    renderResult(result),
			})

			toolRan = true
			lastTool = call.Function.Name
			lastResult = result
		}

		if grounded, ok := formatAnswer(lastTool, lastResult); ok {
			return o.finalize(ctx, requestID, transcript, grounded), nil
		}
	}

	o.log(logging.LevelWarn, "budget_exhausted", requestID, map[string]any{
		"iterations": o.maxIterations,
	}, "iteration budget exhausted")
	return budgetAnswer, nil
}

// parseArguments decodes a tool call's raw argument JSON. Invalid payloads
// degrade to an empty set so schema defaults can still apply.
func (o *Orchestrator) parseArguments(requestID, raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		o.log(logging.LevelWarn, "malformed_tool_args", requestID, map[string]any{
			"raw": truncate(raw, 500),
		}, "tool call arguments were not a JSON object")
		return map[string]any{}
	}
	return args
}

// backfillMinutes injects the inferred window when the target tool accepts a
// minutes argument and the model left it missing, zero or blank. An explicit
// non-zero value is never overridden.
func backfillMinutes(catalog *tools.Catalog, toolName string, args map[string]any, inferred int, hasInferred bool) map[string]any {
	if !hasInferred {
		return args
	}
	spec, err := catalog.Get(toolName)
	if err != nil || !spec.HasParameter("minutes") {
		return args
	}
	if !minutesMissing(args) {
		return args
	}
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["minutes"] = inferred
	return out
}

func minutesMissing(args map[string]any) bool {
	v, ok := args["minutes"]
	if !ok || v == nil {
		return true
	}
	switch n := v.(type) {
	case float64:
		return n == 0
	case int:
		return n == 0
	case int64:
		return n == 0
	case string:
		s := strings.TrimSpace(n)
		return s == "" || s == "0"
	}
	return false
}

// fallbackHostID runs the snapshot tool with no host filter and returns the
// auto-selected host identifier.
func (o *Orchestrator) fallbackHostID(ctx context.Context, requestID string) (string, error) {
	result, err := o.executor.Execute(ctx, requestID, snapshotTool, map[string]any{"host_id": nil})
	if err != nil {
		return "", err
	}
	record, ok := result.(map[string]any)
	if !ok {
		return "", nil
	}
	if id, ok := record["host_id"].(string); ok {
		return id, nil
	}
	return "", nil
}

// looksLikeHostIDRefusal detects the model deflecting the question because
// an optional host identifier was withheld.
func looksLikeHostIDRefusal(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "host_id") && !strings.Contains(lower, "host id") {
		return false
	}
	for _, marker := range []string{"imkans", "imkâns", "cevap", "verilmiyor", "cannot", "can't", "impossible"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// looksLikeEscape detects a "no data" deflection after tools already
// returned data.
func looksLikeEscape(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{"veri yok", "veri bulunamadı", "bilgi yok", "bilgi bulunamadı", "cevap veremiyorum", "cevap veremem", "no data", "erişimim yok"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// renderResult produces the compact textual form fed back to the model as a
// tool turn.
func renderResult(result any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

func (o *Orchestrator) log(level logging.Level, eventType, requestID string, details map[string]any, message string) {
	o.logger.Log(logging.Event{
		Level:     level,
		Category:  logging.CategoryConversation,
		EventType: eventType,
		RequestID: requestID,
		Details:   details,
		Message:   message,
	})
}

func inferredLogValue(minutes int, ok bool) any {
	if !ok {
		return nil
	}
	return minutes
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
