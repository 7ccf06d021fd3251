// Package model provides the wire types and client for an OpenAI-compatible
// chat completions endpoint with function calling.
package model

import (
	"fmt"
)

// Message represents a chat message
type Message struct {
	Role       string     `json:"role"`                   // system, user, assistant, tool
	Content    string     `json:"content,omitempty"`      // textual content
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // for assistant messages with tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool response messages
	Name       string     `json:"name,omitempty"`         // tool name for tool messages
}

// ToolCall represents a function/tool call from the assistant
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall represents the function being called
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string, untrusted
}

// ChatRequest represents a request to the chat completion API
type ChatRequest struct {
	Model      string           `json:"model"`
	Messages   []Message        `json:"messages"`
	Tools      []map[string]any `json:"tools,omitempty"`       // OpenAI function definitions
	ToolChoice string           `json:"tool_choice,omitempty"` // "auto", "none"
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// APIError represents a structured API error
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Type != "" && e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s (type: %s, code: %s)", e.StatusCode, e.Message, e.Type, e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// FirstMessage returns the message of the first choice, or a zero message if
// the response carried no choices. Model output is untrusted; callers must
// not assume choices exist.
func (r *ChatResponse) FirstMessage() Message {
	if len(r.Choices) == 0 {
		return Message{}
	}
	return r.Choices[0].Message
}
