package model

import (
	"time"
)

// ToolResult holds the outcome of a tool invocation, kept per thread so
// later requests against the same thread can resolve citations back to
// earlier tool output.
type ToolResult struct {
	ToolUseId string         `json:"tool_use_id" db:"tool_use_id,pk" msgpack:"tool_use_id"`
	ThreadId  string         `json:"thread_id" db:"thread_id" msgpack:"thread_id"`
	Type      string         `json:"type" db:"type" msgpack:"type"`
	Name      string         `json:"name" db:"name" msgpack:"name"`
	Status    string         `json:"status" db:"status" msgpack:"status"`
	Content   []byte         `json:"content" db:"content" msgpack:"content"`
	Input     map[string]any `json:"input,omitempty" db:"input,json" msgpack:"input"`
	CreatedAt time.Time      `json:"created_at" db:"created_at" msgpack:"created_at"`
}

// NewToolResult creates a new ToolResult object keyed by the tool use id.
func NewToolResult(toolUseId string, threadId string) *ToolResult {
	return &ToolResult{
		ToolUseId: toolUseId,
		ThreadId:  threadId,
		CreatedAt: time.Now().UTC(),
	}
}
