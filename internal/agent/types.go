package agent

import (
	"encoding/json"
	"fmt"
)

// Message is one entry in the conversation sent to the agent service
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendMessageRequest is the request body for the message endpoint
type SendMessageRequest struct {
	ThreadID     string    `json:"thread_id,omitempty"`
	ParentID     string    `json:"parent_message_id,omitempty"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	Stream       bool      `json:"stream"`
}

// StatusPayload carries phase updates for the in-flight response
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusReevaluatingPlan signals the agent discarded its plan and will
// restart the answer on a fresh content index
const StatusReevaluatingPlan = "reevaluating_plan"

type TextDeltaPayload struct {
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

type TextFinalPayload struct {
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

// Annotation is the citation metadata attached to a span of answer text
type Annotation struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	DocID          string `json:"doc_id"`
	DocTitle       string `json:"doc_title"`
	SearchResultID string `json:"search_result_id"`
}

type TextAnnotationPayload struct {
	ContentIndex    int        `json:"content_index"`
	AnnotationIndex int        `json:"annotation_index"`
	Annotation      Annotation `json:"annotation"`
}

type ThinkingDeltaPayload struct {
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

type ThinkingFinalPayload struct {
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

type ToolUsePayload struct {
	ContentIndex int             `json:"content_index"`
	ToolUseID    string          `json:"tool_use_id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Input        map[string]any  `json:"input"`
	Raw          json.RawMessage `json:"-"`
}

// ToolResultContent is one content item within a tool result. Citation
// bearing items carry the cs_ prefixed id plus document metadata, json
// items wrap analyst output (text, sql, search results, table data).
type ToolResultContent struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ID       string              `json:"id,omitempty"`
	DocID    string              `json:"doc_id,omitempty"`
	DocTitle string              `json:"doc_title,omitempty"`
	SourceID int                 `json:"source_id,omitempty"`
	JSON     *ToolResultJSONBody `json:"json,omitempty"`
}

// ToolResultJSONBody is the json payload of an analyst style content item
type ToolResultJSONBody struct {
	Text              string         `json:"text,omitempty"`
	SQL               string         `json:"sql,omitempty"`
	SearchResults     []SearchResult `json:"search_results,omitempty"`
	Data              [][]any        `json:"data,omitempty"`
	ResultSetMetaData *ResultSetMeta `json:"resultSetMetaData,omitempty"`
}

// SearchResult is a search hit carried inside a tool result
type SearchResult struct {
	ID       string `json:"id"`
	DocID    string `json:"doc_id"`
	DocTitle string `json:"doc_title"`
	SourceID int    `json:"source_id"`
}

type ToolResultPayload struct {
	ContentIndex int                 `json:"content_index"`
	ToolUseID    string              `json:"tool_use_id"`
	Type         string              `json:"type"`
	Name         string              `json:"name"`
	Status       string              `json:"status"`
	Content      []ToolResultContent `json:"content"`

	// Some agent builds nest the content one level down
	Data *struct {
		Content []ToolResultContent `json:"content"`
	} `json:"data,omitempty"`
}

// ContentItems returns the content array regardless of which nesting the
// service used
func (p *ToolResultPayload) ContentItems() []ToolResultContent {
	if len(p.Content) > 0 {
		return p.Content
	}
	if p.Data != nil {
		return p.Data.Content
	}
	return nil
}

type ToolResultStatusPayload struct {
	ToolUseID string `json:"tool_use_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type ToolResultPartialPayload struct {
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

// ResultSetMeta mirrors the Snowflake SQL API result set metadata, the
// column list arrives as rowType or row_type depending on the backend build
type ResultSetMeta struct {
	RowType      []RowTypeColumn `json:"rowType"`
	RowTypeSnake []RowTypeColumn `json:"row_type"`
	Columns      []string        `json:"columns"`
}

type RowTypeColumn struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type ResultSet struct {
	Data              [][]any        `json:"data"`
	ResultSetMetaData *ResultSetMeta `json:"resultSetMetaData"`
	Columns           []string       `json:"columns"`
}

// ColumnNames returns the column names for the result set, falling back
// to synthetic names when the metadata is missing or incomplete.
func (rs *ResultSet) ColumnNames() []string {
	if rs.ResultSetMetaData != nil {
		rowType := rs.ResultSetMetaData.RowType
		if len(rowType) == 0 {
			rowType = rs.ResultSetMetaData.RowTypeSnake
		}
		if len(rowType) > 0 {
			names := make([]string, len(rowType))
			for i, column := range rowType {
				names[i] = column.Name
			}
			return names
		}
		if len(rs.ResultSetMetaData.Columns) > 0 {
			return rs.ResultSetMetaData.Columns
		}
	}

	if len(rs.Columns) > 0 {
		return rs.Columns
	}

	// Synthesize names from the widest row
	width := 0
	for _, row := range rs.Data {
		if len(row) > width {
			width = len(row)
		}
	}
	names := make([]string, width)
	for i := range names {
		names[i] = fmt.Sprintf("col_%d", i)
	}
	return names
}

type TablePayload struct {
	ContentIndex int       `json:"content_index"`
	ResultSet    ResultSet `json:"result_set"`
}

type ChartPayload struct {
	ContentIndex int    `json:"content_index"`
	ChartSpec    string `json:"chart_spec"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MetadataPayload struct {
	Metadata struct {
		MessageID string `json:"message_id"`
		ParentID  string `json:"parent_id"`
		ThreadID  string `json:"thread_id"`
	} `json:"metadata"`
}
