package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/paularlott/loom/internal/log"
)

// TurnContentType identifies the kind of a turn content item
type TurnContentType string

const (
	ContentText  TurnContentType = "text"
	ContentTable TurnContentType = "table"
	ContentChart TurnContentType = "chart"
)

// TurnTable is a materialized table attached to a turn
type TurnTable struct {
	Title   string   `json:"title,omitempty" msgpack:"title"`
	Columns []string `json:"columns" msgpack:"columns"`
	Rows    [][]any  `json:"rows" msgpack:"rows"`
}

// TurnChart is a Vega-Lite chart specification attached to a turn
type TurnChart struct {
	Title string         `json:"title,omitempty" msgpack:"title"`
	Spec  map[string]any `json:"spec" msgpack:"spec"`
}

// TurnContent is one content item of a turn
type TurnContent struct {
	Type  TurnContentType `json:"type" msgpack:"type"`
	Text  string          `json:"text,omitempty" msgpack:"text"`
	Table *TurnTable      `json:"table,omitempty" msgpack:"table"`
	Chart *TurnChart      `json:"chart,omitempty" msgpack:"chart"`
}

// Citation is a numbered source reference used by a turn
type Citation struct {
	Number   int    `json:"number" msgpack:"number"`
	Id       string `json:"id" msgpack:"id"`
	DocId    string `json:"doc_id" msgpack:"doc_id"`
	DocTitle string `json:"doc_title" msgpack:"doc_title"`
}

// Turn is one reconciled message within a thread. Assistant turns carry
// the processed text with resolved citations plus any tables and charts
// that arrived on the stream.
type Turn struct {
	Id            string        `json:"turn_id" db:"turn_id,pk" msgpack:"turn_id"`
	ThreadId      string        `json:"thread_id" db:"thread_id" msgpack:"thread_id"`
	Role          string        `json:"role" db:"role" msgpack:"role"`
	RequestId     string        `json:"request_id,omitempty" db:"request_id" msgpack:"request_id"`
	MessageId     string        `json:"message_id,omitempty" db:"message_id" msgpack:"message_id"`
	RawText       string        `json:"raw_text" db:"raw_text" msgpack:"raw_text"`
	ProcessedText string        `json:"processed_text" db:"processed_text" msgpack:"processed_text"`
	IsProcessed   bool          `json:"is_processed" db:"is_processed" msgpack:"is_processed"`
	Content       []TurnContent `json:"content" db:"content,json" msgpack:"content"`
	Citations     []Citation    `json:"citations,omitempty" db:"citations,json" msgpack:"citations"`
	ErrorText     string        `json:"error,omitempty" db:"error_text" msgpack:"error"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at" msgpack:"created_at"`
}

// NewTurn creates a new Turn object. When the backend assigned a message
// id via the metadata event it becomes the turn id, otherwise one is
// generated.
func NewTurn(threadId string, role string, messageId string) *Turn {
	turnId := messageId
	if turnId == "" {
		id, err := uuid.NewV7()
		if err != nil {
			log.Fatal(err.Error())
		}
		turnId = id.String()
	}

	return &Turn{
		Id:        turnId,
		ThreadId:  threadId,
		Role:      role,
		MessageId: messageId,
		CreatedAt: time.Now().UTC(),
	}
}
