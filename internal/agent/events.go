package agent

// EventKind classifies the named SSE events emitted by the agent service
type EventKind string

const (
	EventResponse          EventKind = "response"
	EventStatus            EventKind = "status"
	EventTextDelta         EventKind = "text-delta"
	EventTextAnnotation    EventKind = "text-annotation"
	EventTextFinal         EventKind = "text-final"
	EventThinkingDelta     EventKind = "thinking-delta"
	EventThinkingFinal     EventKind = "thinking-final"
	EventToolUse           EventKind = "tool-use"
	EventToolResult        EventKind = "tool-result"
	EventToolResultStatus  EventKind = "tool-result-status"
	EventToolResultPartial EventKind = "tool-result-partial"
	EventTable             EventKind = "table"
	EventChart             EventKind = "chart"
	EventResponseError     EventKind = "response-error"
	EventTopLevelError     EventKind = "top-level-error"
	EventExecutionTrace    EventKind = "execution-trace"
	EventMetadata          EventKind = "metadata"
	EventDone              EventKind = "done"
	EventUnrecognized      EventKind = "unrecognized"
)

// Wire names used by the agent service. Anything not listed maps to
// EventUnrecognized and is carried through with its raw name.
var eventKinds = map[string]EventKind{
	"response":                                   EventResponse,
	"response.status":                            EventStatus,
	"response.text.delta":                        EventTextDelta,
	"response.text.annotation":                   EventTextAnnotation,
	"response.text":                              EventTextFinal,
	"response.thinking.delta":                    EventThinkingDelta,
	"response.thinking":                          EventThinkingFinal,
	"response.tool_use":                          EventToolUse,
	"response.tool_result":                       EventToolResult,
	"response.tool_result.status":                EventToolResultStatus,
	"response.tool_result.analyst.delta":         EventToolResultPartial,
	"response.tool_result.sql_explanation.delta": EventToolResultPartial,
	"response.table":                             EventTable,
	"response.chart":                             EventChart,
	"response.error":                             EventResponseError,
	"error":                                      EventTopLevelError,
	"execution_trace":                            EventExecutionTrace,
	"metadata":                                   EventMetadata,
	"response.done":                              EventDone,
}

// KindForEvent maps a wire event name to its kind
func KindForEvent(name string) EventKind {
	if kind, ok := eventKinds[name]; ok {
		return kind
	}
	return EventUnrecognized
}

// Envelope is one parsed frame from the agent event stream
type Envelope struct {
	Kind EventKind `json:"kind"`
	Name string    `json:"name"`
	Data []byte    `json:"data"`
}

// ParseEvent builds an envelope from a raw SSE frame. The payload is kept
// raw, decoding happens at the point of use so a bad payload for one event
// never poisons the rest of the stream.
func ParseEvent(name string, data []byte) Envelope {
	return Envelope{
		Kind: KindForEvent(name),
		Name: name,
		Data: data,
	}
}
