package chat

import (
	"fmt"
	"strings"
	"testing"

	"github.com/paularlott/loom/internal/agent"
	"github.com/paularlott/loom/internal/database/model"
)

func applyEvents(t *testing.T, r *Reconciler, events [][2]string) {
	t.Helper()

	for _, event := range events {
		env := agent.ParseEvent(event[0], []byte(event[1]))
		if r.Apply(&env) {
			return
		}
	}
}

func TestReconciler_TextAndCitations(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.status", `{"status":"planning"}`},
		{"response.text.delta", `{"content_index":0,"text":"Data loading "}`},
		{"response.text.annotation", `{"content_index":0,"annotation_index":0,"annotation":{"type":"cortex_search_citation","search_result_id":"cs_ab12","doc_id":"http://x","doc_title":"Doc A"}}`},
		{"response.text.delta", `{"content_index":0,"text":"<cite>cs_ab12</cite> methods"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()

	expected := "Data loading <a href=\"http://x\" title=\"Doc A\">[1]</a> methods\n\n## Citations\n\n**[1]**: [Doc A](http://x)"
	if result.Text != expected {
		t.Errorf("Text = %q, expected %q", result.Text, expected)
	}
	if len(result.Citations) != 1 || result.Citations[0].Number != 1 {
		t.Errorf("Citations = %+v", result.Citations)
	}
	if result.RawText != "Data loading <cite>cs_ab12</cite> methods" {
		t.Errorf("RawText = %q", result.RawText)
	}
}

func TestReconciler_ReevaluationClearsContent(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.text.delta", `{"content_index":0,"text":"discarded answer"}`},
		{"response.table", `{"content_index":0,"result_set":{"data":[[1]],"resultSetMetaData":{"rowType":[{"name":"N"}]}}}`},
		{"response.status", `{"status":"reevaluating_plan"}`},
		{"response.text.delta", `{"content_index":1,"text":"fresh answer"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.RawText != "fresh answer" {
		t.Errorf("RawText = %q, expected only the post-reevaluation text", result.RawText)
	}
	for _, content := range result.Content {
		if content.Type == model.ContentTable {
			t.Error("tables from before the re-evaluation should have been dropped")
		}
	}
}

func TestReconciler_ReevaluationSameIndexKeepsContent(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.text.delta", `{"content_index":2,"text":"part one "}`},
		{"response.status", `{"status":"reevaluating_plan"}`},
		{"response.text.delta", `{"content_index":2,"text":"part two"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.RawText != "part one part two" {
		t.Errorf("RawText = %q, a delta on the same content index must not clear the buffers", result.RawText)
	}
}

func TestReconciler_TableOverflowKeepsMostRecent(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	for i := 0; i < 12; i++ {
		env := agent.ParseEvent("response.table", []byte(fmt.Sprintf(
			`{"content_index":%d,"result_set":{"data":[[%d]],"resultSetMetaData":{"rowType":[{"name":"N"}]}}}`, i, i)))
		r.Apply(&env)
	}
	env := agent.ParseEvent("response.done", []byte(`{}`))
	r.Apply(&env)

	result := r.Finalize()

	var tables []*model.TurnTable
	for _, content := range result.Content {
		if content.Type == model.ContentTable {
			tables = append(tables, content.Table)
		}
	}

	// The 11th table trips the cap and trims to the most recent 5, the
	// 12th is then appended on top
	if len(tables) != 6 {
		t.Fatalf("kept %d tables, expected 6", len(tables))
	}
	// The last table captured carries the value 11
	lastValue := tables[len(tables)-1].Rows[0][0].(float64)
	if lastValue != 11 {
		t.Errorf("last table value = %v, expected 11", lastValue)
	}
}

func TestReconciler_TableColumnFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected []string
	}{
		{
			name:     "rowType metadata",
			payload:  `{"content_index":0,"result_set":{"data":[[1,2]],"resultSetMetaData":{"rowType":[{"name":"A"},{"name":"B"}]}}}`,
			expected: []string{"A", "B"},
		},
		{
			name:     "row_type metadata",
			payload:  `{"content_index":0,"result_set":{"data":[[1,2]],"resultSetMetaData":{"row_type":[{"name":"C"},{"name":"D"}]}}}`,
			expected: []string{"C", "D"},
		},
		{
			name:     "columns list",
			payload:  `{"content_index":0,"result_set":{"data":[[1,2]],"columns":["E","F"]}}`,
			expected: []string{"E", "F"},
		},
		{
			name:     "columns inside metadata",
			payload:  `{"content_index":0,"result_set":{"data":[[1,2]],"resultSetMetaData":{"columns":["G","H"]}}}`,
			expected: []string{"G", "H"},
		},
		{
			name:     "synthetic names",
			payload:  `{"content_index":0,"result_set":{"data":[[1,2,3]]}}`,
			expected: []string{"col_0", "col_1", "col_2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := NewThreadContext("thread-1")
			r := NewReconciler(thread, "req-1")

			env := agent.ParseEvent("response.table", []byte(tt.payload))
			r.Apply(&env)
			done := agent.ParseEvent("response.done", []byte(`{}`))
			r.Apply(&done)

			result := r.Finalize()
			var table *model.TurnTable
			for _, content := range result.Content {
				if content.Type == model.ContentTable {
					table = content.Table
				}
			}
			if table == nil {
				t.Fatal("no table in result")
			}
			if len(table.Columns) != len(tt.expected) {
				t.Fatalf("columns = %v, expected %v", table.Columns, tt.expected)
			}
			for i, name := range tt.expected {
				if table.Columns[i] != name {
					t.Errorf("column %d = %q, expected %q", i, table.Columns[i], name)
				}
			}
		})
	}
}

func TestReconciler_ChartUnwrapping(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantKey string
	}{
		{
			name:    "plain spec object",
			spec:    `{"content_index":0,"chart_spec":"{\"mark\":\"bar\"}"}`,
			wantKey: "mark",
		},
		{
			name:    "charts wrapper with object",
			spec:    `{"content_index":0,"chart_spec":"{\"charts\":[{\"mark\":\"line\"}]}"}`,
			wantKey: "mark",
		},
		{
			name:    "charts wrapper with string",
			spec:    `{"content_index":0,"chart_spec":"{\"charts\":[\"{\\\"mark\\\":\\\"area\\\"}\"]}"}`,
			wantKey: "mark",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := NewThreadContext("thread-1")
			r := NewReconciler(thread, "req-1")

			env := agent.ParseEvent("response.chart", []byte(tt.spec))
			r.Apply(&env)
			done := agent.ParseEvent("response.done", []byte(`{}`))
			r.Apply(&done)

			result := r.Finalize()
			var chart *model.TurnChart
			for _, content := range result.Content {
				if content.Type == model.ContentChart {
					chart = content.Chart
				}
			}
			if chart == nil {
				t.Fatal("no chart in result")
			}
			if _, ok := chart.Spec[tt.wantKey]; !ok {
				t.Errorf("chart spec missing key %q: %v", tt.wantKey, chart.Spec)
			}
		})
	}
}

func TestReconciler_MalformedPayloadSkipped(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.text.delta", `{"content_index":0,"text":"good "}`},
		{"response.text.delta", `{not json`},
		{"response.text.delta", `{"content_index":0,"text":"still good"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.RawText != "good still good" {
		t.Errorf("RawText = %q, malformed frame must not abort the stream", result.RawText)
	}
}

func TestReconciler_ResponseErrorContinues(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.error", `{"code":"quota","message":"tool failed"}`},
		{"response.text.delta", `{"content_index":0,"text":"recovered"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.ErrorText != "tool failed" {
		t.Errorf("ErrorText = %q", result.ErrorText)
	}
	if result.RawText != "recovered" {
		t.Errorf("RawText = %q, stream must continue after response error", result.RawText)
	}
}

func TestReconciler_TopLevelErrorStops(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	env := agent.ParseEvent("error", []byte(`{"code":"500","message":"stream broken"}`))
	if !r.Apply(&env) {
		t.Error("top level error must end the stream")
	}

	result := r.Finalize()
	if result.ErrorText != "stream broken" {
		t.Errorf("ErrorText = %q", result.ErrorText)
	}
}

func TestReconciler_MetadataSetsMessageId(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"metadata", `{"metadata":{"message_id":"msg-9","parent_id":"msg-8","thread_id":"thread-1"}}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.MessageId != "msg-9" || result.ParentId != "msg-8" {
		t.Errorf("MessageId = %q, ParentId = %q", result.MessageId, result.ParentId)
	}
}

func TestReconciler_ToolResultHarvestsCitations(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.tool_use", `{"content_index":0,"tool_use_id":"tu-1","name":"search","type":"cortex_search","input":{"query":"loading"}}`},
		{"response.tool_result", `{"content_index":0,"tool_use_id":"tu-1","type":"cortex_search","name":"search","status":"success","content":[{"type":"text","id":"cs_ab12","doc_id":"http://x","doc_title":"Doc A"},{"type":"json","json":{"search_results":[{"id":"cs_cd34","doc_id":"http://y","doc_title":"Doc B"}]}}]}`},
		{"response.text.delta", `{"content_index":1,"text":"See <cite>cs_ab12</cite> and <cite>cs_cd34</cite>"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if len(result.Citations) != 2 {
		t.Fatalf("got %d citations, expected 2", len(result.Citations))
	}
	if result.Citations[0].DocTitle != "Doc A" || result.Citations[1].DocTitle != "Doc B" {
		t.Errorf("Citations = %+v", result.Citations)
	}

	toolResults := r.ToolResults()
	if len(toolResults) != 1 {
		t.Fatalf("got %d tool results, expected 1", len(toolResults))
	}
	if toolResults[0].ToolUseId != "tu-1" || toolResults[0].Input["query"] != "loading" {
		t.Errorf("ToolResult = %+v", toolResults[0])
	}
}

func TestReconciler_ToolResultNestedContent(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	// Some backend builds nest the content under data.content
	applyEvents(t, r, [][2]string{
		{"response.tool_result", `{"content_index":0,"tool_use_id":"tu-2","type":"cortex_search","data":{"content":[{"type":"text","id":"cs_ef56","doc_id":"http://z","doc_title":"Doc C"}]}}`},
		{"response.text.delta", `{"content_index":1,"text":"<cite>cs_ef56</cite>"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if len(result.Citations) != 1 || result.Citations[0].DocTitle != "Doc C" {
		t.Errorf("Citations = %+v", result.Citations)
	}
}

func TestReconciler_AnnotationValidation(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		// Tool result carries the good metadata
		{"response.tool_result", `{"content_index":0,"tool_use_id":"tu-1","name":"search","status":"success","content":[{"type":"text","id":"cs_ab12","doc_id":"http://x","doc_title":"Doc A"}]}`},
		// A titleless annotation for the same id must not clobber it
		{"response.text.annotation", `{"content_index":0,"annotation":{"search_result_id":"cs_ab12","doc_id":"http://other","doc_title":""}}`},
		// Ids without the citation prefix are not registered
		{"response.text.annotation", `{"content_index":0,"annotation":{"search_result_id":"xx_99","doc_id":"http://z","doc_title":"Bogus"}}`},
		{"response.text.delta", `{"content_index":1,"text":"<cite>cs_ab12</cite>"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if len(result.Citations) != 1 || result.Citations[0].DocTitle != "Doc A" || result.Citations[0].DocId != "http://x" {
		t.Errorf("Citations = %+v, incomplete annotations must not overwrite tool result metadata", result.Citations)
	}
	if _, ok := thread.Citation("xx_99"); ok {
		t.Error("id without the citation prefix must not be registered")
	}
}

func TestReconciler_ThinkingFinalReplacesDeltas(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.thinking.delta", `{"content_index":0,"text":"partial thou"}`},
		{"response.thinking", `{"content_index":0,"text":"complete thought"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.Thinking != "complete thought" {
		t.Errorf("Thinking = %q, the consolidated text supersedes the deltas", result.Thinking)
	}
}

func TestReconciler_ThinkingFinalOnly(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	// Some streams skip the deltas and deliver thinking in one event
	applyEvents(t, r, [][2]string{
		{"response.thinking", `{"content_index":0,"text":"all at once"}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.Thinking != "all at once" {
		t.Errorf("Thinking = %q", result.Thinking)
	}
}

func TestReconciler_PanicSurfacesFailedStatus(t *testing.T) {
	r := NewReconciler(nil, "req-1")

	// A nil thread context makes the tool_use handler panic, the
	// recovery must leave a failed status rather than a silent skip
	env := agent.ParseEvent("response.tool_use", []byte(`{"content_index":0,"tool_use_id":"tu-1","name":"search","input":{}}`))
	if r.Apply(&env) {
		t.Error("a recovered panic must not end the stream")
	}
	if r.request.status != "failed" {
		t.Errorf("status = %q, expected failed after a recovered panic", r.request.status)
	}
}

func TestReconciler_ToolResultEmbeddedTable(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	var tableFrames int
	r.SetFrameFunc(func(event string, payload any) {
		if event == "table" {
			tableFrames++
		}
	})

	// Analyst style tools carry their result set inside the tool result
	// rather than as a separate table event
	applyEvents(t, r, [][2]string{
		{"response.tool_result", `{"content_index":0,"tool_use_id":"tu-3","type":"cortex_analyst","name":"analyst","status":"success","content":[{"type":"json","json":{"sql":"SELECT 1","data":[[10,20]],"resultSetMetaData":{"rowType":[{"name":"X"},{"name":"Y"}]}}}]}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()

	var table *model.TurnTable
	for _, content := range result.Content {
		if content.Type == model.ContentTable {
			table = content.Table
		}
	}
	if table == nil {
		t.Fatal("embedded result set should be rendered as a table")
	}
	if len(table.Columns) != 2 || table.Columns[0] != "X" || table.Columns[1] != "Y" {
		t.Errorf("Columns = %v", table.Columns)
	}
	if tableFrames != 1 {
		t.Errorf("table frames = %d, expected 1", tableFrames)
	}
}

func TestReconciler_ToolStatusTransitions(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	env := agent.ParseEvent("response.tool_use", []byte(`{"content_index":0,"tool_use_id":"tu-4","name":"search","input":{}}`))
	r.Apply(&env)
	if r.request.status != "using tool search" {
		t.Errorf("status = %q after tool_use", r.request.status)
	}

	env = agent.ParseEvent("response.tool_result", []byte(`{"content_index":0,"tool_use_id":"tu-4","name":"search","status":"success","content":[]}`))
	r.Apply(&env)
	if r.request.status != "tool complete: search" {
		t.Errorf("status = %q after tool_result", r.request.status)
	}

	env = agent.ParseEvent("response.tool_result.status", []byte(`{"tool_use_id":"tu-4","status":"error","message":"query timed out"}`))
	r.Apply(&env)
	if r.request.status != "tool failed" {
		t.Errorf("status = %q after tool_result.status", r.request.status)
	}

	toolResults := r.ToolResults()
	if len(toolResults) != 1 || toolResults[0].Status != "error" {
		t.Errorf("stored tool result status not updated: %+v", toolResults)
	}
}

func TestReconciler_ToolResultFailureStatus(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	env := agent.ParseEvent("response.tool_result", []byte(`{"content_index":0,"tool_use_id":"tu-5","name":"analyst","status":"error","content":[]}`))
	r.Apply(&env)
	if r.request.status != "tool failed: analyst" {
		t.Errorf("status = %q", r.request.status)
	}
}

func TestReconciler_ThinkingTransitionIsIdempotent(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	var thinkingFrames int
	var statusFrames int
	r.SetFrameFunc(func(event string, payload any) {
		switch event {
		case "thinking":
			thinkingFrames++
		case "status":
			statusFrames++
		}
	})

	applyEvents(t, r, [][2]string{
		{"response.thinking.delta", `{"content_index":0,"text":"hmm"}`},
		{"response.thinking.delta", `{"content_index":0,"text":" more"}`},
		{"response.thinking", `{"content_index":0,"text":"hmm more"}`},
		{"response.done", `{}`},
	})

	if thinkingFrames != 3 {
		t.Errorf("thinking frames = %d, expected 3", thinkingFrames)
	}
	if r.request.status != "thinking" {
		t.Errorf("status = %q, expected thinking", r.request.status)
	}

	result := r.Finalize()
	if result.Thinking != "hmm more" {
		t.Errorf("Thinking = %q, deltas should accumulate", result.Thinking)
	}
}

func TestReconciler_UnrecognizedEventsCounted(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.something_new", `{"x":1}`},
		{"another.unknown", `{}`},
		{"response.done", `{}`},
	})

	result := r.Finalize()
	if result.Unrecognized != 2 {
		t.Errorf("Unrecognized = %d, expected 2", result.Unrecognized)
	}
}

func TestReconciler_FinalizeRunsOnce(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")

	applyEvents(t, r, [][2]string{
		{"response.text.delta", `{"content_index":0,"text":"answer"}`},
		{"response.done", `{}`},
	})

	first := r.Finalize()
	second := r.Finalize()
	if first != second {
		t.Error("Finalize must return the same result on repeat calls")
	}
}

func TestReconciler_DebugLogObservesStream(t *testing.T) {
	thread := NewThreadContext("thread-1")
	r := NewReconciler(thread, "req-1")
	debug := NewDebugLog()
	r.SetDebugLog(debug)

	applyEvents(t, r, [][2]string{
		{"response.text.delta", `{"content_index":0,"text":"a"}`},
		{"response.text.delta", `{"content_index":0,"text":"b"}`},
		{"execution_trace", `{"step":"search"}`},
		{"response.done", `{}`},
	})

	histogram := debug.Histogram()
	if histogram["response.text.delta"] != 2 {
		t.Errorf("histogram delta count = %d, expected 2", histogram["response.text.delta"])
	}
	if histogram["execution_trace"] != 1 {
		t.Errorf("histogram trace count = %d, expected 1", histogram["execution_trace"])
	}
	if len(debug.Events()) != 4 {
		t.Errorf("captured %d events, expected 4", len(debug.Events()))
	}

	// Recording must not change reconciliation
	result := r.Finalize()
	if result.RawText != "ab" {
		t.Errorf("RawText = %q", result.RawText)
	}
}

func TestDetectTableAnomaly(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		tableCount int
		flagged    bool
	}{
		{
			name:       "phrase with no tables",
			text:       "Here is the table you asked for",
			tableCount: 0,
			flagged:    true,
		},
		{
			name:       "phrase with tables present",
			text:       "Here is the table you asked for",
			tableCount: 1,
			flagged:    false,
		},
		{
			name:       "tool result id reference",
			text:       "See tool result ID: toolu_abc123 for details",
			tableCount: 0,
			flagged:    true,
		},
		{
			name:       "plain text",
			text:       "Nothing tabular here",
			tableCount: 0,
			flagged:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anomaly := DetectTableAnomaly(tt.text, tt.tableCount)
			if (anomaly != nil) != tt.flagged {
				t.Errorf("DetectTableAnomaly() = %+v, flagged expected %v", anomaly, tt.flagged)
			}
		})
	}
}

func TestDetectTableAnomaly_ExtractsToolResultIds(t *testing.T) {
	anomaly := DetectTableAnomaly("the table below shows results, tool result ID: tr_1 and tool result ID: tr_2", 0)
	if anomaly == nil {
		t.Fatal("expected anomaly")
	}
	if len(anomaly.ToolResultIds) != 2 || anomaly.ToolResultIds[0] != "tr_1" || anomaly.ToolResultIds[1] != "tr_2" {
		t.Errorf("ToolResultIds = %v", anomaly.ToolResultIds)
	}
	if !strings.Contains(anomaly.Phrase, "table below shows") {
		t.Errorf("Phrase = %q", anomaly.Phrase)
	}
}
