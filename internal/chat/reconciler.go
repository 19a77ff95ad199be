package chat

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/paularlott/loom/internal/agent"
	"github.com/paularlott/loom/internal/database/model"
	"github.com/paularlott/loom/internal/log"
)

const (
	defaultMaxTables = 10
	keepOnOverflow   = 5
)

// FrameFunc receives render frames as the stream is reconciled, the
// service uses it to forward progress to the browser.
type FrameFunc func(event string, payload any)

// Result is the reconciled outcome of one agent request.
type Result struct {
	RequestId    string
	MessageId    string
	ParentId     string
	Status       string
	RawText      string
	Text         string
	Thinking     string
	Citations    []model.Citation
	Content      []model.TurnContent
	ErrorText    string
	Anomaly      *TableAnomaly
	Unrecognized int
}

// Reconciler folds the event stream of a single agent request into a
// Result. Events are applied in arrival order, malformed payloads are
// skipped and never abort the stream.
type Reconciler struct {
	thread          *ThreadContext
	request         *RequestContext
	debug           *DebugLog
	frame           FrameFunc
	maxTables       int
	enableCitations bool
	toolResults     []*model.ToolResult
	unrecognized    int
	result          *Result
}

func NewReconciler(thread *ThreadContext, requestId string) *Reconciler {
	return &Reconciler{
		thread:          thread,
		request:         NewRequestContext(requestId),
		maxTables:       defaultMaxTables,
		enableCitations: true,
	}
}

func (r *Reconciler) SetDebugLog(debug *DebugLog) {
	r.debug = debug
}

func (r *Reconciler) SetFrameFunc(frame FrameFunc) {
	r.frame = frame
}

func (r *Reconciler) SetMaxTables(maxTables int) {
	if maxTables > 0 {
		r.maxTables = maxTables
	}
}

func (r *Reconciler) SetEnableCitations(enable bool) {
	r.enableCitations = enable
}

// ToolResults returns the tool results collected from the stream so far.
func (r *Reconciler) ToolResults() []*model.ToolResult {
	return r.toolResults
}

func (r *Reconciler) emit(event string, payload any) {
	if r.frame != nil {
		r.frame(event, payload)
	}
}

func (r *Reconciler) decode(env *agent.Envelope, payload any) bool {
	if err := json.Unmarshal(env.Data, payload); err != nil {
		log.Warn("chat: skipping malformed event payload", "event", env.Name, "error", err.Error())
		return false
	}
	return true
}

// Apply folds one event into the request state, returns true when the
// stream is finished and no further events should be read.
func (r *Reconciler) Apply(env *agent.Envelope) (done bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("chat: recovered while applying event", "event", env.Name, "panic", rec)
			r.request.status = "failed"
		}
	}()

	if r.debug != nil {
		r.debug.Record(r.request.requestId, env.Name, env.Data)
	}

	switch env.Kind {
	case agent.EventStatus:
		var payload agent.StatusPayload
		if !r.decode(env, &payload) {
			return false
		}
		r.request.status = payload.Status
		if payload.Status == agent.StatusReevaluatingPlan {
			r.request.reevaluating = true
		}
		r.emit("status", payload)

	case agent.EventTextDelta:
		var payload agent.TextDeltaPayload
		if !r.decode(env, &payload) {
			return false
		}

		// A delta on a new content block after a plan re-evaluation means
		// the agent discarded its earlier answer, drop everything
		// accumulated so far and start again
		if r.request.reevaluating && payload.ContentIndex > r.request.buffers.HighestIndex() {
			log.Debug("chat: plan re-evaluated, clearing accumulated content", "request_id", r.request.requestId)
			r.request.reset()
			r.emit("reset", nil)
		}

		r.request.buffers.Append(payload.ContentIndex, payload.Text)
		r.emit("delta", payload)

	case agent.EventTextAnnotation:
		var payload agent.TextAnnotationPayload
		if !r.decode(env, &payload) {
			return false
		}
		// Only annotations with a title and a cs_ source id are usable,
		// anything else would clobber metadata harvested from tool results
		if strings.HasPrefix(payload.Annotation.SearchResultID, "cs_") && payload.Annotation.DocTitle != "" {
			r.thread.RegisterCitation(payload.Annotation.SearchResultID, payload.Annotation.DocID, payload.Annotation.DocTitle)
		} else {
			log.Debug("chat: skipping incomplete annotation", "request_id", r.request.requestId, "source_id", payload.Annotation.SearchResultID)
		}

	case agent.EventTextFinal:
		// Consolidated text repeats what the deltas already delivered,
		// the debug log captures it and nothing else is needed

	case agent.EventThinkingDelta:
		var payload agent.ThinkingDeltaPayload
		if !r.decode(env, &payload) {
			return false
		}
		if !r.request.thinking {
			r.request.thinking = true
			r.request.status = "thinking"
		}
		r.request.thinkingBuf.Append(payload.ContentIndex, payload.Text)
		r.emit("thinking", payload)

	case agent.EventThinkingFinal:
		var payload agent.ThinkingDeltaPayload
		if !r.decode(env, &payload) {
			return false
		}
		if !r.request.thinking {
			r.request.thinking = true
			r.request.status = "thinking"
		}
		// The consolidated text supersedes whatever the deltas built up
		// for the segment
		if payload.Text != "" {
			r.request.thinkingBuf.Set(payload.ContentIndex, payload.Text)
		}
		r.emit("thinking", payload)

	case agent.EventToolUse:
		var payload agent.ToolUsePayload
		if !r.decode(env, &payload) {
			return false
		}
		r.thread.SetToolInput(payload.ToolUseID, payload.Input)
		r.request.status = "using tool " + payload.Name
		r.emit("tool_use", payload)

	case agent.EventToolResult:
		var payload agent.ToolResultPayload
		if !r.decode(env, &payload) {
			return false
		}
		r.applyToolResult(&payload)
		if strings.EqualFold(payload.Status, "error") {
			r.request.status = "tool failed: " + payload.Name
		} else {
			r.request.status = "tool complete: " + payload.Name
		}
		r.emit("tool_result", payload)

	case agent.EventToolResultStatus:
		var payload agent.ToolResultStatusPayload
		if !r.decode(env, &payload) {
			return false
		}
		for _, result := range r.toolResults {
			if result.ToolUseId == payload.ToolUseID {
				result.Status = payload.Status
			}
		}
		switch payload.Status {
		case "success":
			r.request.status = "tool succeeded"
		case "error":
			r.request.status = "tool failed"
		default:
			if payload.Message != "" {
				r.request.status = payload.Message
			}
		}
		r.emit("tool_status", payload)

	case agent.EventToolResultPartial:
		var payload agent.ToolResultPartialPayload
		if !r.decode(env, &payload) {
			return false
		}
		key := strconv.Itoa(payload.ContentIndex)
		buffer, ok := r.request.toolPartials[key]
		if !ok {
			buffer = &strings.Builder{}
			r.request.toolPartials[key] = buffer
		}
		buffer.WriteString(payload.Text)
		r.emit("tool_partial", payload)

	case agent.EventTable:
		var payload agent.TablePayload
		if !r.decode(env, &payload) {
			return false
		}
		r.captureTable(payload.ContentIndex, &payload.ResultSet)

	case agent.EventChart:
		var payload agent.ChartPayload
		if !r.decode(env, &payload) {
			return false
		}
		spec := unwrapChartSpec(payload.ChartSpec)
		if spec == nil {
			log.Warn("chat: skipping chart with unparsable spec", "request_id", r.request.requestId)
			return false
		}
		r.request.charts = append(r.request.charts, capturedChart{
			contentIndex: payload.ContentIndex,
			spec:         spec,
		})
		if len(r.request.charts) > r.maxTables {
			log.Warn("chat: too many charts for request, keeping most recent", "request_id", r.request.requestId)
			r.request.charts = r.request.charts[len(r.request.charts)-keepOnOverflow:]
		}
		r.emit("chart", spec)

	case agent.EventResponseError:
		var payload agent.ErrorPayload
		if !r.decode(env, &payload) {
			return false
		}
		log.Error("chat: agent reported an error", "request_id", r.request.requestId, "code", payload.Code, "message", payload.Message)
		r.request.errorText = payload.Message
		r.request.status = "failed"
		r.emit("error", payload)

	case agent.EventTopLevelError:
		var payload agent.ErrorPayload
		if r.decode(env, &payload) {
			r.request.errorText = payload.Message
			r.emit("error", payload)
		} else {
			r.request.errorText = string(env.Data)
		}
		r.request.status = "failed"
		log.Error("chat: stream failed", "request_id", r.request.requestId, "message", r.request.errorText)
		return true

	case agent.EventResponse, agent.EventExecutionTrace:
		// Captured by the debug log above, carries no turn content

	case agent.EventMetadata:
		var payload agent.MetadataPayload
		if !r.decode(env, &payload) {
			return false
		}
		r.request.messageId = payload.Metadata.MessageID
		r.request.parentId = payload.Metadata.ParentID

	case agent.EventDone:
		return true

	default:
		r.unrecognized++
		log.Debug("chat: unrecognized event", "event", env.Name)
	}

	return false
}

// captureTable records a result set for the turn and streams it to the
// browser, trimming to the most recent when a request produces too many.
func (r *Reconciler) captureTable(contentIndex int, rs *agent.ResultSet) {
	table := &renderTable{
		Columns: rs.ColumnNames(),
		Rows:    rs.Data,
	}
	r.request.tables = append(r.request.tables, capturedTable{
		contentIndex: contentIndex,
		table:        table,
	})
	if len(r.request.tables) > r.maxTables {
		log.Warn("chat: too many tables for request, keeping most recent", "request_id", r.request.requestId)
		r.request.tables = r.request.tables[len(r.request.tables)-keepOnOverflow:]
	}
	r.emit("table", table)
}

func (r *Reconciler) applyToolResult(payload *agent.ToolResultPayload) {
	items := payload.ContentItems()

	// Harvest citation metadata and embedded result sets carried in the
	// tool result, query tools deliver their tables this way rather than
	// as separate table events
	for _, item := range items {
		if strings.HasPrefix(item.ID, "cs_") && item.DocID != "" && item.DocTitle != "" {
			r.thread.RegisterCitation(item.ID, item.DocID, item.DocTitle)
		}

		if item.JSON != nil {
			for _, hit := range item.JSON.SearchResults {
				if hit.ID != "" {
					r.thread.RegisterCitation(hit.ID, hit.DocID, hit.DocTitle)
				}
			}

			if len(item.JSON.Data) > 0 && item.JSON.ResultSetMetaData != nil {
				r.captureTable(payload.ContentIndex, &agent.ResultSet{
					Data:              item.JSON.Data,
					ResultSetMetaData: item.JSON.ResultSetMetaData,
				})
			}
		}
	}

	if payload.ToolUseID == "" {
		return
	}

	result := model.NewToolResult(payload.ToolUseID, r.thread.ThreadId())
	result.Type = payload.Type
	result.Name = payload.Name
	result.Status = payload.Status
	if content, err := json.Marshal(items); err == nil {
		result.Content = content
	}
	if input, ok := r.thread.ToolInput(payload.ToolUseID); ok {
		result.Input = input
	}

	r.toolResults = append(r.toolResults, result)
}

// unwrapChartSpec parses a chart spec string, unwrapping the single level
// of {"charts": [...]} nesting some backend builds produce. The first
// chart may itself be a string or an object.
func unwrapChartSpec(spec string) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(spec), &parsed); err != nil {
		return nil
	}

	charts, ok := parsed["charts"].([]any)
	if !ok || len(charts) == 0 {
		return parsed
	}

	switch first := charts[0].(type) {
	case string:
		var inner map[string]any
		if err := json.Unmarshal([]byte(first), &inner); err != nil {
			return nil
		}
		return inner
	case map[string]any:
		return first
	default:
		return nil
	}
}

// Finalize builds the Result for the request, resolving citations and
// assembling the content items. It runs exactly once, later calls return
// the same Result.
func (r *Reconciler) Finalize() *Result {
	if r.request.finalized {
		return r.result
	}
	r.request.finalized = true

	rawText := r.request.buffers.Text()

	text := rawText
	var citations []model.Citation
	if r.enableCitations {
		text, citations = ResolveCitations(rawText, r.thread)
		if block := CitationsBlock(citations); block != "" {
			text += "\n\n## Citations\n\n" + block
		}
	}

	content := []model.TurnContent{}
	if text != "" {
		content = append(content, model.TurnContent{
			Type: model.ContentText,
			Text: text,
		})
	}
	for _, captured := range r.request.tables {
		content = append(content, model.TurnContent{
			Type: model.ContentTable,
			Table: &model.TurnTable{
				Columns: captured.table.Columns,
				Rows:    captured.table.Rows,
			},
		})
	}
	for _, captured := range r.request.charts {
		content = append(content, model.TurnContent{
			Type:  model.ContentChart,
			Chart: &model.TurnChart{Spec: captured.spec},
		})
	}

	anomaly := DetectTableAnomaly(rawText, len(r.request.tables))
	if anomaly != nil {
		log.Warn("chat: answer references a table but none arrived", "request_id", r.request.requestId)
	}

	r.result = &Result{
		RequestId:    r.request.requestId,
		MessageId:    r.request.messageId,
		ParentId:     r.request.parentId,
		Status:       r.request.status,
		RawText:      rawText,
		Text:         text,
		Thinking:     r.request.thinkingBuf.Text(),
		Citations:    citations,
		Content:      content,
		ErrorText:    r.request.errorText,
		Anomaly:      anomaly,
		Unrecognized: r.unrecognized,
	}

	return r.result
}

type renderTable struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}
