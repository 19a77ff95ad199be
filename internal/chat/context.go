package chat

import (
	"strings"
	"sync"
)

// CitationMeta holds the document details behind a cs_ source id.
type CitationMeta struct {
	DocId    string
	DocTitle string
}

// ThreadContext holds the state that outlives a single request, citations
// and tool inputs registered by earlier requests against the same thread
// stay resolvable for later ones.
type ThreadContext struct {
	mu         sync.RWMutex
	threadId   string
	citations  map[string]*CitationMeta
	toolInputs map[string]map[string]any
}

func NewThreadContext(threadId string) *ThreadContext {
	return &ThreadContext{
		threadId:   threadId,
		citations:  make(map[string]*CitationMeta),
		toolInputs: make(map[string]map[string]any),
	}
}

func (t *ThreadContext) ThreadId() string {
	return t.threadId
}

// RegisterCitation records the metadata for a source id, the last
// registration wins when the same id arrives with conflicting titles.
func (t *ThreadContext) RegisterCitation(id string, docId string, docTitle string) {
	if id == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.citations[id] = &CitationMeta{
		DocId:    docId,
		DocTitle: docTitle,
	}
}

// Citation looks up the metadata for a source id.
func (t *ThreadContext) Citation(id string) (*CitationMeta, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	meta, ok := t.citations[id]
	return meta, ok
}

// SetToolInput stores the input of a tool invocation keyed by the tool use id.
func (t *ThreadContext) SetToolInput(toolUseId string, input map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.toolInputs[toolUseId] = input
}

// ToolInput returns the stored input of a tool invocation.
func (t *ThreadContext) ToolInput(toolUseId string) (map[string]any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	input, ok := t.toolInputs[toolUseId]
	return input, ok
}

// RequestContext holds the state of a single agent request, everything in
// it is keyed to one request id and discarded once the turn is built.
type RequestContext struct {
	requestId    string
	buffers      *BufferStore
	thinkingBuf  *BufferStore
	tables       []capturedTable
	charts       []capturedChart
	toolPartials map[string]*strings.Builder

	status       string
	thinking     bool
	reevaluating bool

	messageId string
	parentId  string
	errorText string
	finalized bool
}

type capturedTable struct {
	contentIndex int
	table        *renderTable
}

type capturedChart struct {
	contentIndex int
	spec         map[string]any
}

func NewRequestContext(requestId string) *RequestContext {
	return &RequestContext{
		requestId:    requestId,
		buffers:      NewBufferStore(),
		thinkingBuf:  NewBufferStore(),
		toolPartials: make(map[string]*strings.Builder),
	}
}

func (r *RequestContext) RequestId() string {
	return r.requestId
}

// reset drops all accumulated content for the request, used when the
// agent abandons its plan and starts a fresh answer.
func (r *RequestContext) reset() {
	r.buffers.Reset()
	r.thinkingBuf.Reset()
	r.tables = nil
	r.charts = nil
	r.toolPartials = make(map[string]*strings.Builder)
	r.reevaluating = false
}
