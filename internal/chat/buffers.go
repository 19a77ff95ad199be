package chat

import (
	"sort"
	"strings"
	"sync"
)

// BufferStore accumulates streamed text fragments keyed by content index.
// The agent interleaves text blocks with tool activity, each block gets
// its own index and the final answer is the blocks joined in index order.
type BufferStore struct {
	mu      sync.Mutex
	buffers map[int]*strings.Builder
	highest int
}

func NewBufferStore() *BufferStore {
	return &BufferStore{
		buffers: make(map[int]*strings.Builder),
		highest: -1,
	}
}

// Append adds a text fragment to the buffer for the given content index.
func (b *BufferStore) Append(contentIndex int, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buffer, ok := b.buffers[contentIndex]
	if !ok {
		buffer = &strings.Builder{}
		b.buffers[contentIndex] = buffer
	}
	buffer.WriteString(text)

	if contentIndex > b.highest {
		b.highest = contentIndex
	}
}

// Set replaces the buffer for the given content index.
func (b *BufferStore) Set(contentIndex int, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buffer := &strings.Builder{}
	buffer.WriteString(text)
	b.buffers[contentIndex] = buffer

	if contentIndex > b.highest {
		b.highest = contentIndex
	}
}

// HighestIndex returns the highest content index seen, -1 when no text
// has arrived yet.
func (b *BufferStore) HighestIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.highest
}

// Text joins the buffers in ascending content index order.
func (b *BufferStore) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	indexes := make([]int, 0, len(b.buffers))
	for index := range b.buffers {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	var text strings.Builder
	for _, index := range indexes {
		text.WriteString(b.buffers[index].String())
	}

	return text.String()
}

// Reset drops all buffers and the highest index tracking.
func (b *BufferStore) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffers = make(map[int]*strings.Builder)
	b.highest = -1
}
