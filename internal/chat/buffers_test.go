package chat

import (
	"testing"
)

func TestBufferStore_TextOrdering(t *testing.T) {
	tests := []struct {
		name     string
		appends  [][2]interface{} // index, text
		expected string
	}{
		{
			name:     "empty store",
			appends:  nil,
			expected: "",
		},
		{
			name: "single buffer",
			appends: [][2]interface{}{
				{0, "Hello "},
				{0, "world"},
			},
			expected: "Hello world",
		},
		{
			name: "out of order indexes join ascending",
			appends: [][2]interface{}{
				{2, "third"},
				{0, "first "},
				{1, "second "},
			},
			expected: "first second third",
		},
		{
			name: "sparse indexes",
			appends: [][2]interface{}{
				{0, "a"},
				{5, "b"},
				{3, "c"},
			},
			expected: "acb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewBufferStore()
			for _, entry := range tt.appends {
				store.Append(entry[0].(int), entry[1].(string))
			}

			if got := store.Text(); got != tt.expected {
				t.Errorf("Text() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestBufferStore_HighestIndex(t *testing.T) {
	store := NewBufferStore()

	if got := store.HighestIndex(); got != -1 {
		t.Errorf("HighestIndex() on empty store = %d, expected -1", got)
	}

	store.Append(3, "x")
	store.Append(1, "y")

	if got := store.HighestIndex(); got != 3 {
		t.Errorf("HighestIndex() = %d, expected 3", got)
	}
}

func TestBufferStore_Reset(t *testing.T) {
	store := NewBufferStore()
	store.Append(0, "text")
	store.Reset()

	if got := store.Text(); got != "" {
		t.Errorf("Text() after reset = %q, expected empty", got)
	}
	if got := store.HighestIndex(); got != -1 {
		t.Errorf("HighestIndex() after reset = %d, expected -1", got)
	}
}
