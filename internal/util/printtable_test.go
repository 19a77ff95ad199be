package util

import "testing"

func TestPrintTable_EmptyAndRagged(t *testing.T) {
	// Neither shape may panic
	PrintTable(nil)
	PrintTable([][]string{})
	PrintTable([][]string{
		{"a", "bb", "ccc"},
		{"dddd"},
	})
}
