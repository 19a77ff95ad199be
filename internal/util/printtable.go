package util

import "fmt"

// PrintTable writes the rows to stdout with each column padded to the
// width of its widest cell. Ragged rows are allowed, short rows simply
// leave their trailing columns empty.
func PrintTable(table [][]string) {
	if len(table) == 0 {
		return
	}

	var maxWidths []int
	for _, row := range table {
		for i, cell := range row {
			if i >= len(maxWidths) {
				maxWidths = append(maxWidths, 0)
			}
			if len(cell) > maxWidths[i] {
				maxWidths[i] = len(cell)
			}
		}
	}

	for _, row := range table {
		for i, cell := range row {
			fmt.Printf("%-*s  ", maxWidths[i], cell)
		}
		fmt.Println()
	}
}
