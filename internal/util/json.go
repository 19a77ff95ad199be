package util

import (
	"encoding/json"
	"fmt"
)

// PrettyPrintJSON writes v to stdout as indented JSON.
func PrettyPrintJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
