package chat

import (
	"regexp"
	"strings"
)

// Phrases that indicate the answer text is pointing the user at a table.
var tablePhrases = []string{
	"please find the requested table below",
	"here is the table",
	"the table below shows",
	"find the table below",
	"requested table below",
	"show the table",
	"display the table",
	"table that shows",
	"see the table",
	"table data",
	"show you the data in a table",
}

var toolResultIdPattern = regexp.MustCompile(`tool result ID:\s*([a-zA-Z0-9_]+)`)

// TableAnomaly is raised when the answer text promises a table that never
// arrived on the stream.
type TableAnomaly struct {
	Phrase        string   `json:"phrase,omitempty"`
	ToolResultIds []string `json:"tool_result_ids,omitempty"`
}

// DetectTableAnomaly checks whether the text references a table while the
// request produced no table events. Returns nil when there is nothing to
// flag.
func DetectTableAnomaly(text string, tableCount int) *TableAnomaly {
	if tableCount > 0 {
		return nil
	}

	lower := strings.ToLower(text)

	var anomaly *TableAnomaly
	for _, phrase := range tablePhrases {
		if strings.Contains(lower, phrase) {
			anomaly = &TableAnomaly{Phrase: phrase}
			break
		}
	}

	matches := toolResultIdPattern.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		if anomaly == nil {
			anomaly = &TableAnomaly{}
		}
		for _, match := range matches {
			anomaly.ToolResultIds = append(anomaly.ToolResultIds, match[1])
		}
	}

	return anomaly
}
