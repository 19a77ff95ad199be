package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/paularlott/loom/internal/database/model"
	"github.com/paularlott/loom/internal/log"
)

var (
	citeTagPattern      = regexp.MustCompile(`<cite>(cs_[a-f0-9-]+)</cite>`)
	bareSourceIdPattern = regexp.MustCompile(`cs_[a-f0-9-]+`)
)

// ResolveCitations rewrites the cite markers in the text into numbered
// links. Numbers start at 1 for each request and are assigned in the
// order an id is first referenced, repeat references reuse the number.
// Returns the rewritten text and the referenced citations in number
// order, sources that were registered but never referenced are left out.
func ResolveCitations(text string, thread *ThreadContext) (string, []model.Citation) {
	var citations []model.Citation
	numbers := make(map[string]int)

	resolved := citeTagPattern.ReplaceAllStringFunc(text, func(match string) string {
		id := citeTagPattern.FindStringSubmatch(match)[1]

		number, ok := numbers[id]
		if !ok {
			number = len(citations) + 1
			numbers[id] = number

			citation := model.Citation{
				Number: number,
				Id:     id,
			}
			if meta, found := thread.Citation(id); found {
				citation.DocId = meta.DocId
				citation.DocTitle = meta.DocTitle
			}
			if citation.DocTitle == "" {
				citation.DocTitle = fmt.Sprintf("Citation %d", number)
			}
			if citation.DocId == "" {
				citation.DocId = "#"
			}

			citations = append(citations, citation)
		}

		citation := citations[number-1]
		return fmt.Sprintf("<a href=\"%s\" title=\"%s\">[%d]</a>", citation.DocId, citation.DocTitle, number)
	})

	// Source ids outside of cite markers are left as they are
	if leftover := bareSourceIdPattern.FindString(resolved); leftover != "" {
		log.Warn("chat: unreferenced source id in answer text", "source_id", leftover)
	}

	return resolved, citations
}

// CitationsBlock renders the numbered source list that is appended below
// the answer text.
func CitationsBlock(citations []model.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	entries := make([]string, 0, len(citations))
	for _, citation := range citations {
		entries = append(entries, fmt.Sprintf("**[%d]**: [%s](%s)", citation.Number, citation.DocTitle, citation.DocId))
	}

	return strings.Join(entries, " , ")
}
