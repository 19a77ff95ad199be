package chat

import (
	"github.com/paularlott/loom/internal/database/model"
)

// MaterializeTurn converts a reconciled result into an assistant turn
// ready to be persisted.
func MaterializeTurn(threadId string, result *Result) *model.Turn {
	turn := model.NewTurn(threadId, "assistant", result.MessageId)
	turn.RequestId = result.RequestId
	turn.RawText = result.RawText
	turn.ProcessedText = result.Text
	turn.IsProcessed = true
	turn.Content = result.Content
	turn.Citations = result.Citations
	turn.ErrorText = result.ErrorText

	return turn
}

// EnsureProcessed resolves citations for a turn that was stored before
// processing finished, the raw text is rewritten in place using the
// citation metadata known to the thread.
func EnsureProcessed(turn *model.Turn, thread *ThreadContext) {
	if turn.IsProcessed || turn.RawText == "" {
		return
	}

	text, citations := ResolveCitations(turn.RawText, thread)
	if block := CitationsBlock(citations); block != "" {
		text += "\n\n## Citations\n\n" + block
	}

	turn.ProcessedText = text
	turn.Citations = citations
	turn.IsProcessed = true

	// Refresh the text content item, tables and charts are already final
	for i := range turn.Content {
		if turn.Content[i].Type == model.ContentText {
			turn.Content[i].Text = text
			return
		}
	}
	if text != "" {
		turn.Content = append([]model.TurnContent{{Type: model.ContentText, Text: text}}, turn.Content...)
	}
}
