package sse

// Publish functions for broadcasting events to SSE clients.
// These should be called after data modifications.

// PublishThreadsChanged notifies clients that the thread list has changed
func PublishThreadsChanged() {
	GetHub().Broadcast(&Event{
		Type: EventThreadsChanged,
	})
}

// PublishTurnStarted notifies clients that a turn has started streaming
func PublishTurnStarted(threadId string) {
	GetHub().Broadcast(&Event{
		Type: EventTurnStarted,
		Payload: TurnEventPayload{
			ThreadId: threadId,
		},
	})
}

// PublishTurnCompleted notifies clients that a turn has been reconciled and saved
func PublishTurnCompleted(threadId, turnId string) {
	GetHub().Broadcast(&Event{
		Type: EventTurnCompleted,
		Payload: TurnEventPayload{
			ThreadId: threadId,
			TurnId:   turnId,
		},
	})
}

// PublishTurnFailed notifies clients that a turn ended with an error
func PublishTurnFailed(threadId, turnId string) {
	GetHub().Broadcast(&Event{
		Type: EventTurnFailed,
		Payload: TurnEventPayload{
			ThreadId: threadId,
			TurnId:   turnId,
		},
	})
}
