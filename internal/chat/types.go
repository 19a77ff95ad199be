package chat

// ChatRequest is the request body for the chat stream endpoint. The
// thread id is optional, when empty a new thread is created.
type ChatRequest struct {
	ThreadId string `json:"thread_id,omitempty"`
	Message  string `json:"message"`
	Profile  string `json:"profile,omitempty"`
}

// CreateThreadRequest is the request body for creating a thread
type CreateThreadRequest struct {
	Title   string `json:"title"`
	Profile string `json:"profile,omitempty"`
}
