package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/database/model"
)

// Mock agent service that streams the given SSE frames
func createMockAgentServer(t *testing.T, requestID string, frames []string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/messages" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Snowflake-Request-Id", requestID)
		w.WriteHeader(http.StatusOK)

		for _, frame := range frames {
			fmt.Fprint(w, frame)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func createTestService(t *testing.T, agentURL string) (*Service, *http.ServeMux) {
	t.Helper()

	cfg := &config.ServerConfig{
		Agent: config.AgentConfig{
			Endpoint: agentURL,
			Token:    "test-token",
			Timeout:  5,
		},
		Chat: config.ChatConfig{
			Debug:           true,
			MaxTables:       10,
			EnableCitations: true,
		},
	}
	config.SetServerConfig(cfg)

	router := http.NewServeMux()
	service, err := NewService(cfg, router)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	return service, router
}

func TestService_ChatStreamEndToEnd(t *testing.T) {
	agentServer := createMockAgentServer(t, "req-e2e-1", []string{
		"event: response.status\ndata: {\"status\":\"planning\"}\n\n",
		"event: response.text.delta\ndata: {\"content_index\":0,\"text\":\"Data loading \"}\n\n",
		"event: response.text.annotation\ndata: {\"content_index\":0,\"annotation_index\":0,\"annotation\":{\"search_result_id\":\"cs_ab12\",\"doc_id\":\"http://x\",\"doc_title\":\"Doc A\"}}\n\n",
		"event: response.text.delta\ndata: {\"content_index\":0,\"text\":\"<cite>cs_ab12</cite> methods\"}\n\n",
		"event: metadata\ndata: {\"metadata\":{\"message_id\":\"msg-e2e-1\"}}\n\n",
		"event: response.done\ndata: {}\n\n",
	})
	defer agentServer.Close()

	_, router := createTestService(t, agentServer.URL)
	server := httptest.NewServer(router)
	defer server.Close()

	body, _ := json.Marshal(ChatRequest{Message: "how do I load data?"})
	resp, err := http.Post(server.URL+"/api/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/chat/stream error: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	stream := string(raw)

	if !strings.Contains(stream, "event: delta") {
		t.Errorf("stream missing delta frames: %s", stream)
	}
	if !strings.Contains(stream, "data: [DONE]") {
		t.Errorf("stream missing end marker: %s", stream)
	}

	// The turn frame is JSON, pull it apart rather than grepping the raw
	// stream so html escaping in the encoder does not matter
	turnData := extractEventData(stream, "turn")
	if turnData == "" {
		t.Fatalf("stream missing final turn frame: %s", stream)
	}
	var turn model.Turn
	if err := json.Unmarshal([]byte(turnData), &turn); err != nil {
		t.Fatalf("turn frame is not valid JSON: %v", err)
	}
	if !strings.Contains(turn.ProcessedText, `<a href="http://x" title="Doc A">[1]</a> methods`) {
		t.Errorf("final turn missing resolved citation: %q", turn.ProcessedText)
	}
}

// extractEventData returns the data line of the first SSE frame with the
// given event name.
func extractEventData(stream string, event string) string {
	lines := strings.Split(stream, "\n")
	for i, line := range lines {
		if line == "event: "+event && i+1 < len(lines) {
			return strings.TrimPrefix(lines[i+1], "data: ")
		}
	}
	return ""
}

func TestService_ThreadLifecycle(t *testing.T) {
	agentServer := createMockAgentServer(t, "req-lc-1", []string{
		"event: response.text.delta\ndata: {\"content_index\":0,\"text\":\"hello back\"}\n\n",
		"event: response.done\ndata: {}\n\n",
	})
	defer agentServer.Close()

	_, router := createTestService(t, agentServer.URL)
	server := httptest.NewServer(router)
	defer server.Close()

	// Create a thread
	body, _ := json.Marshal(CreateThreadRequest{Title: "lifecycle test"})
	resp, err := http.Post(server.URL+"/api/threads", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/threads error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create thread status = %d", resp.StatusCode)
	}
	var thread model.Thread
	json.NewDecoder(resp.Body).Decode(&thread)
	resp.Body.Close()

	// Chat on the thread
	body, _ = json.Marshal(ChatRequest{ThreadId: thread.Id, Message: "hello"})
	resp, err = http.Post(server.URL+"/api/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/chat/stream error: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// The user and assistant turns are persisted in order
	resp, err = http.Get(server.URL + "/api/threads/" + thread.Id + "/turns")
	if err != nil {
		t.Fatalf("GET turns error: %v", err)
	}
	var turns []*model.Turn
	json.NewDecoder(resp.Body).Decode(&turns)
	resp.Body.Close()

	if len(turns) != 2 {
		t.Fatalf("got %d turns, expected 2", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turn roles = %q, %q", turns[0].Role, turns[1].Role)
	}
	if turns[1].ProcessedText != "hello back" {
		t.Errorf("assistant text = %q", turns[1].ProcessedText)
	}

	// Delete the thread
	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/threads/"+thread.Id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE thread error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete thread status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(server.URL + "/api/threads/" + thread.Id)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted thread status = %d, expected 404", resp.StatusCode)
	}
}

func TestService_ChatStreamRequiresMessage(t *testing.T) {
	agentServer := createMockAgentServer(t, "req-x", nil)
	defer agentServer.Close()

	_, router := createTestService(t, agentServer.URL)
	server := httptest.NewServer(router)
	defer server.Close()

	body, _ := json.Marshal(ChatRequest{})
	resp, err := http.Post(server.URL+"/api/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", resp.StatusCode)
	}
}

func TestService_UnknownThreadRejected(t *testing.T) {
	agentServer := createMockAgentServer(t, "req-x", nil)
	defer agentServer.Close()

	_, router := createTestService(t, agentServer.URL)
	server := httptest.NewServer(router)
	defer server.Close()

	body, _ := json.Marshal(ChatRequest{ThreadId: "missing", Message: "hi"})
	resp, err := http.Post(server.URL+"/api/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(60, 2, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var lastStatus int
	for i := 0; i < 5; i++ {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		handler(recorder, req)
		lastStatus = recorder.Code
	}

	if lastStatus != http.StatusTooManyRequests {
		t.Errorf("status after burst = %d, expected 429", lastStatus)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit(0, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 20; i++ {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", nil)
		req.RemoteAddr = "10.1.2.4:1234"
		handler(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d with limiting disabled", recorder.Code)
		}
	}
}
