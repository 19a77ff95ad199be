package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/paularlott/loom/internal/agent"
	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/database"
	"github.com/paularlott/loom/internal/database/model"
	"github.com/paularlott/loom/internal/log"
	"github.com/paularlott/loom/internal/sse"
	"github.com/paularlott/loom/internal/util/rest"
)

type Service struct {
	config      config.ChatConfig
	agentClient *agent.Client
	debug       *DebugLog

	threadsMutex sync.Mutex
	threads      map[string]*ThreadContext
}

func NewService(cfg *config.ServerConfig, router *http.ServeMux) (*Service, error) {
	agentClient, err := agent.New(agent.Config{
		Endpoint: cfg.Agent.Endpoint,
		Token:    cfg.Agent.Token,
		Timeout:  time.Duration(cfg.Agent.Timeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent client: %w", err)
	}

	chatService := &Service{
		config:      cfg.Chat,
		agentClient: agentClient,
		threads:     make(map[string]*ThreadContext),
	}

	if cfg.Chat.Debug {
		chatService.debug = NewDebugLog()
	}

	go cleanupLimiters()
	sse.GetHub().Start()

	// Chat
	router.HandleFunc("POST /api/chat/stream", RateLimit(cfg.Chat.RateLimit, cfg.Chat.RateBurst, chatService.HandleChatStream))

	// Threads
	router.HandleFunc("GET /api/threads", chatService.HandleGetThreads)
	router.HandleFunc("POST /api/threads", chatService.HandleCreateThread)
	router.HandleFunc("GET /api/threads/{thread_id}", chatService.HandleGetThread)
	router.HandleFunc("DELETE /api/threads/{thread_id}", chatService.HandleDeleteThread)
	router.HandleFunc("GET /api/threads/{thread_id}/turns", chatService.HandleGetTurns)

	// Profiles
	router.HandleFunc("GET /api/profiles", chatService.HandleGetProfiles)

	// Server push events
	router.HandleFunc("GET /api/events", chatService.HandleEvents)

	// Debug surfaces
	if cfg.Chat.Debug {
		router.HandleFunc("GET /api/debug/events", chatService.HandleDebugEvents)
		router.HandleFunc("GET /api/debug/histogram", chatService.HandleDebugHistogram)
	}

	return chatService, nil
}

// threadContext returns the in-memory context for a thread, rebuilding
// the citation registry from stored tool results after a restart.
func (s *Service) threadContext(threadId string) *ThreadContext {
	s.threadsMutex.Lock()
	defer s.threadsMutex.Unlock()

	threadContext, ok := s.threads[threadId]
	if ok {
		return threadContext
	}

	threadContext = NewThreadContext(threadId)
	s.threads[threadId] = threadContext

	results, err := database.GetInstance().GetToolResultsForThread(threadId)
	if err != nil {
		log.Warn("chat: failed to load tool results for thread", "thread_id", threadId, "error", err.Error())
		return threadContext
	}

	for _, result := range results {
		harvestStoredCitations(threadContext, result)
		if result.Input != nil {
			threadContext.SetToolInput(result.ToolUseId, result.Input)
		}
	}

	return threadContext
}

func (s *Service) dropThreadContext(threadId string) {
	s.threadsMutex.Lock()
	defer s.threadsMutex.Unlock()

	delete(s.threads, threadId)
}

// StreamChat sends the message to the agent service and reconciles the
// event stream into an assistant turn, forwarding render frames to the
// client as they arrive.
func (s *Service) StreamChat(ctx context.Context, thread *model.Thread, message string, w http.ResponseWriter, r *http.Request) error {
	db := database.GetInstance()

	sseWriter := rest.NewSSEStreamWriter(w, r)
	defer sseWriter.Close()

	// Persist the user turn before talking to the agent
	userTurn := model.NewTurn(thread.Id, "user", "")
	userTurn.RawText = message
	userTurn.ProcessedText = message
	userTurn.IsProcessed = true
	userTurn.Content = []model.TurnContent{{Type: model.ContentText, Text: message}}
	if err := db.SaveTurn(userTurn); err != nil {
		return fmt.Errorf("failed to save user turn: %w", err)
	}

	sse.PublishTurnStarted(thread.Id)

	turns, err := db.GetTurnsForThread(thread.Id)
	if err != nil {
		return fmt.Errorf("failed to load thread history: %w", err)
	}
	sort.Slice(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})

	messages := make([]agent.Message, 0, len(turns))
	var parentId string
	for _, turn := range turns {
		if turn.RawText == "" {
			continue
		}
		messages = append(messages, agent.Message{
			Role:    turn.Role,
			Content: turn.RawText,
		})
		if turn.Role == "assistant" && turn.MessageId != "" {
			parentId = turn.MessageId
		}
	}

	profile := agent.GetProfileService().Get(thread.Profile)

	stream := s.agentClient.StreamMessage(ctx, agent.SendMessageRequest{
		ThreadID:     thread.Id,
		ParentID:     parentId,
		Model:        profile.Model,
		SystemPrompt: profile.SystemPrompt,
		Messages:     messages,
		Stream:       true,
	})

	requestId := stream.RequestID()
	log.Debug("chat: streaming agent response", "thread_id", thread.Id, "request_id", requestId)

	reconciler := NewReconciler(s.threadContext(thread.Id), requestId)
	reconciler.SetMaxTables(s.config.MaxTables)
	reconciler.SetEnableCitations(s.config.EnableCitations)
	if s.debug != nil {
		reconciler.SetDebugLog(s.debug)
	}
	reconciler.SetFrameFunc(func(event string, payload any) {
		sseWriter.WriteEvent(event, payload)
	})

	for stream.Next() {
		env := stream.Current()
		if reconciler.Apply(&env) {
			break
		}
	}

	result := reconciler.Finalize()

	if err := stream.Err(); err != nil {
		log.Error("chat: agent stream failed", "request_id", requestId, "error", err.Error())
		if result.ErrorText == "" {
			result.ErrorText = err.Error()
		}
	}

	for _, toolResult := range reconciler.ToolResults() {
		if err := db.SaveToolResult(toolResult); err != nil {
			log.Warn("chat: failed to save tool result", "tool_use_id", toolResult.ToolUseId, "error", err.Error())
		}
	}

	turn := MaterializeTurn(thread.Id, result)
	if err := db.SaveTurn(turn); err != nil {
		log.Error("chat: failed to save assistant turn", "turn_id", turn.Id, "error", err.Error())
	}

	thread.UpdatedAt = time.Now().UTC()
	if err := db.SaveThread(thread); err != nil {
		log.Warn("chat: failed to update thread", "thread_id", thread.Id, "error", err.Error())
	}

	if turn.ErrorText != "" {
		sse.PublishTurnFailed(thread.Id, turn.Id)
	} else {
		sse.PublishTurnCompleted(thread.Id, turn.Id)
	}

	sseWriter.WriteEvent("turn", turn)
	sseWriter.WriteEnd()

	return nil
}

// harvestStoredCitations re-registers the citation metadata carried in a
// stored tool result.
func harvestStoredCitations(threadContext *ThreadContext, result *model.ToolResult) {
	if len(result.Content) == 0 {
		return
	}

	var items []agent.ToolResultContent
	if err := json.Unmarshal(result.Content, &items); err != nil {
		return
	}

	for _, item := range items {
		if item.DocID != "" && item.DocTitle != "" && item.ID != "" {
			threadContext.RegisterCitation(item.ID, item.DocID, item.DocTitle)
		}
		if item.JSON != nil {
			for _, hit := range item.JSON.SearchResults {
				if hit.ID != "" {
					threadContext.RegisterCitation(hit.ID, hit.DocID, hit.DocTitle)
				}
			}
		}
	}
}
