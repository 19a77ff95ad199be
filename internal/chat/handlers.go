package chat

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/paularlott/loom/internal/agent"
	"github.com/paularlott/loom/internal/config"
	"github.com/paularlott/loom/internal/database"
	"github.com/paularlott/loom/internal/database/model"
	"github.com/paularlott/loom/internal/log"
	"github.com/paularlott/loom/internal/sse"
	"github.com/paularlott/loom/internal/util"
	"github.com/paularlott/loom/internal/util/rest"
)

func (s *Service) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := rest.DecodeRequestBody(w, r, &req); err != nil {
		return
	}

	if req.Message == "" {
		rest.WriteResponse(http.StatusBadRequest, w, r, map[string]string{
			"error": "No message provided",
		})
		return
	}

	db := database.GetInstance()

	var thread *model.Thread
	if req.ThreadId != "" {
		var err error
		thread, err = db.GetThread(req.ThreadId)
		if err != nil || thread == nil {
			rest.WriteResponse(http.StatusNotFound, w, r, map[string]string{
				"error": "Thread not found",
			})
			return
		}
	} else {
		title := req.Message
		if len(title) > 60 {
			title = title[:60]
		}
		thread = model.NewThread(title, defaultProfile(req.Profile))
		if err := db.SaveThread(thread); err != nil {
			rest.WriteResponse(http.StatusInternalServerError, w, r, map[string]string{
				"error": "Failed to create thread",
			})
			return
		}
		sse.PublishThreadsChanged()
	}

	if err := s.StreamChat(r.Context(), thread, req.Message, w, r); err != nil {
		// The SSE stream is already open at this point so just log it
		log.Error("chat: stream ended with error", "thread_id", thread.Id, "error", err.Error())
	}
}

func (s *Service) HandleGetThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := database.GetInstance().GetThreads()
	if err != nil {
		rest.WriteResponse(http.StatusInternalServerError, w, r, map[string]string{
			"error": "Failed to load threads",
		})
		return
	}

	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})

	rest.WriteResponse(http.StatusOK, w, r, threads)
}

func (s *Service) HandleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req CreateThreadRequest
	if err := rest.DecodeRequestBody(w, r, &req); err != nil {
		return
	}

	if req.Title == "" {
		rest.WriteResponse(http.StatusBadRequest, w, r, map[string]string{
			"error": "No title provided",
		})
		return
	}

	thread := model.NewThread(req.Title, defaultProfile(req.Profile))
	if err := database.GetInstance().SaveThread(thread); err != nil {
		rest.WriteResponse(http.StatusInternalServerError, w, r, map[string]string{
			"error": "Failed to create thread",
		})
		return
	}

	sse.PublishThreadsChanged()

	rest.WriteResponse(http.StatusCreated, w, r, thread)
}

func (s *Service) HandleGetThread(w http.ResponseWriter, r *http.Request) {
	thread, err := database.GetInstance().GetThread(r.PathValue("thread_id"))
	if err != nil || thread == nil {
		rest.WriteResponse(http.StatusNotFound, w, r, map[string]string{
			"error": "Thread not found",
		})
		return
	}

	rest.WriteResponse(http.StatusOK, w, r, thread)
}

func (s *Service) HandleDeleteThread(w http.ResponseWriter, r *http.Request) {
	db := database.GetInstance()

	thread, err := db.GetThread(r.PathValue("thread_id"))
	if err != nil || thread == nil {
		rest.WriteResponse(http.StatusNotFound, w, r, map[string]string{
			"error": "Thread not found",
		})
		return
	}

	if err := db.DeleteThread(thread); err != nil {
		rest.WriteResponse(http.StatusInternalServerError, w, r, map[string]string{
			"error": "Failed to delete thread",
		})
		return
	}

	s.dropThreadContext(thread.Id)
	sse.PublishThreadsChanged()

	rest.WriteResponse(http.StatusOK, w, r, map[string]string{
		"status": "deleted",
	})
}

func (s *Service) HandleGetTurns(w http.ResponseWriter, r *http.Request) {
	db := database.GetInstance()
	threadId := r.PathValue("thread_id")

	thread, err := db.GetThread(threadId)
	if err != nil || thread == nil {
		rest.WriteResponse(http.StatusNotFound, w, r, map[string]string{
			"error": "Thread not found",
		})
		return
	}

	turns, err := db.GetTurnsForThread(threadId)
	if err != nil {
		rest.WriteResponse(http.StatusInternalServerError, w, r, map[string]string{
			"error": "Failed to load turns",
		})
		return
	}

	sort.Slice(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})

	// Turns saved before processing finished get their citations resolved
	// on the way out
	for _, turn := range turns {
		if !turn.IsProcessed {
			EnsureProcessed(turn, s.threadContext(threadId))
			if err := db.SaveTurn(turn); err != nil {
				log.Warn("chat: failed to save processed turn", "turn_id", turn.Id, "error", err.Error())
			}
		}
	}

	rest.WriteResponse(http.StatusOK, w, r, turns)
}

// defaultProfile falls back to the configured default agent profile when
// the request doesn't name one.
func defaultProfile(profile string) string {
	if profile != "" {
		return profile
	}
	return config.GetServerConfig().Agent.Profile
}

func (s *Service) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	rest.WriteResponse(http.StatusOK, w, r, agent.GetProfileService().GetProfiles())
}

// HandleEvents streams hub events to the browser, an optional thread_id
// query parameter scopes targeted events.
func (s *Service) HandleEvents(w http.ResponseWriter, r *http.Request) {
	client := sse.GetHub().NewClient(r.URL.Query().Get("thread_id"))
	defer client.Close()

	sseWriter := rest.NewSSEStreamWriter(w, r)
	defer sseWriter.Close()

	for {
		select {
		case data, ok := <-client.Send():
			if !ok {
				return
			}
			if err := sseWriter.WriteChunk(json.RawMessage(data)); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// HandleDebugEvents taps the captured wire events over a websocket.
func (s *Service) HandleDebugEvents(w http.ResponseWriter, r *http.Request) {
	ws := util.UpgradeToWS(w, r)
	if ws == nil {
		return
	}
	defer ws.Close()

	sent := 0
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			events := s.debug.Events()
			if len(events) < sent {
				sent = 0
			}
			for _, event := range events[sent:] {
				if err := ws.WriteJSON(event); err != nil {
					return
				}
			}
			sent = len(events)
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Service) HandleDebugHistogram(w http.ResponseWriter, r *http.Request) {
	rest.WriteResponse(http.StatusOK, w, r, s.debug.Histogram())
}
