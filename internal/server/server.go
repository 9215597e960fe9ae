// Package server exposes the agent registry over HTTP: synchronous
// runs, SSE streaming runs, and session inspection.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/skillhub-ai/skillhub/internal/compose"
	"github.com/skillhub-ai/skillhub/internal/registry"
	"github.com/skillhub-ai/skillhub/internal/runtime"
	"github.com/skillhub-ai/skillhub/internal/session"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
)

// AgentRequest is the body of run and stream requests.
type AgentRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
}

// AgentResponse is the body of synchronous run responses. Runtime
// failures are reported with success=false and HTTP 200; only an
// unknown agent or a malformed request produces an HTTP error status.
type AgentResponse struct {
	Success   bool   `json:"success"`
	Agent     string `json:"agent"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// AgentInfo summarizes a registered agent.
type AgentInfo struct {
	Name  string     `json:"name"`
	Model string     `json:"model"`
	Tools []ToolInfo `json:"tools,omitempty"`
}

// ToolInfo summarizes one sub-agent tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Server wires the registry, runner, and session store into an HTTP
// handler.
type Server struct {
	mu       sync.RWMutex
	registry *registry.Registry

	runner   *runtime.Runner
	sessions session.Store
	log      *logging.Logger
}

// New creates a server. sessions may be nil to disable persistence.
func New(reg *registry.Registry, runner *runtime.Runner, sessions session.Store) *Server {
	return &Server{
		registry: reg,
		runner:   runner,
		sessions: sessions,
		log:      logging.New().WithComponent("server"),
	}
}

// SetRegistry swaps in a freshly loaded registry. In-flight requests
// keep the registry they resolved their agent from.
func (s *Server) SetRegistry(reg *registry.Registry) {
	s.mu.Lock()
	s.registry = reg
	s.mu.Unlock()
	s.log.Info("registry reloaded", map[string]interface{}{"agents": len(reg.Names())})
}

func (s *Server) currentRegistry() *registry.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/agents", s.handleListAgents)
	r.Route("/agents/{name}", func(r chi.Router) {
		r.Get("/", s.handleGetAgent)
		r.Post("/run", s.handleRun)
		r.Post("/stream", s.handleStream)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleClearSession)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	reg := s.currentRegistry()
	var infos []AgentInfo
	for _, name := range reg.Names() {
		if agent, ok := reg.Get(name); ok {
			infos = append(infos, agentInfo(name, agent))
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": infos})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	agent, ok := s.currentRegistry().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", name))
		return
	}
	writeJSON(w, http.StatusOK, agentInfo(name, agent))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	agent, ok := s.currentRegistry().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", name))
		return
	}

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	sessionID, history := s.loadHistory(r, req)

	output, err := s.runner.Run(ctx, agent, req.Input, history)
	if err != nil {
		s.log.Error("agent run failed", map[string]interface{}{
			"agent": name,
			"error": err.Error(),
		})
		writeJSON(w, http.StatusOK, AgentResponse{
			Success:   false,
			Agent:     name,
			Error:     err.Error(),
			SessionID: sessionID,
		})
		return
	}

	s.recordTurn(r, sessionID, req.Input, output)
	writeJSON(w, http.StatusOK, AgentResponse{
		Success:   true,
		Agent:     name,
		Output:    output,
		SessionID: sessionID,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	agent, ok := s.currentRegistry().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", name))
		return
	}

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	sessionID, history := s.loadHistory(r, req)

	var final string
	for ev := range s.runner.RunStream(ctx, agent, req.Input, history) {
		if ev.Type == runtime.EventDone {
			final = ev.Content
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	if final != "" {
		s.recordTurn(r, sessionID, req.Input, final)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "session persistence disabled")
		return
	}
	id := chi.URLParam(r, "id")
	items, err := s.sessions.List(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"items":      items,
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "session persistence disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.sessions.Clear(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "cleared"})
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (AgentRequest, bool) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return req, false
	}
	return req, true
}

// loadHistory resolves the session and replays its turns as chat
// history. A missing session id mints a fresh one.
func (s *Server) loadHistory(r *http.Request, req AgentRequest) (string, []llm.Message) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if s.sessions == nil || req.SessionID == "" {
		return sessionID, nil
	}

	items, err := s.sessions.List(r.Context(), sessionID)
	if err != nil {
		s.log.Warn("failed to load session history", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
		return sessionID, nil
	}

	history := make([]llm.Message, 0, len(items))
	for _, item := range items {
		history = append(history, llm.Message{Role: item.Role, Content: item.Content})
	}
	return sessionID, history
}

func (s *Server) recordTurn(r *http.Request, sessionID, input, output string) {
	if s.sessions == nil {
		return
	}
	ctx := r.Context()
	if err := s.sessions.Append(ctx, sessionID, "user", input); err != nil {
		s.log.Warn("failed to record user turn", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
		return
	}
	if err := s.sessions.Append(ctx, sessionID, "assistant", output); err != nil {
		s.log.Warn("failed to record assistant turn", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
	}
}

func agentInfo(name string, agent *compose.Agent) AgentInfo {
	info := AgentInfo{Name: name, Model: agent.Model}
	for _, tool := range agent.Tools {
		info.Tools = append(info.Tools, ToolInfo{Name: tool.Name, Description: tool.Description})
	}
	return info
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}
