package agent_service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/victorstack-ai/codex-agent-harness/core"
)

var ErrSessionNotFound = errors.New("session not found")

// AgentFactory builds the agent owned by a new session.
type AgentFactory func() *core.Agent

type RunRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	MaxSteps *int   `json:"max_steps" binding:"omitempty,gte=0,lte=100"`
}

type RunResponse struct {
	SessionID     string `json:"session_id"`
	Output        string `json:"output"`
	HistoryLength int    `json:"history_length"`
}

type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	History   []core.Message `json:"history"`
	Metadata  map[string]any `json:"metadata"`
}

type session struct {
	mu        sync.Mutex
	agent     *core.Agent
	createdAt time.Time
}

// Service keeps one agent, and so one transcript, per session.
type Service struct {
	registry *core.Registry
	newAgent AgentFactory
	maxSteps int
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewService(registry *core.Registry, newAgent AgentFactory, maxSteps int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		newAgent: newAgent,
		maxSteps: maxSteps,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

func (s *Service) CreateSession() SessionResponse {
	id := uuid.NewString()
	sess := &session{agent: s.newAgent(), createdAt: time.Now().UTC()}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Info("session created", "session", id)
	return SessionResponse{ID: id, CreatedAt: sess.createdAt}
}

func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Run continues the session's conversation with prompt. A nil maxSteps uses the service default.
func (s *Service) Run(ctx context.Context, id string, prompt string, maxSteps *int) (RunResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return RunResponse{}, err
	}
	steps := s.maxSteps
	if maxSteps != nil {
		steps = *maxSteps
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out, err := sess.agent.Run(ctx, prompt, steps)
	if err != nil {
		return RunResponse{}, err
	}
	return RunResponse{
		SessionID:     id,
		Output:        out,
		HistoryLength: sess.agent.State().Len(),
	}, nil
}

func (s *Service) History(id string) (HistoryResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return HistoryResponse{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	state := sess.agent.State()
	metadata := make(map[string]any, len(state.Metadata))
	for k, v := range state.Metadata {
		metadata[k] = v
	}
	return HistoryResponse{
		SessionID: id,
		History:   state.Messages(),
		Metadata:  metadata,
	}, nil
}

func (s *Service) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	s.logger.Info("session deleted", "session", id)
	return nil
}

// Router exposes the service over HTTP.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	r.Use(cors.New(config))

	r.GET("/tools", s.handleListTools)
	r.POST("/sessions", s.handleCreateSession)
	r.POST("/sessions/:id/run", s.handleRun)
	r.GET("/sessions/:id/history", s.handleHistory)
	r.DELETE("/sessions/:id", s.handleDeleteSession)
	return r
}

func (s *Service) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.registry.List()})
}

func (s *Service) handleCreateSession(c *gin.Context) {
	c.JSON(http.StatusCreated, s.CreateSession())
}

func (s *Service) handleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.Run(c.Request.Context(), c.Param("id"), req.Prompt, req.MaxSteps)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleHistory(c *gin.Context) {
	resp, err := s.History(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleDeleteSession(c *gin.Context) {
	if err := s.DeleteSession(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Service) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrInvalidMaxSteps):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
