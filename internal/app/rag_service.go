package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"course-rag/internal/ai"
	"course-rag/internal/metrics"
	"course-rag/internal/model"
	"course-rag/internal/tool"
	"course-rag/internal/vectorstore"
)

type SessionStore interface {
	CreateSession() string
	GetHistory(id string) string
	AddExchange(id, query, answer string)
	ClearSession(id string) bool
}

type ToolExecutor interface {
	Definitions() []ai.ToolDefinition
	Execute(ctx context.Context, name, arguments string) (tool.Result, error)
}

type CourseStats interface {
	CourseCount(ctx context.Context) (int, error)
	CourseTitles(ctx context.Context) ([]string, error)
}

// RAGService answers questions with at most one tool round trip.
type RAGService struct {
	model    ai.ChatModel
	tools    ToolExecutor
	sessions SessionStore
	catalog  CourseStats
	metrics  *metrics.Metrics
	logger   *log.Logger
}

func NewRAGService(
	chatModel ai.ChatModel,
	tools ToolExecutor,
	sessions SessionStore,
	catalog CourseStats,
	m *metrics.Metrics,
	logger *log.Logger,
) *RAGService {
	if logger == nil {
		logger = log.New(log.Writer(), "[RAG] ", log.LstdFlags)
	}
	return &RAGService{
		model:    chatModel,
		tools:    tools,
		sessions: sessions,
		catalog:  catalog,
		metrics:  m,
		logger:   logger,
	}
}

type QueryInput struct {
	Query     string
	SessionID string
}

type QueryResult struct {
	Answer    string         `json:"answer"`
	Sources   []model.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

// Query runs the two-phase model exchange. The exchange is recorded in the
// session only when an answer was produced.
func (s *RAGService) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		s.countQuery(metrics.OutcomeInvalid)
		return nil, ErrInvalidInput
	}
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = s.sessions.CreateSession()
	}

	answer, sources, err := s.answer(ctx, query, s.sessions.GetHistory(sessionID))
	if err != nil {
		switch {
		case errors.Is(err, ErrGenerationFailed):
			s.countQuery(metrics.OutcomeGenerationError)
		case errors.Is(err, vectorstore.ErrStoreUnavailable):
			s.countQuery(metrics.OutcomeStoreError)
		default:
			s.countQuery(metrics.OutcomeError)
		}
		s.logger.Printf("query failed session=%s: %v", sessionID, err)
		return nil, err
	}

	s.sessions.AddExchange(sessionID, query, answer)
	s.countQuery(metrics.OutcomeAnswered)
	if sources == nil {
		sources = []model.Source{}
	}
	return &QueryResult{Answer: answer, Sources: sources, SessionID: sessionID}, nil
}

func (s *RAGService) answer(ctx context.Context, query, history string) (string, []model.Source, error) {
	req := ai.GenerateRequest{
		System:   buildSystemPrompt(history),
		Messages: []ai.Message{{Role: ai.RoleUser, Content: wrapQuery(query)}},
		Tools:    s.tools.Definitions(),
	}

	reply, err := s.generate(ctx, "initial", req)
	if err != nil {
		return "", nil, err
	}

	switch r := reply.(type) {
	case ai.DirectAnswer:
		return finalText(r.Text), nil, nil

	case ai.ToolInvocation:
		if s.metrics != nil {
			s.metrics.ToolInvocations.WithLabelValues(r.Name).Inc()
		}
		result, err := s.tools.Execute(ctx, r.Name, r.Arguments)
		if err != nil {
			if errors.Is(err, vectorstore.ErrStoreUnavailable) {
				return "", nil, err
			}
			s.logger.Printf("tool %s failed: %v", r.Name, err)
			result = tool.Result{Text: fmt.Sprintf("Tool execution error: %v", err)}
		}

		invocation := r
		req.Messages = append(req.Messages,
			ai.Message{Role: ai.RoleAssistant, Content: r.Text, ToolCall: &invocation},
			ai.Message{Role: ai.RoleTool, Content: result.Text, ToolCallID: r.ID},
		)
		req.Tools = nil

		final, err := s.generate(ctx, "final", req)
		if err != nil {
			return "", nil, err
		}
		return finalText(replyText(final)), result.Sources, nil

	default:
		return "", nil, fmt.Errorf("%w: unexpected reply %T", ErrGenerationFailed, reply)
	}
}

func (s *RAGService) generate(ctx context.Context, phase string, req ai.GenerateRequest) (ai.Reply, error) {
	start := time.Now()
	reply, err := s.model.Generate(ctx, req)
	if s.metrics != nil {
		s.metrics.ObserveModelCall(phase, start)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s call: %w", ErrGenerationFailed, phase, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: %s call returned no reply", ErrGenerationFailed, phase)
	}
	return reply, nil
}

// replyText treats any reply to the final call as terminal.
func replyText(r ai.Reply) string {
	switch v := r.(type) {
	case ai.DirectAnswer:
		return v.Text
	case ai.ToolInvocation:
		return v.Text
	}
	return ""
}

func finalText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return emptyAnswer
	}
	return text
}

func (s *RAGService) countQuery(outcome string) {
	if s.metrics != nil {
		s.metrics.Queries.WithLabelValues(outcome).Inc()
	}
}

func (s *RAGService) CreateSession() string {
	return s.sessions.CreateSession()
}

func (s *RAGService) ClearSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}
	s.sessions.ClearSession(sessionID)
	return nil
}

type CourseAnalytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (s *RAGService) Analytics(ctx context.Context) (*CourseAnalytics, error) {
	n, err := s.catalog.CourseCount(ctx)
	if err != nil {
		return nil, err
	}
	titles, err := s.catalog.CourseTitles(ctx)
	if err != nil {
		return nil, err
	}
	if titles == nil {
		titles = []string{}
	}
	return &CourseAnalytics{TotalCourses: n, CourseTitles: titles}, nil
}
