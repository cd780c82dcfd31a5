package app

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"course-rag/internal/ai"
	"course-rag/internal/document"
	"course-rag/internal/metrics"
	"course-rag/internal/session"
	"course-rag/internal/tool"
	"course-rag/internal/vectorstore"
)

var quietLogger = log.New(io.Discard, "", 0)

type scriptedModel struct {
	mu       sync.Mutex
	steps    []func(req ai.GenerateRequest) (ai.Reply, error)
	requests []ai.GenerateRequest
}

func (m *scriptedModel) Generate(_ context.Context, req ai.GenerateRequest) (ai.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step(req)
}

func (m *scriptedModel) then(steps ...func(req ai.GenerateRequest) (ai.Reply, error)) *scriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return m
}

func answer(text string) func(ai.GenerateRequest) (ai.Reply, error) {
	return func(ai.GenerateRequest) (ai.Reply, error) { return ai.DirectAnswer{Text: text}, nil }
}

func invoke(name, args string) func(ai.GenerateRequest) (ai.Reply, error) {
	return func(ai.GenerateRequest) (ai.Reply, error) {
		return ai.ToolInvocation{ID: "call_1", Name: name, Arguments: args}, nil
	}
}

func fail(err error) func(ai.GenerateRequest) (ai.Reply, error) {
	return func(ai.GenerateRequest) (ai.Reply, error) { return nil, err }
}

type testEnv struct {
	store    *vectorstore.Store
	sessions *session.Manager
	model    *scriptedModel
	rag      *RAGService
	ingest   *IngestService
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "rag.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := vectorstore.Open(context.Background(), db, ai.NewHashEmbedder(256), vectorstore.Options{
		MaxResults: 5,
		Logger:     quietLogger,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tools, err := tool.NewManager(tool.NewSearchTool(store), tool.NewOutlineTool(store))
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	sessions := session.NewManager(2)
	model := &scriptedModel{}
	processor := document.NewProcessor(document.Options{ChunkSize: 800, ChunkOverlap: 100, LastLessonCoursePrefix: true})
	return &testEnv{
		store:    store,
		sessions: sessions,
		model:    model,
		rag:      NewRAGService(model, tools, sessions, store, m, quietLogger),
		ingest:   NewIngestService(processor, store, m, quietLogger),
		metrics:  m,
	}
}
