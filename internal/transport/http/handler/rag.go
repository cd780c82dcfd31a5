package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"course-rag/internal/app"
	"course-rag/internal/document"
	"course-rag/internal/model"
	"course-rag/internal/pkg/pdfextract"
	"course-rag/internal/transport/http/response"
	"course-rag/internal/vectorstore"
)

const maxUploadSize = 10 << 20 // 10 MB

type QueryService interface {
	Query(ctx context.Context, input app.QueryInput) (*app.QueryResult, error)
	ClearSession(sessionID string) error
	Analytics(ctx context.Context) (*app.CourseAnalytics, error)
}

type DocumentIngester interface {
	IngestDocument(ctx context.Context, source, content string) (*app.IngestResult, error)
}

// IngestPublisher queues documents; nil means ingest synchronously.
type IngestPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

type RAGHandler struct {
	rag       QueryService
	ingester  DocumentIngester
	publisher IngestPublisher
}

func NewRAGHandler(rag QueryService, ingester DocumentIngester, publisher IngestPublisher) *RAGHandler {
	return &RAGHandler{rag: rag, ingester: ingester, publisher: publisher}
}

type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

type SourceView struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Link         string `json:"link,omitempty"`
	Label        string `json:"label"`
}

type QueryResponse struct {
	Answer    string       `json:"answer"`
	Sources   []SourceView `json:"sources"`
	SessionID string       `json:"session_id"`
}

type AddCourseRequest struct {
	Name    string `json:"name"`
	Content string `json:"content" binding:"required"`
}

func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.rag.Query(c.Request.Context(), app.QueryInput{
		Query:     req.Query,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	sources := make([]SourceView, 0, len(result.Sources))
	for _, s := range result.Sources {
		sources = append(sources, SourceView{
			CourseTitle:  s.CourseTitle,
			LessonNumber: s.LessonNumber,
			Link:         s.Link,
			Label:        s.Label(),
		})
	}
	response.OK(c, QueryResponse{Answer: result.Answer, Sources: sources, SessionID: result.SessionID})
}

func (h *RAGHandler) Courses(c *gin.Context) {
	analytics, err := h.rag.Analytics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, analytics)
}

func (h *RAGHandler) ClearSession(c *gin.Context) {
	if err := h.rag.ClearSession(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"status": "cleared"})
}

// AddCourse accepts a JSON document or a multipart .txt/.pdf upload in field
// "file".
func (h *RAGHandler) AddCourse(c *gin.Context) {
	source, content, ok := readCourseDocument(c)
	if !ok {
		return
	}

	if h.publisher != nil {
		job := model.IngestJob{
			ID:          uuid.NewString(),
			Source:      source,
			Content:     content,
			RequestedAt: time.Now(),
		}
		if err := h.publisher.Publish(c.Request.Context(), job); err != nil {
			response.Error(c, http.StatusServiceUnavailable, response.CodeStoreUnavailable, "enqueue ingest job failed")
			return
		}
		response.Accepted(c, gin.H{"queued": true, "job_id": job.ID})
		return
	}

	result, err := h.ingester.IngestDocument(c.Request.Context(), source, content)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, result)
}

func readCourseDocument(c *gin.Context) (source, content string, ok bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
			return "", "", false
		}
		if file.Size > maxUploadSize {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
			return "", "", false
		}
		if !document.Supported(file.Filename) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only .txt and .pdf files are allowed")
			return "", "", false
		}
		f, err := file.Open()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
			return "", "", false
		}
		defer f.Close()

		var text string
		if strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
			text, err = pdfextract.ExtractText(f)
		} else {
			var raw []byte
			raw, err = io.ReadAll(f)
			text = string(raw)
		}
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text: "+err.Error())
			return "", "", false
		}
		return file.Filename, text, true
	}

	var req AddCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return "", "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "upload"
	}
	return name, req.Content, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case app.IsMalformed(err):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeMalformedDocument, err.Error())
	case errors.Is(err, app.ErrGenerationFailed):
		response.Error(c, http.StatusBadGateway, response.CodeGenerationFailed, "answer generation failed")
	case errors.Is(err, vectorstore.ErrStoreUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeStoreUnavailable, "course store unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "internal error")
	}
}
