package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"course-rag/internal/ai"
	"course-rag/internal/app"
	"course-rag/internal/cache"
	"course-rag/internal/config"
	"course-rag/internal/document"
	"course-rag/internal/metrics"
	"course-rag/internal/platform/database"
	rabbitmqClient "course-rag/internal/platform/rabbitmq"
	redisClient "course-rag/internal/platform/redis"
	"course-rag/internal/session"
	"course-rag/internal/tool"
	"course-rag/internal/vectorstore"
	"course-rag/internal/worker"
)

type Options struct {
	// StartWorker consumes the ingest queue in this process.
	StartWorker bool
}

type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Store    *vectorstore.Store
	Sessions *session.Manager
	Metrics  *metrics.Metrics

	RAG             *app.RAGService
	Ingest          *app.IngestService
	IngestPublisher *rabbitmqClient.IngestPublisher
	IngestWorker    *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New(), StartedAt: time.Now()}
	if err := a.init(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	cfg := a.Config

	dsn := ""
	if cfg.Store.Driver == "mysql" {
		dsn = cfg.MySQLDSN()
	}
	db, err := database.New(ctx, database.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DSN:    dsn,
	})
	if err != nil {
		return err
	}
	a.DB = db

	var embedder ai.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		embedder = ai.NewOpenAIEmbedder(ai.EmbeddingConfig{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
		})
	default:
		embedder = ai.NewHashEmbedder(cfg.Embedding.Dimension)
	}

	if cfg.Redis.Addr != "" {
		redisCli, err := redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.Redis = redisCli
		embedder = cache.NewEmbeddingCache(
			redisCli,
			embedder,
			cfg.Embedding.Provider+":"+cfg.Embedding.Model,
			time.Duration(cfg.Redis.EmbeddingTTLSeconds)*time.Second,
			nil,
		)
	}

	store, err := vectorstore.Open(ctx, db, embedder, vectorstore.Options{
		MaxResults: cfg.RAG.MaxResults,
		BatchSize:  cfg.Embedding.BatchSize,
	})
	if err != nil {
		return err
	}
	a.Store = store

	tools, err := tool.NewManager(tool.NewSearchTool(store), tool.NewOutlineTool(store))
	if err != nil {
		return fmt.Errorf("register tools failed: %w", err)
	}

	chat := ai.NewOpenAIChat(ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: float32(cfg.LLM.Temperature),
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	a.Sessions = session.NewManager(cfg.RAG.MaxHistory)
	a.RAG = app.NewRAGService(chat, tools, a.Sessions, store, a.Metrics, nil)

	processor := document.NewProcessor(document.Options{
		ChunkSize:              cfg.RAG.ChunkSize,
		ChunkOverlap:           cfg.RAG.ChunkOverlap,
		LastLessonCoursePrefix: cfg.RAG.LastLessonCoursePrefix,
	})
	a.Ingest = app.NewIngestService(processor, store, a.Metrics, nil)

	if cfg.RabbitMQ.URL != "" {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
		a.IngestPublisher = rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)

		if opts.StartWorker {
			ingestWorker := worker.NewIngestWorker(mqConn, a.Ingest, cfg.RabbitMQ.IngestQueue, nil)
			if err := ingestWorker.Start(ctx); err != nil {
				return fmt.Errorf("start ingest worker failed: %w", err)
			}
			a.IngestWorker = ingestWorker
		}
	}
	return nil
}

// LogStartup prints what the process is serving.
func (a *App) LogStartup(ctx context.Context) {
	n, err := a.Store.CourseCount(ctx)
	if err != nil {
		log.Printf("course count unavailable: %v", err)
		return
	}
	log.Printf("%s ready: %d courses, embedding=%s, redis=%t, rabbitmq=%t",
		a.Config.App.Name, n, a.Config.Embedding.Provider, a.Redis != nil, a.MQConn != nil)
}

func (a *App) Close() error {
	var errs []error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
