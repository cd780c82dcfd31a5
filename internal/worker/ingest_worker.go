package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"course-rag/internal/app"
	"course-rag/internal/model"
	"course-rag/internal/vectorstore"
)

type DocumentIngester interface {
	IngestDocument(ctx context.Context, source, content string) (*app.IngestResult, error)
}

// IngestWorker consumes queued course documents one at a time, so writes to
// the vector store are serialised across all publishers.
type IngestWorker struct {
	conn      *amqp.Connection
	ingester  DocumentIngester
	queueName string
	logger    *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, ingester DocumentIngester, queueName string, logger *log.Logger) *IngestWorker {
	if logger == nil {
		logger = log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	}
	return &IngestWorker{
		conn:      conn,
		ingester:  ingester,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				switch err := w.handle(workerCtx, d.Body); {
				case err == nil:
					_ = d.Ack(false)
				case errors.Is(err, vectorstore.ErrStoreUnavailable) && !d.Redelivered:
					w.logger.Printf("ingest job requeued: %v", err)
					_ = d.Nack(false, true)
				default:
					w.logger.Printf("ingest job dropped: %v", err)
					_ = d.Nack(false, false)
				}
			}
		}
	}()

	return nil
}

// handle decodes and ingests one job body.
func (w *IngestWorker) handle(ctx context.Context, body []byte) error {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode ingest job failed: %w", err)
	}
	source := job.Source
	if source == "" {
		source = job.ID
	}
	res, err := w.ingester.IngestDocument(ctx, source, job.Content)
	if err != nil {
		return err
	}
	if res.Skipped {
		w.logger.Printf("job %s: course %q already present", job.ID, res.CourseTitle)
	} else {
		w.logger.Printf("job %s: course %q added with %d chunks", job.ID, res.CourseTitle, res.Chunks)
	}
	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
