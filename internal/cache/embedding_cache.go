package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"course-rag/internal/ai"
)

// EmbeddingCache wraps an embedder and keeps vectors in redis keyed by model
// and text hash. Redis failures fall through to the wrapped embedder.
type EmbeddingCache struct {
	client *redisv9.Client
	next   ai.Embedder
	model  string
	ttl    time.Duration
	logger *log.Logger
}

func NewEmbeddingCache(client *redisv9.Client, next ai.Embedder, model string, ttl time.Duration, logger *log.Logger) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &EmbeddingCache{client: client, next: next, model: model, ttl: ttl, logger: logger}
}

func (c *EmbeddingCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Printf("redis mget embeddings failed: %v", err)
		cached = nil
	}
	var missIdx []int
	for i := range texts {
		if i < len(cached) {
			if raw, ok := cached[i].(string); ok {
				if vec, err := decodeVector(raw); err == nil {
					out[i] = vec
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}
	vecs, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		out[i] = vecs[j]
		payload, err := json.Marshal(vecs[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], payload, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Printf("redis set embeddings failed: %v", err)
	}
	return out, nil
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("rag:embedding:%s:%s", c.model, hex.EncodeToString(sum[:]))
}

func decodeVector(raw string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, fmt.Errorf("unmarshal cached embedding failed: %w", err)
	}
	return vec, nil
}
