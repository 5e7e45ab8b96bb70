package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/infrastructure/resilience"
)

// Client talks to the Qdrant HTTP API. One Qdrant collection per knowledge
// base; the collection name travels with every call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

type Option func(*Client)

// WithExecutor routes every Qdrant round trip through the shared
// retry/breaker executor.
func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ensured:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run executes one round trip, retried under the executor when one is
// configured. fn must build a fresh request per attempt.
func (c *Client) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	err := c.executor.Execute(ctx, operation, fn, classifyQdrantError)
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func (c *Client) IndexChunks(ctx context.Context, collection string, chunks []domain.DocumentChunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"chunk_id":     chunk.ID,
				"text":         chunk.Text,
				"source_file":  chunk.SourceFile,
				"content_type": string(chunk.ContentType),
				"chunk_index":  chunk.ChunkIndex,
				"modified_at":  chunk.ModifiedAt.UTC().Format(time.RFC3339),
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collection)
	return c.run(ctx, "qdrant.upsert", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create upsert request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "qdrant upsert", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError("qdrant upsert", resp)
		}
		return nil
	})
}

func (c *Client) Nearest(ctx context.Context, collection string, queryVector []float32, k int) ([]domain.DenseHit, error) {
	body, err := json.Marshal(map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	err = c.run(ctx, "qdrant.search", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "qdrant search", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError("qdrant search", resp)
		}
		return json.NewDecoder(resp.Body).Decode(&searchResp)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.DenseHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.DenseHit{
			Chunk:      chunkFromPayload(r.Payload),
			Similarity: r.Score,
		})
	}
	return out, nil
}

func (c *Client) DropCollection(ctx context.Context, collection string) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	err := c.run(ctx, "qdrant.drop", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
		if err != nil {
			return fmt.Errorf("create drop request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "qdrant drop collection", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
			return statusError("qdrant drop collection", resp)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.ensureMu.Lock()
	delete(c.ensured, collection)
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	err = c.run(ctx, "qdrant.ensure", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create collection request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "qdrant ensure collection", err)
		}
		defer resp.Body.Close()

		// 200/201 for create, 409 if already exists (depends on version/config).
		if resp.StatusCode == http.StatusConflict || resp.StatusCode < 300 {
			return nil
		}

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			statusErr = fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		if retryableStatus(resp.StatusCode) {
			return domain.WrapError(domain.ErrTemporary, "qdrant ensure collection", statusErr)
		}
		return statusErr
	})
	if err != nil {
		return err
	}
	c.markEnsured(collection, vectorSize)
	return nil
}

func (c *Client) markEnsured(collection string, vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured[collection] = vectorSize
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func statusError(operation string, resp *http.Response) error {
	err := fmt.Errorf("%s status: %s", operation, resp.Status)
	if retryableStatus(resp.StatusCode) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func chunkFromPayload(payload map[string]any) domain.DocumentChunk {
	chunk := domain.DocumentChunk{
		ID:          getStringPayload(payload, "chunk_id"),
		Text:        getStringPayload(payload, "text"),
		SourceFile:  getStringPayload(payload, "source_file"),
		ContentType: domain.ContentType(getStringPayload(payload, "content_type")),
	}
	if v, ok := payload["chunk_index"].(float64); ok {
		chunk.ChunkIndex = int(v)
	}
	if ts, err := time.Parse(time.RFC3339, getStringPayload(payload, "modified_at")); err == nil {
		chunk.ModifiedAt = ts
	}
	return chunk
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
