package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lanewise/kbengine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Option func(*Client)

// WithRateLimit caps outbound requests per second. Zero disables the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.call(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// call runs one API request through the rate limiter and, when configured,
// the retry/breaker executor. Failures that look transient come back wrapped
// as domain temporary errors so callers can degrade instead of aborting.
func (c *Client) call(ctx context.Context, path string, payload, out any, operation string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if c.executor == nil {
		return wrapTemporaryIfNeeded(operation, c.postJSON(ctx, path, payload, out, operation))
	}

	err := c.executor.Execute(ctx, "ollama."+operation, func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}, classifyOllamaError)
	return wrapTemporaryIfNeeded(operation, err)
}
