package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"policy-rag/internal/config"
	"policy-rag/internal/metrics"
	"policy-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config describes an OpenAI-compatible chat completion endpoint.
type Config struct {
	BaseURL       string
	Key           string
	Model         string
	Referer       string // sent as HTTP-Referer
	Title         string // sent as X-Title
	Timeout       time.Duration
	MaxConcurrent int
	RatePerSec    float64 // 0 disables the limiter
	HTTPClient    *http.Client
}

// Client sends one chat completion per call. It never retries.
type Client struct {
	llm     *openai.LLM
	model   string
	timeout time.Duration
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	key := config.NormalizeKey(cfg.Key)
	if key == "" {
		return nil, errors.New("llm api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	llm, err := openai.New(
		openai.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")),
		openai.WithToken(key),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&headerDoer{client: httpClient, referer: cfg.Referer, title: cfg.Title}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	c := &Client{
		llm:     llm,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return c, nil
}

// Complete sends prompt as a single user message and returns the first
// choice's content, which may be empty.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.complete(callCtx, prompt)
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "success").Inc()
		return text, nil
	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "timeout").Inc()
		log.Warn().Err(err).Dur("timeout", c.timeout).Str("model", c.model).Msg("LLM request timed out")
		return "", fmt.Errorf("%w after %s", models.ErrLLMTimeout, c.timeout)
	default:
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		log.Error().Err(err).Str("model", c.model).Msg("LLM request failed")
		return "", fmt.Errorf("%w: %v", models.ErrLLMRequest, err)
	}
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return resp.Choices[0].Content, nil
}

// headerDoer adds the OpenRouter attribution headers to every request.
type headerDoer struct {
	client  *http.Client
	referer string
	title   string
}

func (d *headerDoer) Do(req *http.Request) (*http.Response, error) {
	if d.referer != "" {
		req.Header.Set("HTTP-Referer", d.referer)
	}
	if d.title != "" {
		req.Header.Set("X-Title", d.title)
	}
	return d.client.Do(req)
}
