package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// Client implements llm.Extractor and llm.Generator against Google Gemini.
type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)

	return &Client{cfg: cfg, client: client, model: model, logger: logger}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Extract sends the images plus the instruction in a single generation call
// and returns the raw model text. Transient upstream failures (transport,
// 429, 5xx, per-attempt timeout) are retried with doubling backoff up to
// MaxAttempts; empty or malformed content is never retried — that is a
// parsing problem, not a transport one.
func (c *Client) Extract(ctx context.Context, images []entity.ImagePart, instruction string) (string, error) {
	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.ImageData(img.Format, img.Data))
	}
	parts = append(parts, genai.Text(instruction))
	return c.generate(ctx, "llm.extract", len(images), parts)
}

// Generate runs a text-only generation call with the same retry policy.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "llm.generate", 0, []genai.Part{genai.Text(prompt)})
}

func (c *Client) generate(ctx context.Context, event string, imageCount int, parts []genai.Part) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info(event+".start",
		"req_id", rid,
		"user", common.UserIDFromContext(ctx),
		"model", c.cfg.Model,
		"images", imageCount,
	)

	var lastErr error
	backoff := c.cfg.Backoff
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		resp, err := c.model.GenerateContent(attemptCtx, parts...)
		cancel()

		if err == nil {
			text := responseText(resp)
			if strings.TrimSpace(text) == "" {
				c.logger.Error(event+".empty_response",
					"req_id", rid, "attempt", attempt,
					"elapsed_ms", time.Since(start).Milliseconds())
				return "", fmt.Errorf("%w: empty response", common.ErrUpstream)
			}
			c.logger.Info(event+".ok",
				"req_id", rid,
				"attempt", attempt,
				"text_len", len(text),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil || !retryable(err) || attempt == c.cfg.MaxAttempts {
			break
		}
		c.logger.Warn(event+".retry",
			"req_id", rid, "attempt", attempt, "backoff", backoff.String(), "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.cfg.MaxAttempts
		}
		backoff *= 2
	}

	c.logger.Error(event+".failed",
		"req_id", rid, "error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds())
	return "", fmt.Errorf("%w: %v", common.ErrUpstream, lastErr)
}

// responseText flattens all text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// retryable classifies upstream failures: rate limits, 5xx and transport
// errors (including per-attempt timeouts) may be retried; auth and other
// 4xx failures may not.
func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
