package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/seqimprove/seqimprove-go/pkg/metrics"
	"github.com/seqimprove/seqimprove-go/pkg/tracing"
)

// ErrServiceFailed is returned when the recognizer cannot be reached or
// answers with an error status
var ErrServiceFailed = errors.New("entity recognition service failed")

// maxReplySize bounds recognizer replies
const maxReplySize = 32 << 20

// Client calls the recognizer's plain-text endpoint. Outbound requests
// are rate limited to stay within the public service's fair use.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// ClientConfig configures a Client
type ClientConfig struct {
	URL           string
	Timeout       time.Duration
	RatePerSecond float64 // <= 0 disables limiting
	Metrics       *metrics.Metrics
	Tracer        trace.Tracer
	Logger        *slog.Logger
}

// NewClient creates a recognizer client
func NewClient(cfg ClientConfig) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		metrics: cfg.Metrics,
		tracer:  tracing.Tracer(cfg.Tracer),
		logger:  cfg.Logger,
	}
}

// Recognize posts text and returns the raw reply body
func (c *Client) Recognize(ctx context.Context, text string) (body []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "ner.Recognize", trace.WithAttributes(attribute.Int("text_length", len(text))))
	defer func() {
		c.metrics.RecordNERRequest(err)
		tracing.End(span, err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceFailed, err)
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceFailed, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read reply: %v", ErrServiceFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrServiceFailed, resp.StatusCode)
	}
	return body, nil
}

// AnnotateText recognizes entities in text and groups them
func (c *Client) AnnotateText(ctx context.Context, text string) (*Aggregation, error) {
	body, err := c.Recognize(ctx, text)
	if err != nil {
		return nil, err
	}
	agg, err := Aggregate(body)
	if err != nil {
		return nil, err
	}
	if n := len(agg.Ungrounded); n > 0 {
		c.metrics.RecordUngrounded(n)
		c.logger.Debug("dropped ungrounded mentions", "count", n)
	}
	return agg, nil
}
