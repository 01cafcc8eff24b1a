// Package similar looks up parts a registry considers similar to a
// design. Lookups are best effort: every failure degrades to an empty
// list, and the outcome is reported to an Observer instead.
package similar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqimprove/seqimprove-go/pkg/metrics"
	"github.com/seqimprove/seqimprove-go/pkg/models"
	"github.com/seqimprove/seqimprove-go/pkg/tracing"
)

// Outcome classifies a lookup
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
	OutcomeCached Outcome = "cached"
)

// Observer is told how each lookup went. err is set only for
// OutcomeFailed.
type Observer func(topLevelURI string, outcome Outcome, err error)

// Config configures a Resolver
type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration // 0 disables caching
	Observer Observer
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Logger   *slog.Logger
}

// Resolver fetches topLevelURI + "/similar" from the registry
type Resolver struct {
	httpClient *http.Client
	cache      *gocache.Cache
	observer   Observer
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewResolver creates a resolver
func NewResolver(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Resolver{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		observer: cfg.Observer,
		metrics:  cfg.Metrics,
		tracer:   tracing.Tracer(cfg.Tracer),
		logger:   cfg.Logger,
	}
	if cfg.CacheTTL > 0 {
		r.cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return r
}

type similarEntry struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// FindSimilar returns the parts similar to topLevelURI, or an empty list
// when the lookup fails for any reason
func (r *Resolver) FindSimilar(ctx context.Context, topLevelURI string) []models.SimilarPart {
	if r.cache != nil {
		if v, ok := r.cache.Get(topLevelURI); ok {
			r.report(topLevelURI, OutcomeCached, nil)
			return v.([]models.SimilarPart)
		}
	}

	ctx, span := r.tracer.Start(ctx, "similar.FindSimilar", trace.WithAttributes(attribute.String("top_level", topLevelURI)))
	parts, err := r.fetch(ctx, topLevelURI)
	tracing.End(span, err)

	switch {
	case err != nil:
		r.report(topLevelURI, OutcomeFailed, err)
		return []models.SimilarPart{}
	case len(parts) == 0:
		r.report(topLevelURI, OutcomeEmpty, nil)
	default:
		r.report(topLevelURI, OutcomeOK, nil)
	}

	if r.cache != nil {
		r.cache.SetDefault(topLevelURI, parts)
	}
	return parts
}

func (r *Resolver) fetch(ctx context.Context, topLevelURI string) ([]models.SimilarPart, error) {
	if topLevelURI == "" {
		return nil, fmt.Errorf("empty top level uri")
	}
	url := strings.TrimSuffix(topLevelURI, "/") + "/similar"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var entries []similarEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode similar parts: %w", err)
	}

	parts := make([]models.SimilarPart, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, models.SimilarPart{Name: e.Name, URI: e.URI})
	}
	return parts, nil
}

func (r *Resolver) report(topLevelURI string, outcome Outcome, err error) {
	r.metrics.RecordSimilarLookup(string(outcome))
	if err != nil {
		r.logger.Warn("similar parts lookup failed", "top_level", topLevelURI, "error", err)
	} else {
		r.logger.Debug("similar parts lookup", "top_level", topLevelURI, "outcome", outcome)
	}
	if r.observer != nil {
		r.observer(topLevelURI, outcome, err)
	}
}
