// Package annotation drives sequence annotation of a design document
// against a list of feature libraries.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqimprove/seqimprove-go/pkg/features"
	"github.com/seqimprove/seqimprove-go/pkg/metrics"
	"github.com/seqimprove/seqimprove-go/pkg/models"
	"github.com/seqimprove/seqimprove-go/pkg/sbol"
	"github.com/seqimprove/seqimprove-go/pkg/tools"
	"github.com/seqimprove/seqimprove-go/pkg/tracing"
)

// MessageCouldNotParse is reported when the request document is invalid
const MessageCouldNotParse = "Could not parse document"

// Kind classifies orchestration failures
type Kind int

const (
	// BadRequest means the caller sent an unusable document
	BadRequest Kind = iota + 1
	// Internal means a library could not be resolved or applied
	Internal
)

// Error is the failure of a whole Annotate call
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resolver looks up a loaded library by identifier
type Resolver interface {
	Resolve(id string) (*features.Library, error)
}

// RunRecorder persists the history of annotate calls
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.AnnotationRun) error
	UpdateRun(ctx context.Context, run *models.AnnotationRun) error
}

// Options tune the orchestrator
type Options struct {
	// PartialResults turns per-library failures into entries of
	// Result.Failures instead of failing the call
	PartialResults bool
	Features       features.Options
	CleanNamespace string
}

// Deps are the collaborators of an Orchestrator. Resolver and Annotator
// are required.
type Deps struct {
	Resolver  Resolver
	Annotator features.Annotator
	Cleaner   tools.Cleaner
	Codec     sbol.Codec
	Recorder  RunRecorder
	Metrics   *metrics.Metrics
	Tracer    trace.Tracer
	Logger    *slog.Logger
}

// Result is the outcome of a successful Annotate call
type Result struct {
	RunID       string
	Cleaned     bool
	Annotations []models.AnnotatedDocument
	Failures    []models.LibraryFailure
}

// Orchestrator annotates documents against libraries
type Orchestrator struct {
	resolver  Resolver
	annotator features.Annotator
	cleaner   tools.Cleaner
	codec     sbol.Codec
	recorder  RunRecorder
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	opts      Options
}

// New creates an orchestrator
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Codec == nil {
		deps.Codec = sbol.XMLCodec{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Features == (features.Options{}) {
		opts.Features = features.DefaultOptions()
	}
	return &Orchestrator{
		resolver:  deps.Resolver,
		annotator: deps.Annotator,
		cleaner:   deps.Cleaner,
		codec:     deps.Codec,
		recorder:  deps.Recorder,
		metrics:   deps.Metrics,
		tracer:    tracing.Tracer(deps.Tracer),
		logger:    deps.Logger,
		opts:      opts,
	}
}

// Annotate runs one annotation pass per library, in order, each on a
// fresh parse of the document. With cleanFirst the document is passed
// through the cleanup tool first; a failing tool leaves the text as it
// was. An unparseable document fails the call with a BadRequest error
// and no results. Library failures fail the call with an Internal error
// unless partial results are enabled.
func (o *Orchestrator) Annotate(ctx context.Context, raw string, libraryIDs []string, cleanFirst bool) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "annotation.Annotate",
		trace.WithAttributes(
			attribute.Int("libraries", len(libraryIDs)),
			attribute.Bool("clean", cleanFirst),
		))

	start := time.Now()
	run := &models.AnnotationRun{
		ID:        uuid.New().String(),
		Status:    models.RunStatusRunning,
		Libraries: append([]string{}, libraryIDs...),
		StartedAt: start.UTC(),
	}
	o.recordStart(ctx, run)

	result, err := o.annotate(ctx, run, raw, libraryIDs, cleanFirst)

	status := models.RunStatusCompleted
	var errMsg string
	switch {
	case err != nil:
		errMsg = err.Error()
		status = models.RunStatusFailed
		var aerr *Error
		if errors.As(err, &aerr) && aerr.Kind == BadRequest {
			status = models.RunStatusRejected
		}
	case len(result.Failures) > 0:
		status = models.RunStatusPartial
	}
	run.Finish(status, errMsg)
	o.recordFinish(ctx, run)
	o.metrics.RecordAnnotation(string(status), time.Since(start))
	tracing.End(span, err)

	if err != nil {
		o.logger.Warn("annotation failed", "run_id", run.ID, "status", status, "error", err)
		return nil, err
	}
	o.logger.Info("annotation finished", "run_id", run.ID, "status", status,
		"succeeded", run.Succeeded, "failed", run.Failed, "duration_ms", run.DurationMs)
	return result, nil
}

func (o *Orchestrator) annotate(ctx context.Context, run *models.AnnotationRun, raw string, libraryIDs []string, cleanFirst bool) (*Result, error) {
	text := raw
	if cleanFirst {
		text = o.clean(ctx, raw)
		run.Cleaned = text != raw
	}

	result := &Result{
		RunID:       run.ID,
		Cleaned:     run.Cleaned,
		Annotations: make([]models.AnnotatedDocument, 0, len(libraryIDs)),
	}

	// The design is parsed once per library, so an empty library list never
	// parses it and succeeds with no annotations even for malformed input.
	for _, id := range libraryIDs {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: Internal, Message: "annotation cancelled", Err: err}
		}

		target, err := o.codec.Parse(text)
		if err != nil {
			return nil, &Error{Kind: BadRequest, Message: MessageCouldNotParse, Err: err}
		}

		doc, err := o.pass(ctx, id, target)
		if err != nil {
			o.metrics.RecordAnnotationPass("failed")
			run.Failed++
			if !o.opts.PartialResults {
				return nil, &Error{Kind: Internal, Message: fmt.Sprintf("annotation with library %s failed", id), Err: err}
			}
			o.logger.Warn("skipping library", "library", id, "error", err)
			result.Failures = append(result.Failures, models.LibraryFailure{Library: id, Error: err.Error()})
			continue
		}

		o.metrics.RecordAnnotationPass("ok")
		run.Succeeded++
		result.Annotations = append(result.Annotations, models.AnnotatedDocument{Document: doc, Library: id})
	}
	return result, nil
}

// pass annotates target with one library and returns the serialized
// document
func (o *Orchestrator) pass(ctx context.Context, id string, target *sbol.Document) (doc string, err error) {
	ctx, span := o.tracer.Start(ctx, "annotation.pass", trace.WithAttributes(attribute.String("library", id)))
	defer func() { tracing.End(span, err) }()

	lib, err := o.resolver.Resolve(id)
	if err != nil {
		return "", err
	}

	opts := o.opts.Features
	opts.InPlace = true
	annotated, err := o.annotator.Annotate(ctx, lib, target, opts)
	if err != nil {
		return "", fmt.Errorf("annotator: %w", err)
	}
	span.SetAttributes(attribute.Int("annotated_components", len(annotated)))

	return o.codec.Serialize(target)
}

// clean runs the cleanup tool, falling back to the original text
func (o *Orchestrator) clean(ctx context.Context, raw string) string {
	if o.cleaner == nil {
		return raw
	}
	cleaned, err := o.cleaner.Clean(ctx, raw, o.opts.CleanNamespace)
	if err != nil {
		o.logger.Warn("cleanup failed, annotating original document", "error", err)
		return raw
	}
	return cleaned
}

func (o *Orchestrator) recordStart(ctx context.Context, run *models.AnnotationRun) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.CreateRun(ctx, run); err != nil {
		o.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, run *models.AnnotationRun) {
	if o.recorder == nil {
		return
	}
	// the request context may already be cancelled
	if err := o.recorder.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Warn("failed to update run", "run_id", run.ID, "error", err)
	}
}
