// Package runstore persists the history of annotation runs.
package runstore

import (
	"context"
	"errors"
	"time"

	"github.com/seqimprove/seqimprove-go/pkg/models"
)

// ErrNotFound is returned for unknown run ids
var ErrNotFound = errors.New("run not found")

// RunStore is the interface for run history persistence
type RunStore interface {
	CreateRun(ctx context.Context, run *models.AnnotationRun) error
	UpdateRun(ctx context.Context, run *models.AnnotationRun) error
	GetRun(ctx context.Context, id string) (*models.AnnotationRun, error)
	// ListRuns returns the newest runs first
	ListRuns(ctx context.Context, limit int) ([]*models.AnnotationRun, error)
	// PruneBefore deletes finished runs started before cutoff
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
