package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	KindStatistics = "statistics"
	KindOverlap    = "overlap"
	KindOutline    = "outline"

	defaultMaxAttempts = 3
)

var (
	// ErrStale indicates every attempt was superseded by a concurrent mutation.
	ErrStale = errors.New("analysis: result superseded by concurrent mutation")

	errMissingSource = errors.New("analysis: snapshot source is required")
)

// SnapshotSource reads consistent snapshots and reports the current generation of a project.
type SnapshotSource interface {
	Snapshot(ctx context.Context, scope coding.Scope) (coding.Snapshot, error)
	Generation(projectID string) int64
}

// RunnerConfig describes the dependencies of a Runner.
type RunnerConfig struct {
	Source      SnapshotSource
	MaxAttempts int
	Logger      *zap.Logger
}

// Runner computes analyses off the mutation path. A result is only returned when the project
// generation did not move while it was computed; otherwise it is discarded and recomputed.
// Concurrent requests for the same scope and generation share one computation.
type Runner struct {
	source      SnapshotSource
	maxAttempts int
	logger      *zap.Logger
	group       singleflight.Group
}

// NewRunner validates the configuration and constructs a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{source: cfg.Source, maxAttempts: maxAttempts, logger: logger}, nil
}

// Statistics returns the coverage statistics of a scope.
func (r *Runner) Statistics(ctx context.Context, scope coding.Scope) (Statistics, error) {
	return run(ctx, r, KindStatistics, scope, "", infallible(Aggregate))
}

// Overlap returns the co-occurrence matrix of a scope.
func (r *Runner) Overlap(ctx context.Context, scope coding.Scope) (Matrix, error) {
	return run(ctx, r, KindOverlap, scope, "", infallible(Overlap))
}

// Outline returns the codebook of a scope, optionally restricted to one node family.
// An unknown rootID fails with coding.ErrNotFound.
func (r *Runner) Outline(ctx context.Context, scope coding.Scope, rootID string) ([]OutlineEntry, error) {
	return run(ctx, r, KindOutline, scope, rootID, func(snapshot coding.Snapshot) ([]OutlineEntry, error) {
		return Outline(snapshot, rootID)
	})
}

func infallible[T any](compute func(coding.Snapshot) T) func(coding.Snapshot) (T, error) {
	return func(snapshot coding.Snapshot) (T, error) {
		return compute(snapshot), nil
	}
}

// run shares one computation between callers of the same key. The computation is detached
// from any single caller's cancellation; each caller stops waiting when its own context ends.
func run[T any](ctx context.Context, r *Runner, kind string, scope coding.Scope, variant string, compute func(coding.Snapshot) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	key := fmt.Sprintf("%s|%s|%s|%d", kind, scope.Key(), variant, r.source.Generation(scope.ProjectID))
	shared := context.WithoutCancel(ctx)
	results := r.group.DoChan(key, func() (any, error) {
		return attempt(shared, r, kind, scope, compute)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case outcome := <-results:
		if outcome.Err != nil {
			return zero, outcome.Err
		}
		result, ok := outcome.Val.(T)
		if !ok {
			return zero, fmt.Errorf("analysis: unexpected %s result type %T", kind, outcome.Val)
		}
		return result, nil
	}
}

func attempt[T any](ctx context.Context, r *Runner, kind string, scope coding.Scope, compute func(coding.Snapshot) (T, error)) (T, error) {
	var zero T
	for attemptNumber := 1; attemptNumber <= r.maxAttempts; attemptNumber++ {
		started := time.Now()
		snapshot, err := r.source.Snapshot(ctx, scope)
		if err != nil {
			return zero, err
		}
		result, computeErr := compute(snapshot)
		analysisDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())

		current := r.source.Generation(scope.ProjectID)
		if current == snapshot.Generation {
			if computeErr != nil {
				return zero, computeErr
			}
			return result, nil
		}
		analysisDiscarded.WithLabelValues(kind).Inc()
		r.logger.Debug("analysis result discarded",
			zap.String("kind", kind),
			zap.String("scope", scope.Key()),
			zap.Int64("snapshot_generation", snapshot.Generation),
			zap.Int64("current_generation", current),
			zap.Int("attempt", attemptNumber))
	}
	return zero, ErrStale
}
