package activity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/metrics"
)

// Log appends and queries audit records.
type Log struct {
	repo   Repository
	logger zerolog.Logger
}

func NewLog(repo Repository, logger zerolog.Logger) *Log {
	return &Log{
		repo:   repo,
		logger: logger.With().Str("component", "activity").Logger(),
	}
}

// WithRepository returns a Log bound to repo, typically a transaction-scoped
// repository so that the audit record commits or rolls back with the
// mutation it describes.
func (l *Log) WithRepository(repo Repository) *Log {
	return &Log{repo: repo, logger: l.logger}
}

// Append validates and persists an audit record and returns it enriched
// with actor, list and item projections and its rendered message.
func (l *Log) Append(ctx context.Context, entry Entry) (Activity, error) {
	if !entry.Action.Valid() {
		return Activity{}, errs.Validation("action", fmt.Sprintf("unknown action %q", entry.Action))
	}
	if entry.UserID <= 0 {
		return Activity{}, errs.Validation("userId", "actor is required")
	}

	id, err := l.repo.Create(ctx, entry)
	if err != nil {
		return Activity{}, fmt.Errorf("append activity: %w", err)
	}

	rec, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return Activity{}, fmt.Errorf("load activity %d: %w", id, err)
	}

	out := WithMessage(*rec)
	metrics.ActivityAppended.WithLabelValues(string(out.Action)).Inc()

	l.logger.Debug().
		Int64("activity_id", out.ID).
		Str("action", string(out.Action)).
		Int64("user_id", out.UserID).
		Msg("activity appended")

	return out, nil
}

// Query returns the newest records in scope, newest first. A limit of zero
// or less selects the scope default; limits above MaxLimit are clamped.
func (l *Log) Query(ctx context.Context, scope Scope, limit int) ([]Activity, error) {
	filter := Filter{Limit: resolveLimit(scope, limit)}
	switch scope.Kind {
	case ScopeList:
		id := scope.ID
		filter.ListID = &id
	case ScopeUser:
		id := scope.ID
		filter.UserID = &id
	}

	records, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	for i := range records {
		records[i] = WithMessage(records[i])
	}
	return records, nil
}

// Stats counts records overall and per action, optionally for one list.
// The two counts run concurrently so the repository must be pool-backed.
func (l *Log) Stats(ctx context.Context, listID *int64) (Stats, error) {
	var (
		total    int64
		byAction map[Action]int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := l.repo.Count(gctx, listID)
		if err != nil {
			return fmt.Errorf("count activity: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		m, err := l.repo.CountByAction(gctx, listID)
		if err != nil {
			return fmt.Errorf("count activity by action: %w", err)
		}
		byAction = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	if byAction == nil {
		byAction = map[Action]int64{}
	}
	return Stats{Total: total, ByAction: byAction}, nil
}

func resolveLimit(scope Scope, limit int) int {
	if limit <= 0 {
		if scope.Kind == ScopeAll {
			return DefaultRecentLimit
		}
		return DefaultHistoryLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
