package lists

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/metrics"
)

const tracerName = "github.com/Togather-Foundation/listsync/internal/domain/lists"

// Deps are the collaborators shared by ListService and ItemService.
type Deps struct {
	Repo    Repository
	Log     *activity.Log
	Emitter Emitter
	Policy  Policy
	Logger  zerolog.Logger
}

// coordinator sequences every mutation: the write and its audit record
// commit together, then the entity event and the new_activity event are
// emitted, in that order.
type coordinator struct {
	repo    Repository
	log     *activity.Log
	emitter Emitter
	policy  Policy
	logger  zerolog.Logger
	tracer  trace.Tracer
}

func newCoordinator(d Deps, component string) coordinator {
	c := coordinator{
		repo:    d.Repo,
		log:     d.Log,
		emitter: d.Emitter,
		policy:  d.Policy,
		logger:  d.Logger.With().Str("component", component).Logger(),
		tracer:  otel.Tracer(tracerName),
	}
	if c.emitter == nil {
		c.emitter = NopEmitter{}
	}
	if c.policy == nil {
		c.policy = AllowAll
	}
	return c
}

// txScope is handed to the body of a transactional mutation. Audit must be
// called exactly once.
type txScope struct {
	repo     Repository
	log      *activity.Log
	record   activity.Activity
	appended bool
}

func (s *txScope) Audit(ctx context.Context, entry activity.Entry) error {
	if s.appended {
		return errors.New("audit record already appended")
	}
	rec, err := s.log.Append(ctx, entry)
	if err != nil {
		return err
	}
	s.record = rec
	s.appended = true
	return nil
}

// inTx runs body inside a transaction and commits only when body succeeded
// and appended its audit record. Any failure rolls back both the write and
// the audit record.
func (c *coordinator) inTx(ctx context.Context, body func(tx *txScope) error) (activity.Activity, error) {
	txRepo, txCommitter, err := c.repo.BeginTx(ctx)
	if err != nil {
		return activity.Activity{}, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op after commit.
	defer func() {
		_ = txCommitter.Rollback(ctx)
	}()

	scope := &txScope{
		repo: txRepo,
		log:  c.log.WithRepository(txRepo.Activity()),
	}
	if err := body(scope); err != nil {
		return activity.Activity{}, err
	}
	if !scope.appended {
		return activity.Activity{}, errors.New("mutation finished without an audit record")
	}

	if err := txCommitter.Commit(ctx); err != nil {
		return activity.Activity{}, fmt.Errorf("commit transaction: %w", err)
	}
	return scope.record, nil
}

// publish emits the entity event followed by new_activity. It runs only
// after commit and cannot fail the mutation. The caller going away must not
// cancel fan-out of a write that already committed.
func (c *coordinator) publish(ctx context.Context, event string, payload any, listID int64, rec activity.Activity) {
	ctx = context.WithoutCancel(ctx)
	c.emitter.Emit(ctx, event, payload, listID)

	var scope int64
	if rec.ListID != nil {
		scope = *rec.ListID
	}
	c.emitter.Emit(ctx, EventNewActivity, rec, scope)
}

func (c *coordinator) authorize(ctx context.Context, actorID int64, op Op, list *List) error {
	if err := c.policy.Authorize(ctx, actorID, op, list); err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			return fmt.Errorf("authorize %s: %w", op, err)
		}
		return err
	}
	return nil
}

func (c *coordinator) startSpan(ctx context.Context, name string, actorID int64) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("actor.id", actorID)))
}

// finish records the outcome of a mutation on its span and in metrics.
func (c *coordinator) finish(span trace.Span, entity, op string, err error) {
	metrics.MutationsTotal.WithLabelValues(entity, op, outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func requireActor(actorID int64) error {
	if actorID <= 0 {
		return errs.Unauthenticated("an authenticated user is required")
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return "not_found"
	case errs.KindValidation:
		return "invalid"
	case errs.KindUnauthenticated:
		return "unauthenticated"
	case errs.KindForbidden:
		return "forbidden"
	case errs.KindConflict:
		return "conflict"
	default:
		return "error"
	}
}

func int64Ptr(v int64) *int64 { return &v }
