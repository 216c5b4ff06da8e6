// Package statement is the application service over the engine. It reads a
// building snapshot, runs a computation and, on finalize, persists the
// statement and records the domain event.
package statement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/opcost/internal/activity"
	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/event"
	"github.com/matthewbaird/opcost/internal/observability/metrics"
	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/settlement"
	"github.com/matthewbaird/opcost/internal/source"
	"github.com/matthewbaird/opcost/internal/store"
	"github.com/matthewbaird/opcost/internal/types"
)

// ErrActorRequired is returned by write operations without an actor.
var ErrActorRequired = errors.New("statement: actor is required")

// Options configure the service.
type Options struct {
	Tolerance   decimal.Decimal
	Currency    string
	MaxParallel int
}

// Deps are the collaborators of the service. Recorder, Activity and Metrics
// may be nil.
type Deps struct {
	Source   source.Reader
	Store    store.Store
	Recorder event.Recorder
	Activity activity.Store
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

// Service computes and persists statements.
type Service struct {
	src      source.Reader
	store    store.Store
	recorder event.Recorder
	activity activity.Store
	metrics  *metrics.Metrics
	log      zerolog.Logger
	opts     Options
	now      func() time.Time
}

// NewService wires a service.
func NewService(deps Deps, opts Options) *Service {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}
	return &Service{
		src:      deps.Source,
		store:    deps.Store,
		recorder: deps.Recorder,
		activity: deps.Activity,
		metrics:  deps.Metrics,
		log:      deps.Log.With().Str("component", "statement").Logger(),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Preview computes a statement without writing anything.
func (s *Service) Preview(ctx context.Context, buildingID string, req engine.Request) (*engine.Result, error) {
	return s.compute(ctx, metrics.ModePreview, buildingID, req)
}

// Live computes a statement for the live websocket session. It differs from
// Preview only in the metrics mode.
func (s *Service) Live(ctx context.Context, buildingID string, req engine.Request) (*engine.Result, error) {
	return s.compute(ctx, metrics.ModeLive, buildingID, req)
}

// Finalize computes a statement, marks it Completed and persists it with
// all its items. A request that fails validation records a
// statement_rejected event and writes nothing.
func (s *Service) Finalize(ctx context.Context, buildingID string, req engine.Request, actor string) (*engine.Result, error) {
	if actor == "" {
		return nil, ErrActorRequired
	}
	res, err := s.compute(ctx, metrics.ModeFinalize, buildingID, req)
	if err != nil {
		var ve *engine.ValidationError
		if errors.As(err, &ve) {
			s.reject(ctx, buildingID, req.Period, ve, actor)
		}
		return nil, err
	}

	stmt := res.Statement
	if err := stmt.Complete(); err != nil {
		return nil, err
	}
	stmt.ID = uuid.New().String()
	stmt.CreatedAt = s.now()
	stmt.CreatedBy = actor
	if err := s.store.SaveCompleted(ctx, stmt); err != nil {
		return nil, fmt.Errorf("persisting statement: %w", err)
	}

	s.log.Info().
		Str("building_id", buildingID).
		Str("statement_id", stmt.ID).
		Str("total", stmt.TotalAllocated.StringFixed(2)).
		Int("items", len(stmt.Items)).
		Bool("needs_review", stmt.NeedsReview()).
		Msg("statement completed")

	s.record(ctx, event.NewStatementCompleted(event.StatementCompletedPayload{
		StatementID:    stmt.ID,
		BuildingID:     buildingID,
		Period:         stmt.Period,
		TotalAllocated: stmt.TotalAllocated,
		ItemCount:      len(stmt.Items),
		WarningCount:   len(stmt.Warnings),
		NeedsReview:    stmt.NeedsReview(),
		Actor:          actor,
	}))
	return res, nil
}

// SaveDraft stores a request as a draft. A new ID is assigned when id is
// empty.
func (s *Service) SaveDraft(ctx context.Context, buildingID, id string, req engine.Request, actor string) (store.Draft, error) {
	if actor == "" {
		return store.Draft{}, ErrActorRequired
	}
	if _, err := s.src.Building(ctx, buildingID); err != nil {
		return store.Draft{}, err
	}
	if id == "" {
		id = uuid.New().String()
	}
	d := store.Draft{
		ID:         id,
		BuildingID: buildingID,
		Request:    req,
		UpdatedAt:  s.now(),
		UpdatedBy:  actor,
	}
	if err := s.store.SaveDraft(ctx, d); err != nil {
		return store.Draft{}, fmt.Errorf("saving draft: %w", err)
	}
	s.record(ctx, event.NewDraftSaved(event.DraftSavedPayload{
		DraftID:    d.ID,
		BuildingID: buildingID,
		PoolCount:  len(req.Pools),
		Actor:      actor,
	}))
	return d, nil
}

// GetDraft returns a stored draft.
func (s *Service) GetDraft(ctx context.Context, id string) (store.Draft, error) {
	return s.store.GetDraft(ctx, id)
}

// GetStatement returns a persisted statement with its items.
func (s *Service) GetStatement(ctx context.Context, id string) (*settlement.Statement, error) {
	return s.store.GetStatement(ctx, id)
}

// ListStatements returns the persisted statements of a building.
func (s *Service) ListStatements(ctx context.Context, buildingID string, limit int) ([]settlement.Statement, error) {
	if _, err := s.src.Building(ctx, buildingID); err != nil {
		return nil, err
	}
	return s.store.ListStatements(ctx, buildingID, store.ListOptions{Limit: limit})
}

// Occupancy resolves the occupancy intervals of a building's units.
func (s *Service) Occupancy(ctx context.Context, buildingID string, period types.Period, unitIDs []string) ([]occupancy.Interval, error) {
	snap, err := source.LoadSnapshot(ctx, s.src, buildingID, period)
	if err != nil {
		return nil, err
	}
	return engine.Occupancy(snap, period, unitIDs)
}

// Activity returns the event history of a building.
func (s *Service) Activity(ctx context.Context, buildingID string, opts activity.QueryOptions) ([]types.ActivityEntry, string, error) {
	if s.activity == nil {
		return nil, "", nil
	}
	return s.activity.QueryByEntity(ctx, "building", buildingID, opts)
}

// Job is one building of a batch finalization.
type Job struct {
	BuildingID string
	Request    engine.Request
}

// Outcome is the result of one batch job. Exactly one of Statement and Err
// is set.
type Outcome struct {
	BuildingID string
	Statement  *settlement.Statement
	Err        error
}

// FinalizeAll finalizes independent buildings in parallel, bounded by
// MaxParallel. Each building succeeds or fails on its own; the outcomes are
// returned in job order. The returned error is only set when ctx ends.
func (s *Service) FinalizeAll(ctx context.Context, jobs []Job, actor string) ([]Outcome, error) {
	if actor == "" {
		return nil, ErrActorRequired
	}
	out := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxParallel)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = Outcome{BuildingID: job.BuildingID, Err: err}
				return err
			}
			s.metrics.BatchStarted()
			defer s.metrics.BatchFinished()

			res, err := s.Finalize(gctx, job.BuildingID, job.Request, actor)
			out[i] = Outcome{BuildingID: job.BuildingID, Err: err}
			if err == nil {
				out[i].Statement = res.Statement
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

func (s *Service) compute(ctx context.Context, mode, buildingID string, req engine.Request) (*engine.Result, error) {
	start := time.Now()
	period, err := types.NewPeriod(req.Period.Start, req.Period.End)
	if err != nil {
		s.metrics.ObserveCompute(mode, metrics.ResultRejected, time.Since(start))
		return nil, &engine.ValidationError{Problems: []error{err}}
	}

	snap, err := source.LoadSnapshot(ctx, s.src, buildingID, period)
	if err != nil {
		s.metrics.ObserveCompute(mode, metrics.ResultError, time.Since(start))
		return nil, err
	}

	res, err := engine.Compute(snap, req, engine.Options{Tolerance: s.opts.Tolerance, Currency: s.opts.Currency})
	elapsed := time.Since(start)
	log := s.log.With().
		Str("building_id", buildingID).
		Str("mode", mode).
		Str("period_start", period.Start.Format(types.DateLayout)).
		Str("period_end", period.End.Format(types.DateLayout)).
		Dur("elapsed", elapsed).
		Logger()
	if err != nil {
		var ve *engine.ValidationError
		if errors.As(err, &ve) {
			s.metrics.ObserveCompute(mode, metrics.ResultRejected, elapsed)
			s.metrics.ObserveProblems(ve.Codes())
			log.Debug().Strs("codes", ve.Codes()).Msg("statement rejected")
			return nil, err
		}
		s.metrics.ObserveCompute(mode, metrics.ResultError, elapsed)
		log.Error().Err(err).Msg("statement computation failed")
		return nil, err
	}

	s.metrics.ObserveCompute(mode, metrics.ResultSuccess, elapsed)
	codes := make([]string, len(res.Statement.Warnings))
	for i, w := range res.Statement.Warnings {
		codes[i] = w.Code
	}
	s.metrics.ObserveWarnings(codes)
	log.Debug().
		Int("pools", len(res.Pools)).
		Int("intervals", len(res.Intervals)).
		Msg("statement computed")
	return res, nil
}

func (s *Service) reject(ctx context.Context, buildingID string, period types.Period, ve *engine.ValidationError, actor string) {
	if _, err := s.src.Building(ctx, buildingID); err != nil {
		return
	}
	s.record(ctx, event.NewStatementRejected(event.StatementRejectedPayload{
		BuildingID: buildingID,
		Period:     period,
		Codes:      ve.Codes(),
		Actor:      actor,
	}))
}

// record writes an event. A failed write is logged; the statement itself is
// already durable.
func (s *Service) record(ctx context.Context, evt event.DomainEvent) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, evt); err != nil {
		s.log.Error().Err(err).Str("event_type", evt.EventType).Msg("recording event")
	}
}
