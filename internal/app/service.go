// Package service runs ingestion passes: fetch, validate, resolve,
// fingerprint and merge.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/catalog/internal/adapters/feed"
	"github.com/okian/catalog/internal/domain/dedupe"
	"github.com/okian/catalog/internal/domain/fingerprint"
	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/validate"
	"github.com/okian/catalog/internal/domain/venue"
	"github.com/okian/catalog/pkg/logger"
	"github.com/okian/catalog/pkg/metrics"
)

// VenueSource yields the venue records of one pass.
type VenueSource interface {
	Venues(ctx context.Context) (*feed.VenueSet, error)
}

// EventSource yields the raw event rows of one named feed.
type EventSource interface {
	FeedName() string
	Rows(ctx context.Context) ([]model.RawEventRow, error)
}

// Service implements the ingestion orchestrator. A Service holds only
// configuration; every pass builds its index and ledger from scratch, so
// concurrent passes are independent.
type Service struct {
	venues VenueSource
	events []EventSource

	rowWorkers  int
	passTimeout time.Duration

	validator *validate.Validator
	engine    *fingerprint.Engine
	now       func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithVenueSource sets the venue feed.
func WithVenueSource(src VenueSource) Option {
	return func(s *Service) {
		s.venues = src
	}
}

// WithEventSources sets the event feeds. Rows keep feed order.
func WithEventSources(srcs ...EventSource) Option {
	return func(s *Service) {
		s.events = append([]EventSource(nil), srcs...)
	}
}

// WithRowWorkers sets the parallelism of the per-row stage.
func WithRowWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rowWorkers = n
		}
	}
}

// WithPassTimeout bounds each pass; zero means no deadline.
func WithPassTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.passTimeout = d
		}
	}
}

// WithValidator sets the row validator.
func WithValidator(v *validate.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithFingerprintEngine sets the fingerprint engine.
func WithFingerprintEngine(e *fingerprint.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithClock sets the time source for ledger timestamps and pass bounds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		rowWorkers: runtime.NumCPU(),
		validator:  validate.New(),
		engine:     fingerprint.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// fetched is the raw input of one pass.
type fetched struct {
	venues *feed.VenueSet
	rows   []model.RawEventRow
}

// Ingest runs one full pass. It returns either a complete result or an
// *IngestionError, never both.
func (s *Service) Ingest(ctx context.Context) (*model.Result, error) {
	passID := uuid.NewString()
	startedAt := s.now()
	begin := time.Now()

	if s.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.passTimeout)
		defer cancel()
	}

	in, err := s.fetch(ctx)
	if err != nil {
		return nil, s.fail(ctx, passID, StageFetching, err, begin)
	}

	index := venue.BuildIndex(in.venues.Venues, venue.WithCollisionHandler(func(c venue.Collision) {
		metrics.RecordVenueIndexCollision(string(c.Kind))
		s.logger.Warn(ctx, "venue index key collision",
			logger.String("pass_id", passID),
			logger.String("kind", string(c.Kind)),
			logger.String("key", c.Key),
			logger.String("previous_id", c.PreviousID),
			logger.String("venue_id", c.VenueID),
		)
	}))
	metrics.UpdateVenueIndexSize(index.Len())
	if in.venues.Skipped > 0 || in.venues.Inactive > 0 {
		s.logger.Warn(ctx, "venue rows skipped",
			logger.String("pass_id", passID),
			logger.Int("incomplete", in.venues.Skipped),
			logger.Int("inactive", in.venues.Inactive),
		)
	}

	checkedRows, err := s.validateRows(ctx, in.rows)
	if err != nil {
		return nil, s.fail(ctx, passID, StageValidating, err, begin)
	}

	outcomes, err := s.resolveRows(ctx, index, checkedRows)
	if err != nil {
		return nil, s.fail(ctx, passID, StageResolving, err, begin)
	}

	result, err := s.merge(ctx, passID, outcomes)
	if err != nil {
		return nil, s.fail(ctx, passID, StageMerging, err, begin)
	}
	result.StartedAt = startedAt
	result.FinishedAt = s.now()

	s.record(result, time.Since(begin))
	s.logger.Info(ctx, "ingestion pass done",
		logger.String("pass_id", passID),
		logger.String("stage", string(StageDone)),
		logger.Int("rows", result.Stats.TotalRows),
		logger.Int("loaded", result.Stats.LoadedCount),
		logger.Int("quarantined", result.Stats.QuarantinedTotal()),
		logger.Int("duplicates_merged", result.Stats.DuplicatesMerged),
		logger.Int("venues", index.Len()),
		logger.Duration("took", time.Since(begin)),
	)
	return result, nil
}

// fetch loads venues and every event feed concurrently. Any failure aborts
// the pass.
func (s *Service) fetch(ctx context.Context) (*fetched, error) {
	if s.venues == nil {
		return nil, ErrNoVenueSource
	}
	if len(s.events) == 0 {
		return nil, ErrNoEventSources
	}

	g, gctx := errgroup.WithContext(ctx)
	var venues *feed.VenueSet
	g.Go(func() error {
		set, err := timed(gctx, "venues", s.venues.Venues)
		if err != nil {
			return fmt.Errorf("venues: %w", err)
		}
		venues = set
		return nil
	})

	perFeed := make([][]model.RawEventRow, len(s.events))
	for i, src := range s.events {
		i, src := i, src
		g.Go(func() error {
			rows, err := timed(gctx, src.FeedName(), src.Rows)
			if err != nil {
				return fmt.Errorf("feed %s: %w", src.FeedName(), err)
			}
			perFeed[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "feed fetch failed", logger.Error(err))
		return nil, err
	}
	if venues == nil {
		venues = &feed.VenueSet{}
	}

	in := &fetched{venues: venues}
	for _, rows := range perFeed {
		in.rows = append(in.rows, rows...)
	}
	return in, nil
}

func timed[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	metrics.RecordFeedFetch(name, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordFeedFetchError(name)
	}
	return v, err
}

// merge folds outcomes into the ledger in input order.
func (s *Service) merge(ctx context.Context, passID string, outcomes []outcome) (*model.Result, error) {
	stats := model.NewIngestionStats()
	stats.TotalRows = len(outcomes)
	ledger := dedupe.NewLedger(dedupe.WithClock(s.now))
	quarantined := make([]model.Quarantined, 0)

	for i := range outcomes {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		o := &outcomes[i]
		if o.quarantine != nil {
			q := *o.quarantine
			stats.Quarantine(q.Reason)
			quarantined = append(quarantined, q)
			s.logger.Debug(ctx, "row quarantined",
				logger.String("pass_id", passID),
				logger.String("reason", string(q.Reason)),
				logger.String("detail", q.Detail),
				logger.String("feed", q.Row.Feed),
				logger.Int("line", q.Row.Line),
			)
			continue
		}
		ledger.Observe(o.observation)
	}

	events := ledger.Events()
	stats.LoadedCount = len(events)
	stats.DuplicatesMerged = int(ledger.DuplicatesMerged())
	return &model.Result{
		PassID:      passID,
		Events:      events,
		Quarantined: quarantined,
		Stats:       stats,
	}, nil
}

func (s *Service) record(r *model.Result, took time.Duration) {
	metrics.RecordPass(metrics.OutcomeSuccess, float64(took.Microseconds())/1000)
	metrics.RecordRows(r.Stats.TotalRows)
	metrics.RecordEventsLoaded(r.Stats.LoadedCount)
	metrics.RecordDuplicatesMerged(r.Stats.DuplicatesMerged)
	for reason, n := range r.Stats.QuarantinedByReason {
		if n > 0 {
			metrics.RecordQuarantined(string(reason), n)
		}
	}
}

// fail wraps err as an IngestionError. A hit pass deadline is reported as
// the timeout stage.
func (s *Service) fail(ctx context.Context, passID string, stage Stage, err error, begin time.Time) error {
	outcome := metrics.OutcomeFailure
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		stage = StageTimeout
		outcome = metrics.OutcomeTimeout
		if !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
	}
	metrics.RecordPass(outcome, float64(time.Since(begin).Microseconds())/1000)
	s.logger.Error(ctx, "ingestion pass failed",
		logger.String("pass_id", passID),
		logger.String("stage", string(stage)),
		logger.Error(err),
	)
	return &IngestionError{PassID: passID, Stage: stage, Err: err}
}
