package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBackfillLookback = 24 * time.Hour
	DefaultBackfillLimit    = 100

	backfillRunTimeout = 5 * time.Minute
)

// ReelBackfillScheduler periodically enqueues gif creation for recently completed runs that
// never got one.
type ReelBackfillScheduler struct {
	store         domain.RunStore
	taskPublisher domain.TaskPublisher
	schedule      string
	lookback      time.Duration
	limit         int
	now           func() time.Time
	cron          *cron.Cron
}

type ReelBackfillSchedulerDependencies struct {
	Store         domain.RunStore
	TaskPublisher domain.TaskPublisher
	// Schedule accepts six field cron specs (with seconds) and descriptors such as "@every 15m".
	Schedule string
	Lookback time.Duration
	Limit    int
	Now      func() time.Time
}

func NewReelBackfillScheduler(deps ReelBackfillSchedulerDependencies) (*ReelBackfillScheduler, error) {
	if _, err := cron.Parse(deps.Schedule); err != nil {
		return nil, fmt.Errorf("failed to parse backfill schedule %q: %w", deps.Schedule, err)
	}

	lookback := deps.Lookback
	if lookback <= 0 {
		lookback = DefaultBackfillLookback
	}

	limit := deps.Limit
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &ReelBackfillScheduler{
		store:         deps.Store,
		taskPublisher: deps.TaskPublisher,
		schedule:      deps.Schedule,
		lookback:      lookback,
		limit:         limit,
		now:           now,
		cron:          cron.New(),
	}, nil
}

func (s *ReelBackfillScheduler) Start() error {
	err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), backfillRunTimeout)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Gif backfill failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backfill: %w", err)
	}

	s.cron.Start()

	log.Info().
		Str("schedule", s.schedule).
		Dur("lookback", s.lookback).
		Msg("Gif backfill scheduler started")

	return nil
}

func (s *ReelBackfillScheduler) Stop() {
	s.cron.Stop()
}

// RunOnce enqueues a create-gif task for every completed run in the lookback window without a
// recorded gif and returns how many were enqueued.
func (s *ReelBackfillScheduler) RunOnce(ctx context.Context) (int, error) {
	refs, err := s.store.ListRunsMissingGif(ctx, domain.ListRunsMissingGifParams{
		CompletedAfter: s.now().Add(-s.lookback),
		Limit:          s.limit,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list runs missing gif: %w", err)
	}

	enqueued := 0

	for _, ref := range refs {
		err := s.taskPublisher.EnqueueTask(ctx, domain.CreateGifTask{
			FlowID:    ref.FlowID,
			RunID:     ref.RunID,
			AccountID: ref.AccountID,
		})
		if err != nil {
			return enqueued, fmt.Errorf("failed to enqueue gif for run %s: %w", ref.RunID, err)
		}

		enqueued++
	}

	if enqueued > 0 {
		log.Info().Int("count", enqueued).Msg("Enqueued gif backfill")
	}

	return enqueued, nil
}
