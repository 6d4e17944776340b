package reconcile

import (
	"context"
	"time"

	"github.com/dom/scrimhub/internal/repository"
	"github.com/dom/scrimhub/internal/service"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Sweeper periodically repairs drift: ready sessions whose in-process
// deadline timer was lost to a restart, abandoned queue pools, and user
// flags pointing at gone aggregates.
type Sweeper struct {
	scheduler gocron.Scheduler
	users     repository.UserRepository
	queues    repository.QueueRepository
	ready     *service.ReadyService
	log       *zap.SugaredLogger

	interval      time.Duration
	queueStaleAge time.Duration
	deadlineGrace time.Duration
}

func NewSweeper(
	users repository.UserRepository,
	queues repository.QueueRepository,
	ready *service.ReadyService,
	log *zap.SugaredLogger,
) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		scheduler:     scheduler,
		users:         users,
		queues:        queues,
		ready:         ready,
		log:           log,
		interval:      30 * time.Second,
		queueStaleAge: 2 * time.Hour,
		deadlineGrace: 5 * time.Second,
	}, nil
}

func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if n, err := s.ready.SweepOverdue(ctx, s.deadlineGrace); err != nil {
		s.log.Warnw("sweep: overdue ready sessions", "error", err)
	} else if n > 0 {
		s.log.Infow("sweep: resolved overdue ready sessions", "count", n)
	}

	if n, err := s.queues.ExpireStale(ctx, time.Now().Add(-s.queueStaleAge)); err != nil {
		s.log.Warnw("sweep: expiring stale pools", "error", err)
	} else if n > 0 {
		s.log.Infow("sweep: expired stale pools", "count", n)
	}

	if n, err := s.users.ClearStaleFlags(ctx); err != nil {
		s.log.Warnw("sweep: clearing stale user flags", "error", err)
	} else if n > 0 {
		s.log.Infow("sweep: cleared stale user flags", "count", n)
	}
}
