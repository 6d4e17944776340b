package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueueService owns the waiting pool. All mutations serialize through a
// single mutex; the pool is small and contention is negligible.
type QueueService struct {
	mu sync.Mutex

	queues        repository.QueueRepository
	users         repository.UserRepository
	readySessions repository.ReadySessionRepository
	ready         *ReadyService
	notifier      Notifier
	log           *zap.SugaredLogger

	queueSize int
}

func NewQueueService(
	queues repository.QueueRepository,
	users repository.UserRepository,
	readySessions repository.ReadySessionRepository,
	ready *ReadyService,
	notifier Notifier,
	log *zap.SugaredLogger,
	queueSize int,
) *QueueService {
	return &QueueService{
		queues:        queues,
		users:         users,
		readySessions: readySessions,
		ready:         ready,
		notifier:      notifier,
		log:           log,
		queueSize:     queueSize,
	}
}

// QueueStatusView is the per-user snapshot returned by Status.
type QueueStatusView struct {
	Queue        *domain.Queue        `json:"queue"`
	InQueue      bool                 `json:"inQueue"`
	Position     int                  `json:"position"`
	ReadySession *domain.ReadySession `json:"readySession,omitempty"`
}

// Join adds the player to the waiting pool, creating a fresh pool if
// none is open. Filling the pool hands the roster to the ready check.
func (s *QueueService) Join(ctx context.Context, userID uuid.UUID) (*domain.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.InQueue {
		return nil, domain.ErrAlreadyQueued
	}
	if user.CurrentMatchID != nil {
		return nil, domain.ErrAlreadyInMatch
	}
	if _, err := s.readySessions.GetActiveByUserID(ctx, userID); err == nil {
		return nil, domain.ErrAcceptPending
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	queue, err := s.waitingPool(ctx)
	if err != nil {
		return nil, err
	}
	if queue.IsFull() {
		// The capacity handoff runs under the same mutex, so a full
		// waiting pool here means the snapshot is being processed.
		return nil, domain.ErrQueueFull
	}

	entry := &domain.QueueEntry{
		QueueID:     queue.ID,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Position:    len(queue.Entries) + 1,
		JoinedAt:    time.Now(),
	}
	if err := s.queues.AddEntry(ctx, entry); err != nil {
		return nil, err
	}
	queue.Entries = append(queue.Entries, *entry)

	if err := s.users.SetInQueue(ctx, userID, true); err != nil {
		return nil, err
	}

	s.notifier.ToQueue("queue:player-joined", map[string]any{
		"queueId": queue.ID,
		"player":  entry.Ref(),
		"count":   len(queue.Entries),
		"needed":  queue.RequiredSize,
	})

	if queue.IsFull() {
		if err := s.handleFull(ctx, queue); err != nil {
			return nil, err
		}
	}
	return queue, nil
}

// Leave removes the player from the waiting pool and renumbers the
// remaining entries. Leaving is refused once the ready check started;
// the player has to decline instead.
func (s *QueueService) Leave(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.queues.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotQueued
		}
		return err
	}
	if queue.Status != domain.QueueStatusWaiting {
		return domain.ErrAcceptPending
	}

	var kept []*domain.QueueEntry
	for i := range queue.Entries {
		if queue.Entries[i].UserID == userID {
			continue
		}
		e := queue.Entries[i]
		kept = append(kept, &e)
	}
	if len(kept) == len(queue.Entries) {
		return domain.ErrNotQueued
	}

	rebuildPositions(kept)
	if err := s.queues.ReplaceEntries(ctx, queue.ID, kept); err != nil {
		return err
	}
	if err := s.users.SetInQueue(ctx, userID, false); err != nil {
		return err
	}

	s.notifier.ToQueue("queue:player-left", map[string]any{
		"queueId": queue.ID,
		"userId":  userID,
		"count":   len(kept),
		"needed":  queue.RequiredSize,
	})
	return nil
}

// Status reports the caller's queue membership plus the current pool.
func (s *QueueService) Status(ctx context.Context, userID uuid.UUID) (*QueueStatusView, error) {
	view := &QueueStatusView{}

	queue, err := s.queues.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		view.Queue = queue
		for _, e := range queue.Entries {
			if e.UserID == userID {
				view.InQueue = true
				view.Position = e.Position
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		waiting, werr := s.queues.GetWaiting(ctx)
		if werr != nil && !errors.Is(werr, gorm.ErrRecordNotFound) {
			return nil, werr
		}
		view.Queue = waiting
	default:
		return nil, err
	}

	if session, err := s.readySessions.GetActiveByUserID(ctx, userID); err == nil {
		view.ReadySession = session
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return view, nil
}

// RequeueWithPriority puts players who accepted a failed ready check at
// the head of the waiting pool. Overflow beyond the pool's capacity
// rolls into a fresh pool.
func (s *QueueService) RequeueWithPriority(ctx context.Context, players []domain.PlayerRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(players) == 0 {
		return nil
	}

	queue, err := s.waitingPool(ctx)
	if err != nil {
		return err
	}

	entries := make([]*domain.QueueEntry, 0, len(queue.Entries)+len(players))
	for i := range queue.Entries {
		e := queue.Entries[i]
		entries = append(entries, &e)
	}
	now := time.Now()
	for i, p := range players {
		entries = append(entries, &domain.QueueEntry{
			QueueID:     queue.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
			HasPriority: true,
			JoinedAt:    now.Add(time.Duration(i) * time.Microsecond),
		})
		if err := s.users.SetInQueue(ctx, p.UserID, true); err != nil {
			return err
		}
	}

	var overflow []*domain.QueueEntry
	rebuildPositions(entries)
	if len(entries) > queue.RequiredSize {
		overflow = entries[queue.RequiredSize:]
		entries = entries[:queue.RequiredSize]
	}

	if err := s.queues.ReplaceEntries(ctx, queue.ID, entries); err != nil {
		return err
	}
	queue.Entries = dereference(entries)

	if len(overflow) > 0 {
		next := &domain.Queue{Status: domain.QueueStatusWaiting, RequiredSize: s.queueSize}
		if err := s.queues.Create(ctx, next); err != nil {
			return err
		}
		for _, e := range overflow {
			e.ID = uuid.Nil
			e.QueueID = next.ID
		}
		rebuildPositions(overflow)
		if err := s.queues.ReplaceEntries(ctx, next.ID, overflow); err != nil {
			return err
		}
	}

	s.notifier.ToQueue("queue:requeued", map[string]any{
		"queueId": queue.ID,
		"count":   len(queue.Entries),
		"needed":  queue.RequiredSize,
	})

	if queue.IsFull() {
		return s.handleFull(ctx, queue)
	}
	return nil
}

// handleFull locks the pool and starts the ready check. Caller holds
// the service mutex.
func (s *QueueService) handleFull(ctx context.Context, queue *domain.Queue) error {
	queue.Status = domain.QueueStatusAcceptPhase
	if err := s.queues.Update(ctx, queue); err != nil {
		return err
	}
	s.notifier.ToQueue("queue:full", map[string]any{
		"queueId": queue.ID,
		"count":   len(queue.Entries),
	})
	return s.ready.Start(ctx, queue)
}

func (s *QueueService) waitingPool(ctx context.Context) (*domain.Queue, error) {
	queue, err := s.queues.GetWaiting(ctx)
	if err == nil {
		return queue, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	queue = &domain.Queue{Status: domain.QueueStatusWaiting, RequiredSize: s.queueSize}
	if err := s.queues.Create(ctx, queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// rebuildPositions reorders entries so priority players come first, ties
// broken by join time, and renumbers positions from 1 with no gaps.
func rebuildPositions(entries []*domain.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].HasPriority != entries[j].HasPriority {
			return entries[i].HasPriority
		}
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
	for i, e := range entries {
		e.Position = i + 1
	}
}

func dereference(entries []*domain.QueueEntry) []domain.QueueEntry {
	out := make([]domain.QueueEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}
