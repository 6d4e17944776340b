package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PriorityRequeuer returns players who accepted a failed ready check to
// the head of the waiting pool.
type PriorityRequeuer interface {
	RequeueWithPriority(ctx context.Context, players []domain.PlayerRef) error
}

// ReadyService runs the bounded-time consensus round between a full
// pool and the draft. One session backs both the queue-side and the
// match-side accept endpoints, so double accepts cannot diverge.
type ReadyService struct {
	readySessions repository.ReadySessionRepository
	queues        repository.QueueRepository
	users         repository.UserRepository
	match         *MatchService
	notifier      Notifier
	log           *zap.SugaredLogger

	acceptTimeout   time.Duration
	skipAcceptPhase bool

	requeuer PriorityRequeuer

	locks keyedLocks

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func NewReadyService(
	readySessions repository.ReadySessionRepository,
	queues repository.QueueRepository,
	users repository.UserRepository,
	match *MatchService,
	notifier Notifier,
	log *zap.SugaredLogger,
	acceptTimeout time.Duration,
	skipAcceptPhase bool,
) *ReadyService {
	return &ReadyService{
		readySessions:   readySessions,
		queues:          queues,
		users:           users,
		match:           match,
		notifier:        notifier,
		log:             log,
		acceptTimeout:   acceptTimeout,
		skipAcceptPhase: skipAcceptPhase,
		timers:          make(map[uuid.UUID]*time.Timer),
	}
}

// SetRequeuer breaks the construction cycle with the queue service.
func (s *ReadyService) SetRequeuer(r PriorityRequeuer) {
	s.requeuer = r
}

// Start begins the ready check for a full pool. With the accept phase
// disabled the match goes straight to the draft.
func (s *ReadyService) Start(ctx context.Context, queue *domain.Queue) error {
	if s.skipAcceptPhase {
		match, err := s.match.CreateFromRoster(ctx, queue, domain.MatchPhaseDraft)
		if err != nil {
			return err
		}
		if err := s.completeQueue(ctx, queue); err != nil {
			return err
		}
		for i := range queue.Entries {
			userID := queue.Entries[i].UserID
			if err := s.users.SetInQueue(ctx, userID, false); err != nil {
				return err
			}
			if err := s.users.SetCurrentMatch(ctx, userID, &match.ID); err != nil {
				return err
			}
		}
		s.notifier.ToQueue("match-starting", map[string]any{
			"matchId": match.ID,
			"code":    match.Code,
		})
		return nil
	}

	match, err := s.match.CreateFromRoster(ctx, queue, domain.MatchPhaseAccept)
	if err != nil {
		return err
	}

	session := &domain.ReadySession{
		MatchID:   match.ID,
		QueueID:   queue.ID,
		Status:    domain.ReadySessionActive,
		ExpiresAt: time.Now().Add(s.acceptTimeout),
	}
	for i := range queue.Entries {
		e := &queue.Entries[i]
		session.Players = append(session.Players, domain.ReadyPlayer{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			AvatarURL:   e.AvatarURL,
		})
	}
	if err := s.readySessions.Create(ctx, session); err != nil {
		return err
	}

	s.notifier.ToQueue("queue:accept-phase", map[string]any{
		"sessionId": session.ID,
		"matchId":   match.ID,
		"expiresAt": session.ExpiresAt,
	})

	s.scheduleDeadline(session.ID)
	return nil
}

// AcceptByUser records the caller's accept on their active session and
// returns the session including that accept.
func (s *ReadyService) AcceptByUser(ctx context.Context, userID uuid.UUID) (*domain.ReadySession, error) {
	session, err := s.readySessions.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return s.accept(ctx, session.ID, userID)
}

// AcceptByMatch records an accept addressed by match ID. It resolves to
// the same session as AcceptByUser.
func (s *ReadyService) AcceptByMatch(ctx context.Context, matchID, userID uuid.UUID) (*domain.ReadySession, error) {
	session, err := s.readySessions.GetActiveByMatchID(ctx, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return s.accept(ctx, session.ID, userID)
}

// DeclineByUser fails the caller's ready check immediately.
func (s *ReadyService) DeclineByUser(ctx context.Context, userID uuid.UUID) error {
	session, err := s.readySessions.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSessionNotFound
		}
		return err
	}
	return s.decline(ctx, session.ID, userID)
}

// StatusByMatch returns the session backing a match's accept phase,
// active or not.
func (s *ReadyService) StatusByMatch(ctx context.Context, matchID uuid.UUID) (*domain.ReadySession, error) {
	session, err := s.readySessions.GetActiveByMatchID(ctx, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// SweepOverdue resolves active sessions whose deadline passed without
// the in-process timer firing, e.g. after a restart.
func (s *ReadyService) SweepOverdue(ctx context.Context, grace time.Duration) (int, error) {
	sessions, err := s.readySessions.OverdueActive(ctx, grace)
	if err != nil {
		return 0, err
	}
	for _, session := range sessions {
		if err := s.resolve(ctx, session.ID); err != nil {
			s.log.Warnw("sweep: resolving overdue ready session failed",
				"sessionId", session.ID, "error", err)
		}
	}
	return len(sessions), nil
}

// accept applies one player's accept and returns the session as it
// stands afterwards, so callers report the count including this accept.
func (s *ReadyService) accept(ctx context.Context, sessionID, userID uuid.UUID) (*domain.ReadySession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.readySessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.ReadySessionActive {
		return nil, domain.ErrSessionExpired
	}
	if time.Now().After(session.ExpiresAt) {
		// The deadline timer will resolve the session shortly.
		return nil, domain.ErrSessionExpired
	}
	participant := session.Participant(userID)
	if participant == nil {
		return nil, domain.ErrNotAParticipant
	}
	if participant.Declined {
		return nil, domain.ErrSessionExpired
	}
	if participant.Accepted {
		// Accepting twice is a no-op.
		return session, nil
	}

	now := time.Now()
	participant.Accepted = true
	participant.AcceptedAt = &now
	if err := s.readySessions.UpdatePlayer(ctx, participant); err != nil {
		return nil, err
	}

	s.notifier.ToQueue("player-accepted", map[string]any{
		"sessionId": session.ID,
		"userId":    userID,
		"accepted":  session.AcceptedCount(),
		"needed":    len(session.Players),
	})

	if session.AllAccepted() {
		if err := s.complete(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

func (s *ReadyService) decline(ctx context.Context, sessionID, userID uuid.UUID) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.readySessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.ReadySessionActive {
		return domain.ErrSessionExpired
	}
	participant := session.Participant(userID)
	if participant == nil {
		return domain.ErrNotAParticipant
	}
	if participant.Declined {
		return nil
	}

	// Accepted stays as recorded; a declined player is a non-acceptor
	// either way.
	participant.Declined = true
	if err := s.readySessions.UpdatePlayer(ctx, participant); err != nil {
		return err
	}
	return s.resolveLocked(ctx, session.ID)
}

// complete finishes a fully accepted session and hands the match to the
// draft.
func (s *ReadyService) complete(ctx context.Context, session *domain.ReadySession) error {
	s.stopDeadline(session.ID)

	session.Status = domain.ReadySessionCompleted
	if err := s.readySessions.Update(ctx, session); err != nil {
		return err
	}

	queue, err := s.queues.GetByID(ctx, session.QueueID)
	if err == nil {
		if err := s.completeQueue(ctx, queue); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	for i := range session.Players {
		userID := session.Players[i].UserID
		if err := s.users.SetInQueue(ctx, userID, false); err != nil {
			return err
		}
		if err := s.users.SetCurrentMatch(ctx, userID, &session.MatchID); err != nil {
			return err
		}
	}

	if err := s.match.BeginDraft(ctx, session.MatchID); err != nil {
		return err
	}

	// Both rooms get the new match ID so clients can switch rooms.
	s.notifier.ToQueue("match-starting", map[string]any{
		"sessionId": session.ID,
		"matchId":   session.MatchID,
	})
	s.notifier.ToMatch(session.MatchID, "match-starting", map[string]any{
		"sessionId": session.ID,
		"matchId":   session.MatchID,
	})
	return nil
}

// resolve fails a session after a decline or a missed deadline. The
// status guard makes concurrent resolutions idempotent.
func (s *ReadyService) resolve(ctx context.Context, sessionID uuid.UUID) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()
	return s.resolveLocked(ctx, sessionID)
}

func (s *ReadyService) resolveLocked(ctx context.Context, sessionID uuid.UUID) error {
	s.stopDeadline(sessionID)

	session, err := s.readySessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.ReadySessionActive {
		return nil
	}
	if session.AllAccepted() {
		// Last accept raced the deadline; let it win.
		return s.complete(ctx, session)
	}

	if session.AnyDeclined() {
		session.Status = domain.ReadySessionCancelled
	} else {
		session.Status = domain.ReadySessionTimeout
	}
	if err := s.readySessions.Update(ctx, session); err != nil {
		return err
	}

	if err := s.match.CancelInternal(ctx, session.MatchID, "ready check failed"); err != nil {
		s.log.Warnw("cancelling match after failed ready check",
			"matchId", session.MatchID, "error", err)
	}

	queue, err := s.queues.GetByID(ctx, session.QueueID)
	if err == nil {
		if err := s.completeQueue(ctx, queue); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	acceptors, nonAcceptors := session.Partition()
	nonAcceptorRefs := make([]domain.PlayerRef, 0, len(nonAcceptors))
	for i := range nonAcceptors {
		if err := s.users.SetInQueue(ctx, nonAcceptors[i].UserID, false); err != nil {
			return err
		}
		nonAcceptorRefs = append(nonAcceptorRefs, nonAcceptors[i].Ref())
	}

	s.notifier.ToQueue("queue:accept-failed", map[string]any{
		"sessionId":    session.ID,
		"status":       session.Status,
		"accepted":     len(acceptors),
		"nonAcceptors": nonAcceptorRefs,
	})

	refs := make([]domain.PlayerRef, 0, len(acceptors))
	for i := range acceptors {
		refs = append(refs, acceptors[i].Ref())
	}
	if s.requeuer != nil && len(refs) > 0 {
		if err := s.requeuer.RequeueWithPriority(ctx, refs); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReadyService) completeQueue(ctx context.Context, queue *domain.Queue) error {
	queue.Status = domain.QueueStatusCompleted
	if err := s.queues.Update(ctx, queue); err != nil {
		return err
	}
	return s.queues.RemoveEntries(ctx, queue.ID)
}

func (s *ReadyService) scheduleDeadline(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[sessionID] = time.AfterFunc(s.acceptTimeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.resolve(ctx, sessionID); err != nil {
			s.log.Warnw("resolving ready session deadline", "sessionId", sessionID, "error", err)
		}
	})
}

func (s *ReadyService) stopDeadline(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
}
