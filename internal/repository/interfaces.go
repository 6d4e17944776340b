package repository

import (
	"context"
	"time"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	SetInQueue(ctx context.Context, userID uuid.UUID, inQueue bool) error
	SetCurrentMatch(ctx context.Context, userID uuid.UUID, matchID *uuid.UUID) error
	// ApplyResult bumps the win/loss/draw counter and applies the rating
	// delta, flooring the rating at zero.
	ApplyResult(ctx context.Context, userID uuid.UUID, outcome domain.Outcome, won bool, ratingDelta int) error
	// ClearStaleFlags resets in_queue and current_match_id for users whose
	// referenced aggregates are gone or terminal. Drift mitigation only.
	ClearStaleFlags(ctx context.Context) (int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type QueueRepository interface {
	Create(ctx context.Context, queue *domain.Queue) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Queue, error)
	// GetWaiting returns the newest pool still in the waiting state, or
	// gorm.ErrRecordNotFound.
	GetWaiting(ctx context.Context) (*domain.Queue, error)
	// GetByUserID returns the non-completed pool the user is a member of.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Queue, error)
	Update(ctx context.Context, queue *domain.Queue) error
	AddEntry(ctx context.Context, entry *domain.QueueEntry) error
	RemoveEntries(ctx context.Context, queueID uuid.UUID) error
	// ReplaceEntries atomically swaps the pool's membership for a rebuilt,
	// position-contiguous entry list.
	ReplaceEntries(ctx context.Context, queueID uuid.UUID, entries []*domain.QueueEntry) error
	ExpireStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type ReadySessionRepository interface {
	Create(ctx context.Context, session *domain.ReadySession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReadySession, error)
	GetActiveByMatchID(ctx context.Context, matchID uuid.UUID) (*domain.ReadySession, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.ReadySession, error)
	Update(ctx context.Context, session *domain.ReadySession) error
	UpdatePlayer(ctx context.Context, player *domain.ReadyPlayer) error
	// OverdueActive returns active sessions whose deadline passed more than
	// grace ago; the sweep resolves them if the deferred timer was lost.
	OverdueActive(ctx context.Context, grace time.Duration) ([]*domain.ReadySession, error)
}

type MatchRepository interface {
	Create(ctx context.Context, match *domain.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Match, error)
	Update(ctx context.Context, match *domain.Match) error
	UpdatePlayer(ctx context.Context, player *domain.MatchPlayer) error
}

type CounterRepository interface {
	// NextMatchCode atomically increments and returns the sequential
	// external match code.
	NextMatchCode(ctx context.Context) (int64, error)
}

type Repositories struct {
	User         UserRepository
	Session      SessionRepository
	Queue        QueueRepository
	ReadySession ReadySessionRepository
	Match        MatchRepository
	Counter      CounterRepository
}
