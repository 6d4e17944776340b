package postgres

import (
	"context"
	"time"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type readySessionRepository struct {
	db *gorm.DB
}

func NewReadySessionRepository(db *gorm.DB) *readySessionRepository {
	return &readySessionRepository{db: db}
}

func (r *readySessionRepository) Create(ctx context.Context, session *domain.ReadySession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *readySessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReadySession, error) {
	var session domain.ReadySession
	err := r.db.WithContext(ctx).
		Preload("Players").
		First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *readySessionRepository) GetActiveByMatchID(ctx context.Context, matchID uuid.UUID) (*domain.ReadySession, error) {
	var session domain.ReadySession
	err := r.db.WithContext(ctx).
		Preload("Players").
		Where("match_id = ? AND status = ?", matchID, domain.ReadySessionActive).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *readySessionRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.ReadySession, error) {
	var session domain.ReadySession
	err := r.db.WithContext(ctx).
		Preload("Players").
		Joins("JOIN ready_players ON ready_players.session_id = ready_sessions.id").
		Where("ready_players.user_id = ? AND ready_sessions.status = ?", userID, domain.ReadySessionActive).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *readySessionRepository) Update(ctx context.Context, session *domain.ReadySession) error {
	return r.db.WithContext(ctx).Omit("Players").Save(session).Error
}

func (r *readySessionRepository) UpdatePlayer(ctx context.Context, player *domain.ReadyPlayer) error {
	return r.db.WithContext(ctx).Save(player).Error
}

func (r *readySessionRepository) OverdueActive(ctx context.Context, grace time.Duration) ([]*domain.ReadySession, error) {
	var sessions []*domain.ReadySession
	err := r.db.WithContext(ctx).
		Preload("Players").
		Where("status = ? AND expires_at < ?", domain.ReadySessionActive, time.Now().Add(-grace)).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
