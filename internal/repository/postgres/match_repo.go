package postgres

import (
	"context"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type matchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *matchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) Create(ctx context.Context, match *domain.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

func (r *matchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	var match domain.Match
	err := r.db.WithContext(ctx).
		Preload("Players").
		First(&match, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *matchRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Match, error) {
	var match domain.Match
	err := r.db.WithContext(ctx).
		Preload("Players").
		Joins("JOIN match_players ON match_players.match_id = matches.id").
		Where("match_players.user_id = ?", userID).
		Where("matches.phase NOT IN ?", []domain.MatchPhase{domain.MatchPhaseComplete, domain.MatchPhaseCancelled}).
		Order("matches.created_at DESC").
		First(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *matchRepository) Update(ctx context.Context, match *domain.Match) error {
	return r.db.WithContext(ctx).Omit("Players").Save(match).Error
}

func (r *matchRepository) UpdatePlayer(ctx context.Context, player *domain.MatchPlayer) error {
	return r.db.WithContext(ctx).Save(player).Error
}
