package postgres

import (
	"context"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "display_name = ?", displayName).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) SetInQueue(ctx context.Context, userID uuid.UUID, inQueue bool) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("in_queue", inQueue).Error
}

func (r *userRepository) SetCurrentMatch(ctx context.Context, userID uuid.UUID, matchID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("current_match_id", matchID).Error
}

func (r *userRepository) ApplyResult(ctx context.Context, userID uuid.UUID, outcome domain.Outcome, won bool, ratingDelta int) error {
	updates := map[string]interface{}{}
	switch {
	case outcome == domain.OutcomeDraw:
		updates["draws"] = gorm.Expr("draws + 1")
	case won:
		updates["wins"] = gorm.Expr("wins + 1")
	default:
		updates["losses"] = gorm.Expr("losses + 1")
	}
	if ratingDelta != 0 {
		// Rating never drops below zero.
		updates["rating"] = gorm.Expr("GREATEST(rating + ?, 0)", ratingDelta)
	}
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

func (r *userRepository) ClearStaleFlags(ctx context.Context) (int64, error) {
	var total int64

	// in_queue set but no membership in a live pool or active ready session.
	res := r.db.WithContext(ctx).Exec(`
		UPDATE users SET in_queue = false
		WHERE in_queue = true
		  AND id NOT IN (
			SELECT qe.user_id FROM queue_entries qe
			JOIN queues q ON q.id = qe.queue_id
			WHERE q.status NOT IN ('completed')
		  )
		  AND id NOT IN (
			SELECT rp.user_id FROM ready_players rp
			JOIN ready_sessions rs ON rs.id = rp.session_id
			WHERE rs.status = 'active'
		  )`)
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected

	// current_match_id pointing at a missing or terminal match.
	res = r.db.WithContext(ctx).Exec(`
		UPDATE users SET current_match_id = NULL
		WHERE current_match_id IS NOT NULL
		  AND current_match_id NOT IN (
			SELECT id FROM matches WHERE phase NOT IN ('complete', 'cancelled')
		  )`)
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected

	return total, nil
}
