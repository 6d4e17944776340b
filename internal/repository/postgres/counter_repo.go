package postgres

import (
	"context"

	"github.com/dom/scrimhub/internal/domain"
	"gorm.io/gorm"
)

type counterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *counterRepository {
	return &counterRepository{db: db}
}

// NextMatchCode increments the shared counter row and returns the new
// value. The upsert keeps the increment atomic across processes.
func (r *counterRepository) NextMatchCode(ctx context.Context) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO match_counters (id, value) VALUES (1, 1)
			ON CONFLICT (id) DO UPDATE SET value = match_counters.value + 1`).Error; err != nil {
			return err
		}
		var counter domain.MatchCounter
		if err := tx.First(&counter, "id = ?", 1).Error; err != nil {
			return err
		}
		value = counter.Value
		return nil
	})
	return value, err
}
