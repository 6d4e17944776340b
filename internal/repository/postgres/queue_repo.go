package postgres

import (
	"context"
	"time"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type queueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *gorm.DB) *queueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Create(ctx context.Context, queue *domain.Queue) error {
	return r.db.WithContext(ctx).Create(queue).Error
}

func (r *queueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Queue, error) {
	var queue domain.Queue
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("queue_entries.position ASC")
		}).
		First(&queue, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &queue, nil
}

func (r *queueRepository) GetWaiting(ctx context.Context) (*domain.Queue, error) {
	var queue domain.Queue
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("queue_entries.position ASC")
		}).
		Where("status = ?", domain.QueueStatusWaiting).
		Order("created_at DESC").
		First(&queue).Error
	if err != nil {
		return nil, err
	}
	return &queue, nil
}

func (r *queueRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Queue, error) {
	var queue domain.Queue
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("queue_entries.position ASC")
		}).
		Joins("JOIN queue_entries ON queue_entries.queue_id = queues.id").
		Where("queue_entries.user_id = ?", userID).
		Where("queues.status NOT IN ?", []domain.QueueStatus{domain.QueueStatusCompleted}).
		Order("queues.created_at DESC").
		First(&queue).Error
	if err != nil {
		return nil, err
	}
	return &queue, nil
}

func (r *queueRepository) Update(ctx context.Context, queue *domain.Queue) error {
	return r.db.WithContext(ctx).Omit("Entries").Save(queue).Error
}

func (r *queueRepository) AddEntry(ctx context.Context, entry *domain.QueueEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *queueRepository) RemoveEntries(ctx context.Context, queueID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&domain.QueueEntry{}, "queue_id = ?", queueID).Error
}

func (r *queueRepository) ReplaceEntries(ctx context.Context, queueID uuid.UUID, entries []*domain.QueueEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.QueueEntry{}, "queue_id = ?", queueID).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(entries).Error
	})
}

func (r *queueRepository) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Queue{}).
		Where("status NOT IN ? AND updated_at < ?", []domain.QueueStatus{domain.QueueStatusCompleted}, olderThan).
		Update("status", domain.QueueStatusCompleted)
	return res.RowsAffected, res.Error
}
