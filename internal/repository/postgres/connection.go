package postgres

import (
	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs the schema auto-migration for all aggregates.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.UserSession{},
		&domain.Queue{},
		&domain.QueueEntry{},
		&domain.ReadySession{},
		&domain.ReadyPlayer{},
		&domain.Match{},
		&domain.MatchPlayer{},
		&domain.MatchCounter{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:         NewUserRepository(db),
		Session:      NewSessionRepository(db),
		Queue:        NewQueueRepository(db),
		ReadySession: NewReadySessionRepository(db),
		Match:        NewMatchRepository(db),
		Counter:      NewCounterRepository(db),
	}
}
