package service

import (
	"time"

	"github.com/dom/scrimhub/internal/config"
	"github.com/dom/scrimhub/internal/provision"
	"github.com/dom/scrimhub/internal/repository"
	"go.uber.org/zap"
)

type Services struct {
	Auth  *AuthService
	Queue *QueueService
	Ready *ReadyService
	Match *MatchService
}

// NewServices wires the service graph. The queue and ready services
// reference each other, so the requeuer is attached after construction.
func NewServices(
	repos *repository.Repositories,
	notifier Notifier,
	provisioner provision.Provisioner,
	cfg *config.Config,
	log *zap.SugaredLogger,
) *Services {
	auth := NewAuthService(repos.User, repos.Session, cfg.JWTSecret,
		time.Duration(cfg.JWTExpirationHours)*time.Hour)

	match := NewMatchService(repos.Match, repos.User, repos.Counter,
		provisioner, notifier, FirstAvailable{}, log,
		cfg.TurnTimeout, cfg.MapPool)

	ready := NewReadyService(repos.ReadySession, repos.Queue, repos.User,
		match, notifier, log, cfg.AcceptTimeout, cfg.SkipAcceptPhase)

	queue := NewQueueService(repos.Queue, repos.User, repos.ReadySession,
		ready, notifier, log, cfg.QueueSize)

	ready.SetRequeuer(queue)

	return &Services{
		Auth:  auth,
		Queue: queue,
		Ready: ready,
		Match: match,
	}
}
