package session

import (
	"context"
	"time"

	"github.com/dropDatabas3/renovo/internal/observability/logger"
	"go.uber.org/zap"
)

// Sweeper corre Service.Sweep en forma periódica. Pensado para vivir en
// una goroutine del proceso (ver cmd/renovo); Run respeta el contexto y
// retorna al cancelarse.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run bloquea hasta que ctx se cancele. Hace un primer barrido apenas
// arranca para no dejar basura acumulada esperando un tick entero.
func (s *Sweeper) Run(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("session.sweeper"))
	log.Info("sweeper started", zap.Duration("interval", s.interval))

	s.sweep(ctx, log)

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return ctx.Err()
		case <-t.C:
			s.sweep(ctx, log)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, log *zap.Logger) {
	res := s.svc.Sweep(ctx)
	if res.Status != StatusSuccessful {
		log.Warn("sweep pass failed", logger.Outcome(res.Status.String()))
		return
	}
	if res.Swept > 0 {
		log.Info("sweep pass done", logger.Swept(res.Swept))
	}
}
