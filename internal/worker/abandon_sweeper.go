package worker

import (
	"context"
	"time"

	"shopcheckout/internal/usecase"

	"go.uber.org/zap"
)

// 1回の掃除で扱う件数
const sweepBatch = 100

type staleAbandoner interface {
	AbandonStale(ctx context.Context, before time.Time, limit int) (int, error)
}

// AbandonSweeper は決済待ちのまま放置されたチェックアウトを定期的にABANDONEDにする
type AbandonSweeper struct {
	checkouts staleAbandoner
	clock     usecase.Clock
	after     time.Duration
	interval  time.Duration
	log       *zap.Logger
}

func NewAbandonSweeper(checkouts staleAbandoner, clock usecase.Clock, after time.Duration, interval time.Duration, log *zap.Logger) *AbandonSweeper {
	return &AbandonSweeper{
		checkouts: checkouts,
		clock:     clock,
		after:     after,
		interval:  interval,
		log:       log,
	}
}

// Run はctxが終わるまでブロックする
func (s *AbandonSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("abandon sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("abandon_after", s.after),
	)
	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			s.log.Info("abandon sweeper stopped")
			return
		}
	}
}

// SweepOnce は1バッチ分だけ処理して件数を返す
func (s *AbandonSweeper) SweepOnce(ctx context.Context) int {
	before := s.clock.Now().Add(-s.after)
	n, err := s.checkouts.AbandonStale(ctx, before, sweepBatch)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("abandon sweep failed", zap.Error(err))
		}
		return n
	}
	if n > 0 {
		s.log.Info("checkouts abandoned", zap.Int("count", n))
	}
	return n
}
