package service

import (
	"context"
	"sync"
	"time"

	"geolink/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Константы sweeper
const (
	sweepBatchSize      = 500 // Размер одной пачки обновлений
	sweepBatchesPerSec  = 2   // Темп пачек, чтобы не мешать основному трафику
	sweepBatchBurst     = 2
	sweepRequestTimeout = 5 * time.Second
)

// VisitSweeper периодически помечает давно висящие pending-визиты как
// declined(abandoned). Вечный pending - штатный исход (коллбэк может не
// прийти никогда), поэтому sweeper опционален и выключен по умолчанию.
type VisitSweeper interface {
	Start()
	Stop()
}

type visitSweeper struct {
	visitRepo     repository.VisitRepository
	logger        *zap.Logger
	interval      time.Duration
	maxPendingAge time.Duration
	limiter       *rate.Limiter
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewVisitSweeper создаёт новый sweeper с заданным интервалом и порогом давности
func NewVisitSweeper(
	visitRepo repository.VisitRepository,
	interval time.Duration,
	maxPendingAge time.Duration,
	logger *zap.Logger,
) VisitSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &visitSweeper{
		visitRepo:     visitRepo,
		logger:        logger,
		interval:      interval,
		maxPendingAge: maxPendingAge,
		limiter:       rate.NewLimiter(rate.Limit(sweepBatchesPerSec), sweepBatchBurst),
	}
}

// Start запускает фоновый цикл
func (s *visitSweeper) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("Запуск sweeper брошенных визитов",
		zap.Duration("interval", s.interval),
		zap.Duration("max_pending_age", s.maxPendingAge),
	)

	s.wg.Add(1)
	go s.loop()
}

// Stop корректно останавливает sweeper
func (s *visitSweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Sweeper остановлен")
}

func (s *visitSweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep обрабатывает пачками, пока есть что помечать; темп пачек
// ограничен limiter-ом
func (s *visitSweeper) sweep() {
	cutoff := time.Now().Add(-s.maxPendingAge)

	for {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, sweepRequestTimeout)
		swept, err := s.visitRepo.SweepAbandoned(ctx, cutoff, sweepBatchSize)
		cancel()

		if err != nil {
			s.logger.Error("Не удалось пометить брошенные визиты", zap.Error(err))
			return
		}
		if swept == 0 {
			return
		}

		s.logger.Info("Помечены брошенные визиты", zap.Int64("count", swept))

		if swept < sweepBatchSize {
			return
		}
	}
}
