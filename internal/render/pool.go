package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidforge/internal/queue"
)

// Pool runs N workers that claim and execute jobs until the context is
// cancelled. In-flight jobs finish before Run returns.
type Pool struct {
	queue    JobQueue
	executor *Executor
	workers  int
	interval time.Duration
	logger   zerolog.Logger
}

func NewPool(q JobQueue, executor *Executor, workers int, interval time.Duration, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:    q,
		executor: executor,
		workers:  workers,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is done and every worker has drained.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info().Int("workers", p.workers).Msg("render: worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	p.logger.Info().Msg("render: worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	log := p.logger.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Claim(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrNoJob) && ctx.Err() == nil {
				log.Error().Err(err).Msg("render: claim failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.interval):
			}
			continue
		}

		p.executor.Process(ctx, job)
	}
}
