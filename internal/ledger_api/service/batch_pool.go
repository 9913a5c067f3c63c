package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/school-fee-ledger/internal/config"
)

// BatchPool fans independent units of work out over a bounded goroutine pool
type BatchPool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

func NewBatchPool(cfg config.WorkerPoolConfig, logger *slog.Logger) (*BatchPool, error) {
	pool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &BatchPool{pool: pool, logger: logger}, nil
}

// Run calls fn for every index in [0, n) and waits for all of them.
// errs[i] holds the outcome of item i.
func (p *BatchPool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}

		wg.Add(1)
		idx := i
		err := p.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Panic recovered in batch item", "index", idx, "panic", r)
					errs[idx] = fmt.Errorf("batch item %d panicked: %v", idx, r)
				}
			}()
			errs[idx] = fn(ctx, idx)
		})
		if err != nil {
			wg.Done()
			p.logger.Error("Failed to submit batch item to worker pool", "index", idx, "error", err)
			errs[idx] = fmt.Errorf("failed to schedule batch item: %w", err)
		}
	}

	wg.Wait()
	return errs
}

// Shutdown releases the pool's workers.
func (p *BatchPool) Shutdown() {
	p.logger.Info("Shutting down worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of running workers in the pool.
func (p *BatchPool) Running() int {
	return p.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (p *BatchPool) Capacity() int {
	return p.pool.Cap()
}
