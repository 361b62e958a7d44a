package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spendwise/internal/log"
)

// StaleProcessor periodically runs stale snapshot passes.
type StaleProcessor struct {
	worker   *SnapshotWorker
	interval time.Duration
	logger   *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewStaleProcessor(worker *SnapshotWorker, interval time.Duration) *StaleProcessor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StaleProcessor{
		worker:   worker,
		interval: interval,
		logger:   worker.logger,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *StaleProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("stale processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Stale processor started",
		"interval", p.interval,
		"batch_size", p.worker.batchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *StaleProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Stale processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Stale processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *StaleProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *StaleProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Process immediately on startup
	p.pass(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pass(ctx)
		}
	}
}

func (p *StaleProcessor) pass(ctx context.Context) {
	n, err := p.worker.ProcessStale(ctx)
	if err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "Stale pass failed", log.FieldError, err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Stale snapshots refreshed", "count", n)
	}
}
