package report

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"backtest-core/internal/backtest"
)

// Batched buffers results and hands them to the wrapped exporter in groups,
// either when maxSize results are pending or every interval.
type Batched struct {
	next     backtest.Exporter
	mu       sync.Mutex
	buffer   []backtest.Result
	maxSize  int
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup

	totalResults atomic.Uint64
	totalFlushes atomic.Uint64
	totalErrors  atomic.Uint64
}

// BatchedStats reports flush activity.
type BatchedStats struct {
	TotalResults uint64 `json:"total_results"`
	TotalFlushes uint64 `json:"total_flushes"`
	TotalErrors  uint64 `json:"total_errors"`
	Pending      int    `json:"pending"`
}

// NewBatched starts the background flusher. Close must be called to stop it
// and write whatever is still pending.
func NewBatched(next backtest.Exporter, maxSize int, interval time.Duration) *Batched {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	b := &Batched{
		next:     next,
		buffer:   make([]backtest.Result, 0, maxSize),
		maxSize:  maxSize,
		interval: interval,
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.backgroundFlush()
	return b
}

// Export queues results and flushes synchronously once the buffer is full.
func (b *Batched) Export(ctx context.Context, results []backtest.Result) error {
	b.mu.Lock()
	b.buffer = append(b.buffer, results...)
	full := len(b.buffer) >= b.maxSize
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered results now.
func (b *Batched) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return nil
	}
	pending := b.buffer
	b.buffer = make([]backtest.Result, 0, b.maxSize)
	b.mu.Unlock()

	b.totalResults.Add(uint64(len(pending)))
	b.totalFlushes.Add(1)
	if err := b.next.Export(ctx, pending); err != nil {
		b.totalErrors.Add(1)
		return err
	}
	log.Debug().Int("results", len(pending)).Msg("💾 batched export flushed")
	return nil
}

func (b *Batched) backgroundFlush() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(context.Background()); err != nil {
				log.Warn().Err(err).Msg("batched export: background flush failed")
			}
		case <-b.done:
			if err := b.Flush(context.Background()); err != nil {
				log.Warn().Err(err).Msg("batched export: final flush failed")
			}
			return
		}
	}
}

func (b *Batched) Stats() BatchedStats {
	b.mu.Lock()
	pending := len(b.buffer)
	b.mu.Unlock()
	return BatchedStats{
		TotalResults: b.totalResults.Load(),
		TotalFlushes: b.totalFlushes.Load(),
		TotalErrors:  b.totalErrors.Load(),
		Pending:      pending,
	}
}

// Close stops the background flusher after a final flush.
func (b *Batched) Close() error {
	close(b.done)
	b.wg.Wait()
	return nil
}
