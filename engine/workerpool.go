// Package engine is the top-level orchestrator: the callable surface
// (fetch/cancel/preconnect/prefetch/parse_html/query/stats, spec.md §6), the
// fixed CPU worker pool for parse/decompress/encrypt stages, and the shared
// housekeeping registry (spec.md §5, §9 "Async/coroutines").
package engine

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coreweb/engine/internal/xlog"
)

// Job is one unit of CPU-heavy work submitted to the WorkerPool (HTML
// parsing, decompression, encryption — spec.md §5).
type Job func(ctx context.Context) error

// WorkerPool runs submitted Jobs across a fixed number of goroutines,
// bounded by a semaphore, propagating the first error and cancelling the
// rest via errgroup — adapted from the teacher's fs/mpather.JoggerGroup
// (one goroutine per shard, semaphore-bounded parallel calls).
type WorkerPool struct {
	size int
	sema chan struct{}
	wg   *errgroup.Group
	ctx  context.Context
	log  *zap.SugaredLogger
}

// NewWorkerPool creates a pool sized to runtime.NumCPU() when size <= 0.
func NewWorkerPool(ctx context.Context, size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	wg, ctx := errgroup.WithContext(ctx)
	return &WorkerPool{
		size: size,
		sema: make(chan struct{}, size),
		wg:   wg,
		ctx:  ctx,
		log:  xlog.For("engine.workerpool"),
	}
}

// Submit blocks until a worker slot is free (or the pool's context is
// cancelled), then runs job on a goroutine managed by the pool's errgroup.
func (p *WorkerPool) Submit(job Job) {
	select {
	case p.sema <- struct{}{}:
	case <-p.ctx.Done():
		return
	}
	p.wg.Go(func() error {
		defer func() { <-p.sema }()
		if err := job(p.ctx); err != nil {
			p.log.Warnw("worker job failed", "err", err)
			return err
		}
		return nil
	})
}

// Wait blocks until every submitted job has completed, returning the first
// error (if any) across all of them. The pool must not be reused after Wait.
func (p *WorkerPool) Wait() error {
	return p.wg.Wait()
}

// Size reports the pool's fixed worker count.
func (p *WorkerPool) Size() int { return p.size }

func (p *WorkerPool) String() string {
	return fmt.Sprintf("workerpool[size=%d]", p.size)
}
