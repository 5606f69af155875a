// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driftnet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// WorkerPool runs item fetch+extract work on a fixed number of goroutines.
// The work queue is unbuffered: Submit returns only once a worker has taken
// the item, so the submitter can decide right before every Submit whether
// more work should start at all.
type WorkerPool struct {
	maxWorkers int
	workQueue  chan func()
	wg         *sync.WaitGroup
	ctx        context.Context
	logger     *slog.Logger
	busy       atomic.Int32
}

// NewWorkerPool starts maxWorkers workers. They exit when Close is called or
// ctx is cancelled; a running work item is never interrupted by the pool.
func NewWorkerPool(ctx context.Context, maxWorkers int, logger *slog.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = discardLogger
	}
	wp := &WorkerPool{
		maxWorkers: maxWorkers,
		workQueue:  make(chan func()),
		wg:         &sync.WaitGroup{},
		ctx:        ctx,
		logger:     logger,
	}

	for i := 0; i < maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case work, ok := <-wp.workQueue:
			if !ok {
				return
			}
			wp.run(work)

		case <-wp.ctx.Done():
			return
		}
	}
}

// run executes one item. A panicking extractor must not take the pool down.
func (wp *WorkerPool) run(work func()) {
	wp.busy.Add(1)
	defer wp.busy.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("worker recovered from panic", "panic", fmt.Sprint(r))
		}
	}()
	work()
}

// Submit hands work to an idle worker, blocking until one is free.
// Returns an error if the context is cancelled first.
func (wp *WorkerPool) Submit(work func()) error {
	select {
	case wp.workQueue <- work:
		return nil

	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Busy returns the number of work items currently running
func (wp *WorkerPool) Busy() int {
	return int(wp.busy.Load())
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.maxWorkers
}

// Close stops accepting work and waits for running items to finish.
func (wp *WorkerPool) Close() {
	close(wp.workQueue)
	wp.wg.Wait()
}
