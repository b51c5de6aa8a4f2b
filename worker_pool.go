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

package scopecrawl

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// WorkerPool runs submitted work on a fixed number of goroutines.
// With a zero queue size Submit hands work directly to an idle worker, so the
// caller never runs ahead of the workers.
type WorkerPool struct {
	maxWorkers int
	workQueue  chan func()
	wg         sync.WaitGroup
	ctx        context.Context
	log        logrus.FieldLogger
}

// NewWorkerPool starts maxWorkers goroutines reading from a queue of queueSize
func NewWorkerPool(ctx context.Context, maxWorkers int, queueSize int, log logrus.FieldLogger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	wp := &WorkerPool{
		maxWorkers: maxWorkers,
		workQueue:  make(chan func(), queueSize),
		ctx:        ctx,
		log:        log,
	}
	for i := 0; i < maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	return wp
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case work, ok := <-wp.workQueue:
			if !ok {
				return
			}
			wp.run(id, work)
		case <-wp.ctx.Done():
			return
		}
	}
}

// run executes one item; a panicking item is logged and does not take the worker down
func (wp *WorkerPool) run(id int, work func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.log.WithField("worker_id", id).Errorf("worker recovered from panic: %v", r)
		}
	}()
	work()
}

// Submit blocks until a worker accepts work or the pool context ends
func (wp *WorkerPool) Submit(work func()) error {
	select {
	case wp.workQueue <- work:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool stopped: %w", wp.ctx.Err())
	}
}

// Close stops accepting work and waits for running items to finish
func (wp *WorkerPool) Close() {
	close(wp.workQueue)
	wp.wg.Wait()
}
