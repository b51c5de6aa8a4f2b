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
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestWorkerPoolRunsAllWork(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3, 0, quietLogger())

	var n atomic.Int64
	for i := 0; i < 50; i++ {
		assert.NoError(t, pool.Submit(func() { n.Add(1) }))
	}
	pool.Close()

	assert.Equal(t, int64(50), n.Load())
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 0, quietLogger())

	var n atomic.Int64
	assert.NoError(t, pool.Submit(func() { panic("boom") }))
	assert.NoError(t, pool.Submit(func() { n.Add(1) }))
	pool.Close()

	assert.Equal(t, int64(1), n.Load())
}

func TestWorkerPoolSubmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 2, 0, quietLogger())
	cancel()

	// a worker may still take an item before it notices the cancellation
	err := pool.Submit(func() {})
	for err == nil {
		err = pool.Submit(func() {})
	}
	assert.ErrorIs(t, err, context.Canceled)
	pool.Close()
}
