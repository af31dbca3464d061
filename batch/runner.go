// Copyright 2025 Google LLC. All Rights Reserved.
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

package batch

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// DefaultPassTimeout bounds a single batching pass so a hung backend
// round-trip fails the pass instead of stalling the runner forever.
const DefaultPassTimeout = 60 * time.Second

// Operation is a task the Runner executes on each tick. ExecutePass returns
// a count of items processed (for logging and metrics) and an error.
type Operation interface {
	ExecutePass(ctx context.Context) (int, error)
}

var (
	metricsOnce   sync.Once
	passes        prometheus.Counter
	failedPasses  prometheus.Counter
	skippedTicks  prometheus.Counter
	batchesSealed prometheus.Counter
	leavesBatched prometheus.Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		passes = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docproof_batch_passes",
			Help: "Number of batching passes executed",
		})
		failedPasses = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docproof_batch_passes_failed",
			Help: "Number of batching passes that returned an error",
		})
		skippedTicks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docproof_batch_ticks_skipped",
			Help: "Number of ticks skipped because the previous pass was still in flight",
		})
		batchesSealed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docproof_batches_sealed",
			Help: "Number of passes that sealed a non-empty batch",
		})
		leavesBatched = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docproof_leaves_batched",
			Help: "Total number of documents folded into batches",
		})
		prometheus.MustRegister(passes, failedPasses, skippedTicks, batchesSealed, leavesBatched)
	})
}

// Runner executes an Operation on a fixed interval. Ticks are strictly
// serialized: if a pass is still in flight when the next tick fires, the
// tick is skipped and counted, so two passes can never double-claim the same
// pending-document set.
type Runner struct {
	op       Operation
	interval time.Duration
	timeout  time.Duration

	inFlight sync.Mutex
}

// NewRunner creates a Runner executing op every interval, with
// DefaultPassTimeout applied to each pass.
func NewRunner(op Operation, interval time.Duration) *Runner {
	initMetrics()
	return &Runner{op: op, interval: interval, timeout: DefaultPassTimeout}
}

// SetPassTimeout overrides the per-pass timeout.
func (r *Runner) SetPassTimeout(d time.Duration) {
	r.timeout = d
}

// Run executes passes until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			klog.Infof("batch runner exiting: %v", ctx.Err())
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single pass, unless one is already in flight, in which
// case it returns immediately.
func (r *Runner) RunOnce(ctx context.Context) {
	if !r.inFlight.TryLock() {
		skippedTicks.Inc()
		klog.Warning("previous batching pass still in flight, skipping tick")
		return
	}
	defer r.inFlight.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	passes.Inc()
	n, err := r.op.ExecutePass(ctx)
	if err != nil {
		failedPasses.Inc()
		klog.Errorf("batching pass failed: %v", err)
		return
	}
	if n > 0 {
		batchesSealed.Inc()
		leavesBatched.Add(float64(n))
	}
}
