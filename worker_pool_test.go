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
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 3, nil)
	if wp.Size() != 3 {
		t.Fatalf("Size() = %d", wp.Size())
	}

	var active, peak, done atomic.Int32
	for range 12 {
		err := wp.Submit(func() {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			done.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wp.Close()

	if done.Load() != 12 {
		t.Errorf("ran %d items, want 12", done.Load())
	}
	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds pool size", peak.Load())
	}
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 1, nil)
	if err := wp.Submit(func() { panic("bad extractor") }); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	if err := wp.Submit(func() { wg.Done() }); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	wp.Close()
}

func TestWorkerPoolSubmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wp := NewWorkerPool(ctx, 1, nil)

	block := make(chan struct{})
	if err := wp.Submit(func() { <-block }); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := wp.Submit(func() {}); err == nil {
		t.Error("Submit should fail once ctx is cancelled and no worker is idle")
	}
	close(block)
	wp.Close()
}
