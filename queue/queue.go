// Copyright 2025 go-highway Authors
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

// Package queue models the host-side half of a device command queue: a
// persistent-goroutine dispatcher that accepts KernelLaunch submissions and
// signals an Event on completion. The real device runtime (NDRange dispatch,
// buffer/image/event objects) is an external collaborator; this package
// supplies the contract the decomposer and solver schedule against so that
// SolutionStep event-wait-list chains can be built and exercised without a
// real accelerator. Adapted from hwy/contrib/workerpool.Pool: same persistent-
// goroutine, channel-dispatched design, except a submitted unit fires an Event
// on completion instead of joining a shared sync.WaitGroup barrier.
package queue

import (
	"sync"
	"sync/atomic"
)

// KernelLaunch is one unit of work submitted to a CommandQueue: a solution
// step's kernel dispatch, reduced to its scheduling-relevant shape. Run
// models the device-side kernel execution; WaitList is the set of
// predecessor events this launch must not start before.
type KernelLaunch struct {
	Name     string
	WaitList []*Event
	Run      func() error
}

type submission struct {
	launch KernelLaunch
	event  *Event
}

// CommandQueue is the host-side half of a device command queue. On an open
// queue, Submit does not wait for the launch to run; ordering is established
// purely through the Event wait lists attached to each KernelLaunch.
type CommandQueue struct {
	// OutOfOrder marks the queue as out-of-order, which forces the image
	// budget for pattern selection to zero.
	OutOfOrder bool
	// ComputeUnits is the device's compute-unit count, consulted by the
	// decomposer's queue-sharding step.
	ComputeUnits int

	workC     chan submission
	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a CommandQueue backed by a single persistent goroutine and
// starts it immediately. computeUnits and outOfOrder are copied onto the
// queue for the decomposer/pattern-selector to read back.
func New(computeUnits int, outOfOrder bool) *CommandQueue {
	q := &CommandQueue{
		OutOfOrder:   outOfOrder,
		ComputeUnits: computeUnits,
		workC:        make(chan submission, 64),
	}
	go q.worker()
	return q
}

func (q *CommandQueue) worker() {
	for sub := range q.workC {
		for _, w := range sub.launch.WaitList {
			if w != nil {
				w.Wait()
			}
		}
		var err error
		if sub.launch.Run != nil {
			err = sub.launch.Run()
		}
		sub.event.signal(err)
	}
}

// Submit enqueues launch and returns immediately with the Event that will be
// signaled once launch.Run completes (after its WaitList has been satisfied).
// Submitting to a closed queue runs the launch synchronously on the caller's
// goroutine instead of panicking on a closed channel send.
func (q *CommandQueue) Submit(launch KernelLaunch) *Event {
	ev := NewEvent()
	if q.closed.Load() {
		for _, w := range launch.WaitList {
			if w != nil {
				w.Wait()
			}
		}
		var err error
		if launch.Run != nil {
			err = launch.Run()
		}
		ev.signal(err)
		return ev
	}
	q.workC <- submission{launch: launch, event: ev}
	return ev
}

// Close drains pending work and shuts down the queue's worker goroutine.
// Safe to call more than once.
func (q *CommandQueue) Close() {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.workC)
	})
}
