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

package queue

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitRunsAndSignals(t *testing.T) {
	q := New(4, false)
	defer q.Close()

	var ran atomic.Bool
	ev := q.Submit(KernelLaunch{Name: "k1", Run: func() error {
		ran.Store(true)
		return nil
	}})
	require.NoError(t, ev.Wait())
	require.True(t, ran.Load())
	require.True(t, ev.Signaled())
}

func TestSubmitRespectsWaitList(t *testing.T) {
	q := New(4, false)
	defer q.Close()

	var order []int
	first := q.Submit(KernelLaunch{Name: "first", Run: func() error {
		time.Sleep(10 * time.Millisecond)
		order = append(order, 1)
		return nil
	}})
	second := q.Submit(KernelLaunch{Name: "second", WaitList: []*Event{first}, Run: func() error {
		order = append(order, 2)
		return nil
	}})

	require.NoError(t, second.Wait())
	require.Equal(t, []int{1, 2}, order)
}

func TestSubmitPropagatesError(t *testing.T) {
	q := New(2, false)
	defer q.Close()

	wantErr := errTest
	ev := q.Submit(KernelLaunch{Run: func() error { return wantErr }})
	require.ErrorIs(t, ev.Wait(), wantErr)
}

func TestChainOfEventsHasNoCycleAndSinglePredecessor(t *testing.T) {
	// Models a three-step compound decomposition chain (TRSM1 -> GEMM -> TRSM2):
	// each successor's wait list is exactly its predecessor's event.
	q := New(4, false)
	defer q.Close()

	e1 := q.Submit(KernelLaunch{Name: "trxm1"})
	e2 := q.Submit(KernelLaunch{Name: "gemm", WaitList: []*Event{e1}})
	e3 := q.Submit(KernelLaunch{Name: "trxm2", WaitList: []*Event{e2}})

	require.NoError(t, e3.Wait())
	// e1 has no predecessor (first step); e2 and e3 each wait on exactly
	// one, so e3 completing means the whole chain before it has fired.
	require.True(t, e1.Signaled() && e2.Signaled())
}

func TestAlreadySignaled(t *testing.T) {
	ev := AlreadySignaled()
	require.True(t, ev.Signaled())
	require.NoError(t, ev.Wait())
}

func TestSubmitAfterCloseRunsSynchronously(t *testing.T) {
	q := New(2, false)
	q.Close()
	q.Close() // idempotent

	var ran atomic.Bool
	ev := q.Submit(KernelLaunch{Run: func() error {
		ran.Store(true)
		return nil
	}})
	require.True(t, ran.Load())
	require.NoError(t, ev.Wait())
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
