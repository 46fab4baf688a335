// Package engine implements the Engine queue and Game engine
// components: the single-consumer FIFO of deferred tasks that
// serializes every mutation of the World, and the authoritative
// mutator that runs on top of it.
package engine

import (
	"container/heap"
	"sync"
	"time"
)

// Task is one unit of engine work. It always runs on the single
// consumer goroutine started by Queue.Run.
type Task func()

// Queue is a thread-safe FIFO of Tasks with an adjacent min-heap of
// deferred tasks keyed by deadline, grounded in the reference
// implementation's TaskQueueImpl (a priority_queue of {task, expire}
// pairs driven by a single timer). Any goroutine may enqueue; exactly
// one goroutine — the one running Run — dequeues and executes.
type Queue struct {
	mu       sync.Mutex
	fifo     []Task
	deferred deferredHeap
	seq      uint64
	wake     chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends task to the FIFO. Tasks from the same producer run
// in the order they were enqueued relative to each other; tasks from
// different producers interleave in arrival order at the queue.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	q.fifo = append(q.fifo, task)
	q.mu.Unlock()
	q.notify()
}

// DeferredHandle identifies a scheduled deferred task for Cancel.
type DeferredHandle uint64

// EnqueueAfter schedules task to run at or after now+delay. Deferred
// tasks fire in deadline order; deadline ties break by enqueue order
// (FIFO among themselves, per spec.md §5).
func (q *Queue) EnqueueAfter(task Task, delay time.Duration) DeferredHandle {
	q.mu.Lock()
	q.seq++
	entry := &deferredEntry{
		deadline: time.Now().Add(delay),
		seq:      q.seq,
		task:     task,
	}
	heap.Push(&q.deferred, entry)
	handle := DeferredHandle(entry.seq)
	q.mu.Unlock()
	q.notify()
	return handle
}

// Cancel removes a still-pending deferred task. It returns false if
// the task already fired or was never scheduled by this handle. Note:
// spec.md §9's cancelMove intentionally does NOT rely on this to stop
// an in-flight step — it clears the creature's queued-move state so
// the deferred task becomes a no-op when it eventually runs, matching
// the reference implementation's "don't cancel the task, just let it
// expire" comment in gameengine.cc. Cancel exists for callers that do
// need to reclaim a scheduled slot outright (e.g. rescheduling).
func (q *Queue) Cancel(handle DeferredHandle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.deferred {
		if e.seq == uint64(handle) {
			heap.Remove(&q.deferred, i)
			return true
		}
	}
	return false
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run drains ready deferred tasks and then one FIFO task per
// iteration, blocking between iterations until there is work or stop
// is closed. It returns when stop is closed.
func (q *Queue) Run(stop <-chan struct{}) {
	for {
		ready, fifoTask, waitFor, hasFifo := q.pop()
		for _, t := range ready {
			t()
		}
		if hasFifo {
			fifoTask()
			continue
		}
		if len(ready) > 0 {
			continue
		}
		if waitFor <= 0 {
			select {
			case <-q.wake:
			case <-stop:
				return
			}
			continue
		}
		timer := time.NewTimer(waitFor)
		select {
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return
		}
	}
}

// pop drains every deferred task whose deadline has passed, and pops
// at most one FIFO task. waitFor is the duration until the next
// deferred deadline (only meaningful when ready and fifoTask are both
// empty); it is <= 0 when there is no pending deferred task.
func (q *Queue) pop() (ready []Task, fifoTask Task, waitFor time.Duration, hasFifo bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for len(q.deferred) > 0 && !q.deferred[0].deadline.After(now) {
		entry := heap.Pop(&q.deferred).(*deferredEntry)
		ready = append(ready, entry.task)
	}

	if len(q.fifo) > 0 {
		fifoTask = q.fifo[0]
		q.fifo = q.fifo[1:]
		hasFifo = true
	}

	if len(ready) == 0 && !hasFifo && len(q.deferred) > 0 {
		waitFor = q.deferred[0].deadline.Sub(now)
	}
	return
}

// deferredEntry and deferredHeap implement a min-heap on deadline,
// with seq as a strict tiebreaker so same-deadline tasks fire in
// enqueue order.
type deferredEntry struct {
	deadline time.Time
	seq      uint64
	task     Task
}

type deferredHeap []*deferredEntry

func (h deferredHeap) Len() int { return len(h) }
func (h deferredHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h deferredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *deferredHeap) Push(x any) {
	*h = append(*h, x.(*deferredEntry))
}

func (h *deferredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
