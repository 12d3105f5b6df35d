//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

package schemaindex

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
)

// UpdateQueue is an unbounded, multi-producer/single-consumer FIFO of
// pending node-property updates.
//
// NOTE: unbounded queue expected here. There is deliberately no
// backpressure: bounding it would risk deadlocking committers behind a
// slow populator. Sustained producer/consumer imbalance is a real memory
// exhaustion risk for the host process; this is a conscious tradeoff, not
// an oversight, and must not be silently "fixed" with a cap. Size is
// exposed via Len so an operator can watch for runaway growth.
type UpdateQueue struct {
	mu   sync.Mutex
	l    *list.List
	size atomic.Int64
}

// NewUpdateQueue returns an empty queue.
func NewUpdateQueue() *UpdateQueue {
	return &UpdateQueue{l: list.New()}
}

// Enqueue never blocks and never fails. The update must be visible to the
// consumer before the enqueuing transaction's commit acknowledgement
// returns, so callers must call this synchronously on the commit path.
func (q *UpdateQueue) Enqueue(update schemaindex.NodePropertyUpdate) {
	q.mu.Lock()
	q.l.PushBack(update)
	q.mu.Unlock()
	q.size.Add(1)
}

// EnqueueAll enqueues a batch, preserving relative order.
func (q *UpdateQueue) EnqueueAll(updates []schemaindex.NodePropertyUpdate) {
	if len(updates) == 0 {
		return
	}
	q.mu.Lock()
	for _, u := range updates {
		q.l.PushBack(u)
	}
	q.mu.Unlock()
	q.size.Add(int64(len(updates)))
}

// Len returns the current queue depth. Approximate under concurrent
// enqueue, exact with respect to any drain that has already returned.
func (q *UpdateQueue) Len() int64 {
	return q.size.Load()
}

// DrainWhile removes a prefix of updates matching predicate in FIFO
// order, stopping at the first non-match without consuming it, and
// returns the removed prefix. Only the consumer (the populator) may call
// this; it is not safe for concurrent callers of DrainWhile with each
// other.
func (q *UpdateQueue) DrainWhile(predicate func(schemaindex.NodePropertyUpdate) bool) []schemaindex.NodePropertyUpdate {
	return q.DrainWhileLimited(predicate, -1)
}

// DrainWhileLimited is DrainWhile bounded to at most limit items, so a
// single opportunistic drain during scan can't be starved by an
// arbitrarily long run of matching updates. limit <= 0 means unbounded.
func (q *UpdateQueue) DrainWhileLimited(predicate func(schemaindex.NodePropertyUpdate) bool, limit int) []schemaindex.NodePropertyUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drained []schemaindex.NodePropertyUpdate
	for limit <= 0 || len(drained) < limit {
		front := q.l.Front()
		if front == nil {
			break
		}
		update := front.Value.(schemaindex.NodePropertyUpdate)
		if !predicate(update) {
			break
		}
		q.l.Remove(front)
		drained = append(drained, update)
	}
	if len(drained) > 0 {
		q.size.Add(-int64(len(drained)))
	}
	return drained
}

// DrainAll drains the entire queue regardless of nodeId, used for the
// terminal drain at flip time.
func (q *UpdateQueue) DrainAll() []schemaindex.NodePropertyUpdate {
	return q.DrainWhile(func(schemaindex.NodePropertyUpdate) bool { return true })
}
