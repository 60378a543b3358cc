package transport

import (
	"container/heap"
	"time"

	"github.com/paxoslabs/engine/internal/wire"
)

// Callback pairs a pending request with the hooks that fire when its
// response arrives or its deadline passes. Exactly one of OnResponse or
// OnTimeout runs, exactly once.
type Callback struct {
	OnResponse func(body wire.Body)
	OnTimeout  func()
	Deadline   time.Time
}

// deadlineEntry is one (deadline, callback-id) pair in the min-heap.
type deadlineEntry struct {
	deadline   time.Time
	callbackID string
}

// deadlineHeap is a container/heap min-heap ordered by deadline. Popping
// a stale entry (whose callback-id no longer has a live Callback) is a
// silent no-op.
type deadlineHeap []deadlineEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x interface{}) { *h = append(*h, x.(deadlineEntry)) }
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// callbackTable owns the callback map and its deadline heap together:
// every live callback with a deadline appears at least once in the heap,
// and stale heap entries are discarded on pop. It is accessed only from
// the server's dispatch loop goroutine, so there is no internal locking.
type callbackTable struct {
	callbacks map[string]*Callback
	deadlines deadlineHeap
}

func newCallbackTable() *callbackTable {
	return &callbackTable{callbacks: make(map[string]*Callback)}
}

// insert records a new callback and pushes its deadline, if any.
func (t *callbackTable) insert(id string, cb *Callback) {
	t.callbacks[id] = cb
	if !cb.Deadline.IsZero() {
		heap.Push(&t.deadlines, deadlineEntry{deadline: cb.Deadline, callbackID: id})
	}
}

// resolve looks up and removes a callback by id, returning (cb, true) if
// it was live. Used for both the response and the expiry path so a
// callback-id can only ever be resolved once.
func (t *callbackTable) resolve(id string) (*Callback, bool) {
	cb, ok := t.callbacks[id]
	if !ok {
		return nil, false
	}
	delete(t.callbacks, id)
	return cb, true
}

// nextDeadline reports the earliest live deadline, discarding stale heap
// entries along the way. ok is false if no callback has a deadline.
func (t *callbackTable) nextDeadline() (deadline time.Time, ok bool) {
	for t.deadlines.Len() > 0 {
		top := t.deadlines[0]
		if _, live := t.callbacks[top.callbackID]; !live {
			heap.Pop(&t.deadlines)
			continue
		}
		return top.deadline, true
	}
	return time.Time{}, false
}

// popExpired pops and returns the callback-id at the head of the heap if
// its deadline is at or before now, discarding any stale entries first.
// ok is false if nothing has expired.
func (t *callbackTable) popExpired(now time.Time) (id string, ok bool) {
	for t.deadlines.Len() > 0 {
		top := t.deadlines[0]
		if _, live := t.callbacks[top.callbackID]; !live {
			heap.Pop(&t.deadlines)
			continue
		}
		if top.deadline.After(now) {
			return "", false
		}
		heap.Pop(&t.deadlines)
		return top.callbackID, true
	}
	return "", false
}

func (t *callbackTable) len() int { return len(t.callbacks) }
