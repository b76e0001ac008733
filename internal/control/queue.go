package control

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
)

// Queue is the priority dispatch queue together with the pending set.
//
// A command is pending from admission until Done, whether it is still
// queued or executing. Admission checks the emergency-stop flag, conflicts
// and capacity under the same lock, so concurrent producers cannot
// overshoot the limit or admit two commands for one device parameter.
type Queue struct {
	mu        sync.Mutex
	items     commandHeap
	pending   map[string]string  // key -> command id
	executing map[string]Command // command id -> command
	capacity  int
	seq       uint64
	halted    bool
}

// NewQueue creates a queue admitting at most capacity pending commands.
func NewQueue(capacity int) *Queue {
	return &Queue{
		pending:   make(map[string]string),
		executing: make(map[string]Command),
		capacity:  capacity,
	}
}

// SetCapacity changes the pending limit. Commands already pending are kept.
func (q *Queue) SetCapacity(capacity int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity = capacity
}

// Admit adds cmd to the queue.
func (q *Queue) Admit(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.halted {
		return ErrEmergencyStop
	}
	if _, ok := q.pending[cmd.Key()]; ok {
		return fmt.Errorf("%w: %s", ErrConflict, cmd.Key())
	}
	if len(q.pending) >= q.capacity {
		return fmt.Errorf("%w: %d of %d pending", ErrQueueFull, len(q.pending), q.capacity)
	}

	q.seq++
	heap.Push(&q.items, &queueItem{cmd: cmd, seq: q.seq})
	q.pending[cmd.Key()] = cmd.ID
	return nil
}

// IsPending reports whether a command for key is queued or executing.
func (q *Queue) IsPending(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// Next pops the head of the queue and marks it executing. ok is false when
// the queue is empty or halted.
func (q *Queue) Next() (cmd Command, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.halted || q.items.Len() == 0 {
		return Command{}, false
	}
	item := heap.Pop(&q.items).(*queueItem) //nolint:forcetypeassert // heap only holds *queueItem
	q.executing[item.cmd.ID] = item.cmd
	return item.cmd, true
}

// Done removes an executed command from the pending set. It is a no-op for
// commands discarded by Halt.
func (q *Queue) Done(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.executing, cmd.ID)
	if q.pending[cmd.Key()] == cmd.ID {
		delete(q.pending, cmd.Key())
	}
}

// Halt discards every queued command, clears the pending set and refuses
// admission until Resume. It returns the discarded commands in dispatch
// order.
func (q *Queue) Halt() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	discarded := q.items.sorted()
	q.items = nil
	q.pending = make(map[string]string)
	q.executing = make(map[string]Command)
	q.halted = true
	return discarded
}

// Resume re-enables admission.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.halted = false
}

// Halted reports whether admission is refused.
func (q *Queue) Halted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.halted
}

// Counts returns the number of queued commands and the size of the pending
// set (queued plus executing).
func (q *Queue) Counts() (queued, pending int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len(), len(q.pending)
}

// Snapshot returns the queued commands in dispatch order.
func (q *Queue) Snapshot() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.sorted()
}

// Executing returns the commands currently executing.
func (q *Queue) Executing() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Command, 0, len(q.executing))
	for _, c := range q.executing {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type queueItem struct {
	cmd   Command
	seq   uint64
	index int
}

// commandHeap orders by priority rank descending, then creation time, then
// admission sequence.
type commandHeap []*queueItem

func (h commandHeap) Len() int { return len(h) }

func (h commandHeap) Less(i, j int) bool {
	return before(h[i], h[j])
}

func (h commandHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *commandHeap) Push(x any) {
	item := x.(*queueItem) //nolint:forcetypeassert // heap only holds *queueItem
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

func (h commandHeap) sorted() []Command {
	items := make([]*queueItem, len(h))
	copy(items, h)
	sort.Slice(items, func(i, j int) bool { return before(items[i], items[j]) })

	out := make([]Command, len(items))
	for i, it := range items {
		out[i] = it.cmd
	}
	return out
}

func before(a, b *queueItem) bool {
	if ra, rb := a.cmd.Priority.Rank(), b.cmd.Priority.Rank(); ra != rb {
		return ra > rb
	}
	if !a.cmd.CreatedAt.Equal(b.cmd.CreatedAt) {
		return a.cmd.CreatedAt.Before(b.cmd.CreatedAt)
	}
	return a.seq < b.seq
}
