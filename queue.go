package detour

import (
	"fmt"
	"sync"

	"github.com/pboyd/detour/engine"
)

// applyMu serializes every Queue.Apply in the process. The engine locks
// each call individually; this lock makes the whole queue-then-apply
// sequence atomic with respect to other queues.
var applyMu sync.Mutex

// Queueable is satisfied by *Hook and *StaticHook values.
type Queueable interface {
	queueTarget() (uintptr, string)
}

// Queue collects enable and disable intents and commits them as one
// batch. Recording an intent touches nothing; the engine sees the batch
// only at Apply. When the same hook appears more than once, the last
// entry wins. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	pending []queueEntry
}

type queueEntry struct {
	target uintptr
	name   string
	enable bool
}

// Enable records the intent to enable h.
func (q *Queue) Enable(h Queueable) {
	q.add(h, true)
}

// Disable records the intent to disable h.
func (q *Queue) Disable(h Queueable) {
	q.add(h, false)
}

func (q *Queue) add(h Queueable, enable bool) {
	target, name := h.queueTarget()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, queueEntry{target: target, name: name, enable: enable})
}

// EnableAll records the intent to enable every hook that exists when
// Apply runs.
func (q *Queue) EnableAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, queueEntry{target: engine.AllHooks, name: "all hooks", enable: true})
}

// DisableAll records the intent to disable every hook that exists when
// Apply runs.
func (q *Queue) DisableAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, queueEntry{target: engine.AllHooks, name: "all hooks", enable: false})
}

// Apply commits the batch and leaves the queue empty. Entries were
// validated when their hooks were constructed, so an engine failure here
// means hooks were closed or the engine torn down underneath the queue;
// Apply panics rather than report a half-applied batch.
//
// An empty queue returns without touching the engine.
func (q *Queue) Apply() {
	q.mu.Lock()
	entries := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	if err := Initialize(); err != nil {
		panic(fmt.Sprintf("hook queue: %v", err))
	}

	applyMu.Lock()
	defer applyMu.Unlock()

	for _, entry := range entries {
		var st engine.Status
		if entry.enable {
			st = activeEngine.QueueEnableHook(entry.target)
		} else {
			st = activeEngine.QueueDisableHook(entry.target)
		}
		if st != engine.StatusOK {
			panic(fmt.Sprintf("hook queue: queueing %s failed: %v", entry.name, st))
		}
	}

	if st := activeEngine.ApplyQueued(); st != engine.StatusOK {
		panic(fmt.Sprintf("hook queue: apply failed: %v", st))
	}
}
