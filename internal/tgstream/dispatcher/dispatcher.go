// Package dispatcher selects among several authenticated bot clients
// for each incoming download, generalizing the multi_clients registry
// and client_selection_lock in original_source/tgfs/routes.py and
// original_source/tgfs/telegram.py.
package dispatcher

import (
	"sync"
	"sync/atomic"
)

// Worker is one authenticated client capable of serving downloads,
// identified by the order its MULTI_TOKEN{N} (or the primary bot
// token) was configured in.
type Worker struct {
	ID int

	activeClients int32
	users         int32
}

// ActiveClients reports the worker's current in-flight request count,
// exposed for the status route mirroring handle_root's active_clients
// field.
func (w *Worker) ActiveClients() int32 { return atomic.LoadInt32(&w.activeClients) }

// Users reports the worker's current in-flight chunk-download count,
// mirroring handle_root's users field.
func (w *Worker) Users() int32 { return atomic.LoadInt32(&w.users) }

func (w *Worker) addUsers(delta int32) { atomic.AddInt32(&w.users, delta) }

// BeginTransfer marks one more chunk-download as in flight against this
// worker's data-center connections, distinct from ActiveClients which
// counts in-flight HTTP requests. The caller must call the returned
// func exactly once when the transfer finishes.
func (w *Worker) BeginTransfer() func() {
	w.addUsers(1)
	return func() { w.addUsers(-1) }
}

// Dispatcher is the registry of Workers plus the selection lock that
// guards picking the least-loaded one, matching client_selection_lock.
type Dispatcher struct {
	mu      sync.Mutex
	workers []*Worker
}

func New(workers []*Worker) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// Lease selects the worker with the fewest active clients, marks it
// busy, and returns it along with a release function the caller must
// call exactly once — typically via defer — when the request
// completes.
func (d *Dispatcher) Lease() (*Worker, func()) {
	d.mu.Lock()
	w := d.workers[0]
	for _, candidate := range d.workers[1:] {
		if candidate.ActiveClients() < w.ActiveClients() {
			w = candidate
		}
	}
	atomic.AddInt32(&w.activeClients, 1)
	d.mu.Unlock()

	return w, func() { atomic.AddInt32(&w.activeClients, -1) }
}

// Snapshot returns the [active_clients, users] pair for every worker,
// keyed by worker ID, matching handle_root's JSON response shape.
func (d *Dispatcher) Snapshot() map[int][2]int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int][2]int32, len(d.workers))
	for _, w := range d.workers {
		out[w.ID] = [2]int32{w.ActiveClients(), w.Users()}
	}
	return out
}
