/*package threading provides the two synchronization primitives used to
coordinate concurrent domain timestepping: ControlPoint, a modular progress
counter that marks where a domain is within the phases of a timestep, and
Pool, a counting semaphore that rations processors among the domains.
*/
package threading

import (
	"sync"
)

// A ControlPoint records which phase of the current timestep its owning
// domain is executing, and whether that phase has finished. The value is
// modular: after the last phase of a timestep it wraps back to zero.
//
// A ControlPoint has a single writer, the worker of the owning domain.
// Readers on the other side of a phase barrier go through Val and Done,
// which take the read lock.
type ControlPoint struct {
	mu   sync.RWMutex
	ncp  int
	val  int
	done bool
}

// NewControlPoint returns a control point with no registered phases.
// The initial value is one phase before zero, so that the first barrier
// check of the first timestep passes, and done starts true.
func NewControlPoint() *ControlPoint {
	return &ControlPoint{val: -1, done: true}
}

// Register adds one phase to the counter's cycle. It is called once per
// inserted phase, before timestepping begins, and never after.
func (cp *ControlPoint) Register() {
	cp.mu.Lock()
	cp.ncp++
	cp.mu.Unlock()
}

// NCP returns the number of phases the counter cycles through.
func (cp *ControlPoint) NCP() int {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.ncp
}

// Increment advances the counter to the next phase, modulo the phase
// count, and clears done in the same critical section.
func (cp *ControlPoint) Increment() {
	cp.mu.Lock()
	cp.val = (cp.val + 1) % cp.ncp
	cp.done = false
	cp.mu.Unlock()
}

// MarkDone flags the current phase as finished.
func (cp *ControlPoint) MarkDone() {
	cp.mu.Lock()
	cp.done = true
	cp.mu.Unlock()
}

// Val returns the current phase index. Before the first Increment this is
// -1, which behaves as ncp-1 under the modular gap arithmetic used by the
// barrier predicates.
func (cp *ControlPoint) Val() int {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.val
}

// Done reports whether the phase at Val has completed.
func (cp *ControlPoint) Done() bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.done
}

// Gap returns the modular distance from cp to other: how many phases other
// is ahead of cp, wrapped into [0, ncp).
func (cp *ControlPoint) Gap(other *ControlPoint) int {
	ncp := cp.NCP()
	return (ncp + other.Val() - cp.Val()) % ncp
}

// A Pool is a counting semaphore sized to the number of processors shared
// by a parent domain and its children. A domain holds a permit only while
// running a phase callable, so the pool bounds how many callables run
// simultaneously, independently of how many workers exist.
type Pool struct {
	mu        sync.Mutex
	cond      *sync.Cond
	nProcs    int
	remaining int
}

// NewPool returns a pool with n permits available.
func NewPool(n int) *Pool {
	p := &Pool{nProcs: n, remaining: n}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Acquire blocks until a permit is available and takes it.
func (p *Pool) Acquire() {
	p.mu.Lock()
	for p.remaining == 0 {
		p.cond.Wait()
	}
	p.remaining--
	p.mu.Unlock()
}

// Release returns a permit and wakes one waiter.
func (p *Pool) Release() {
	p.mu.Lock()
	p.remaining++
	p.mu.Unlock()
	p.cond.Signal()
}

// NProcs returns the configured permit count.
func (p *Pool) NProcs() int { return p.nProcs }

// Remaining returns the current number of free permits.
func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}
