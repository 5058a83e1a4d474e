package openhdm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call records one phase invocation for order checking.
type call struct {
	phase int
	ts    uint
}

// testDomain is the minimal Domain used to exercise the engine.
type testDomain struct {
	DomainBase
	nts   uint
	setup func(d *testDomain) error

	mu    sync.Mutex
	calls []call
}

func newTestDomain(id string, nts uint) *testDomain {
	return &testDomain{DomainBase: NewDomainBase(id, "/"+id, "/out/"+id), nts: nts}
}

func (d *testDomain) InstantiateMembers() error { return nil }
func (d *testDomain) ReadInputs() error         { return nil }
func (d *testDomain) PostProcess() error        { return nil }
func (d *testDomain) NTimesteps() uint          { return d.nts }

func (d *testDomain) DoInitialize() error {
	if d.setup != nil {
		return d.setup(d)
	}
	return nil
}

// record returns a phase callable that logs its invocations.
func (d *testDomain) record(phase int) Phase {
	return func(ts uint) {
		d.mu.Lock()
		d.calls = append(d.calls, call{phase, ts})
		d.mu.Unlock()
	}
}

func (d *testDomain) recorded() []call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]call(nil), d.calls...)
}

func TestSequentialTimestepping(t *testing.T) {
	d := newTestDomain("A", 3)
	require.NoError(t, SetHierarchy(d, nil))
	require.NoError(t, d.setConcurrency(0))
	require.NoError(t, d.InsertPhase(d.record(0)))
	require.NoError(t, d.InsertPhase(d.record(1)))

	assert.True(t, d.IsParent())
	assert.True(t, d.sequential(), "a lone parent runs without a pool")

	d.Timestepping(3)

	want := []call{
		{0, 1}, {1, 1},
		{0, 2}, {1, 2},
		{0, 3}, {1, 3},
	}
	assert.Equal(t, want, d.recorded())
}

func TestHierarchyAccessors(t *testing.T) {
	p := newTestDomain("P", 1)
	c := newTestDomain("C", 1)

	assert.Panics(t, func() { p.IsParent() }, "hierarchy must be set first")
	assert.Panics(t, func() { c.IsChild() })

	require.NoError(t, SetHierarchy(c, p))
	assert.True(t, p.IsParent())
	assert.True(t, c.IsChild())
	assert.Equal(t, 1, p.NumChildren())

	got, err := p.GetChild(0)
	require.NoError(t, err)
	assert.Equal(t, "C", got.base().ID())
	_, err = p.GetChild(1)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	assert.Same(t, p, c.Parent().(*testDomain))

	// A second parent assignment is refused.
	q := newTestDomain("Q", 1)
	require.NoError(t, SetHierarchy(q, nil))
	err = SetHierarchy(c, q)
	assert.ErrorIs(t, err, ErrHierarchyMisuse)
}

func TestInsertPhaseTracksControlPoint(t *testing.T) {
	d := newTestDomain("A", 1)
	for i := 0; i < 4; i++ {
		require.NoError(t, d.InsertPhase(func(uint) {}))
	}
	assert.Equal(t, 4, d.NPhases())
	assert.Equal(t, 4, d.cp.NCP())
}

// wireTree builds a parent with children, registers nPhases recording
// phases on each, and configures concurrency with the given pool size.
func wireTree(t *testing.T, parent *testDomain, children []*testDomain, nPhases, nProcInter int) {
	t.Helper()
	for _, c := range children {
		require.NoError(t, SetHierarchy(c, parent))
	}
	require.NoError(t, SetHierarchy(parent, nil))

	for i := 0; i < nPhases; i++ {
		require.NoError(t, parent.InsertPhase(parent.record(i)))
		for _, c := range children {
			require.NoError(t, c.InsertPhase(c.record(i)))
		}
	}

	require.NoError(t, parent.setConcurrency(nProcInter))
	for _, c := range children {
		require.NoError(t, c.setConcurrency(0))
	}
}

func TestParentChildLockstep(t *testing.T) {
	parent := newTestDomain("P", 2)
	child := newTestDomain("C", 2)
	wireTree(t, parent, []*testDomain{child}, 2, 2)

	// Wrap the child's phases so every invocation samples the modular
	// gap between parent and child control points.
	gapCh := make(chan int, 64)
	for i := range child.phases {
		inner := child.phases[i]
		child.phases[i] = func(ts uint) {
			gapCh <- child.cp.Gap(parent.cp)
			inner(ts)
		}
	}

	var wg sync.WaitGroup
	for _, d := range []*testDomain{parent, child} {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Timestepping(2)
		}()
	}
	wg.Wait()
	close(gapCh)

	want := []call{{0, 1}, {1, 1}, {0, 2}, {1, 2}}
	assert.Equal(t, want, parent.recorded(), "parent phase order")
	assert.Equal(t, want, child.recorded(), "child phase order")

	for gap := range gapCh {
		assert.Contains(t, []int{0, 1}, gap,
			"parent may lead the child by at most one phase")
	}

	assert.Equal(t, 2, parent.pool.Remaining(), "all permits returned")
}

func TestParentManyChildren(t *testing.T) {
	parent := newTestDomain("P", 3)
	children := []*testDomain{
		newTestDomain("C0", 3), newTestDomain("C1", 3), newTestDomain("C2", 3),
	}
	wireTree(t, parent, children, 3, 2)

	var wg sync.WaitGroup
	all := append([]*testDomain{parent}, children...)
	for _, d := range all {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Timestepping(3)
		}()
	}
	wg.Wait()

	want := []call{
		{0, 1}, {1, 1}, {2, 1},
		{0, 2}, {1, 2}, {2, 2},
		{0, 3}, {1, 3}, {2, 3},
	}
	for _, d := range all {
		assert.Equal(t, want, d.recorded(), "domain %s", d.ID())
	}
}

// Walks the barrier through a phase-index wrap by hand: with three
// phases and both sides done with the last phase of a timestep, the
// parent passes first, and the child follows only once the parent
// completes the wrapped phase.
func TestBarrierWrap(t *testing.T) {
	parent := newTestDomain("P", 1)
	child := newTestDomain("C", 1)
	wireTree(t, parent, []*testDomain{child}, 3, 2)

	// Advance both sides to the last phase of a timestep, all done.
	for i := 0; i < 3; i++ {
		parent.cp.Increment()
		child.cp.Increment()
	}
	parent.cp.MarkDone()
	child.cp.MarkDone()
	require.Equal(t, 2, parent.cp.Val())
	require.Equal(t, 2, child.cp.Val())

	childPassed := make(chan struct{})
	go func() {
		child.phaseCheck()
		close(childPassed)
	}()

	// gap(C, P) = 0: the child must hold.
	select {
	case <-childPassed:
		t.Fatal("child passed the barrier ahead of the parent")
	case <-time.After(20 * time.Millisecond):
	}

	// The parent passes (every child is caught up) and wraps to phase 0.
	parent.phaseCheck()
	assert.Equal(t, 0, parent.cp.Val())
	assert.False(t, parent.cp.Done())

	// gap(C, P) = 1 but the parent's phase is not done: still holding.
	select {
	case <-childPassed:
		t.Fatal("child passed the barrier before the parent's phase completed")
	case <-time.After(20 * time.Millisecond):
	}

	parent.completePhase()

	select {
	case <-childPassed:
	case <-time.After(time.Second):
		t.Fatal("child did not pass the barrier after the parent completed")
	}
	assert.Equal(t, 0, child.cp.Val())

	child.completePhase()
	assert.Equal(t, 2, parent.pool.Remaining())
}

// From the freshly configured state the first barrier check of every
// domain passes without waiting.
func TestFirstBarrierPassesImmediately(t *testing.T) {
	parent := newTestDomain("P", 1)
	child := newTestDomain("C", 1)
	wireTree(t, parent, []*testDomain{child}, 2, 2)

	done := make(chan struct{})
	go func() {
		parent.phaseCheck()
		parent.completePhase()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("parent's first phase check blocked")
	}

	childDone := make(chan struct{})
	go func() {
		child.phaseCheck()
		child.completePhase()
		close(childDone)
	}()
	select {
	case <-childDone:
	case <-time.After(time.Second):
		t.Fatal("child's first phase check blocked")
	}
}
