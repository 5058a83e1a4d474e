package openhdm

import (
	"fmt"
	"sync"

	"github.com/atdyer/OpenHDM/report"
	"github.com/atdyer/OpenHDM/threading"
)

// DomainBase carries everything the engine needs to drive one domain:
// identity, the position in the domain tree, the phase table, the
// control point, and the synchronization links shared with the rest of
// the tree. Model domain types embed it and build their solver, grid,
// and outputs on top.
//
// The synchronization primitives are owned by the parent domain of a
// tree. Children borrow pointers to them at concurrency configuration;
// the project guarantees the parent outlives its children.
type DomainBase struct {
	id        string
	path      string
	outputDir string

	parentDom Domain
	parent    *DomainBase
	children  []Domain

	phases []Phase
	cp     *threading.ControlPoint

	pool       *threading.Pool
	mu         *sync.Mutex
	cvParent   *sync.Cond // children signal the parent here
	cvChildren *sync.Cond // the parent broadcasts to children here
	childCPs   []*threading.ControlPoint

	nProcIntra int

	hierarchySet bool
	initialized  bool

	rep report.Reporter
}

// NewDomainBase returns the base for a domain with the given identity.
// The domain belongs to no hierarchy until the project finalizes one.
func NewDomainBase(id, path, outputDir string) DomainBase {
	return DomainBase{
		id:        id,
		path:      path,
		outputDir: outputDir,
		cp:        threading.NewControlPoint(),
		rep:       report.Discard{},
	}
}

func (b *DomainBase) base() *DomainBase { return b }

// ID returns the domain's identifier, unique within its project.
func (b *DomainBase) ID() string { return b.id }

// Path returns the directory holding the domain's input files.
func (b *DomainBase) Path() string { return b.path }

// OutputDir returns the directory the domain writes its outputs to,
// unique within its project.
func (b *DomainBase) OutputDir() string { return b.outputDir }

// Reporter returns the logging sink the project injected into the
// domain.
func (b *DomainBase) Reporter() report.Reporter { return b.rep }

// HierarchyIsSet reports whether the domain's place in the tree has been
// finalized.
func (b *DomainBase) HierarchyIsSet() bool { return b.hierarchySet }

// IsInitialized reports whether DoInitialize has completed.
func (b *DomainBase) IsInitialized() bool { return b.initialized }

// IsParent reports whether the domain sits at the root of its tree. It
// panics if the hierarchy has not been finalized yet.
func (b *DomainBase) IsParent() bool {
	if !b.hierarchySet {
		panic(fmt.Errorf("hierarchy of %s: %w", b.id, ErrHierarchyUnset))
	}
	return b.parent == nil
}

// IsChild reports whether the domain has a parent. It panics if the
// hierarchy has not been finalized yet.
func (b *DomainBase) IsChild() bool { return !b.IsParent() }

// Parent returns the parent domain, or nil at the root of the tree.
func (b *DomainBase) Parent() Domain { return b.parentDom }

// NumChildren returns the number of child domains.
func (b *DomainBase) NumChildren() int { return len(b.children) }

// GetChild returns the i'th child domain.
func (b *DomainBase) GetChild(i int) (Domain, error) {
	if i < 0 || i >= len(b.children) {
		return nil, fmt.Errorf("domain %s: child index %d: %w", b.id, i, ErrInvalidIndex)
	}
	return b.children[i], nil
}

// NProcIntra returns the processor budget available to this domain's
// solver within a phase.
func (b *DomainBase) NProcIntra() int { return b.nProcIntra }

// NPhases returns the number of registered phases.
func (b *DomainBase) NPhases() int { return len(b.phases) }

// SetHierarchy finalizes d's position in the domain tree. A nil parent
// makes d a root; otherwise d becomes a child of parent, which may
// happen at most once per domain.
func SetHierarchy(d, parent Domain) error {
	db := d.base()
	if parent == nil {
		db.hierarchySet = true
		return nil
	}

	if db.parentDom != nil {
		return fmt.Errorf("parent domain of %s is already set: %w",
			db.id, ErrHierarchyMisuse)
	}
	db.parentDom = parent
	db.parent = parent.base()
	db.hierarchySet = true

	pb := parent.base()
	pb.children = append(pb.children, d)
	pb.hierarchySet = true

	db.rep.Logf(3, "Child: %s  Parent: %s", db.id, pb.id)
	return nil
}

// InsertPhase appends f to the phase table. Phases execute in insertion
// order at every timestep. All phases must be registered before
// timestepping begins, during InstantiateMembers or DoInitialize.
func (b *DomainBase) InsertPhase(f Phase) error {
	b.phases = append(b.phases, f)
	b.cp.Register()

	if b.cp.NCP() != len(b.phases) {
		return fmt.Errorf("domain %s: %w", b.id, ErrPhaseInconsistent)
	}
	return nil
}

// setConcurrency wires the domain into the shared synchronization state
// of its tree. The parent allocates the pool, the mutex, and the two
// condition variables; children borrow pointers to them and hand the
// parent a view of their control point for the barrier predicate.
//
// nProcInter sizes the pool and is only meaningful on the parent. A
// parent with no children gets no pool at all and timesteps without
// synchronizing.
func (b *DomainBase) setConcurrency(nProcInter int) error {
	if !b.hierarchySet {
		return fmt.Errorf("domain %s: %w", b.id, ErrHierarchyUnset)
	}

	if b.parent == nil {
		if len(b.children) == 0 {
			return nil
		}
		b.pool = threading.NewPool(nProcInter)
		b.mu = new(sync.Mutex)
		b.cvParent = sync.NewCond(b.mu)
		b.cvChildren = sync.NewCond(b.mu)
	} else {
		pb := b.parent
		b.pool = pb.pool
		b.mu = pb.mu
		b.cvParent = pb.cvParent
		b.cvChildren = pb.cvChildren
		pb.childCPs = append(pb.childCPs, b.cp)
	}
	return nil
}

// initialize runs the model's DoInitialize hook and marks the domain
// initialized.
func (b *DomainBase) initialize(d Domain) error {
	if err := d.DoInitialize(); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

// Timestepping drives the domain through nts timesteps, executing the
// registered phases in order within each timestep and synchronizing with
// the rest of the domain tree at every phase boundary.
func (b *DomainBase) Timestepping(nts uint) {
	b.rep.Logf(1, "Initiating timestepping for the domain %s", b.id)

	for ts := uint(1); ts <= nts; ts++ {
		for _, phase := range b.phases {
			b.phaseCheck()
			phase(ts)
			b.completePhase()
		}
	}
}

// sequential reports whether the domain timesteps without a barrier: a
// lone parent with no children and therefore no pool.
func (b *DomainBase) sequential() bool { return b.pool == nil }

// phaseCheck blocks until the domain may enter its next phase, advances
// the control point, wakes the other side of the barrier, and takes a
// permit from the shared pool.
//
// The parent may advance only once no child lags behind its current
// phase. A child may advance while the parent is more than one phase
// ahead, or exactly one phase ahead with that phase completed. The
// modular arithmetic lets both sides wrap across timestep boundaries, so
// a child can trail the parent by up to a full timestep.
func (b *DomainBase) phaseCheck() {
	if b.sequential() {
		b.cp.Increment()
		return
	}

	if b.parent == nil {
		b.mu.Lock()
		for !b.childrenCaughtUp() {
			b.cvParent.Wait()
		}
		b.cp.Increment()
		b.mu.Unlock()
		b.cvChildren.Broadcast()
	} else {
		b.mu.Lock()
		for {
			gap := b.cp.Gap(b.parent.cp)
			if gap > 1 || (gap == 1 && b.parent.cp.Done()) {
				break
			}
			b.cvChildren.Wait()
		}
		b.cp.Increment()
		b.mu.Unlock()
		b.cvParent.Signal()
	}

	b.pool.Acquire()
}

// childrenCaughtUp is the parent's barrier predicate: every child is at
// the parent's phase, possibly having wrapped around.
func (b *DomainBase) childrenCaughtUp() bool {
	for _, childCP := range b.childCPs {
		if b.cp.Gap(childCP) != 0 {
			return false
		}
	}
	return true
}

// completePhase signals phase completion: the pool permit goes back
// first, then done is flagged under the shared mutex and the other side
// of the barrier is woken.
func (b *DomainBase) completePhase() {
	if b.sequential() {
		b.cp.MarkDone()
		return
	}

	b.pool.Release()

	b.mu.Lock()
	b.cp.MarkDone()
	b.mu.Unlock()

	if b.parent == nil {
		b.cvChildren.Broadcast()
	} else {
		b.cvParent.Signal()
	}
}
