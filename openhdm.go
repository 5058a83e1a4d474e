/*package openhdm is the timestepping coordination engine of a
hydrodynamic modeling framework built around hierarchical, nested
domains: a coarse parent domain containing zero or more finer child
domains over sub-regions of its mesh.

Each domain advances through the same ordered sequence of phases at every
timestep, on its own worker. A parent and its children synchronize at
phase boundaries so that neither side runs further ahead than the
physical coupling allows, while a shared processor pool bounds how many
phase callables execute simultaneously. The numerical content of a phase
is opaque to the engine: models register phase callables and the engine
only schedules them.

The mesh side of the framework lives in the grid package; model inputs
and outputs build on the input and output packages. A model plugs in by
embedding DomainBase in its domain type and implementing the Domain
hooks.
*/
package openhdm

import "errors"

// A Phase is one stage of a timestep. The callable receives the current
// timestep index, starting from 1. It must not block on the framework's
// synchronization primitives and is expected to always return.
type Phase func(ts uint)

// Domain is the contract a model's domain type fulfills, normally by
// embedding DomainBase and implementing the five hooks. The Project
// calls InstantiateMembers, ReadInputs, and DoInitialize in that order
// on every domain before timestepping, and PostProcess after all workers
// have finished.
type Domain interface {
	// InstantiateMembers constructs the model's solver, grid, and
	// output objects.
	InstantiateMembers() error

	// ReadInputs populates model parameters from input files.
	ReadInputs() error

	// DoInitialize registers the domain's phases and fixes the number
	// of timesteps.
	DoInitialize() error

	// NTimesteps reports the total number of timesteps to run.
	NTimesteps() uint

	// PostProcess runs after every domain has finished timestepping.
	PostProcess() error

	base() *DomainBase
}

var (
	// ErrNameCollision is returned when a domain id or output directory
	// is already in use within a project.
	ErrNameCollision = errors.New("openhdm: domain id or output directory already in use")

	// ErrHierarchyUnset reports use of IsParent or IsChild before the
	// domain hierarchy was finalized.
	ErrHierarchyUnset = errors.New("openhdm: domain hierarchy is not set yet")

	// ErrHierarchyMisuse is returned when a parent is assigned twice,
	// or a project holds more than one parent domain.
	ErrHierarchyMisuse = errors.New("openhdm: invalid domain hierarchy")

	// ErrPhaseInconsistent is returned when the phase table and the
	// control point disagree on the phase count.
	ErrPhaseInconsistent = errors.New("openhdm: phase count and control point count disagree")

	// ErrTimesteppingMismatch is returned when domains disagree on the
	// number of timesteps or phases.
	ErrTimesteppingMismatch = errors.New("openhdm: domains disagree on timestepping parameters")

	// ErrInvalidIndex is returned for child lookups with an unknown
	// index.
	ErrInvalidIndex = errors.New("openhdm: invalid index")
)
