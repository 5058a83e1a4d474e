package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIndex is returned for lookups with an unknown id or a
	// position that does not match the grid's bookkeeping.
	ErrInvalidIndex = errors.New("grid: invalid index")

	// ErrUnitLifecycle is returned on a double activation or a double
	// deactivation of a unit.
	ErrUnitLifecycle = errors.New("grid: invalid unit lifecycle transition")

	// ErrInvalidatedRef is returned when dereferencing a zero ref or a
	// ref whose unit has been removed from the grid.
	ErrInvalidatedRef = errors.New("grid: dereference of invalidated ref")

	// ErrUnknownUnitType is returned when a unit type was not registered
	// with the grid.
	ErrUnknownUnitType = errors.New("grid: unknown unit type")
)

// NoPos marks a position or patch assignment that has not been made yet.
const NoPos = -1

// A Unit is a single mesh element: a node, cell, element, or whatever a
// model's spatial discretization is built from. Concrete unit types embed
// UnitBase, which provides the full interface; the grid and patch layers
// only ever touch the embedded base.
type Unit interface {
	ID() int
	Pos() int
	PatchPos() int
	PatchID() int
	Active() bool
	Boundary() bool
	ActivationTimestep() uint

	Activate(ts uint) error
	Deactivate() error

	base() *UnitBase
}

// UnitBase carries the bookkeeping every mesh element needs: a stable id
// assigned at creation, the unit's slot in its grid's arena, its position
// within the owning patch, and the activation state.
type UnitBase struct {
	id           int
	pos          int
	patchPos     int
	patchID      int
	active       bool
	boundary     bool
	activationTS uint
}

// NewUnitBase returns the base for a unit with the given stable id. The
// unit belongs to no grid and no patch until inserted and included.
func NewUnitBase(id int) UnitBase {
	return UnitBase{id: id, pos: NoPos, patchPos: NoPos, patchID: NoPos}
}

func (u *UnitBase) base() *UnitBase { return u }

// ID returns the stable identifier assigned at creation.
func (u *UnitBase) ID() int { return u.id }

// Pos returns the unit's slot in the owning grid's arena for its type.
func (u *UnitBase) Pos() int { return u.pos }

// PatchPos returns the unit's position within the owning patch.
func (u *UnitBase) PatchPos() int { return u.patchPos }

// PatchID returns the id of the patch the unit is included in.
func (u *UnitBase) PatchID() int { return u.patchID }

// Active reports whether the unit currently participates in computation.
func (u *UnitBase) Active() bool { return u.active }

// Boundary reports whether the unit lies on a domain boundary.
func (u *UnitBase) Boundary() bool { return u.boundary }

// SetBoundary marks or unmarks the unit as a boundary element.
func (u *UnitBase) SetBoundary(b bool) { u.boundary = b }

// ActivationTimestep returns the timestep at which the unit last became
// active.
func (u *UnitBase) ActivationTimestep() uint { return u.activationTS }

// Activate marks the unit active as of timestep ts. Activating an already
// active unit is an error.
func (u *UnitBase) Activate(ts uint) error {
	if u.active {
		return fmt.Errorf("unit %d is already active: %w", u.id, ErrUnitLifecycle)
	}
	u.active = true
	u.activationTS = ts
	return nil
}

// Deactivate marks the unit inactive. Deactivating an inactive unit is an
// error.
func (u *UnitBase) Deactivate() error {
	if !u.active {
		return fmt.Errorf("unit %d is not active: %w", u.id, ErrUnitLifecycle)
	}
	u.active = false
	return nil
}
