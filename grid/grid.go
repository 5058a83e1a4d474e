/*package grid is the container and manager of discrete model data for a
single domain. A grid owns one arena of units per registered unit type
(nodes, elements, cells, ...), a set of patches designating the active
regions of the mesh, and, for the grid of a child domain, the positional
correspondence between its units and the parent grid's units, which child
solvers use to transfer boundary data.

Units live in per-type arenas. A unit's position is the index of its arena
slot and is stable for the unit's whole lifetime: removal leaves a vacant
slot behind rather than shifting its neighbors, and the slot is recycled by
a later insertion. Handles into the arena (Ref) survive any amount of
insertion and removal and fail loudly once their unit is gone.
*/
package grid

import (
	"fmt"
	"sort"
)

type store struct {
	arena    []Unit // nil entries are vacant slots
	occupied []int  // occupied positions, ascending
	vacant   []int  // recyclable positions, oldest first
	id2pos   map[int]int

	// position correspondence with the parent grid, populated by
	// CopyFromParent on child grids only
	childToParent map[int]int
	parentToChild map[int]int
}

func newStore() *store {
	return &store{
		id2pos:        make(map[int]int),
		childToParent: make(map[int]int),
		parentToChild: make(map[int]int),
	}
}

// A Grid owns the units and patches of one domain. Grids are confined to
// their domain's worker and are not safe for concurrent use.
type Grid struct {
	stores map[string]*store
	types  []string

	patches    []*Patch
	vacantPIDs []int
	parent     *Grid
}

// New returns a grid managing the given unit types.
func New(unitTypes ...string) *Grid {
	g := &Grid{stores: make(map[string]*store), types: unitTypes}
	for _, typ := range unitTypes {
		g.stores[typ] = newStore()
	}
	return g
}

// NewChild returns a grid for a child domain, managing the same unit
// types as the parent grid. Units cloned over with CopyFromParent keep a
// two-way positional mapping to their parent counterparts.
func NewChild(parent *Grid) *Grid {
	g := New(parent.types...)
	g.parent = parent
	return g
}

// Parent returns the parent grid, or nil for the grid of a parent domain.
func (g *Grid) Parent() *Grid { return g.parent }

// UnitTypes returns the registered unit type names, in registration order.
func (g *Grid) UnitTypes() []string { return g.types }

// InsertUnit places u into the arena for typ, assigning its position from
// the head of the free list if a vacant slot exists, or appending a new
// slot otherwise. Every up-to-date patch on the grid is invalidated, since
// its view of the active region no longer reflects the mesh.
func (g *Grid) InsertUnit(typ string, u Unit) error {
	s, ok := g.stores[typ]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUnitType, typ)
	}

	var pos int
	if len(s.vacant) > 0 {
		pos = s.vacant[0]
		s.vacant = s.vacant[1:]
		s.arena[pos] = u
	} else {
		pos = len(s.arena)
		s.arena = append(s.arena, u)
	}

	u.base().pos = pos
	i := sort.SearchInts(s.occupied, pos)
	s.occupied = append(s.occupied, 0)
	copy(s.occupied[i+1:], s.occupied[i:])
	s.occupied[i] = pos
	s.id2pos[u.ID()] = pos

	g.invalidatePatches()
	return nil
}

// RemoveUnit takes u out of the arena for typ, leaving a vacant slot on
// the free list. The positions of all other units are untouched. Models
// should normally deactivate units instead; removal is for units that are
// gone from the mesh for good.
func (g *Grid) RemoveUnit(typ string, u Unit) error {
	s, ok := g.stores[typ]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUnitType, typ)
	}
	pos := u.Pos()
	if pos < 0 || pos >= len(s.arena) || s.arena[pos] != u {
		return fmt.Errorf("unit %d is not at position %d: %w",
			u.ID(), pos, ErrInvalidIndex)
	}

	s.arena[pos] = nil
	s.vacant = append(s.vacant, pos)
	i := sort.SearchInts(s.occupied, pos)
	s.occupied = append(s.occupied[:i], s.occupied[i+1:]...)
	delete(s.id2pos, u.ID())

	// Drop any parent correspondence through this slot before the slot
	// can be recycled.
	if pp, ok := s.childToParent[pos]; ok {
		delete(s.childToParent, pos)
		delete(s.parentToChild, pp)
	}

	u.base().pos = NoPos

	g.invalidatePatches()
	return nil
}

// CopyFromParent inserts child, a model-made clone of parentUnit from the
// parent grid, and records the two-way position mapping between them.
func (g *Grid) CopyFromParent(typ string, parentUnit, child Unit) error {
	if g.parent == nil {
		return fmt.Errorf("grid has no parent to copy from: %w", ErrInvalidIndex)
	}
	if err := g.InsertUnit(typ, child); err != nil {
		return err
	}

	s := g.stores[typ]
	pp, cp := parentUnit.Pos(), child.Pos()
	s.childToParent[cp] = pp
	s.parentToChild[pp] = cp
	return nil
}

// ParentPos returns the parent-grid position corresponding to the child
// unit at childPos.
func (g *Grid) ParentPos(typ string, childPos int) (int, bool) {
	s, ok := g.stores[typ]
	if !ok {
		return 0, false
	}
	pp, ok := s.childToParent[childPos]
	return pp, ok
}

// ChildPos returns the child-grid position corresponding to the parent
// unit at parentPos.
func (g *Grid) ChildPos(typ string, parentPos int) (int, bool) {
	s, ok := g.stores[typ]
	if !ok {
		return 0, false
	}
	cp, ok := s.parentToChild[parentPos]
	return cp, ok
}

// UnitExists reports whether a unit with the given id is in the grid.
func (g *Grid) UnitExists(typ string, id int) bool {
	s, ok := g.stores[typ]
	if !ok {
		return false
	}
	_, ok = s.id2pos[id]
	return ok
}

// UnitAt returns the unit occupying the given position.
func (g *Grid) UnitAt(typ string, pos int) (Unit, error) {
	s, ok := g.stores[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnitType, typ)
	}
	if pos < 0 || pos >= len(s.arena) || s.arena[pos] == nil {
		return nil, fmt.Errorf("no unit at position %d: %w", pos, ErrInvalidIndex)
	}
	return s.arena[pos], nil
}

// UnitByID returns the unit with the given stable id.
func (g *Grid) UnitByID(typ string, id int) (Unit, error) {
	s, ok := g.stores[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnitType, typ)
	}
	pos, ok := s.id2pos[id]
	if !ok {
		return nil, fmt.Errorf("no unit with id %d: %w", id, ErrInvalidIndex)
	}
	return s.arena[pos], nil
}

// Position returns the arena position of the unit with the given id.
func (g *Grid) Position(typ string, id int) (int, error) {
	s, ok := g.stores[typ]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnitType, typ)
	}
	pos, ok := s.id2pos[id]
	if !ok {
		return 0, fmt.Errorf("no unit with id %d: %w", id, ErrInvalidIndex)
	}
	return pos, nil
}

// NumUnits returns the number of units of the given type in the grid.
func (g *Grid) NumUnits(typ string) int {
	s, ok := g.stores[typ]
	if !ok {
		return 0
	}
	return len(s.occupied)
}

// Units returns the units of the given type in position order. The slice
// is freshly allocated; mutating it does not affect the grid.
func (g *Grid) Units(typ string) []Unit {
	s, ok := g.stores[typ]
	if !ok {
		return nil
	}
	units := make([]Unit, 0, len(s.occupied))
	for _, pos := range s.occupied {
		units = append(units, s.arena[pos])
	}
	return units
}

// AddPatch creates a new patch on the grid, recycling a vacant patch id
// if one is available.
func (g *Grid) AddPatch() *Patch {
	var id int
	if len(g.vacantPIDs) > 0 {
		id = g.vacantPIDs[0]
		g.vacantPIDs = g.vacantPIDs[1:]
	} else {
		id = len(g.patches)
	}

	p := newPatch(g, id)
	g.patches = append(g.patches, p)
	return p
}

// RemovePatch takes the patch off the grid and returns its id to the free
// list.
func (g *Grid) RemovePatch(p *Patch) error {
	for i, q := range g.patches {
		if q.id == p.id {
			g.patches = append(g.patches[:i], g.patches[i+1:]...)
			g.vacantPIDs = append(g.vacantPIDs, p.id)
			return nil
		}
	}
	return fmt.Errorf("no patch with id %d: %w", p.id, ErrInvalidIndex)
}

// GetPatch returns the patch with the given id.
func (g *Grid) GetPatch(id int) (*Patch, error) {
	for _, p := range g.patches {
		if p.id == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no patch with id %d: %w", id, ErrInvalidIndex)
}

// NumPatches returns the number of patches on the grid.
func (g *Grid) NumPatches() int { return len(g.patches) }

func (g *Grid) invalidatePatches() {
	for _, p := range g.patches {
		if p.upToDate {
			p.Invalidate()
		}
	}
}
