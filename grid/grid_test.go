package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node is a minimal concrete unit type for testing the container layer.
type node struct {
	UnitBase
	depth float64
}

func newNode(id int, depth float64) *node {
	return &node{UnitBase: NewUnitBase(id), depth: depth}
}

func (n *node) clone() *node {
	c := newNode(n.ID(), n.depth)
	c.SetBoundary(n.Boundary())
	return c
}

func checkInvariants(t *testing.T, g *Grid, typ string) {
	t.Helper()
	s := g.stores[typ]
	for _, pos := range s.occupied {
		u := s.arena[pos]
		require.NotNil(t, u, "occupied position %d holds no unit", pos)
		require.Equal(t, pos, u.Pos())
		require.Equal(t, pos, s.id2pos[u.ID()])
	}
	require.Equal(t, len(s.occupied), len(s.id2pos))
}

func TestInsertUnitAssignsPositions(t *testing.T) {
	g := New("node")

	for i := 0; i < 4; i++ {
		require.NoError(t, g.InsertUnit("node", newNode(100+i, 1.0)))
	}

	assert.Equal(t, 4, g.NumUnits("node"))
	units := g.Units("node")
	for i, u := range units {
		assert.Equal(t, i, u.Pos())
		assert.Equal(t, 100+i, u.ID())
	}
	checkInvariants(t, g, "node")

	assert.True(t, g.UnitExists("node", 102))
	assert.False(t, g.UnitExists("node", 999))

	_, err := g.UnitAt("node", 17)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = g.UnitAt("cell", 0)
	assert.ErrorIs(t, err, ErrUnknownUnitType)
}

func TestRemoveUnitLeavesOthersInPlace(t *testing.T) {
	g := New("node")
	ns := make([]*node, 5)
	for i := range ns {
		ns[i] = newNode(i, 1.0)
		require.NoError(t, g.InsertUnit("node", ns[i]))
	}

	require.NoError(t, g.RemoveUnit("node", ns[2]))

	assert.Equal(t, 4, g.NumUnits("node"))
	assert.False(t, g.UnitExists("node", 2))
	// Removal must not move anyone else.
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equal(t, i, ns[i].Pos())
	}
	checkInvariants(t, g, "node")

	// The freed slot is recycled by the next insertion.
	n5 := newNode(5, 2.0)
	require.NoError(t, g.InsertUnit("node", n5))
	assert.Equal(t, 2, n5.Pos())
	checkInvariants(t, g, "node")
}

func TestRemoveUnitPositionMismatch(t *testing.T) {
	g := New("node")
	in := newNode(0, 1.0)
	require.NoError(t, g.InsertUnit("node", in))

	out := newNode(1, 1.0)
	err := g.RemoveUnit("node", out)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.Equal(t, 1, g.NumUnits("node"))
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	g := New("node")
	for i := 0; i < 3; i++ {
		require.NoError(t, g.InsertUnit("node", newNode(i, 1.0)))
	}

	n := newNode(3, 1.0)
	require.NoError(t, g.InsertUnit("node", n))
	require.NoError(t, g.RemoveUnit("node", n))

	assert.Equal(t, 3, g.NumUnits("node"))
	s := g.stores["node"]
	assert.Equal(t, []int{3}, s.vacant, "the slot is back on the free list")
}

func TestCopyFromParentMapsPositions(t *testing.T) {
	parent := New("node")
	for i := 0; i < 6; i++ {
		require.NoError(t, parent.InsertUnit("node", newNode(i, 2.0)))
	}
	child := NewChild(parent)

	// Clone parent units 2..4 into the child grid.
	for pp := 2; pp <= 4; pp++ {
		u, err := parent.UnitAt("node", pp)
		require.NoError(t, err)
		pn := u.(*node)
		require.NoError(t, child.CopyFromParent("node", pn, pn.clone()))
	}

	assert.Equal(t, 3, child.NumUnits("node"))
	for cp := 0; cp < 3; cp++ {
		pp, ok := child.ParentPos("node", cp)
		require.True(t, ok)
		assert.Equal(t, cp+2, pp)

		back, ok := child.ChildPos("node", pp)
		require.True(t, ok)
		assert.Equal(t, cp, back, "the two maps are inverses")
	}

	// Removing a cloned unit drops its correspondence.
	u, err := child.UnitAt("node", 1)
	require.NoError(t, err)
	require.NoError(t, child.RemoveUnit("node", u))
	_, ok := child.ParentPos("node", 1)
	assert.False(t, ok)
	_, ok = child.ChildPos("node", 3)
	assert.False(t, ok)
}

func TestCopyFromParentRequiresParent(t *testing.T) {
	g := New("node")
	n := newNode(0, 1.0)
	err := g.CopyFromParent("node", n, n.clone())
	assert.Error(t, err)
}

func TestRefSurvivesArenaGrowth(t *testing.T) {
	g := New("node")
	n0, n1 := newNode(0, 1.0), newNode(1, 2.0)
	require.NoError(t, g.InsertUnit("node", n0))
	require.NoError(t, g.InsertUnit("node", n1))

	p := g.AddPatch()
	require.NoError(t, p.IncludeUnit("node", n0, 1))
	require.NoError(t, p.IncludeUnit("node", n1, 1))

	h, err := g.RefTo("node", n1)
	require.NoError(t, err)

	// Grow the arena well past any initial capacity.
	for i := 2; i < 100; i++ {
		require.NoError(t, g.InsertUnit("node", newNode(i, 1.0)))
	}

	u, err := h.Deref()
	require.NoError(t, err)
	assert.Same(t, n1, u.(*node))

	assert.False(t, p.UpToDate())
	assert.True(t, p.Locked(), "mutations lock patches until rebuilt")
}

func TestRefDiesWithItsUnit(t *testing.T) {
	g := New("node")
	n := newNode(7, 1.0)
	require.NoError(t, g.InsertUnit("node", n))

	h, err := g.RefTo("node", n)
	require.NoError(t, err)
	require.True(t, h.Valid())

	require.NoError(t, g.RemoveUnit("node", n))
	_, err = h.Deref()
	assert.ErrorIs(t, err, ErrInvalidatedRef)

	// Recycling the slot must not resurrect the ref.
	require.NoError(t, g.InsertUnit("node", newNode(8, 1.0)))
	_, err = h.Deref()
	assert.ErrorIs(t, err, ErrInvalidatedRef)

	var zero Ref
	_, err = zero.Deref()
	assert.ErrorIs(t, err, ErrInvalidatedRef)
}

func TestPatchIncludeExclude(t *testing.T) {
	g := New("node")
	ns := make([]*node, 4)
	for i := range ns {
		ns[i] = newNode(i, 1.0)
		require.NoError(t, g.InsertUnit("node", ns[i]))
	}

	p := g.AddPatch()
	for _, n := range ns {
		require.NoError(t, p.IncludeUnit("node", n, 3))
	}

	assert.Equal(t, 4, p.Size("node"))
	for i, n := range ns {
		assert.True(t, n.Active())
		assert.Equal(t, uint(3), n.ActivationTimestep())
		assert.Equal(t, i, n.PatchPos())
		assert.Equal(t, p.ID(), n.PatchID())
	}

	require.NoError(t, p.ExcludeUnit("node", ns[1]))
	assert.False(t, ns[1].Active())
	assert.Equal(t, 3, p.Size("node"))
	// Everyone after the excluded unit shifts down one patch position.
	assert.Equal(t, 0, ns[0].PatchPos())
	assert.Equal(t, 1, ns[2].PatchPos())
	assert.Equal(t, 2, ns[3].PatchPos())

	// Patch refs dereference to active units at matching positions.
	for i, ref := range p.Refs("node") {
		u, err := ref.Deref()
		require.NoError(t, err)
		assert.True(t, u.Active())
		assert.Equal(t, i, u.PatchPos())
	}
}

func TestPatchExcludeForeignUnit(t *testing.T) {
	g := New("node")
	n := newNode(0, 1.0)
	require.NoError(t, g.InsertUnit("node", n))

	p, q := g.AddPatch(), g.AddPatch()
	require.NoError(t, p.IncludeUnit("node", n, 1))
	err := q.ExcludeUnit("node", n)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.True(t, n.Active())
}

func TestUnitLifecycle(t *testing.T) {
	n := newNode(0, 1.0)
	assert.ErrorIs(t, n.Deactivate(), ErrUnitLifecycle)

	require.NoError(t, n.Activate(5))
	assert.ErrorIs(t, n.Activate(6), ErrUnitLifecycle)
	assert.Equal(t, uint(5), n.ActivationTimestep())

	require.NoError(t, n.Deactivate())
	assert.ErrorIs(t, n.Deactivate(), ErrUnitLifecycle)
}

func TestPatchIDRecycling(t *testing.T) {
	g := New("node")
	p0 := g.AddPatch()
	p1 := g.AddPatch()
	assert.Equal(t, 0, p0.ID())
	assert.Equal(t, 1, p1.ID())

	require.NoError(t, g.RemovePatch(p0))
	assert.Equal(t, 1, g.NumPatches())

	p2 := g.AddPatch()
	assert.Equal(t, 0, p2.ID(), "vacant patch ids are recycled")
	assert.Equal(t, 2, g.NumPatches())

	got, err := g.GetPatch(1)
	require.NoError(t, err)
	assert.Same(t, p1, got)

	_, err = g.GetPatch(42)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	err = g.RemovePatch(&Patch{id: 42})
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestRefreshDropsDeadRefs(t *testing.T) {
	g := New("node")
	ns := make([]*node, 3)
	for i := range ns {
		ns[i] = newNode(i, 1.0)
		require.NoError(t, g.InsertUnit("node", ns[i]))
	}

	p := g.AddPatch()
	for _, n := range ns {
		require.NoError(t, p.IncludeUnit("node", n, 1))
	}

	require.NoError(t, g.RemoveUnit("node", ns[1]))
	require.True(t, p.Locked())

	p.Refresh()
	assert.True(t, p.UpToDate())
	assert.False(t, p.Locked())
	assert.Equal(t, 2, p.Size("node"))
	assert.Equal(t, 0, ns[0].PatchPos())
	assert.Equal(t, 1, ns[2].PatchPos())
}

func TestValidateUnlocksPatch(t *testing.T) {
	g := New("node")
	n := newNode(0, 1.0)
	require.NoError(t, g.InsertUnit("node", n))

	p := g.AddPatch()
	require.NoError(t, p.IncludeUnit("node", n, 1))
	require.NoError(t, g.InsertUnit("node", newNode(1, 1.0)))

	require.True(t, p.Locked())
	p.Validate()
	assert.True(t, p.UpToDate())
	assert.False(t, p.Locked())
}
