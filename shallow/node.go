/*package shallow implements a one-dimensional shallow-water channel
model on the framework: a coarse parent channel forced by a tide at its
open boundary, optionally carrying a refined child domain over a
sub-reach. The child's mesh is cloned from the parent's over the span,
and at every timestep the child pulls its boundary elevations from the
parent units at the matched positions.

The model exists both as the reference for plugging a solver into the
engine and as the end-to-end exercise of the grid, patch, input, and
output layers.
*/
package shallow

import "github.com/atdyer/OpenHDM/grid"

// UnitNode is the unit type key for channel nodes.
const UnitNode = "node"

// A Node is one mesh point of the channel: its coordinate, the still
// water depth from the mesh file, and the flow state. Eta and U are the
// committed values of the last completed timestep; EtaNext and UNext
// stage the update of the running phase and are committed in the final
// phase of the timestep, so that a child domain always reads a
// consistent parent state.
type Node struct {
	grid.UnitBase

	X     float64
	Depth float64

	Eta, U         float64
	EtaNext, UNext float64
}

// NewNode returns a node with the given stable id at coordinate x.
func NewNode(id int, x, depth float64) *Node {
	return &Node{UnitBase: grid.NewUnitBase(id), X: x, Depth: depth}
}

// Clone returns a copy of the node for insertion into a child grid. The
// copy keeps the id, coordinate, bathymetry, and flow state, but belongs
// to no grid and no patch.
func (n *Node) Clone() *Node {
	c := NewNode(n.ID(), n.X, n.Depth)
	c.Eta, c.U = n.Eta, n.U
	return c
}

// Commit makes the staged update the committed state.
func (n *Node) Commit() {
	n.Eta, n.U = n.EtaNext, n.UNext
}
