package shallow

import (
	"fmt"
	"math"

	"github.com/atdyer/OpenHDM/grid"
)

// Solver advances the linearized 1D shallow-water equations on a channel
// grid with an explicit staggered-in-time scheme. Every timestep runs in
// three stages, matched to the domain's phases: boundary values are
// imposed on the committed state, the update is staged into the nodes'
// Next fields, and the staged state is committed. A child solver never
// sees a parent mid-update because the parent only commits while the
// barrier holds the child out of its read stage.
type Solver struct {
	g      *grid.Grid
	parent *Solver
	patch  *grid.Patch
	con    *ChannelConfig

	nProc int
	nodes []*Node
}

func newSolver(g *grid.Grid, parent *Solver, con *ChannelConfig, nProc int) *Solver {
	if nProc < 1 {
		nProc = 1
	}
	return &Solver{g: g, parent: parent, con: con, nProc: nProc}
}

// IsChild reports whether the solver couples to a parent solver.
func (s *Solver) IsChild() bool { return s.parent != nil }

// Grid returns the solver's channel grid.
func (s *Solver) Grid() *grid.Grid { return s.g }

// initialize caches the active node sequence from the patch. Called once
// the patch is filled, and again whenever the patch is rebuilt.
func (s *Solver) initialize() error {
	refs := s.patch.Refs(UnitNode)
	s.nodes = make([]*Node, 0, len(refs))
	for _, ref := range refs {
		u, err := ref.Deref()
		if err != nil {
			return err
		}
		s.nodes = append(s.nodes, u.(*Node))
	}
	if len(s.nodes) < 3 {
		return fmt.Errorf("channel needs at least 3 active nodes, have %d", len(s.nodes))
	}
	return nil
}

// AdjustPatches rebuilds the active region if a grid mutation locked it.
// The mesh is static during timestepping, so this is a no-op in steady
// state, but a model that grows its grid mid-run goes through here.
func (s *Solver) AdjustPatches(ts uint) error {
	if !s.patch.UpToDate() {
		s.patch.Refresh()
		return s.initialize()
	}
	return nil
}

// ImposePatchBCs writes the boundary values for timestep ts into the
// committed state. The parent's open boundary follows the tidal forcing;
// a child pulls both of its span ends from the parent units at the
// matched positions.
func (s *Solver) ImposePatchBCs(ts uint) error {
	if s.parent == nil {
		t := float64(ts) * s.con.Dt
		omega := 2 * math.Pi / s.con.TidePeriod
		s.nodes[0].Eta = s.con.TideAmplitude * math.Sin(omega*t)
		return nil
	}

	for _, n := range s.nodes {
		if !n.Boundary() {
			continue
		}
		pp, ok := s.g.ParentPos(UnitNode, n.Pos())
		if !ok {
			return fmt.Errorf("boundary node %d has no parent counterpart", n.ID())
		}
		pu, err := s.parent.g.UnitAt(UnitNode, pp)
		if err != nil {
			return err
		}
		pn := pu.(*Node)
		n.Eta, n.U = pn.Eta, pn.U
	}
	return nil
}

// Solve stages the update for timestep ts. The node range is split among
// the solver's intra-domain processor budget; each worker updates a
// disjoint chunk.
func (s *Solver) Solve(ts uint) {
	if s.nProc == 1 {
		s.solveChunk(0, len(s.nodes))
		return
	}

	out := make(chan int, s.nProc)
	chunk := (len(s.nodes) + s.nProc - 1) / s.nProc
	workers := 0
	for low := 0; low < len(s.nodes); low += chunk {
		high := low + chunk
		if high > len(s.nodes) {
			high = len(s.nodes)
		}
		workers++
		go func(low, high int) {
			s.solveChunk(low, high)
			out <- low
		}(low, high)
	}
	for i := 0; i < workers; i++ {
		<-out
	}
}

func (s *Solver) solveChunk(low, high int) {
	g, dt, tau := s.con.Gravity, s.con.Dt, s.con.Friction
	nodes := s.nodes
	last := len(nodes) - 1

	for i := low; i < high; i++ {
		n := nodes[i]
		switch {
		case i == 0:
			if n.Boundary() && s.parent != nil {
				// Coupled boundary: both fields came from the parent.
				n.EtaNext, n.UNext = n.Eta, n.U
				break
			}
			// Open boundary: elevation is prescribed, velocity follows
			// the neighbor.
			n.EtaNext = n.Eta
			n.UNext = nodes[1].U
		case i == last:
			if n.Boundary() && s.parent != nil {
				n.EtaNext, n.UNext = n.Eta, n.U
				break
			}
			// Closed end: no flow through the wall.
			dx := n.X - nodes[i-1].X
			n.UNext = 0
			n.EtaNext = n.Eta - n.Depth*dt/dx*(n.U-nodes[i-1].U)
		default:
			dx2 := nodes[i+1].X - nodes[i-1].X
			n.UNext = n.U -
				g*dt/dx2*(nodes[i+1].Eta-nodes[i-1].Eta) -
				tau*n.U*dt
			n.EtaNext = n.Eta - n.Depth*dt/dx2*(nodes[i+1].U-nodes[i-1].U)
		}
	}
}

// Commit makes the staged update the committed state of the channel.
func (s *Solver) Commit(ts uint) {
	for _, n := range s.nodes {
		n.Commit()
	}
}

// StationNode returns the node with the configured station id, falling
// back to the channel midpoint when the id is not in the grid.
func (s *Solver) StationNode() *Node {
	if u, err := s.g.UnitByID(UnitNode, s.con.Station); err == nil {
		return u.(*Node)
	}
	return s.nodes[len(s.nodes)/2]
}
