package shallow

import (
	"fmt"
	"path/filepath"

	plt "github.com/phil-mansfield/pyplot"
	"github.com/phil-mansfield/table"

	openhdm "github.com/atdyer/OpenHDM"
	"github.com/atdyer/OpenHDM/grid"
	"github.com/atdyer/OpenHDM/interp"
)

// ChannelDomain is the model's domain type: a reach of the channel with
// its own grid, solver, and outputs. A domain whose control file
// declares a parent span becomes a refined child: its mesh is cloned
// from the parent over the span, with midpoints inserted to halve the
// spacing.
type ChannelDomain struct {
	openhdm.DomainBase

	con    ChannelConfig
	g      *grid.Grid
	patch  *grid.Patch
	solver *Solver
	out    *ElevationOutput

	// hydrograph record at the station node
	times, etas []float64

	phaseErr error
}

// NewDomain is the DomainFactory for channel domains.
func NewDomain(id, path, outputDir string) openhdm.Domain {
	d := &ChannelDomain{DomainBase: openhdm.NewDomainBase(id, path, outputDir)}
	return d
}

// Config returns the domain's parsed control file.
func (d *ChannelDomain) Config() *ChannelConfig { return &d.con }

// NTimesteps reports the timestep count fixed by the control file.
func (d *ChannelDomain) NTimesteps() uint { return uint(d.con.Timesteps) }

// InstantiateMembers builds the domain's grid, solver, and output
// writer. For a child the grid and solver hang off the parent's, which
// the project has already instantiated.
func (d *ChannelDomain) InstantiateMembers() error {
	if d.IsChild() {
		parent, ok := d.Parent().(*ChannelDomain)
		if !ok || parent.g == nil {
			return fmt.Errorf("domain %s: parent is not an instantiated channel domain", d.ID())
		}
		d.g = grid.NewChild(parent.g)
		d.solver = newSolver(d.g, parent.solver, &d.con, d.NProcIntra())
	} else {
		d.g = grid.New(UnitNode)
		d.solver = newSolver(d.g, nil, &d.con, d.NProcIntra())
	}

	d.out = newElevationOutput(d.ID(), d.OutputDir(), 1, d.solver, d.IsChild())
	return nil
}

// ReadInputs parses the control file and, for a parent, reads the mesh
// table and fills the grid. Child meshes are derived from the parent
// during initialization instead.
func (d *ChannelDomain) ReadInputs() error {
	con, err := ReadChannelConfig(filepath.Join(d.Path(), "channel.config"))
	if err != nil {
		return err
	}
	d.con = con

	if d.IsChild() {
		if !d.con.IsChildSpan() {
			return fmt.Errorf("domain %s is a child but declares no parent span", d.ID())
		}
		return nil
	}
	if d.con.IsChildSpan() {
		return fmt.Errorf("domain %s is a parent but declares a parent span", d.ID())
	}
	if d.con.MeshFile == "" {
		return fmt.Errorf("domain %s: MeshFile is required", d.ID())
	}

	cols, err := table.ReadTable(filepath.Join(d.Path(), d.con.MeshFile), []int{0, 1}, nil)
	if err != nil {
		return err
	}
	xs, depths := cols[0], cols[1]
	for i := range xs {
		if err := d.g.InsertUnit(UnitNode, NewNode(i, xs[i], depths[i])); err != nil {
			return err
		}
	}

	d.Reporter().Logf(3, "Domain %s: %d mesh nodes", d.ID(), len(xs))
	return nil
}

// DoInitialize derives the child mesh if needed, builds the active
// patch, opens the output file, and registers the three phases of a
// timestep.
func (d *ChannelDomain) DoInitialize() error {
	if d.IsChild() {
		if err := d.buildChildMesh(); err != nil {
			return err
		}
	}

	d.patch = d.g.AddPatch()
	for _, u := range d.g.Units(UnitNode) {
		if err := d.patch.IncludeUnit(UnitNode, u, 0); err != nil {
			return err
		}
	}

	d.solver.patch = d.patch
	if err := d.solver.initialize(); err != nil {
		return err
	}

	d.out.interval = uint(d.con.OutputInterval)
	if err := d.out.Open(); err != nil {
		return err
	}
	if err := d.out.WriteHeader(); err != nil {
		return err
	}

	// Phase 0: rebuild patches if needed and impose boundary values on
	// the committed state. Children pull their span ends from the
	// parent here; the barrier guarantees the parent is not committing
	// while any child is in this phase.
	if err := d.InsertPhase(func(ts uint) {
		if err := d.solver.AdjustPatches(ts); err != nil {
			d.noteErr(err)
			return
		}
		d.noteErr(d.solver.ImposePatchBCs(ts))
	}); err != nil {
		return err
	}

	// Phase 1: stage the shallow-water update.
	if err := d.InsertPhase(d.solver.Solve); err != nil {
		return err
	}

	// Phase 2: commit the update and record outputs.
	if err := d.InsertPhase(func(ts uint) {
		d.solver.Commit(ts)
		station := d.solver.StationNode()
		d.times = append(d.times, float64(ts)*d.con.Dt)
		d.etas = append(d.etas, station.Eta)
		d.noteErr(d.out.Write(ts))
	}); err != nil {
		return err
	}

	return nil
}

// buildChildMesh clones the parent nodes over the configured span into
// this domain's grid and inserts a midpoint between each pair, halving
// the node spacing. The two span ends are flagged as boundary nodes;
// they receive their state from the parent at every timestep.
func (d *ChannelDomain) buildChildMesh() error {
	parent := d.Parent().(*ChannelDomain)
	np := parent.g.NumUnits(UnitNode)

	lo, hi := d.con.SpanStart, d.con.SpanEnd
	if lo < 1 || hi > np-2 || hi-lo < 2 {
		return fmt.Errorf(
			"domain %s: span [%d, %d] must lie strictly inside the parent channel of %d nodes",
			d.ID(), lo, hi, np)
	}

	span := make([]*Node, 0, hi-lo+1)
	xs := make([]float64, 0, hi-lo+1)
	depths := make([]float64, 0, hi-lo+1)
	for pp := lo; pp <= hi; pp++ {
		pu, err := parent.g.UnitAt(UnitNode, pp)
		if err != nil {
			return err
		}
		pn := pu.(*Node)
		span = append(span, pn)
		xs = append(xs, pn.X)
		depths = append(depths, pn.Depth)
	}

	// Bathymetry on the refined mesh comes from a spline through the
	// parent's node table, not from straight averaging.
	bathy, err := interp.NewSpline(xs, depths)
	if err != nil {
		return err
	}

	midID := np // midpoint ids start past the parent's
	for i, pn := range span {
		clone := pn.Clone()
		if i == 0 || i == len(span)-1 {
			clone.SetBoundary(true)
		}
		if err := d.g.CopyFromParent(UnitNode, pn, clone); err != nil {
			return err
		}

		if i == len(span)-1 {
			break
		}
		nn := span[i+1]
		midX := 0.5 * (pn.X + nn.X)
		midDepth, err := bathy.Eval(midX)
		if err != nil {
			return err
		}
		mid := NewNode(midID, midX, midDepth)
		mid.Eta = 0.5 * (pn.Eta + nn.Eta)
		mid.U = 0.5 * (pn.U + nn.U)
		midID++
		if err := d.g.InsertUnit(UnitNode, mid); err != nil {
			return err
		}
	}

	d.Reporter().Logf(3, "Domain %s: refined %d parent nodes into %d",
		d.ID(), hi-lo+1, d.g.NumUnits(UnitNode))
	return nil
}

// PostProcess closes the domain's outputs, reports the run, and
// optionally renders the station hydrograph.
func (d *ChannelDomain) PostProcess() error {
	if err := d.out.Close(); err != nil {
		return err
	}
	if d.phaseErr != nil {
		return fmt.Errorf("domain %s: %w", d.ID(), d.phaseErr)
	}

	d.Reporter().Logf(2, "Domain %s finished %d timesteps", d.ID(), d.con.Timesteps)

	if d.con.Plot {
		d.plotHydrograph()
	}
	return nil
}

func (d *ChannelDomain) plotHydrograph() {
	fname := filepath.Join(d.OutputDir(), "hydrograph."+d.ID()+".png")

	plt.Figure()
	plt.Plot(d.times, d.etas, "b", plt.LW(2))
	plt.Title(fmt.Sprintf("Station %d", d.con.Station))
	plt.XLabel(`$t$ [s]`, plt.FontSize(16))
	plt.YLabel(`$\eta$ [m]`, plt.FontSize(16))
	plt.SaveFig(fname)
	plt.Execute()
}

// noteErr keeps the first error hit inside a phase callable; it is
// surfaced by PostProcess. Phases themselves must always return.
func (d *ChannelDomain) noteErr(err error) {
	if d.phaseErr == nil && err != nil {
		d.phaseErr = err
	}
}
