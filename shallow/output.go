package shallow

import (
	"github.com/atdyer/OpenHDM/output"
)

// ElevationOutput writes the committed surface elevation of every active
// node, one block per recorded timestep. The format is line-oriented:
// a header naming the domain, then per block a timestep line followed by
// "x eta u" rows in channel order.
type ElevationOutput struct {
	output.Output

	domainID string
	interval uint
	solver   *Solver
}

func newElevationOutput(domainID, outputDir string, interval uint, s *Solver, isChild bool) *ElevationOutput {
	out := &ElevationOutput{
		domainID: domainID,
		interval: interval,
		solver:   s,
	}
	out.FileDir = outputDir
	out.FileName = "elevation." + domainID + ".dat"
	out.Title = "Elevation Output"
	out.IsChild = isChild
	return out
}

// WriteHeader writes the file header before timestepping begins.
func (out *ElevationOutput) WriteHeader() error {
	return out.Printf("elevation %s nodes %d interval %d\n",
		out.domainID, len(out.solver.nodes), out.interval)
}

// Write records the channel state at timestep ts, if ts falls on the
// output interval.
func (out *ElevationOutput) Write(ts uint) error {
	if ts%out.interval != 0 {
		return nil
	}
	if err := out.Printf("ts %d\n", ts); err != nil {
		return err
	}
	for _, n := range out.solver.nodes {
		if err := out.Printf("%g %g %g\n", n.X, n.Eta, n.U); err != nil {
			return err
		}
	}
	return nil
}
