package openhdm

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/atdyer/OpenHDM/input"
	"github.com/atdyer/OpenHDM/report"
)

// A DomainFactory constructs a model's domain type from a row of the
// project file. It is the seam through which a model plugs its domain
// implementation into the engine.
type DomainFactory func(id, path, outputDir string) Domain

// A Project drives one concurrent simulation: it owns the domains,
// reconstructs the parent/child relation declared in the project file,
// budgets processors, runs one timestepping worker per domain, and
// post-processes. A project is constructed, run once, and discarded.
type Project struct {
	projectID string

	nts     uint
	nPhases int

	domains        []Domain
	hierarchyTable map[string]string

	rep report.Reporter
}

// NewProject builds a project from a parsed project file, constructing
// one domain per row with factory. A nil reporter discards all logging.
func NewProject(pi *input.ProjectInput, factory DomainFactory, rep report.Reporter) (*Project, error) {
	if rep == nil {
		rep = report.Discard{}
	}
	p := &Project{
		projectID:      pi.ProjectID,
		hierarchyTable: make(map[string]string),
		rep:            rep,
	}

	p.rep.Logf(0, "Project %s is initializing", p.projectID)

	if pi.ND != len(pi.Domains) {
		return nil, fmt.Errorf(
			"project %s: domain count %d does not match the %d domains defined: %w",
			p.projectID, pi.ND, len(pi.Domains), input.ErrMalformed)
	}

	for _, row := range pi.Domains {
		if row.ParentID != "" {
			if p.getDomain(row.ParentID) == nil {
				return nil, fmt.Errorf(
					"parent domain %s of child domain %s is not initialized yet: %w",
					row.ParentID, row.DomainID, input.ErrMalformed)
			}
			p.hierarchyTable[row.DomainID] = row.ParentID
		}

		if err := p.AddDomain(factory(row.DomainID, row.DomainPath, row.OutputDir)); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// AddDomain registers a domain with the project. The domain's id and
// output directory must both be unused.
func (p *Project) AddDomain(d Domain) error {
	db := d.base()
	for _, other := range p.domains {
		ob := other.base()
		if ob.id == db.id {
			return fmt.Errorf("domain id %s is used multiple times: %w",
				db.id, ErrNameCollision)
		}
		if ob.outputDir == db.outputDir {
			return fmt.Errorf("output directory %s is used multiple times: %w",
				db.outputDir, ErrNameCollision)
		}
	}

	db.rep = p.rep
	p.domains = append(p.domains, d)
	p.rep.Logf(2, "Domain %s is constructed.", db.id)
	return nil
}

// ProjectID returns the id read from the project file.
func (p *Project) ProjectID() string { return p.projectID }

// NumDomains returns the number of domains in the project.
func (p *Project) NumDomains() int { return len(p.domains) }

// GetDomain returns the domain with the given id, or nil.
func (p *Project) GetDomain(id string) Domain { return p.getDomain(id) }

func (p *Project) getDomain(id string) Domain {
	for _, d := range p.domains {
		if d.base().id == id {
			return d
		}
	}
	return nil
}

// Run performs the simulation: hierarchy and concurrency setup, the
// three initialization passes, timestepping with one worker per domain,
// and the post-processing pass. nProcTotal is the processor budget for
// the whole run (raised to 1 if below it) and nProcChild the share
// reserved for child domains; zero for nProcChild picks a default split.
func (p *Project) Run(nProcTotal, nProcChild int) error {
	p.rep.Log(1, "Run is initializing:")
	if err := p.initializeRun(nProcTotal, nProcChild); err != nil {
		return err
	}

	p.rep.Log(1, "Timestepping is starting...")
	p.initiateTimestepping()

	p.rep.Log(1, "Run is finalizing:")
	return p.finalizeRun()
}

func (p *Project) initializeRun(nProcTotal, nProcChild int) error {
	if len(p.domains) == 0 {
		return fmt.Errorf("project %s has no domains instantiated: %w",
			p.projectID, ErrTimesteppingMismatch)
	}

	if err := p.setDomainHierarchy(); err != nil {
		return err
	}
	if err := p.setDomainConcurrency(nProcTotal, nProcChild); err != nil {
		return err
	}

	p.rep.Log(2, "Setting up the simulation")
	for _, d := range p.domains {
		if err := d.InstantiateMembers(); err != nil {
			return err
		}
	}

	p.rep.Log(2, "Reading domain inputs")
	for _, d := range p.domains {
		if err := d.ReadInputs(); err != nil {
			return err
		}
	}

	p.rep.Log(2, "Completing domain initializations")
	for _, d := range p.domains {
		if err := d.base().initialize(d); err != nil {
			return err
		}
	}

	return p.processTimesteppingParams()
}

// setDomainHierarchy finalizes every domain's position in the tree from
// the parent ids declared in the project file.
func (p *Project) setDomainHierarchy() error {
	p.rep.Log(2, "Constructing domain hierarchy")

	for _, d := range p.domains {
		parentID, isChild := p.hierarchyTable[d.base().id]
		if !isChild {
			if err := SetHierarchy(d, nil); err != nil {
				return err
			}
			continue
		}
		if err := SetHierarchy(d, p.getDomain(parentID)); err != nil {
			return err
		}
	}
	return nil
}

// setDomainConcurrency validates the processor budget, splits it between
// the inter-domain pool and the parent's solver, and wires every domain
// into the shared synchronization state.
func (p *Project) setDomainConcurrency(nProcTotal, nProcChild int) error {
	parent, err := p.singleParent()
	if err != nil {
		return err
	}
	pb := parent.base()

	if hw := runtime.NumCPU(); nProcTotal > hw {
		p.rep.Warning("Concurrency!", fmt.Sprintf(
			"Number of processors specified = %d is greater than the number "+
				"of available threads = %d. Setting number of processors to %d",
			nProcTotal, hw, hw-1))
		nProcTotal = hw - 1
	}
	if nProcTotal < 1 {
		nProcTotal = 1
	}

	if pb.NumChildren() == 0 {
		nProcChild = 0
	} else if nProcChild >= nProcTotal {
		p.rep.Warning("Concurrency!", fmt.Sprintf(
			"Child processor share %d must be below the total %d; clamping",
			nProcChild, nProcTotal))
		nProcChild = nProcTotal - 1
	}

	if pb.NumChildren() == 0 {
		// Sequential shortcut: no pool, no barrier, the whole budget
		// goes to the parent's solver.
		pb.nProcIntra = nProcTotal
		return pb.setConcurrency(0)
	}

	nProcInter := nProcTotal / 2
	if nProcInter < 1 {
		nProcInter = 1
	}
	if nProcChild > 0 {
		nProcInter = nProcChild + 1
	}

	pb.nProcIntra = nProcTotal - nProcInter + 1
	if pb.nProcIntra < 1 {
		pb.nProcIntra = 1
	}

	if err := pb.setConcurrency(nProcInter); err != nil {
		return err
	}
	for _, c := range pb.children {
		cb := c.base()
		cb.nProcIntra = 1
		if err := cb.setConcurrency(0); err != nil {
			return err
		}
	}
	return nil
}

// singleParent returns the project's one parent domain; more than one is
// a configuration error.
func (p *Project) singleParent() (Domain, error) {
	var parent Domain
	nParents := 0
	for _, d := range p.domains {
		if d.base().IsParent() {
			parent = d
			nParents++
		}
	}
	if nParents > 1 {
		return nil, fmt.Errorf(
			"only one parent domain can be executed during parallel runs: %w",
			ErrHierarchyMisuse)
	}
	if parent == nil {
		return nil, fmt.Errorf("project %s has no parent domain: %w",
			p.projectID, ErrHierarchyMisuse)
	}
	return parent, nil
}

// processTimesteppingParams fixes nts and nPhases from the first domain
// and checks that every other domain reports the same values.
func (p *Project) processTimesteppingParams() error {
	first := p.domains[0]
	p.nts = first.NTimesteps()
	p.nPhases = first.base().NPhases()

	for _, d := range p.domains {
		db := d.base()
		if db.cp.NCP() != db.NPhases() {
			return fmt.Errorf("domain %s: %w", db.id, ErrPhaseInconsistent)
		}
		if d.NTimesteps() != p.nts {
			return fmt.Errorf(
				"nts of %s is not the same as the previous domain(s): %w",
				db.id, ErrTimesteppingMismatch)
		}
		if db.NPhases() != p.nPhases {
			return fmt.Errorf(
				"nPhases of %s is not the same as the previous domain(s): %w",
				db.id, ErrTimesteppingMismatch)
		}
	}
	return nil
}

// initiateTimestepping runs one worker per domain and joins them all.
func (p *Project) initiateTimestepping() {
	var wg sync.WaitGroup
	for _, d := range p.domains {
		db := d.base()
		wg.Add(1)
		go func() {
			defer wg.Done()
			db.Timestepping(p.nts)
		}()
	}
	wg.Wait()
}

// finalizeRun post-processes every domain in declaration order.
func (p *Project) finalizeRun() error {
	p.rep.Log(2, "Post-processing domains...")
	for _, d := range p.domains {
		if err := d.PostProcess(); err != nil {
			return err
		}
	}
	p.rep.Log(2, "Run has finished.")
	return nil
}
