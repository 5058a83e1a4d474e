package grid

import "fmt"

// A Patch designates an active region of a grid: the subset of units, per
// unit type, at which numerical computations are currently carried out.
// Patches hold refs rather than units, so grid mutations cannot leave a
// patch pointing at stale storage. They can still leave it describing a
// stale region, so any insertion or removal on the grid locks every
// up-to-date patch until the model rebuilds it.
type Patch struct {
	g        *Grid
	id       int
	refs     map[string][]Ref
	upToDate bool
	locked   bool
}

func newPatch(g *Grid, id int) *Patch {
	// A new patch selects nothing, so it is trivially current.
	return &Patch{g: g, id: id, refs: make(map[string][]Ref), upToDate: true}
}

// ID returns the patch's stable identifier within its grid.
func (p *Patch) ID() int { return p.id }

// UpToDate reports whether the patch's refs reflect the grid as it is now.
func (p *Patch) UpToDate() bool { return p.upToDate }

// Locked reports whether a grid mutation has invalidated the patch and the
// model has not yet rebuilt it.
func (p *Patch) Locked() bool { return p.locked }

// Size returns the number of units of the given type in the patch.
func (p *Patch) Size(typ string) int { return len(p.refs[typ]) }

// Refs returns the patch's handles for the given unit type, in patch
// position order. The slice is freshly allocated.
func (p *Patch) Refs(typ string) []Ref {
	refs := make([]Ref, len(p.refs[typ]))
	copy(refs, p.refs[typ])
	return refs
}

// IncludeUnit brings u into the patch: the unit is activated as of
// timestep ts, records which patch it belongs to and where, and a handle
// to it is appended to the patch.
func (p *Patch) IncludeUnit(typ string, u Unit, ts uint) error {
	ref, err := p.g.RefTo(typ, u)
	if err != nil {
		return err
	}
	if err := u.Activate(ts); err != nil {
		return err
	}

	ub := u.base()
	ub.patchPos = len(p.refs[typ])
	ub.patchID = p.id
	p.refs[typ] = append(p.refs[typ], ref)
	return nil
}

// ExcludeUnit deactivates u and takes its handle out of the patch,
// shifting the patch positions of the units after it down by one.
func (p *Patch) ExcludeUnit(typ string, u Unit) error {
	pos := u.PatchPos()
	if u.PatchID() != p.id || pos < 0 || pos >= len(p.refs[typ]) {
		return fmt.Errorf("unit %d is not in patch %d: %w",
			u.ID(), p.id, ErrInvalidIndex)
	}
	if err := u.Deactivate(); err != nil {
		return err
	}

	refs := p.refs[typ]
	refs = append(refs[:pos], refs[pos+1:]...)
	p.refs[typ] = refs

	for i := pos; i < len(refs); i++ {
		v, err := refs[i].Deref()
		if err != nil {
			return err
		}
		v.base().patchPos--
	}

	ub := u.base()
	ub.patchPos = NoPos
	ub.patchID = NoPos
	return nil
}

// Invalidate marks the patch stale. The grid calls this on every mutation
// that changes the unit arenas; the model must rebuild the patch's refs
// and call Validate before using the patch again.
func (p *Patch) Invalidate() {
	p.upToDate = false
	p.locked = true
}

// Validate marks the patch current again after the model has rebuilt its
// refs.
func (p *Patch) Validate() {
	p.upToDate = true
	p.locked = false
}

// Refresh rebuilds a locked patch: refs whose units are gone from the
// grid are dropped, the survivors are renumbered, and the patch is
// validated again.
func (p *Patch) Refresh() {
	for typ, refs := range p.refs {
		kept := refs[:0]
		for _, ref := range refs {
			u, err := ref.Deref()
			if err != nil {
				continue
			}
			u.base().patchPos = len(kept)
			kept = append(kept, ref)
		}
		p.refs[typ] = kept
	}
	p.Validate()
}
