/*package interp provides 1D interpolation along a channel coordinate.
Child domains use it to place bathymetry on their refined meshes from
the parent's node table.
*/
package interp

import (
	"fmt"
)

// Spline is a natural cubic spline through a table of x and y values.
// The x values must be strictly increasing.
//
// xs and ys are copied; the table may be modified after construction.
type Spline struct {
	xs, ys, y2s []float64

	// Usually the input data is uniform. This is our estimate of the
	// point spacing, used to guess the bracketing interval.
	dx float64
}

// NewSpline builds a spline from the table.
func NewSpline(xs, ys []float64) (*Spline, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf(
			"interp: table has len(xs) = %d but len(ys) = %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("interp: table has length %d", len(xs))
	}
	for i := 0; i < len(xs)-1; i++ {
		if xs[i+1] <= xs[i] {
			return nil, fmt.Errorf("interp: table not increasing at index %d", i)
		}
	}

	sp := &Spline{
		xs:  append([]float64(nil), xs...),
		ys:  append([]float64(nil), ys...),
		y2s: make([]float64, len(xs)),
		dx:  (xs[len(xs)-1] - xs[0]) / float64(len(xs)-1),
	}
	sp.calcY2s()
	return sp, nil
}

// Eval computes the value of the spline at x, which must be within the
// table's range.
func (sp *Spline) Eval(x float64) (float64, error) {
	n := len(sp.xs)
	if x < sp.xs[0] || x > sp.xs[n-1] {
		return 0, fmt.Errorf("interp: point %g out of bounds [%g, %g]",
			x, sp.xs[0], sp.xs[n-1])
	}

	i := sp.bsearch(x)
	h := sp.xs[i+1] - sp.xs[i]
	a := (sp.xs[i+1] - x) / h
	b := 1 - a
	y := a*sp.ys[i] + b*sp.ys[i+1] +
		((a*a*a-a)*sp.y2s[i]+(b*b*b-b)*sp.y2s[i+1])*h*h/6
	return y, nil
}

// bsearch returns the index i of a table interval [xs[i], xs[i+1]]
// containing x, trying a uniform-spacing guess before falling back to
// binary search. i is at most len(xs)-2, so xs[i+1] always exists.
func (sp *Spline) bsearch(x float64) int {
	guess := int((x - sp.xs[0]) / sp.dx)
	if guess >= 0 && guess < len(sp.xs)-1 &&
		sp.xs[guess] <= x && x <= sp.xs[guess+1] {
		return guess
	}

	lo, hi := 0, len(sp.xs)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if x >= sp.xs[mid] {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// calcY2s solves for the second derivative at every table point. The
// boundary derivatives are zero, which is what makes the spline natural.
func (sp *Spline) calcY2s() {
	n := len(sp.xs)
	sp.y2s[0], sp.y2s[n-1] = 0, 0
	if n == 2 {
		return
	}

	as := make([]float64, n-2)
	bs := make([]float64, n-2)
	cs := make([]float64, n-2)
	rs := make([]float64, n-2)

	xs, ys := sp.xs, sp.ys
	for i := range rs {
		j := i + 1
		as[i] = (xs[j] - xs[j-1]) / 6
		bs[i] = (xs[j+1] - xs[j-1]) / 3
		cs[i] = (xs[j+1] - xs[j]) / 6
		rs[i] = (ys[j+1]-ys[j])/(xs[j+1]-xs[j]) -
			(ys[j]-ys[j-1])/(xs[j]-xs[j-1])
	}

	triDiagAt(as, bs, cs, rs, sp.y2s[1:n-1])
}

// triDiagAt solves the tridiagonal system with diagonals (as, bs, cs)
// and right-hand side rs into out, overwriting cs and rs as scratch.
func triDiagAt(as, bs, cs, rs, out []float64) {
	n := len(bs)

	beta := bs[0]
	out[0] = rs[0] / beta
	for i := 1; i < n; i++ {
		cs[i-1] /= beta
		beta = bs[i] - as[i]*cs[i-1]
		out[i] = (rs[i] - as[i]*out[i-1]) / beta
	}
	for i := n - 2; i >= 0; i-- {
		out[i] -= cs[i] * out[i+1]
	}
}
