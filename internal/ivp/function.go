// internal/ivp/function.go

package ivp

import "math"

// Piece is a box with a constant utility.
type Piece struct {
	Box Box
	Val float64
}

// Function is a piecewise-constant utility over a domain with a priority
// weight. Pieces are disjoint; points outside every piece have no opinion.
type Function struct {
	Domain Domain
	Pieces []Piece
	PWT    float64
}

// Eval returns the utility at an index point.
func (f *Function) Eval(pt []int) (float64, bool) {
	for _, p := range f.Pieces {
		if p.Box.Contains(pt) {
			return p.Val, true
		}
	}
	return 0, false
}

// Normalize rescales piece values onto [lo, hi]. A flat function maps to lo.
func (f *Function) Normalize(lo, hi float64) {
	if len(f.Pieces) == 0 {
		return
	}
	vmin, vmax := math.Inf(1), math.Inf(-1)
	for _, p := range f.Pieces {
		vmin = math.Min(vmin, p.Val)
		vmax = math.Max(vmax, p.Val)
	}
	span := vmax - vmin
	for i := range f.Pieces {
		if span <= 0 {
			f.Pieces[i].Val = lo
			continue
		}
		f.Pieces[i].Val = lo + (f.Pieces[i].Val-vmin)/span*(hi-lo)
	}
}

// Best returns the center of the highest-valued piece.
func (f *Function) Best() ([]float64, float64, bool) {
	if len(f.Pieces) == 0 {
		return nil, 0, false
	}
	bi := 0
	for i, p := range f.Pieces {
		if p.Val > f.Pieces[bi].Val {
			bi = i
		}
	}
	return f.Domain.Values(f.Pieces[bi].Box.Center()), f.Pieces[bi].Val, true
}

// Solve brute-forces the point maximizing the weighted sum of the functions.
// All functions must share the domain of the first one. It returns nil when no
// function is given.
func Solve(fns ...*Function) ([]float64, float64) {
	if len(fns) == 0 {
		return nil, 0
	}
	dom := fns[0].Domain
	pt := make([]int, dom.Size())
	var best []int
	bestV := math.Inf(-1)
	var walk func(ax int)
	walk = func(ax int) {
		if ax == dom.Size() {
			total := 0.0
			for _, f := range fns {
				if v, ok := f.Eval(pt); ok {
					total += v * f.PWT
				}
			}
			if total > bestV {
				bestV = total
				best = append(best[:0], pt...)
			}
			return
		}
		for i := 0; i < dom.Points(ax); i++ {
			pt[ax] = i
			walk(ax + 1)
		}
	}
	walk(0)
	return dom.Values(best), bestV
}
