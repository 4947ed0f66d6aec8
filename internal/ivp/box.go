// internal/ivp/box.go

package ivp

import (
	"fmt"
	"sort"
	"strings"
)

// Box is a rectangular region of a domain given as inclusive point-index
// bounds per axis. Plat tags hint regions: positive for a plateau (flat
// utility), negative for a basin (prohibited), and the more negative basin
// wins an overlap.
type Box struct {
	Lo, Hi []int
	Plat   float64
}

// NewBox returns a zero box with dims axes.
func NewBox(dims int) Box {
	return Box{Lo: make([]int, dims), Hi: make([]int, dims)}
}

// Dims is the number of axes.
func (b Box) Dims() int { return len(b.Lo) }

// Clone returns an independent copy.
func (b Box) Clone() Box {
	return Box{Lo: append([]int(nil), b.Lo...), Hi: append([]int(nil), b.Hi...), Plat: b.Plat}
}

// Empty reports whether any axis has Lo > Hi.
func (b Box) Empty() bool {
	for i := range b.Lo {
		if b.Lo[i] > b.Hi[i] {
			return true
		}
	}
	return len(b.Lo) == 0
}

// Size is the number of points in the box.
func (b Box) Size() int {
	if b.Empty() {
		return 0
	}
	n := 1
	for i := range b.Lo {
		n *= b.Hi[i] - b.Lo[i] + 1
	}
	return n
}

// Contains reports whether the index point lies in the box.
func (b Box) Contains(pt []int) bool {
	for i := range b.Lo {
		if pt[i] < b.Lo[i] || pt[i] > b.Hi[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether two boxes share a point.
func (b Box) Overlaps(o Box) bool {
	for i := range b.Lo {
		if b.Hi[i] < o.Lo[i] || o.Hi[i] < b.Lo[i] {
			return false
		}
	}
	return true
}

// Intersect returns the shared region, keeping b's plat value.
func (b Box) Intersect(o Box) (Box, bool) {
	if !b.Overlaps(o) {
		return Box{}, false
	}
	out := b.Clone()
	for i := range b.Lo {
		out.Lo[i] = max(b.Lo[i], o.Lo[i])
		out.Hi[i] = min(b.Hi[i], o.Hi[i])
	}
	return out, true
}

// Subtract returns disjoint boxes covering b minus o, at most two per axis.
func (b Box) Subtract(o Box) []Box {
	if !b.Overlaps(o) {
		return []Box{b.Clone()}
	}
	var out []Box
	rem := b.Clone()
	for i := range rem.Lo {
		if rem.Lo[i] < o.Lo[i] {
			below := rem.Clone()
			below.Hi[i] = o.Lo[i] - 1
			out = append(out, below)
			rem.Lo[i] = o.Lo[i]
		}
		if rem.Hi[i] > o.Hi[i] {
			above := rem.Clone()
			above.Lo[i] = o.Hi[i] + 1
			out = append(out, above)
			rem.Hi[i] = o.Hi[i]
		}
	}
	return out
}

// Center is the middle index point.
func (b Box) Center() []int {
	out := make([]int, len(b.Lo))
	for i := range b.Lo {
		out[i] = (b.Lo[i] + b.Hi[i]) / 2
	}
	return out
}

func (b Box) String() string {
	parts := make([]string, len(b.Lo))
	for i := range b.Lo {
		parts[i] = fmt.Sprintf("%d-%d", b.Lo[i], b.Hi[i])
	}
	return fmt.Sprintf("[%s]plat=%g", strings.Join(parts, ","), b.Plat)
}

// MakeRegionsApart removes overlap between boxes. Basins go first, most
// negative plat first, then plateaus by descending plat; each box loses
// whatever earlier boxes already cover. The result is pairwise disjoint.
func MakeRegionsApart(boxes []Box) []Box {
	ordered := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if !b.Empty() {
			ordered = append(ordered, b.Clone())
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Plat, ordered[j].Plat
		if (pi < 0) != (pj < 0) {
			return pi < 0
		}
		if pi < 0 {
			return pi < pj
		}
		return pi > pj
	})

	var kept []Box
	for _, b := range ordered {
		pieces := []Box{b}
		for _, k := range kept {
			var next []Box
			for _, p := range pieces {
				next = append(next, p.Subtract(k)...)
			}
			pieces = next
			if len(pieces) == 0 {
				break
			}
		}
		kept = append(kept, pieces...)
	}
	return kept
}
