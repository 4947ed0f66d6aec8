// internal/ivp/builder.go

package ivp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Objective is a utility over domain points given as axis values in domain
// order.
type Objective interface {
	Initialize() error
	Eval(vals []float64) float64
}

// Builder turns an objective into a piecewise function. Plateau and basin
// hints become single pieces; the rest of the domain is tiled with uniform
// pieces, each valued at its low corner.
type Builder struct {
	domain   Domain
	of       Objective
	uniform  []int
	plateaus []Box
	basins   []Box
	pieces   []Piece
	warnings []string
}

// NewBuilder returns a builder with one-point uniform pieces.
func NewBuilder(domain Domain, of Objective) *Builder {
	uniform := make([]int, domain.Size())
	for i := range uniform {
		uniform[i] = 1
	}
	return &Builder{domain: domain, of: of, uniform: uniform}
}

// SetUniformPiece sets the piece size per axis.
func (b *Builder) SetUniformPiece(sizes map[string]int) error {
	for name, n := range sizes {
		ix := b.domain.Index(name)
		if ix < 0 {
			return fmt.Errorf("uniform piece %s: %w", name, ErrMissingAxis)
		}
		if n < 1 {
			return fmt.Errorf("uniform piece %s: size must be >= 1", name)
		}
		b.uniform[ix] = n
	}
	return nil
}

// SetUniformPieceSpec reads "discrete@course:3,speed:3". The discrete@ prefix
// is optional.
func (b *Builder) SetUniformPieceSpec(spec string) error {
	spec = strings.TrimPrefix(strings.TrimSpace(spec), "discrete@")
	sizes := make(map[string]int)
	for _, kv := range strings.Split(spec, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(kv), ":")
		if !ok {
			return fmt.Errorf("uniform piece %q: want name:size", kv)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("uniform piece %q: %w", kv, err)
		}
		sizes[strings.TrimSpace(name)] = n
	}
	return b.SetUniformPiece(sizes)
}

// AddPlateau adds a region of flat utility.
func (b *Builder) AddPlateau(box Box) {
	if box.Plat <= 0 {
		box = box.Clone()
		box.Plat = 1
	}
	b.plateaus = append(b.plateaus, box)
}

// AddBasin adds a prohibited region.
func (b *Builder) AddBasin(box Box) {
	if box.Plat >= 0 {
		box = box.Clone()
		box.Plat = -1
	}
	b.basins = append(b.basins, box)
}

// Warnings returns notes gathered while building.
func (b *Builder) Warnings() []string { return b.warnings }

// Create builds the pieces.
func (b *Builder) Create() error {
	if b.of == nil {
		return errors.New("no objective function")
	}
	if b.domain.Size() == 0 {
		return errors.New("empty domain")
	}
	full := b.domain.FullBox()
	var hints []Box
	for _, h := range append(append([]Box(nil), b.basins...), b.plateaus...) {
		if h.Dims() != b.domain.Size() {
			b.warnings = append(b.warnings, fmt.Sprintf("hint %s ignored: wrong dimension", h))
			continue
		}
		if clipped, ok := h.Intersect(full); ok {
			hints = append(hints, clipped)
		}
	}
	hints = MakeRegionsApart(hints)

	b.pieces = b.pieces[:0]
	for _, h := range hints {
		b.pieces = append(b.pieces, Piece{Box: h, Val: b.of.Eval(b.domain.Values(h.Center()))})
	}

	for _, cell := range b.grid() {
		rest := []Box{cell}
		for _, h := range hints {
			var next []Box
			for _, r := range rest {
				next = append(next, r.Subtract(h)...)
			}
			rest = next
		}
		for _, r := range rest {
			b.pieces = append(b.pieces, Piece{Box: r, Val: b.of.Eval(b.domain.Values(r.Lo))})
		}
	}
	return nil
}

func (b *Builder) grid() []Box {
	cells := []Box{NewBox(b.domain.Size())}
	for ax := 0; ax < b.domain.Size(); ax++ {
		var next []Box
		n, step := b.domain.Points(ax), b.uniform[ax]
		for _, c := range cells {
			for lo := 0; lo < n; lo += step {
				cell := c.Clone()
				cell.Lo[ax] = lo
				cell.Hi[ax] = min(n-1, lo+step-1)
				next = append(next, cell)
			}
		}
		cells = next
	}
	return cells
}

// Extract returns the built function, optionally normalized onto [0, 100].
func (b *Builder) Extract(normalize bool) (*Function, error) {
	if len(b.pieces) == 0 {
		return nil, errors.New("function not created")
	}
	pieces := make([]Piece, len(b.pieces))
	copy(pieces, b.pieces)
	f := &Function{Domain: b.domain, Pieces: pieces, PWT: 1}
	if normalize {
		f.Normalize(0, 100)
	}
	return f, nil
}
