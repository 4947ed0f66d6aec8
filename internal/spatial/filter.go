// internal/spatial/filter.go

package spatial

// Covers reports whether a point falls inside the scope.
func (as AlertScope) Covers(p Point) bool {
	if as.Polygon != nil {
		return as.Polygon.Contains(p)
	}
	dx := p.X - as.Center.X
	dy := p.Y - as.Center.Y
	return dx*dx+dy*dy <= as.Radius*as.Radius
}

// Reaches reports whether any part of the polygon lies inside the scope.
func (as AlertScope) Reaches(poly Polygon) bool {
	if as.Polygon != nil {
		for _, p := range poly {
			if as.Polygon.Contains(p) {
				return true
			}
		}
		for _, p := range as.Polygon {
			if poly.Contains(p) {
				return true
			}
		}
		return false
	}
	return poly.DistTo(as.Center) <= as.Radius
}

// FilterByScope keeps the labeled polygons the scope reaches.
func FilterByScope(polys map[string]Polygon, as AlertScope) map[string]Polygon {
	out := make(map[string]Polygon)
	for id, poly := range polys {
		if as.Reaches(poly) {
			out[id] = poly
		}
	}
	return out
}
