// internal/spatial/scope.go

package spatial

// AlertScope is the region around ownship inside which an obstacle gets an
// avoidance behavior. A polygon scope, when set, overrides the radius.
type AlertScope struct {
	Center  Point
	Radius  float64
	Polygon Polygon
}

// NewAlertScope returns a circular scope around the platform.
func NewAlertScope(center Point, radius float64) AlertScope {
	return AlertScope{Center: center, Radius: radius}
}

// Buffer grows the scope by distance.
func (as AlertScope) Buffer(distance float64) (AlertScope, error) {
	if as.Polygon != nil {
		buffered, err := NewExpander(15).Buffer(as.Polygon, distance)
		if err != nil {
			return as, err
		}
		return AlertScope{Polygon: buffered}, nil
	}
	return AlertScope{Center: as.Center, Radius: as.Radius + distance}, nil
}
