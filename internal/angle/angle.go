// internal/angle/angle.go

// Package angle holds compass arithmetic shared by the geometry, the platform
// model and the refinery. Angles are degrees; 0 points along +y (north) and
// angles grow clockwise, so 90 points along +x (east).
package angle

import "math"

// Wrap360 maps an angle into [0, 360).
func Wrap360(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// Wrap180 maps an angle into (-180, 180].
func Wrap180(deg float64) float64 {
	d := Wrap360(deg)
	if d > 180 {
		d -= 360
	}
	return d
}

// Diff returns the smallest unsigned difference between two angles, in [0, 180].
func Diff(a, b float64) float64 {
	d := math.Abs(Wrap360(a) - Wrap360(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Rad converts degrees to radians.
func Rad(deg float64) float64 { return deg * math.Pi / 180 }

// Deg converts radians to degrees.
func Deg(rad float64) float64 { return rad * 180 / math.Pi }

// RelAng is the compass bearing from (x0,y0) to (x1,y1). Coincident points give 0.
func RelAng(x0, y0, x1, y1 float64) float64 {
	dx, dy := x1-x0, y1-y0
	if dx == 0 && dy == 0 {
		return 0
	}
	return Wrap360(Deg(math.Atan2(dx, dy)))
}

// RelBearing is the bearing of (x,y) relative to a platform at (osx,osy)
// pointing at osh, in [0, 360).
func RelBearing(osx, osy, osh, x, y float64) float64 {
	return Wrap360(RelAng(osx, osy, x, y) - osh)
}

// PortTurn reports whether the shorter turn from heading osh to hdg is to port.
// A 180 degree reversal counts as a port turn.
func PortTurn(osh, hdg float64) bool {
	osh, hdg = Wrap360(osh), Wrap360(hdg)
	if hdg > osh {
		return hdg-osh >= 180
	}
	if hdg < osh {
		return osh-hdg <= 180
	}
	return false
}

// Project moves (x,y) dist units along compass bearing ang.
func Project(x, y, ang, dist float64) (float64, float64) {
	r := Rad(ang)
	return x + math.Sin(r)*dist, y + math.Cos(r)*dist
}
