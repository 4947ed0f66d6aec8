// internal/spatial/format.go

package spatial

import (
	"fmt"
	"strconv"
	"strings"
)

// Attr is a key=value suffix on a polygon spec, e.g. edge_color=gray50.
type Attr struct {
	Key, Val string
}

// ParsePolygon reads "pts={x,y:x,y:...},label=ob_1[,key=val...]". Keys other
// than pts and label are returned as attrs in order.
func ParsePolygon(spec string) (Polygon, string, []Attr, error) {
	spec = strings.TrimSpace(spec)
	start := strings.Index(spec, "pts={")
	if start < 0 {
		return nil, "", nil, fmt.Errorf("polygon spec %q: missing pts", spec)
	}
	end := strings.Index(spec[start:], "}")
	if end < 0 {
		return nil, "", nil, fmt.Errorf("polygon spec %q: unterminated pts", spec)
	}
	body := spec[start+len("pts={") : start+end]
	rest := spec[:start] + spec[start+end+1:]

	var poly Polygon
	for _, pair := range strings.Split(body, ":") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xy := strings.Split(pair, ",")
		if len(xy) < 2 {
			return nil, "", nil, fmt.Errorf("polygon spec: bad vertex %q", pair)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if errX != nil || errY != nil {
			return nil, "", nil, fmt.Errorf("polygon spec: bad vertex %q", pair)
		}
		poly = append(poly, Point{X: x, Y: y})
	}

	var label string
	var attrs []Attr
	for _, kv := range strings.Split(rest, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, "", nil, fmt.Errorf("polygon spec: bad field %q", kv)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "label" {
			label = v
			continue
		}
		attrs = append(attrs, Attr{Key: k, Val: v})
	}
	return poly, label, attrs, nil
}

// FormatPolygon renders a polygon spec with the given label and attrs.
func FormatPolygon(poly Polygon, label string, attrs ...Attr) string {
	var b strings.Builder
	b.WriteString("pts={")
	for i, p := range poly {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(FormatNum(p.X))
		b.WriteByte(',')
		b.WriteString(FormatNum(p.Y))
	}
	b.WriteByte('}')
	if label != "" {
		b.WriteString(",label=")
		b.WriteString(label)
	}
	for _, a := range attrs {
		b.WriteByte(',')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Val)
	}
	return b.String()
}

// FormatInactive renders a spec telling viewers to erase the labeled polygon.
func FormatInactive(label string) string {
	return FormatPolygon(nil, label, Attr{Key: "active", Val: "false"})
}

// FormatNum prints with at most two decimals and no trailing zeros.
func FormatNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		s = "0"
	}
	return s
}
