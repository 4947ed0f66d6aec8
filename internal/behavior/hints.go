// internal/behavior/hints.go

package behavior

import (
	"fmt"
	"strconv"
	"strings"

	"avoidance-core/internal/spatial"
)

var hintAttrs = []string{
	"edge_color", "vertex_color", "fill_color", "label_color",
	"edge_size", "vertex_size", "fill_transparency",
}

// Hints are drawing attributes keyed by name, optionally prefixed by the
// polygon they apply to (gut_fill_color) or by the family the polygon belongs
// to (obst_fill_color, buff_min_fill_color).
type Hints map[string]string

// Set assigns one hint. Sizes and transparency must be numbers.
func (h Hints) Set(key, val string) error {
	key, val = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(val)
	if key == "" || val == "" {
		return fmt.Errorf("bad visual hint %q=%q", key, val)
	}
	if strings.HasSuffix(key, "_size") || strings.HasSuffix(key, "_transparency") {
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return fmt.Errorf("visual hint %s: %w", key, err)
		}
	}
	h[key] = val
	return nil
}

// SetHints parses a comma separated key=value list. Nothing is applied when
// any entry is malformed.
func (h Hints) SetHints(s string) error {
	staged := Hints{}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("bad visual hint %q", kv)
		}
		if err := staged.Set(k, v); err != nil {
			return err
		}
	}
	for k, v := range staged {
		h[k] = v
	}
	return nil
}

// Apply resolves each attribute from the most specific prefix that has it.
func (h Hints) Apply(prefixes ...string) []spatial.Attr {
	var out []spatial.Attr
	for _, a := range hintAttrs {
		if v, ok := h.lookup(a, prefixes); ok {
			out = append(out, spatial.Attr{Key: a, Val: v})
		}
	}
	return out
}

func (h Hints) lookup(attr string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if v, ok := h[p+"_"+attr]; ok {
			return v, true
		}
	}
	v, ok := h[attr]
	return v, ok
}

func defaultHints() Hints {
	return Hints{
		"vertex_size":  "0",
		"edge_size":    "1",
		"vertex_color": "gray50",
		"edge_color":   "gray50",
		"fill_color":   "off",
		"label_color":  "white",

		"obst_edge_color":        "white",
		"obst_vertex_color":      "white",
		"obst_fill_color":        "gray60",
		"obst_vertex_size":       "1",
		"obst_fill_transparency": "0.7",

		"buff_min_edge_color":        "gray60",
		"buff_min_vertex_color":      "dodger_blue",
		"buff_min_fill_color":        "gray70",
		"buff_min_label_color":       "off",
		"buff_min_vertex_size":       "1",
		"buff_min_fill_transparency": "0.25",

		"buff_max_edge_color":        "gray60",
		"buff_max_vertex_color":      "dodger_blue",
		"buff_max_fill_color":        "gray70",
		"buff_max_label_color":       "off",
		"buff_max_vertex_size":       "1",
		"buff_max_fill_transparency": "0.1",
	}
}
