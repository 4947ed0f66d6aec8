// internal/behavior/flags.go

package behavior

import (
	"fmt"
	"strconv"
	"strings"
)

// Flag is a configured VAR=VALUE posting. String values may carry $[MACRO]
// references that are expanded when the flag is posted.
type Flag struct {
	Var   string
	Value string
	Num   float64
	IsNum bool
}

// ParseFlag reads "VAR=VALUE". Unquoted numeric values become numeric flags.
func ParseFlag(s string) (Flag, error) {
	v, val, ok := strings.Cut(s, "=")
	v, val = strings.TrimSpace(v), strings.TrimSpace(val)
	if !ok || v == "" || strings.ContainsAny(v, " \t") {
		return Flag{}, fmt.Errorf("bad flag %q: want VAR=VALUE", s)
	}
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		return Flag{Var: v, Value: val[1 : len(val)-1]}, nil
	}
	if n, err := strconv.ParseFloat(val, 64); err == nil {
		return Flag{Var: v, Num: n, IsNum: true}, nil
	}
	return Flag{Var: v, Value: val}, nil
}

// soloMacro reports whether the value is exactly one macro reference.
func (f Flag) soloMacro() bool {
	if f.IsNum {
		return false
	}
	s := f.Value
	if strings.HasPrefix(s, "$[") && strings.HasSuffix(s, "]") {
		return !strings.ContainsAny(s[2:len(s)-1], "$[]")
	}
	return false
}

// Resolve expands macros. A value that is a lone macro expanding to a number
// is posted as a number.
func (f Flag) Resolve(expand func(string) string) Post {
	switch {
	case f.IsNum:
		return Post{Var: f.Var, Num: f.Num, IsNum: true}
	case f.soloMacro():
		s := expand(f.Value)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return Post{Var: f.Var, Num: n, IsNum: true}
		}
		return Post{Var: f.Var, Value: s}
	}
	return Post{Var: f.Var, Value: expand(f.Value)}
}

// Macros replaces $[NAME] and $(NAME) references.
type Macros map[string]string

// Expand applies every macro to s.
func (m Macros) Expand(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	for name, repl := range m {
		s = strings.ReplaceAll(s, "$("+name+")", repl)
		s = strings.ReplaceAll(s, "$["+name+"]", repl)
	}
	return s
}
