// internal/behavior/condition.go

package behavior

import (
	"fmt"
	"strconv"
	"strings"
)

// clause is one "VAR op VALUE" comparison.
type clause struct {
	Var, Op, Value string
}

// Condition is a conjunction of clauses gating whether a behavior may run.
// The empty condition always holds.
type Condition struct {
	raw     string
	clauses []clause
}

// ops are tried longest first so "<=" is not read as "<".
var ops = []string{"!=", "<=", ">=", "=", "<", ">"}

// ParseCondition reads "DEPLOY=true and RETURN!=true and DEPTH<10".
func ParseCondition(s string) (Condition, error) {
	c := Condition{raw: strings.TrimSpace(s)}
	if c.raw == "" {
		return c, nil
	}
	for _, part := range splitAnd(c.raw) {
		cl, err := parseClause(part)
		if err != nil {
			return Condition{}, fmt.Errorf("condition %q: %w", s, err)
		}
		c.clauses = append(c.clauses, cl)
	}
	return c, nil
}

func splitAnd(s string) []string {
	s = strings.ReplaceAll(s, "&&", " and ")
	var parts []string
	for _, p := range strings.Split(s, " and ") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func parseClause(s string) (clause, error) {
	for _, op := range ops {
		if i := strings.Index(s, op); i >= 0 {
			v := strings.TrimSpace(s[:i])
			val := strings.Trim(strings.TrimSpace(s[i+len(op):]), `"`)
			if v == "" || strings.ContainsAny(v, " \t") {
				return clause{}, fmt.Errorf("bad variable in %q", s)
			}
			return clause{Var: v, Op: op, Value: val}, nil
		}
	}
	return clause{}, fmt.Errorf("no comparison in %q", s)
}

// String returns the condition as written.
func (c Condition) String() string { return c.raw }

// Vars lists the variables the condition reads.
func (c Condition) Vars() []string {
	out := make([]string, 0, len(c.clauses))
	for _, cl := range c.clauses {
		out = append(out, cl.Var)
	}
	return out
}

// Eval checks the condition against the info buffer. A clause on a variable
// that was never posted is false.
func (c Condition) Eval(info *InfoBuffer) bool {
	for _, cl := range c.clauses {
		if !cl.eval(info) {
			return false
		}
	}
	return true
}

func (cl clause) eval(info *InfoBuffer) bool {
	want, err := strconv.ParseFloat(cl.Value, 64)
	if err == nil {
		if got, ok := info.Num(cl.Var); ok {
			return compare(cl.Op, got-want)
		}
	}
	got, ok := info.String(cl.Var)
	if !ok {
		n, isNum := info.Num(cl.Var)
		if !isNum {
			return false
		}
		got = FormatNum(n, 6)
	}
	return compare(cl.Op, float64(strings.Compare(strings.ToLower(got), strings.ToLower(cl.Value))))
}

func compare(op string, d float64) bool {
	switch op {
	case "=":
		return d == 0
	case "!=":
		return d != 0
	case "<":
		return d < 0
	case "<=":
		return d <= 0
	case ">":
		return d > 0
	}
	return d >= 0
}
