// internal/behavior/post.go

package behavior

import (
	"strconv"
	"strings"
)

// KeyRepeatable marks a post that the helm's duplicate filter must pass.
const KeyRepeatable = "repeatable"

// Post is a variable/value pair published by a behavior. Numeric posts have
// IsNum set and carry their value in Num.
type Post struct {
	Var   string  `json:"var"`
	Value string  `json:"value,omitempty"`
	Num   float64 `json:"num,omitempty"`
	IsNum bool    `json:"is_num,omitempty"`
	Key   string  `json:"key,omitempty"`
}

// String renders the value the way it would be written to the bus.
func (p Post) String() string {
	if p.IsNum {
		return FormatNum(p.Num, 6)
	}
	return p.Value
}

// FormatNum prints v with at most prec decimals and no trailing zeros.
func FormatNum(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// Poster collects posts for a behavior. Keys other than KeyRepeatable are
// scoped to the descriptor so the helm can filter repeats per behavior.
type Poster struct {
	descriptor string
	posts      []Post
}

func (p *Poster) key(v, key string) string {
	if key == KeyRepeatable {
		return key
	}
	return p.descriptor + v + key
}

// PostMessage posts a string value.
func (p *Poster) PostMessage(v, val, key string) {
	p.posts = append(p.posts, Post{Var: v, Value: val, Key: p.key(v, key)})
}

// PostNum posts a numeric value.
func (p *Poster) PostNum(v string, val float64, key string) {
	p.posts = append(p.posts, Post{Var: v, Num: val, IsNum: true, Key: p.key(v, key)})
}

// PostRepeatable posts a string that is never filtered as a duplicate.
func (p *Poster) PostRepeatable(v, val string) {
	p.PostMessage(v, val, KeyRepeatable)
}

// PostWarning posts BHV_WARNING prefixed with the descriptor. Empty messages
// are dropped.
func (p *Poster) PostWarning(msg string) {
	if msg == "" {
		return
	}
	if p.descriptor != "" {
		msg = p.descriptor + ": " + msg
	}
	p.PostRepeatable("BHV_WARNING", msg)
}

// PostEvent posts BHV_EVENT prefixed with the descriptor.
func (p *Poster) PostEvent(msg string) {
	if p.descriptor != "" {
		msg = p.descriptor + ": " + msg
	}
	p.PostRepeatable("BHV_EVENT", msg)
}

// Drain returns and clears the pending posts.
func (p *Poster) Drain() []Post {
	out := p.posts
	p.posts = nil
	return out
}
