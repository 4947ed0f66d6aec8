// internal/behavior/infobuffer.go

package behavior

import (
	"strconv"
	"strings"
	"sync"
)

// InfoBuffer holds the latest value of every mail variable plus the string
// values received since the last cycle. Writers may be other goroutines;
// behaviors only read.
type InfoBuffer struct {
	mu     sync.RWMutex
	vals   map[string]string
	nums   map[string]float64
	deltas map[string][]string
}

// NewInfoBuffer returns an empty buffer.
func NewInfoBuffer() *InfoBuffer {
	return &InfoBuffer{
		vals:   make(map[string]string),
		nums:   make(map[string]float64),
		deltas: make(map[string][]string),
	}
}

// SetString records a string value.
func (b *InfoBuffer) SetString(v, val string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vals[v] = val
	delete(b.nums, v)
	b.deltas[v] = append(b.deltas[v], val)
}

// SetNum records a numeric value.
func (b *InfoBuffer) SetNum(v string, val float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nums[v] = val
	delete(b.vals, v)
}

// Num returns a numeric value. Strings that parse as numbers count.
func (b *InfoBuffer) Num(v string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n, ok := b.nums[v]; ok {
		return n, true
	}
	if s, ok := b.vals[v]; ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return n, err == nil
	}
	return 0, false
}

// String returns the latest string value.
func (b *InfoBuffer) String(v string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.vals[v]
	return s, ok
}

// Deltas returns the string values received for v since the last ClearDeltas.
func (b *InfoBuffer) Deltas(v string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.deltas[v]...)
}

// ClearDeltas starts a new cycle.
func (b *InfoBuffer) ClearDeltas() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.deltas)
}
