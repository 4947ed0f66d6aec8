//go:build !avoiddebug

package obship

// checkFreshness turns stale reads of derived geometry into panics when the
// avoiddebug build tag is set.
const checkFreshness = false
