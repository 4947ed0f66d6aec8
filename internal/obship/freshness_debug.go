//go:build avoiddebug

package obship

const checkFreshness = true
