// Package globkit implements a minimal wildcard matcher supporting exactly
// two metacharacters: '?' (any single character) and '*' (any run of
// characters, including none). It does not fall back to regexp.
package globkit

// IsGlob reports whether s contains a glob metacharacter.
func IsGlob(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '?' || s[i] == '*' {
			return true
		}
	}
	return false
}

// Match reports whether s matches the whole pattern. Whitespace is literal;
// trimming, if wanted, is the caller's responsibility.
//
// This is the standard two-cursor algorithm: advance through s and pattern
// in lockstep; on a '*' remember the backtrack point (pattern position just
// after the star, and the s position at the time); on a mismatch, if we
// have a remembered star, retry by consuming one more character of s from
// that point instead of failing outright.
func Match(pattern, s string) bool {
	var (
		pi, si         int
		starIdx        = -1
		starMatchIdx   int
	)
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			starIdx = pi
			starMatchIdx = si
			pi++
		case starIdx != -1:
			pi = starIdx + 1
			starMatchIdx++
			si = starMatchIdx
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
