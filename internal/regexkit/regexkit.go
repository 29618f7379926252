// Package regexkit wraps the standard library regexp engine with the
// features the rewrite engine needs on top of it: an optional
// whitespace-insensitive ("verbose") compile mode, multi-line matching by
// default, and a small $N/$name interpolation helper that the rewrite
// engine uses to build payload and line_prepend text from capture groups.
package regexkit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Group is one capture group of a Match. Index 0 is the whole match.
type Group struct {
	Name       string // "" for unnamed/numbered-only groups
	Start, End int    // byte offsets into the matched string; -1,-1 if the group didn't participate
}

// Match is one match of a compiled Regex against a string.
type Match struct {
	Start, End int
	Groups     []Group
}

// Regex is a compiled, reusable pattern.
type Regex struct {
	re    *regexp.Regexp
	names []string
}

// Compile compiles pattern in multi-line mode (so ^/$ match line
// boundaries). If verbose is set, unescaped whitespace and '#...'
// end-of-line comments outside character classes are stripped before
// compiling, emulating the "ignore whitespace in pattern" mode named in
// spec.md's RegexPatch.verbose field (the stdlib engine has no native
// flag for this).
func Compile(pattern string, verbose bool) (*Regex, error) {
	p := pattern
	if verbose {
		p = stripVerbose(p)
	}
	re, err := regexp.Compile("(?m)" + p)
	if err != nil {
		return nil, fmt.Errorf("regexkit: compile %q: %w", pattern, err)
	}
	return &Regex{re: re, names: re.SubexpNames()}, nil
}

func stripVerbose(p string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			b.WriteByte(c)
			b.WriteByte(p[i+1])
			i++
		case c == '[':
			inClass = true
			b.WriteByte(c)
		case c == ']':
			inClass = false
			b.WriteByte(c)
		case !inClass && c == '#':
			for i < len(p) && p[i] != '\n' {
				i++
			}
			i--
		case !inClass && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			// skip
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FindAll returns every non-overlapping, leftmost match of r in s, each with
// its full set of capture groups (CRLF in s is ordinary text to the
// underlying RE2 engine; (?m) still treats each '\n' as ending a line,
// which is sufficient for CRLF-terminated lines since the '\r' simply
// becomes the last ordinary character of the line).
func (r *Regex) FindAll(s string) []Match {
	locs := r.re.FindAllSubmatchIndex([]byte(s), -1)
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		n := len(loc) / 2
		groups := make([]Group, n)
		for g := 0; g < n; g++ {
			name := ""
			if g < len(r.names) {
				name = r.names[g]
			}
			groups[g] = Group{Name: name, Start: loc[2*g], End: loc[2*g+1]}
		}
		matches = append(matches, Match{Start: loc[0], End: loc[1], Groups: groups})
	}
	return matches
}

// ResolveGroup finds the group referenced by ref, which is either a decimal
// group index ("0", "3", ...) or a group name ("name"). It reports an error
// if ref names a group the pattern doesn't have.
func (m Match) ResolveGroup(ref string) (Group, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 0 || n >= len(m.Groups) {
			return Group{}, fmt.Errorf("regexkit: no capture group $%s", ref)
		}
		return m.Groups[n], nil
	}
	for _, g := range m.Groups {
		if g.Name == ref {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("regexkit: no capture group named %q", ref)
}

// Interpolate expands $N and $name references in template, calling resolve
// to fetch the substituted text for each reference. "$$" is a literal "$".
// It is an error (surfaced via resolve returning ok=false) to reference an
// unresolvable group; spec.md treats that as fatal at apply time.
func Interpolate(template string, resolve func(ref string) (string, bool)) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(template) {
		c := template[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(template) {
			b.WriteByte('$')
			i++
			continue
		}
		next := template[i+1]
		if next == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}
		j := i + 1
		isName := isWordStart(next)
		for j < len(template) && isWordChar(template[j]) {
			j++
		}
		if j == i+1 {
			// not a valid reference; keep the literal '$'
			b.WriteByte('$')
			i++
			continue
		}
		ref := template[i+1 : j]
		val, ok := resolve(ref)
		if !ok {
			return "", fmt.Errorf("regexkit: unresolved reference $%s in %q", ref, template)
		}
		b.WriteString(val)
		_ = isName
		i = j
	}
	return b.String(), nil
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordStart(c byte) bool {
	return isWordChar(c)
}
