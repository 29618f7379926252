// Package varkit implements the {{lovely:NAME}} variable interpolator used
// as the final step of the rewrite engine.
package varkit

import (
	"fmt"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{lovely:(\w+)\}\}`)

// Interpolate replaces every {{lovely:NAME}} occurrence in line with
// vars[NAME]. Substitution is single-pass: the replacement text is never
// re-scanned for further tokens. It is an error for line to reference a
// name not present in vars.
func Interpolate(line string, vars map[string]string) (string, error) {
	if !strings.Contains(line, "{{lovely:") {
		return line, nil
	}
	matches := tokenPattern.FindAllStringSubmatchIndex(line, -1)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		nameStart, nameEnd := m[2], m[3]
		name := line[nameStart:nameEnd]
		val, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("varkit: undefined variable %q referenced in %q", name, line)
		}
		b.WriteString(line[last:start])
		b.WriteString(val)
		last = end
	}
	b.WriteString(line[last:])
	return b.String(), nil
}

// InterpolateAll applies Interpolate to every line of s, where lines are
// split keeping their terminators (as produced by rope.Rope.Lines), and
// rejoins the result.
func InterpolateAll(lines []string, vars map[string]string) (string, error) {
	var b strings.Builder
	for _, line := range lines {
		out, err := Interpolate(line, vars)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}
