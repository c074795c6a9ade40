package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

// Style is a set of placeholder syntaxes.
type Style uint8

// Placeholder syntaxes.
const (
	// Selector is {{#node.var#}}, optionally with deeper paths such as
	// {{#node.var.field#}}.
	Selector Style = 1 << iota
	// Brace is ${name}.
	Brace
	// Dollar is $name, ending at the first non-word character.
	Dollar
)

// Missing decides what happens to a placeholder whose name does not resolve.
type Missing int

// Missing-placeholder policies.
const (
	// KeepMissing leaves the placeholder in the output.
	KeepMissing Missing = iota
	// DropMissing replaces the placeholder with "".
	DropMissing
	// FailMissing leaves the placeholder and reports an
	// *UndefinedVariableError.
	FailMissing
)

var patterns = []struct {
	style Style
	expr  string
}{
	{Selector, `\{\{#([a-zA-Z0-9_-]{1,50}(?:\.[a-zA-Z_][a-zA-Z0-9_]{0,29}){1,10})#\}\}`},
	{Brace, `\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`},
	{Dollar, `\$([a-zA-Z_][a-zA-Z0-9_]*)`},
}

var selectorPattern = regexp.MustCompile(patterns[0].expr)

// LookupFunc resolves a placeholder name to its text. Selector
// placeholders pass the dotted path, for example "node.var.field".
type LookupFunc func(name string) (string, bool)

// Renderer substitutes placeholders in one left-to-right pass, so text
// produced by a substitution is never expanded again. It is safe for
// concurrent use.
type Renderer struct {
	pattern *regexp.Regexp
	missing Missing
}

// New returns a renderer for the given styles.
func New(styles Style, missing Missing) *Renderer {
	alts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if styles&p.style != 0 {
			alts = append(alts, p.expr)
		}
	}
	r := &Renderer{missing: missing}
	if len(alts) > 0 {
		r.pattern = regexp.MustCompile(strings.Join(alts, "|"))
	}
	return r
}

// Render substitutes every placeholder in s using lookup.
func (r *Renderer) Render(s string, lookup LookupFunc) (string, error) {
	if s == "" || r.pattern == nil {
		return s, nil
	}

	var (
		b       strings.Builder
		missing []string
		last    int
	)
	for _, m := range r.pattern.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		last = m[1]
		placeholder := s[m[0]:m[1]]
		name := firstGroup(s, m)

		if val, ok := lookup(name); ok {
			b.WriteString(val)
			continue
		}
		switch r.missing {
		case DropMissing:
		case FailMissing:
			missing = append(missing, name)
			b.WriteString(placeholder)
		default:
			b.WriteString(placeholder)
		}
	}
	b.WriteString(s[last:])

	if len(missing) > 0 {
		return b.String(), &UndefinedVariableError{Names: missing}
	}
	return b.String(), nil
}

// RenderMap renders s against a flat map, formatting values with %v.
func (r *Renderer) RenderMap(s string, vars map[string]any) (string, error) {
	return r.Render(s, func(name string) (string, bool) {
		v, ok := vars[name]
		if !ok {
			return "", false
		}
		return fmt.Sprint(v), true
	})
}

// firstGroup returns the first capture group that took part in match m.
func firstGroup(s string, m []int) string {
	for i := 2; i+1 < len(m); i += 2 {
		if m[i] >= 0 {
			return s[m[i]:m[i+1]]
		}
	}
	return ""
}

// PoolLookup resolves selector paths against pool, rendering values with
// Segment.Text.
func PoolLookup(pool *variable.Pool) LookupFunc {
	return func(path string) (string, bool) {
		seg, ok := pool.GetOK(variable.Selector(strings.Split(path, ".")))
		if !ok {
			return "", false
		}
		return seg.Text(), true
	}
}

// Selectors returns the dotted paths referenced by {{#...#}} placeholders in
// s, in order of appearance, without duplicates.
func Selectors(s string) []string {
	matches := selectorPattern.FindAllStringSubmatch(s, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// UndefinedVariableError lists the placeholders a FailMissing renderer
// could not resolve.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return "undefined variable: " + e.Names[0]
	}
	return "undefined variables: " + strings.Join(e.Names, ", ")
}

// ErrorType labels the error in fail-branch outputs.
func (e *UndefinedVariableError) ErrorType() string { return "TemplateRenderError" }
