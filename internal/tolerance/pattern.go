package tolerance

import (
	"regexp"
	"strings"
)

// Matcher tests signal text against one allowlist entry. An entry is tried as
// a case-insensitive regular expression; an entry that does not compile is
// matched as a literal substring instead.
type Matcher struct {
	expr string
	re   *regexp.Regexp
}

// Compile builds a Matcher for expr. It never fails.
func Compile(expr string) Matcher {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Matcher{expr: expr}
	}
	return Matcher{expr: expr, re: re}
}

// CompileAll compiles every entry, preserving order.
func CompileAll(exprs []string) []Matcher {
	if len(exprs) == 0 {
		return nil
	}
	out := make([]Matcher, len(exprs))
	for i, e := range exprs {
		out[i] = Compile(e)
	}
	return out
}

// Match reports whether s matches the entry.
func (m Matcher) Match(s string) bool {
	if m.re != nil {
		return m.re.MatchString(s)
	}
	return strings.Contains(s, m.expr)
}

// Literal reports whether the entry fell back to substring matching.
func (m Matcher) Literal() bool { return m.re == nil }

func (m Matcher) String() string { return m.expr }

func matchAny(ms []Matcher, s string) bool {
	for _, m := range ms {
		if m.Match(s) {
			return true
		}
	}
	return false
}
