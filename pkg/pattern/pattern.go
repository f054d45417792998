// Package pattern holds a validated regular expression that keeps its
// source text for reporting and serialisation.
package pattern

import (
	"regexp"

	"github.com/user/hostcomply/pkg/compliance"
)

// Pattern is a compiled regular expression. The zero value matches nothing.
type Pattern struct {
	text string
	re   *regexp.Regexp
	full *regexp.Regexp
}

// Make compiles text. A compilation failure is reported as EINVAL.
func Make(text string) (Pattern, error) {
	re, err := regexp.Compile(text)
	if err != nil {
		return Pattern{}, compliance.PatternError(text, err)
	}
	full, err := regexp.Compile(`^(?:` + text + `)$`)
	if err != nil {
		return Pattern{}, compliance.PatternError(text, err)
	}
	return Pattern{text: text, re: re, full: full}, nil
}

// MustMake is like Make but panics. Use it for literals only.
func MustMake(text string) Pattern {
	p, err := Make(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether candidate contains a match.
func (p Pattern) Match(candidate string) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(candidate)
}

// MatchFull reports whether the whole of candidate matches.
func (p Pattern) MatchFull(candidate string) bool {
	if p.full == nil {
		return false
	}
	return p.full.MatchString(candidate)
}

// FindSubmatch returns the first match and its groups, or nil.
func (p Pattern) FindSubmatch(candidate string) []string {
	if p.re == nil {
		return nil
	}
	return p.re.FindStringSubmatch(candidate)
}

// String returns the source text.
func (p Pattern) String() string {
	return p.text
}

// IsZero reports whether p was never compiled.
func (p Pattern) IsZero() bool {
	return p.re == nil
}

func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.text), nil
}

func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := Make(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
