// Package bindings turns the untyped string arguments of a catalog entry into
// typed, validated procedure parameters.
package bindings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/pattern"
	"golang.org/x/sys/unix"
)

// Mode is a file permission mode parsed from octal text.
type Mode uint32

func (m Mode) String() string {
	return fmt.Sprintf("%04o", uint32(m))
}

// Value is the closed set of scalar types the binder understands.
type Value interface {
	string | int | bool | Mode | pattern.Pattern
}

// Parse converts raw into T.
func Parse[T Value](raw string) (T, error) {
	var out T
	var err error
	switch p := any(&out).(type) {
	case *string:
		*p = raw
	case *int:
		*p, err = parseInt(raw)
	case *bool:
		*p, err = parseBool(raw)
	case *Mode:
		*p, err = parseMode(raw)
	case *pattern.Pattern:
		*p, err = pattern.Make(raw)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Format is the canonical text form of v.
func Format[T Value](v T) string {
	switch x := any(v).(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case Mode:
		return x.String()
	case pattern.Pattern:
		return x.String()
	}
	return ""
}

func parseInt(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, compliance.BindingError(unix.ERANGE, "integer value '%s' out of range", raw)
		}
		return 0, compliance.BindingError(unix.EINVAL, "invalid integer value '%s'", raw)
	}
	return v, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, compliance.BindingError(unix.EINVAL, "invalid boolean value '%s'", raw)
}

func parseMode(raw string) (Mode, error) {
	v, err := strconv.ParseUint(raw, 8, 32)
	if err != nil {
		return 0, compliance.BindingError(unix.EINVAL, "invalid octal mode '%s'", raw)
	}
	return Mode(v), nil
}

// Separated is a list parsed from text joined by a single separator byte.
type Separated[T Value] struct {
	Items []T

	sep    byte
	tokens []string
}

// ParseSeparated splits raw on sep and parses every non-empty token. The
// first token that fails to parse aborts the whole list.
func ParseSeparated[T Value](raw string, sep byte) (Separated[T], error) {
	out := Separated[T]{sep: sep}
	if raw == "" {
		return out, nil
	}
	for _, token := range strings.Split(raw, string(sep)) {
		if token == "" {
			continue
		}
		item, err := Parse[T](token)
		if err != nil {
			return Separated[T]{sep: sep}, err
		}
		out.Items = append(out.Items, item)
		out.tokens = append(out.tokens, token)
	}
	return out, nil
}

// NewSeparated builds a list from already-typed items.
func NewSeparated[T Value](sep byte, items ...T) Separated[T] {
	out := Separated[T]{sep: sep, Items: items}
	for _, item := range items {
		out.tokens = append(out.tokens, Format(item))
	}
	return out
}

// String re-joins the list with its separator. A parsed list reproduces
// the text it was parsed from.
func (s Separated[T]) String() string {
	if len(s.tokens) != len(s.Items) {
		s = NewSeparated(s.sep, s.Items...)
	}
	return strings.Join(s.tokens, string(s.sep))
}

func (s Separated[T]) Len() int {
	return len(s.Items)
}

func (s *Separated[T]) bindText(raw string, sep byte) error {
	parsed, err := ParseSeparated[T](raw, sep)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// BindField looks up key in args. A missing required key is EINVAL; a
// missing optional key yields def, or the zero value when def is nil.
func BindField[T Value](args map[string]string, key string, required bool, def *T) (T, error) {
	raw, ok := args[key]
	if !ok {
		var zero T
		if required {
			return zero, missingParameter(key)
		}
		if def != nil {
			return *def, nil
		}
		return zero, nil
	}
	return Parse[T](raw)
}

func missingParameter(key string) error {
	return compliance.BindingError(unix.EINVAL, "missing required '%s' parameter", key)
}
