package compliance

import (
	"fmt"
	"strings"
)

// Status is the verdict of a single check or of a whole evaluation.
type Status int

const (
	Compliant Status = iota
	NonCompliant
)

func (s Status) String() string {
	if s == NonCompliant {
		return "NonCompliant"
	}
	return "Compliant"
}

// Worst returns NonCompliant if either status is NonCompliant.
func Worst(a, b Status) Status {
	if a == NonCompliant || b == NonCompliant {
		return NonCompliant
	}
	return Compliant
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "compliant":
		*s = Compliant
	case "noncompliant", "non-compliant":
		*s = NonCompliant
	default:
		return fmt.Errorf("invalid status %q", string(text))
	}
	return nil
}

// Action selects which half of a procedure runs.
type Action int

const (
	Audit Action = iota
	Remediation
)

func (a Action) String() string {
	if a == Remediation {
		return "remediate"
	}
	return "audit"
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction accepts "audit", "remediate" and "remediation".
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "audit":
		return Audit, nil
	case "remediate", "remediation":
		return Remediation, nil
	}
	return Audit, fmt.Errorf("invalid action %q", s)
}
