// Package report renders evaluation results. Every formatter follows the
// same lifecycle: Begin once, AddEntry per resource, Finish once.
package report

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/version"
	"golang.org/x/sys/unix"
)

// TimestampLayout is the UTC layout of report timestamps.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Kind selects a formatter.
type Kind int

const (
	Compact Kind = iota
	Nested
	JSON
	Verbose
)

func (k Kind) String() string {
	switch k {
	case Nested:
		return "nested"
	case JSON:
		return "json"
	case Verbose:
		return "verbose"
	}
	return "compact"
}

// ParseKind accepts compact, nested, json, verbose and debug (an alias of
// verbose).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "compact", "compact-list":
		return Compact, nil
	case "nested", "nested-list":
		return Nested, nil
	case "json":
		return JSON, nil
	case "verbose", "debug":
		return Verbose, nil
	}
	return Compact, compliance.Errorf(unix.EINVAL, "invalid report format '%s'", s)
}

// Entry is one evaluated resource.
type Entry struct {
	ResourceID string
	Rule       string
	Section    string
	Procedure  string
	Status     compliance.Status
	Indicators *compliance.IndicatorsTree
	Err        error
	Duration   time.Duration
}

func (e Entry) lines() []compliance.Line {
	if e.Indicators == nil {
		return nil
	}
	return e.Indicators.Render()
}

// Formatter renders a report.
type Formatter interface {
	Begin(action compliance.Action) error
	AddEntry(entry Entry) error
	Finish(overall compliance.Status) (string, error)
}

// Option configures a formatter.
type Option func(*base)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithVersion replaces the engine version in the header.
func WithVersion(v string) Option {
	return func(b *base) { b.version = v }
}

// WithSessionID replaces the generated session id.
func WithSessionID(id string) Option {
	return func(b *base) { b.sessionID = id }
}

// New creates a formatter of the given kind.
func New(kind Kind, opts ...Option) Formatter {
	b := base{
		now:       time.Now,
		version:   version.GetVersion(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.created = b.now()

	switch kind {
	case Nested:
		return &textFormatter{base: b, style: nestedStyle}
	case JSON:
		return &jsonFormatter{base: b}
	case Verbose:
		return &textFormatter{base: b, style: verboseStyle}
	}
	return &textFormatter{base: b, style: compactStyle}
}

type state int

const (
	stateNew state = iota
	stateBegun
	stateFinished
)

// base enforces the lifecycle and holds the header fields.
type base struct {
	now       func() time.Time
	version   string
	sessionID string
	created   time.Time

	state     state
	action    compliance.Action
	timestamp string
}

func (b *base) begin(action compliance.Action) error {
	if b.state != stateNew {
		return compliance.NewError(unix.EINVAL, "report already begun")
	}
	b.state = stateBegun
	b.action = action
	b.timestamp = b.now().UTC().Format(TimestampLayout)
	return nil
}

func (b *base) add() error {
	switch b.state {
	case stateNew:
		return compliance.NewError(unix.EINVAL, "report not begun")
	case stateFinished:
		return compliance.NewError(unix.EINVAL, "report already finished")
	}
	return nil
}

func (b *base) finish() (int64, error) {
	if err := b.add(); err != nil {
		return 0, err
	}
	b.state = stateFinished
	return b.now().Sub(b.created).Milliseconds(), nil
}
