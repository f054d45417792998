package report

import (
	"fmt"
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
)

type style int

const (
	compactStyle style = iota
	nestedStyle
	verboseStyle
)

// textFormatter renders the compact, nested and verbose list reports.
type textFormatter struct {
	base
	style style
	sb    strings.Builder
	count int
}

func (f *textFormatter) Begin(action compliance.Action) error {
	if err := f.begin(action); err != nil {
		return err
	}
	f.sb.WriteString(fmt.Sprintf("# hostcomply %s report\n", action))
	f.sb.WriteString(fmt.Sprintf("# version: %s\n", f.version))
	f.sb.WriteString(fmt.Sprintf("# timestamp: %s\n", f.timestamp))
	if f.style == verboseStyle {
		f.sb.WriteString(fmt.Sprintf("# session: %s\n", f.sessionID))
	}
	return nil
}

func (f *textFormatter) AddEntry(e Entry) error {
	if err := f.add(); err != nil {
		return err
	}
	f.count++

	verdict := e.Status.String()
	if e.Err != nil {
		verdict = "Error"
	}
	f.sb.WriteString(fmt.Sprintf("[%s] %s", verdict, entryTitle(e)))
	if f.style == verboseStyle {
		f.sb.WriteString(fmt.Sprintf(" (%s, %dms)", e.Procedure, e.Duration.Milliseconds()))
	}
	f.sb.WriteString("\n")

	if e.Err != nil {
		f.sb.WriteString(fmt.Sprintf("  error: %v (%s)\n", e.Err, compliance.CodeOf(e.Err).Error()))
		if f.style != verboseStyle {
			return nil
		}
	}

	switch f.style {
	case compactStyle:
		if e.Status == compliance.NonCompliant && e.Indicators != nil {
			if msg, ok := e.Indicators.LastNonCompliant(); ok {
				f.sb.WriteString("  " + msg + "\n")
			}
		}
	case nestedStyle:
		for _, line := range e.lines() {
			f.sb.WriteString(fmt.Sprintf("%s- %s\n", strings.Repeat("  ", line.Depth+1), line.Message))
		}
	case verboseStyle:
		for _, line := range e.lines() {
			f.sb.WriteString(fmt.Sprintf("%s- [%s] %s\n", strings.Repeat("  ", line.Depth+1), line.Status, line.Message))
		}
	}
	return nil
}

func (f *textFormatter) Finish(overall compliance.Status) (string, error) {
	elapsed, err := f.finish()
	if err != nil {
		return "", err
	}
	if f.style == verboseStyle {
		f.sb.WriteString(fmt.Sprintf("# rules: %d\n", f.count))
	}
	f.sb.WriteString(fmt.Sprintf("# duration: %dms\n", elapsed))
	f.sb.WriteString(fmt.Sprintf("# status: %s\n", overall))
	return f.sb.String(), nil
}

func entryTitle(e Entry) string {
	title := e.ResourceID
	if title == "" {
		title = "<catalog>"
	}
	if e.Section != "" {
		title += " " + e.Section
	}
	if e.Rule != "" {
		title += " " + e.Rule
	}
	return title
}
