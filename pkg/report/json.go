package report

import (
	"encoding/json"

	"github.com/user/hostcomply/pkg/compliance"
)

type jsonIndicator struct {
	Message    string          `json:"message"`
	Status     string          `json:"status"`
	Indicators []jsonIndicator `json:"indicators,omitempty"`
}

type jsonRule struct {
	ResourceID string          `json:"resourceID"`
	RuleName   string          `json:"ruleName,omitempty"`
	Section    string          `json:"section,omitempty"`
	Procedure  string          `json:"procedure,omitempty"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  int             `json:"errorCode,omitempty"`
	DurationMs int64           `json:"durationMs"`
	Indicators []jsonIndicator `json:"indicators"`
}

type jsonReport struct {
	Version    string     `json:"version"`
	SessionID  string     `json:"sessionId"`
	Timestamp  string     `json:"timestamp"`
	Action     string     `json:"action"`
	Rules      []jsonRule `json:"rules"`
	DurationMs int64      `json:"durationMs"`
	Status     string     `json:"status"`
}

type jsonFormatter struct {
	base
	report jsonReport
}

func (f *jsonFormatter) Begin(action compliance.Action) error {
	if err := f.begin(action); err != nil {
		return err
	}
	f.report = jsonReport{
		Version:   f.version,
		SessionID: f.sessionID,
		Timestamp: f.timestamp,
		Action:    action.String(),
		Rules:     []jsonRule{},
	}
	return nil
}

func (f *jsonFormatter) AddEntry(e Entry) error {
	if err := f.add(); err != nil {
		return err
	}
	rule := jsonRule{
		ResourceID: e.ResourceID,
		RuleName:   e.Rule,
		Section:    e.Section,
		Procedure:  e.Procedure,
		Status:     e.Status.String(),
		DurationMs: e.Duration.Milliseconds(),
		Indicators: []jsonIndicator{},
	}
	if e.Err != nil {
		rule.Status = compliance.NonCompliant.String()
		rule.Error = e.Err.Error()
		rule.ErrorCode = int(compliance.CodeOf(e.Err))
	}
	if e.Indicators != nil {
		rule.Indicators = indicatorsOf(e.Indicators.Root())
	}
	f.report.Rules = append(f.report.Rules, rule)
	return nil
}

func (f *jsonFormatter) Finish(overall compliance.Status) (string, error) {
	elapsed, err := f.finish()
	if err != nil {
		return "", err
	}
	f.report.DurationMs = elapsed
	f.report.Status = overall.String()

	data, err := json.MarshalIndent(f.report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// indicatorsOf mirrors Render: leaves first, then child scopes with their
// own indicators nested.
func indicatorsOf(n *compliance.Node) []jsonIndicator {
	out := []jsonIndicator{}
	for _, ind := range n.Indicators {
		out = append(out, jsonIndicator{Message: ind.Message, Status: ind.Status.String()})
	}
	for _, child := range n.Children {
		out = append(out, jsonIndicator{
			Message:    child.Name,
			Status:     child.Status().String(),
			Indicators: indicatorsOf(child),
		})
	}
	return out
}
