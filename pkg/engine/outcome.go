package engine

import (
	"time"

	"github.com/user/hostcomply/pkg/benchmark"
	"github.com/user/hostcomply/pkg/compliance"
)

// Outcome is the result of evaluating one resource.
type Outcome struct {
	ResourceID string
	Rule       string
	Benchmark  benchmark.Info
	Procedure  string
	Action     compliance.Action
	// Skipped is set when the resource does not apply to the host. No
	// verdict is recorded for skipped resources.
	Skipped    bool
	Status     compliance.Status
	Indicators *compliance.IndicatorsTree
	Err        error
	Duration   time.Duration
}

// Failed reports whether the outcome counts against the host: an error or a
// NonCompliant verdict.
func (o Outcome) Failed() bool {
	return !o.Skipped && (o.Err != nil || o.Status == compliance.NonCompliant)
}

// Message is the error text or the last failing indicator, empty for
// passing outcomes.
func (o Outcome) Message() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.Indicators != nil && o.Status == compliance.NonCompliant {
		if msg, ok := o.Indicators.LastNonCompliant(); ok {
			return msg
		}
	}
	return ""
}
