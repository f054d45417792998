package engine

import (
	"context"
	"strings"
	"time"

	"github.com/user/hostcomply/pkg/catalog"
	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/metrics"
	"github.com/user/hostcomply/pkg/report"
	"go.uber.org/zap"
)

// Session evaluates a whole catalog and renders the report.
type Session struct {
	Evaluator *Evaluator
	Action    compliance.Action
	// Section limits the run to a benchmark section and its subsections,
	// for example "1.1".
	Section string
	Metrics *metrics.Recorder
	Log     *zap.SugaredLogger
}

// Summary is what a finished session produced.
type Summary struct {
	Overall      compliance.Status
	Report       string
	Outcomes     []Outcome
	ParseErrors  []error
	Compliant    int
	NonCompliant int
	Errors       int
	Skipped      int
}

// HasErrors reports whether any entry could not be parsed or evaluated.
func (s *Summary) HasErrors() bool {
	return s.Errors > 0 || len(s.ParseErrors) > 0
}

// Run reads every resource from r, evaluates the applicable ones and feeds
// them to f. Errors abort single resources only; they make the overall
// status NonCompliant. Cancellation is checked between resources.
func (s *Session) Run(ctx context.Context, r *catalog.Reader, f report.Formatter) (*Summary, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := f.Begin(s.Action); err != nil {
		return nil, err
	}

	summary := &Summary{Overall: compliance.Compliant}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := r.ParseNext()
		if err != nil {
			log.Errorf("Failed to parse catalog entry: %v", err)
			summary.ParseErrors = append(summary.ParseErrors, err)
			summary.Overall = compliance.NonCompliant
			s.Metrics.Failed(err)
			if err := f.AddEntry(report.Entry{Status: compliance.NonCompliant, Err: err}); err != nil {
				return nil, err
			}
			continue
		}
		if res == nil {
			break
		}
		if !s.inSection(res) {
			log.Debugf("Skipping %s: section %s not selected", res.ID, res.Benchmark.DottedSection())
			continue
		}

		outcome := s.Evaluator.Evaluate(ctx, res, s.Action)
		if outcome.Skipped {
			summary.Skipped++
			s.Metrics.Skipped()
			continue
		}
		summary.Outcomes = append(summary.Outcomes, outcome)

		switch {
		case outcome.Err != nil:
			summary.Errors++
			s.Metrics.Failed(outcome.Err)
		case outcome.Status == compliance.Compliant:
			summary.Compliant++
		default:
			summary.NonCompliant++
		}
		if outcome.Err == nil {
			s.Metrics.Evaluated(s.Action, outcome.Status, outcome.Procedure, outcome.Duration)
		}
		if outcome.Failed() {
			summary.Overall = compliance.NonCompliant
		}

		entry := report.Entry{
			ResourceID: outcome.ResourceID,
			Rule:       outcome.Rule,
			Section:    outcome.Benchmark.DottedSection(),
			Procedure:  outcome.Procedure,
			Status:     outcome.Status,
			Indicators: outcome.Indicators,
			Err:        outcome.Err,
			Duration:   outcome.Duration,
		}
		if err := f.AddEntry(entry); err != nil {
			return nil, err
		}
	}

	out, err := f.Finish(summary.Overall)
	if err != nil {
		return nil, err
	}
	summary.Report = out
	s.Metrics.Finished(time.Now())

	log.Infof("%s finished: %d compliant, %d non-compliant, %d errors, %d skipped",
		s.Action, summary.Compliant, summary.NonCompliant, summary.Errors+len(summary.ParseErrors), summary.Skipped)
	return summary, nil
}

func (s *Session) inSection(res *catalog.Resource) bool {
	if s.Section == "" {
		return true
	}
	section := res.Benchmark.DottedSection()
	return section == s.Section || strings.HasPrefix(section, s.Section+".")
}
