package procedures

import (
	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/engine"
)

// testingParams drive the fixed-outcome procedures used to exercise
// catalogs and report formats.
type testingParams struct {
	Message *string `arg:"message"`
}

type parametrizedParams struct {
	Result outcome `arg:"result"`
}

type outcome string

func (o *outcome) UnmarshalText(text []byte) error {
	switch v := outcome(text); v {
	case "success", "failure":
		*o = v
		return nil
	}
	return compliance.ParseError("expected 'success' or 'failure'")
}

func fixed(status compliance.Status, messageStatus compliance.Status) engine.Handler[testingParams] {
	return func(p testingParams, indicators *compliance.IndicatorsTree, _ compliance.Host) (compliance.Status, error) {
		if p.Message == nil {
			return status, nil
		}
		if messageStatus == compliance.Compliant {
			return indicators.Compliant(*p.Message)
		}
		return indicators.NonCompliant(*p.Message)
	}
}

func registerTesting(reg *engine.Registry) error {
	if err := engine.Register[testingParams](reg, "AuditSuccess", fixed(compliance.Compliant, compliance.Compliant), nil); err != nil {
		return err
	}
	if err := engine.Register[testingParams](reg, "AuditFailure", fixed(compliance.NonCompliant, compliance.NonCompliant), nil); err != nil {
		return err
	}
	if err := engine.Register[testingParams](reg, "RemediationSuccess", nil, fixed(compliance.Compliant, compliance.NonCompliant)); err != nil {
		return err
	}
	if err := engine.Register[testingParams](reg, "RemediationFailure", nil, fixed(compliance.NonCompliant, compliance.NonCompliant)); err != nil {
		return err
	}
	return engine.Register[parametrizedParams](reg, "RemediationParametrized", nil,
		func(p parametrizedParams, _ *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
			host.GetLogHandle().Infof("RemediationParametrized: %s", p.Result)
			if p.Result == "success" {
				return compliance.Compliant, nil
			}
			return compliance.NonCompliant, nil
		})
}
