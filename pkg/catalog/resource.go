// Package catalog reads rule catalogs into typed resources. Two stream
// formats are supported: YAML documents and the legacy MOF instance blocks.
package catalog

import (
	"github.com/user/hostcomply/pkg/benchmark"
	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

// Resource is one rule of the catalog. It is not modified after parsing.
type Resource struct {
	ID        string
	Benchmark benchmark.Info
	Rule      string
	Audit     Expression
	// Remediate is optional; remediation falls back to the audit expression.
	Remediate  *Expression
	Parameters map[string]string
	// Payload holds user parameter overrides.
	Payload   *string
	InitAudit bool
}

// ProcedureName is the name of the root audit expression.
func (r *Resource) ProcedureName() string {
	return r.Audit.Name()
}

// RawArgs are the arguments of the root audit call, nil for composites.
func (r *Resource) RawArgs() map[string]string {
	return r.Audit.Args
}

// ExpressionFor returns the expression that runs for action.
func (r *Resource) ExpressionFor(action compliance.Action) Expression {
	if action == compliance.Remediation && r.Remediate != nil {
		return *r.Remediate
	}
	return r.Audit
}

// EffectiveParameters applies the payload overrides and then extra on top of
// the declared parameters. The payload may only override declared names;
// extra entries for undeclared names are ignored.
func (r *Resource) EffectiveParameters(extra map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(r.Parameters))
	for k, v := range r.Parameters {
		out[k] = v
	}

	if r.Payload != nil && *r.Payload != "" {
		overrides, err := ParseParameters(*r.Payload)
		if err != nil {
			return nil, err
		}
		for k, v := range overrides {
			if _, ok := r.Parameters[k]; !ok {
				return nil, compliance.BindingError(unix.EINVAL, "unknown parameter '%s'", k)
			}
			out[k] = v
		}
	}

	for k, v := range extra {
		if _, ok := r.Parameters[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}
