package engine

import (
	"fmt"

	"github.com/user/hostcomply/pkg/catalog"
	"github.com/user/hostcomply/pkg/compliance"
)

// Check verifies a resource without touching the host: every procedure it
// calls must be registered and every call's arguments must bind once
// parameters are substituted. All problems are returned.
func (r *Registry) Check(res *catalog.Resource, extra map[string]string) []error {
	params, err := res.EffectiveParameters(extra)
	if err != nil {
		return []error{err}
	}

	var errs []error
	var walk func(expr catalog.Expression)
	walk = func(expr catalog.Expression) {
		if expr.Op != catalog.OpCall {
			for _, operand := range expr.Operands {
				walk(operand)
			}
			return
		}
		proc, ok := r.lookup(expr.Procedure)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", expr.Procedure, compliance.UnknownProcedure()))
			return
		}
		args, err := substitute(expr.Args, params)
		if err == nil {
			_, err = proc.bind(args)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", expr.Procedure, err))
		}
	}

	walk(res.Audit)
	if res.Remediate != nil {
		walk(*res.Remediate)
	}
	return errs
}
