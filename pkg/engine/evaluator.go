package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/hostcomply/pkg/benchmark"
	"github.com/user/hostcomply/pkg/catalog"
	"github.com/user/hostcomply/pkg/compliance"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	manualAudit       = "manual audit required"
	manualRemediation = "manual remediation required"
)

// Evaluator runs single resources against a host. Evaluation is synchronous;
// an Evaluator must not be shared between goroutines.
type Evaluator struct {
	registry     *Registry
	host         compliance.Host
	distribution benchmark.DistributionInfo
	parameters   map[string]string
	log          *zap.SugaredLogger
	tracer       trace.Tracer
	now          func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithParameters overrides declared resource parameters for every resource.
func WithParameters(params map[string]string) EvaluatorOption {
	return func(e *Evaluator) { e.parameters = params }
}

// WithClock replaces time.Now for durations.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an evaluator for the host identified by dist.
func NewEvaluator(reg *Registry, host compliance.Host, dist benchmark.DistributionInfo, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		registry:     reg,
		host:         host,
		distribution: dist,
		log:          host.GetLogHandle(),
		tracer:       host.GetTelemetryHandle(),
		now:          time.Now,
	}
	if e.log == nil {
		e.log = zap.NewNop().Sugar()
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("hostcomply")
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Distribution is the host distribution resources are matched against.
func (e *Evaluator) Distribution() benchmark.DistributionInfo {
	return e.distribution
}

// Evaluate runs action for res. Resources that do not apply to the host come
// back Skipped. Errors abort only this resource and are returned in the
// outcome.
func (e *Evaluator) Evaluate(ctx context.Context, res *catalog.Resource, action compliance.Action) Outcome {
	start := e.now()
	out := Outcome{
		ResourceID: res.ID,
		Rule:       res.Rule,
		Benchmark:  res.Benchmark,
		Procedure:  res.ExpressionFor(action).Name(),
		Action:     action,
		Status:     compliance.NonCompliant,
	}

	ctx, span := e.tracer.Start(ctx, "engine.Evaluate", trace.WithAttributes(
		attribute.String("resource.id", res.ID),
		attribute.String("resource.procedure", out.Procedure),
		attribute.String("action", action.String()),
	))
	defer span.End()

	if !res.Benchmark.Match(e.distribution) {
		e.log.Debugf("Skipping %s: %s does not apply to %s", res.ID, res.Benchmark, e.distribution)
		span.SetAttributes(attribute.Bool("skipped", true))
		out.Skipped = true
		out.Status = compliance.Compliant
		return out
	}

	status, tree, err := e.evaluate(ctx, res, action)
	out.Indicators = tree
	out.Duration = e.now().Sub(start)
	if err != nil {
		e.log.Errorf("Failed to %s %s: %v", action, res.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.Err = err
		return out
	}

	span.SetAttributes(attribute.String("status", status.String()))
	e.log.Debugf("%s %s: %s", action, res.ID, status)
	out.Status = status
	return out
}

func (e *Evaluator) evaluate(ctx context.Context, res *catalog.Resource, action compliance.Action) (compliance.Status, *compliance.IndicatorsTree, error) {
	params, err := res.EffectiveParameters(e.parameters)
	if err != nil {
		return compliance.NonCompliant, compliance.NewIndicatorsTree(), err
	}

	if res.InitAudit && action == compliance.Remediation {
		initial := compliance.NewIndicatorsTree()
		status, err := e.run(ctx, res.Audit, compliance.Audit, params, initial)
		switch {
		case err != nil:
			e.log.Debugf("Initial audit of %s failed, remediating: %v", res.ID, err)
		case status == compliance.Compliant:
			e.log.Debugf("%s is already compliant, skipping remediation", res.ID)
			return compliance.Compliant, initial, nil
		}
	}

	tree := compliance.NewIndicatorsTree()
	status, err := e.run(ctx, res.ExpressionFor(action), action, params, tree)
	return status, tree, err
}

func (e *Evaluator) run(ctx context.Context, expr catalog.Expression, action compliance.Action, params map[string]string, tree *compliance.IndicatorsTree) (compliance.Status, error) {
	switch expr.Op {
	case catalog.OpCall:
		return e.call(ctx, expr, action, params, tree)

	case catalog.OpAnyOf:
		tree.Push(expr.Op.String())
		defer tree.Pop()
		result := compliance.NonCompliant
		for _, operand := range expr.Operands {
			status, err := e.run(ctx, operand, action, params, tree)
			if err != nil {
				return compliance.NonCompliant, err
			}
			if status == compliance.Compliant {
				result = compliance.Compliant
				break
			}
		}
		tree.SetStatus(result)
		return result, nil

	case catalog.OpAllOf:
		tree.Push(expr.Op.String())
		defer tree.Pop()
		result := compliance.Compliant
		for _, operand := range expr.Operands {
			status, err := e.run(ctx, operand, action, params, tree)
			if err != nil {
				return compliance.NonCompliant, err
			}
			if status == compliance.NonCompliant {
				result = compliance.NonCompliant
				break
			}
		}
		tree.SetStatus(result)
		return result, nil

	case catalog.OpNot:
		if len(expr.Operands) != 1 {
			return compliance.NonCompliant, compliance.NewError(unix.EINVAL, "not expects exactly one operand")
		}
		if action == compliance.Remediation {
			e.log.Debugf("not: remediation is not supported, auditing instead")
		}
		tree.Push(expr.Op.String())
		defer tree.Pop()
		status, err := e.run(ctx, expr.Operands[0], compliance.Audit, params, tree)
		if err != nil {
			return compliance.NonCompliant, err
		}
		result := compliance.Compliant
		if status == compliance.Compliant {
			result = compliance.NonCompliant
		}
		tree.SetStatus(result)
		return result, nil
	}
	return compliance.NonCompliant, compliance.Errorf(unix.EINVAL, "unsupported operator %d", int(expr.Op))
}

func (e *Evaluator) call(ctx context.Context, expr catalog.Expression, action compliance.Action, params map[string]string, tree *compliance.IndicatorsTree) (compliance.Status, error) {
	proc, ok := e.registry.lookup(expr.Procedure)
	if !ok {
		return compliance.NonCompliant, compliance.UnknownProcedure()
	}

	fn := proc.handler(action)
	if fn == nil {
		tree.Push(expr.Procedure)
		defer tree.Pop()
		if action == compliance.Audit {
			return tree.NonCompliant(manualAudit)
		}
		return tree.NonCompliant(manualRemediation)
	}

	args, err := substitute(expr.Args, params)
	if err != nil {
		return compliance.NonCompliant, err
	}
	bound, err := proc.bind(args)
	if err != nil {
		return compliance.NonCompliant, err
	}

	_, span := e.tracer.Start(ctx, "procedure."+expr.Procedure)
	defer span.End()

	depth := tree.Depth()
	tree.Push(expr.Procedure)
	status, err := fn(bound, tree, e.host)
	if open := tree.Depth() - depth - 1; open != 0 {
		panic(fmt.Sprintf("indicators: procedure %s left %d unbalanced scopes", expr.Procedure, open))
	}
	tree.Pop()
	if err != nil {
		span.RecordError(err)
		return compliance.NonCompliant, err
	}
	return status, nil
}

// substitute replaces "$name" argument values with the named parameter.
func substitute(args, params map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for k, v := range args {
		if !strings.HasPrefix(v, "$") || len(v) == 1 {
			out[k] = v
			continue
		}
		name := v[1:]
		value, ok := params[name]
		if !ok {
			return nil, compliance.BindingError(unix.EINVAL, "unknown parameter '%s' referenced by '%s'", name, k)
		}
		out[k] = value
	}
	return out, nil
}
