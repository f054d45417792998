package engine

import (
	"sort"

	"github.com/user/hostcomply/pkg/bindings"
	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

// Handler is one half of a procedure. P is the parameter struct the
// resource arguments are bound into.
type Handler[P any] func(params P, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error)

type invokeFunc func(params any, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error)

type procedure struct {
	name      string
	bind      func(args map[string]string) (any, error)
	audit     invokeFunc
	remediate invokeFunc
}

func (p *procedure) handler(action compliance.Action) invokeFunc {
	if action == compliance.Remediation {
		return p.remediate
	}
	return p.audit
}

// ProcedureInfo describes a registered procedure.
type ProcedureInfo struct {
	Name         string
	HasAudit     bool
	HasRemediate bool
}

// Registry maps procedure names to their audit and remediate handlers. It is
// filled at start-up and read-only afterwards.
type Registry struct {
	procedures map[string]*procedure
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{procedures: make(map[string]*procedure)}
}

// Register adds a procedure. Either handler may be nil, not both. Names are
// unique.
func Register[P any](reg *Registry, name string, audit, remediate Handler[P]) error {
	if name == "" {
		return compliance.NewError(unix.EINVAL, "procedure name is empty")
	}
	if audit == nil && remediate == nil {
		return compliance.Errorf(unix.EINVAL, "procedure '%s' has neither audit nor remediate", name)
	}
	if _, exists := reg.procedures[name]; exists {
		return compliance.Errorf(unix.EEXIST, "procedure '%s' is already registered", name)
	}

	p := &procedure{
		name: name,
		bind: func(args map[string]string) (any, error) {
			var params P
			if err := bindings.Bind(args, &params); err != nil {
				return nil, err
			}
			return params, nil
		},
		audit:     wrap(audit),
		remediate: wrap(remediate),
	}
	reg.procedures[name] = p
	return nil
}

// MustRegister is Register for start-up tables; it panics on error.
func MustRegister[P any](reg *Registry, name string, audit, remediate Handler[P]) {
	if err := Register(reg, name, audit, remediate); err != nil {
		panic(err)
	}
}

func wrap[P any](h Handler[P]) invokeFunc {
	if h == nil {
		return nil
	}
	return func(params any, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
		return h(params.(P), indicators, host)
	}
}

func (r *Registry) lookup(name string) (*procedure, bool) {
	p, ok := r.procedures[name]
	return p, ok
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.procedures[name]
	return ok
}

// Procedures lists the registered procedures sorted by name.
func (r *Registry) Procedures() []ProcedureInfo {
	out := make([]ProcedureInfo, 0, len(r.procedures))
	for _, p := range r.procedures {
		out = append(out, ProcedureInfo{
			Name:         p.name,
			HasAudit:     p.audit != nil,
			HasRemediate: p.remediate != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
