// Package procedures holds the built-in audit and remediation procedures.
// Each one is a thin consumer of the engine contracts: it receives bound
// parameters, records observations in the indicators tree and talks to the
// machine only through compliance.Host.
package procedures

import "github.com/user/hostcomply/pkg/engine"

// Register adds every built-in procedure to reg.
func Register(reg *engine.Registry) error {
	registrations := []func(*engine.Registry) error{
		registerTesting,
		func(r *engine.Registry) error {
			return engine.Register[packageInstalledParams](r, "PackageInstalled", auditPackageInstalled, nil)
		},
		func(r *engine.Registry) error {
			return engine.Register[filePermissionsParams](r, "EnsureFilePermissions", auditFilePermissions, remediateFilePermissions)
		},
		func(r *engine.Registry) error {
			return engine.Register[filePermissionsCollectionParams](r, "EnsureFilePermissionsCollection", auditFilePermissionsCollection, remediateFilePermissionsCollection)
		},
		func(r *engine.Registry) error {
			return engine.Register[noWorldWritableParams](r, "EnsureNoWorldWritableFiles", auditNoWorldWritableFiles, remediateNoWorldWritableFiles)
		},
		func(r *engine.Registry) error {
			return engine.Register[noUnownedParams](r, "EnsureNoUnowned", auditNoUnowned, nil)
		},
		func(r *engine.Registry) error {
			return engine.Register[userOnlyWithParams](r, "EnsureUserIsOnlyAccountWith", auditUserIsOnlyAccountWith, nil)
		},
		func(r *engine.Registry) error {
			return engine.Register[groupOnlyWithParams](r, "EnsureGroupIsOnlyGroupWith", auditGroupIsOnlyGroupWith, nil)
		},
		func(r *engine.Registry) error {
			return engine.Register[commandGrepParams](r, "ExecuteCommandGrep", auditExecuteCommandGrep, nil)
		},
		func(r *engine.Registry) error {
			return engine.Register[sysctlParams](r, "EnsureSysctl", auditSysctl, nil)
		},
	}
	for _, register := range registrations {
		if err := register(reg); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in procedures.
func NewRegistry() *engine.Registry {
	reg := engine.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
