package sysiter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

// MaxWalkDepth bounds directory recursion.
const MaxWalkDepth = 32

// VisitFunc inspects one entry. path is the full path, rel is relative to
// the walk root and info comes from lstat.
type VisitFunc func(path, rel string, info fs.FileInfo) (compliance.Status, error)

// Walk visits every entry below root in lexical order without following
// symbolic links. A missing root is Compliant. With breakOnNonCompliant the
// walk stops at the first NonCompliant entry; otherwise it returns the worst
// status seen. An error from visit aborts the walk and is returned.
// A root that is not a directory is visited alone, with rel ".".
func Walk(root string, visit VisitFunc, breakOnNonCompliant bool) (compliance.Status, error) {
	rootInfo, err := os.Lstat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return compliance.Compliant, nil
		}
		return compliance.NonCompliant, compliance.ExecutionError(compliance.CodeOf(err), "failed to stat %s: %v", root, err)
	}
	if !rootInfo.IsDir() {
		return visit(root, ".", rootInfo)
	}

	status := compliance.Compliant
	stopped := false

	var walk func(dir, rel string, depth int) error
	walk = func(dir, rel string, depth int) error {
		if depth > MaxWalkDepth {
			return compliance.Errorf(unix.ELOOP, "maximum recursion depth reached at %s", dir)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return compliance.ExecutionError(compliance.CodeOf(err), "failed to read directory %s: %v", dir, err)
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			relPath := filepath.Join(rel, e.Name())
			info, err := e.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return compliance.ExecutionError(compliance.CodeOf(err), "failed to stat %s: %v", path, err)
			}

			s, err := visit(path, relPath, info)
			if err != nil {
				return err
			}
			status = compliance.Worst(status, s)
			if s == compliance.NonCompliant && breakOnNonCompliant {
				stopped = true
				return nil
			}

			if e.IsDir() {
				if err := walk(path, relPath, depth+1); err != nil {
					return err
				}
				if stopped {
					return nil
				}
			}
		}
		return nil
	}

	if err := walk(root, "", 1); err != nil {
		return status, err
	}
	return status, nil
}
