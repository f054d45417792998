package compliance

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FileEntry is one path captured by a filesystem scan.
type FileEntry struct {
	Path string
	Mode uint32
	UID  uint32
	GID  uint32
}

// FilesystemScanner serves a cached snapshot of the host filesystem.
type FilesystemScanner interface {
	Entries() ([]FileEntry, error)
	// Find returns entries whose permission bits include all of hasPerms
	// and none of noPerms.
	Find(hasPerms, noPerms uint32) ([]FileEntry, error)
	// Invalidate drops the snapshot after a remediation changed the
	// filesystem.
	Invalidate()
}

// Host is everything a procedure may ask of the machine it audits.
//
//go:generate mockgen -destination=mocks/mock_host.go -package=mocks github.com/user/hostcomply/pkg/compliance Host
type Host interface {
	// ExecuteCommand runs a shell command and returns its combined output.
	ExecuteCommand(command string) (string, error)
	// GetFileContents reads an absolute host path; the implementation maps
	// it through GetSpecialFilePath.
	GetFileContents(path string) (string, error)
	// GetSpecialFilePath maps an absolute host path to the path actually read,
	// which differs when auditing an alternate root.
	GetSpecialFilePath(path string) string
	GetFilesystemScanner() FilesystemScanner
	GetLogHandle() *zap.SugaredLogger
	GetTelemetryHandle() trace.Tracer
}
