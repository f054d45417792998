// Package hostctx is the Host the CLI audits with: the local machine, or a
// mounted image when a root directory is configured.
package hostctx

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/fsscan"
	"github.com/user/hostcomply/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultCommandTimeout bounds every command run through ExecuteCommand.
const DefaultCommandTimeout = 30 * time.Second

// Host implements compliance.Host.
type Host struct {
	root       string
	shell      string
	timeout    time.Duration
	scannerTTL time.Duration
	logger     *zap.SugaredLogger
	tracer     trace.Tracer
	scanner    *fsscan.Scanner
}

// Option configures a Host.
type Option func(*Host)

// WithRoot audits the tree under root instead of "/".
func WithRoot(root string) Option {
	return func(h *Host) { h.root = root }
}

// WithCommandTimeout bounds command duration. Zero disables the bound.
func WithCommandTimeout(d time.Duration) Option {
	return func(h *Host) { h.timeout = d }
}

func WithScannerTTL(d time.Duration) Option {
	return func(h *Host) { h.scannerTTL = d }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(h *Host) { h.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(h *Host) { h.tracer = tracer }
}

// New creates a Host. Without options it audits the local machine.
func New(opts ...Option) *Host {
	h := &Host{
		shell:      "/bin/sh",
		timeout:    DefaultCommandTimeout,
		scannerTTL: fsscan.DefaultTTL,
		logger:     zap.NewNop().Sugar(),
		tracer:     otel.Tracer(telemetry.InstrumentationName),
	}
	for _, opt := range opts {
		opt(h)
	}

	scanRoot := h.root
	if scanRoot == "" {
		scanRoot = "/"
	}
	h.scanner = fsscan.New(scanRoot, fsscan.WithTTL(h.scannerTTL), fsscan.WithLogger(h.logger))
	return h
}

// ExecuteCommand runs command with sh -c and returns its combined output. A
// non-zero exit status becomes the error code.
func (h *Host) ExecuteCommand(command string) (string, error) {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	h.logger.Debugf("Executing command: %s", command)
	cmd := exec.CommandContext(ctx, h.shell, "-c", command)
	// Children of the shell may hold the output pipe after it is killed.
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return string(out), compliance.ExecutionError(unix.ETIME, "command '%s' timed out after %s", command, h.timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			return string(out), compliance.ExecutionError(unix.EINTR, "command '%s' was terminated: %v", command, err)
		}
		h.logger.Debugf("Command '%s' exited with status %d: %s", command, code, strings.TrimSpace(string(out)))
		return string(out), compliance.ExecutionError(unix.Errno(code), "command '%s' failed with exit status %d", command, code)
	}
	return string(out), compliance.ExecutionError(compliance.CodeOf(err), "failed to execute '%s': %v", command, err)
}

// GetFileContents reads a host path, relative to the configured root.
func (h *Host) GetFileContents(path string) (string, error) {
	data, err := os.ReadFile(h.GetSpecialFilePath(path))
	if err != nil {
		return "", compliance.ExecutionError(compliance.CodeOf(err), "failed to read '%s': %v", path, err)
	}
	return string(data), nil
}

// GetSpecialFilePath maps a host path into the configured root.
func (h *Host) GetSpecialFilePath(path string) string {
	if h.root == "" {
		return path
	}
	return filepath.Join(h.root, path)
}

func (h *Host) GetFilesystemScanner() compliance.FilesystemScanner {
	return h.scanner
}

func (h *Host) GetLogHandle() *zap.SugaredLogger {
	return h.logger
}

func (h *Host) GetTelemetryHandle() trace.Tracer {
	return h.tracer
}
