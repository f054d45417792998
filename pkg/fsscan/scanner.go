// Package fsscan keeps a snapshot of file modes and ownership for the whole
// filesystem so that several procedures can query it without rescanning.
package fsscan

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/hostcomply/pkg/compliance"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultTTL is how long the CLI reuses a snapshot within one run.
const DefaultTTL = 5 * time.Minute

// DefaultExcludes are pseudo filesystems that never hold audited files.
var DefaultExcludes = []string{"/proc", "/sys", "/dev", "/run"}

// Scanner implements compliance.FilesystemScanner.
type Scanner struct {
	root     string
	ttl      time.Duration
	excludes []string
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu      sync.Mutex
	entries []compliance.FileEntry
	taken   time.Time
}

// Option customises a Scanner.
type Option func(*Scanner)

// WithTTL sets how long a snapshot is reused. Zero keeps it for the life of
// the scanner.
func WithTTL(ttl time.Duration) Option {
	return func(s *Scanner) { s.ttl = ttl }
}

// WithExcludes replaces the excluded host paths.
func WithExcludes(paths ...string) Option {
	return func(s *Scanner) { s.excludes = paths }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithClock is used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// New creates a scanner over root, where root is the directory that stands
// for "/" on the audited host.
func New(root string, opts ...Option) *Scanner {
	s := &Scanner{
		root:     root,
		excludes: DefaultExcludes,
		logger:   zap.NewNop().Sugar(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entries returns the current snapshot, scanning when it is missing or
// older than the TTL. Paths are host paths, sorted.
func (s *Scanner) Entries() ([]compliance.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries != nil && (s.ttl == 0 || s.now().Sub(s.taken) < s.ttl) {
		return s.entries, nil
	}
	entries, err := s.scan()
	if err != nil {
		return nil, err
	}
	s.entries = entries
	s.taken = s.now()
	return entries, nil
}

// Find filters the snapshot by permission bits.
func (s *Scanner) Find(hasPerms, noPerms uint32) ([]compliance.FileEntry, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	var out []compliance.FileEntry
	for _, e := range entries {
		perm := e.Mode & 0o7777
		if perm&hasPerms == hasPerms && perm&noPerms == 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

// Invalidate drops the snapshot so that the next query rescans.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

func (s *Scanner) hostPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

func (s *Scanner) excluded(hostPath string) bool {
	for _, ex := range s.excludes {
		if hostPath == ex || strings.HasPrefix(hostPath, ex+"/") {
			return true
		}
	}
	return false
}

func (s *Scanner) scan() ([]compliance.FileEntry, error) {
	start := s.now()
	entries := make([]compliance.FileEntry, 0, 1024)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		hostPath := s.hostPath(path)
		if err != nil {
			if path == s.root {
				return err
			}
			s.logger.Debugf("Skipping %s: %v", hostPath, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if s.excluded(hostPath) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		var st unix.Stat_t
		if err := unix.Lstat(path, &st); err != nil {
			if errors.Is(err, unix.ENOENT) {
				return nil
			}
			s.logger.Debugf("Failed to stat %s: %v", hostPath, err)
			return nil
		}
		entries = append(entries, compliance.FileEntry{
			Path: hostPath,
			Mode: uint32(st.Mode),
			UID:  st.Uid,
			GID:  st.Gid,
		})
		return nil
	})
	if err != nil {
		return nil, compliance.ExecutionError(compliance.CodeOf(err), "failed to scan %s: %v", s.root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	s.logger.Debugf("Filesystem scan of %s found %d entries in %s", s.root, len(entries), s.now().Sub(start))
	return entries, nil
}
