package procedures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/hostcomply/pkg/benchmark"
	"github.com/user/hostcomply/pkg/bindings"
	"github.com/user/hostcomply/pkg/catalog"
	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/compliance/mocks"
	"github.com/user/hostcomply/pkg/engine"
	"github.com/user/hostcomply/pkg/fsscan"
	"github.com/user/hostcomply/pkg/pattern"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// newRootHost returns a host whose filesystem lives under root.
func newRootHost(t *testing.T, root string) *mocks.MockHost {
	ctrl := gomock.NewController(t)
	host := mocks.NewMockHost(ctrl)
	host.EXPECT().GetLogHandle().Return(zap.NewNop().Sugar()).AnyTimes()
	host.EXPECT().GetTelemetryHandle().Return(noop.NewTracerProvider().Tracer("test")).AnyTimes()
	host.EXPECT().GetSpecialFilePath(gomock.Any()).DoAndReturn(func(p string) string {
		return filepath.Join(root, p)
	}).AnyTimes()
	host.EXPECT().GetFileContents(gomock.Any()).DoAndReturn(func(p string) (string, error) {
		data, err := os.ReadFile(filepath.Join(root, p))
		return string(data), err
	}).AnyTimes()
	return host
}

// countingScanner is a real scanner over the test root that counts
// invalidations.
type countingScanner struct {
	*fsscan.Scanner
	invalidations int
}

func (c *countingScanner) Invalidate() {
	c.invalidations++
	c.Scanner.Invalidate()
}

func newScannedHost(t *testing.T, root string) (*mocks.MockHost, *countingScanner) {
	host := newRootHost(t, root)
	scanner := &countingScanner{Scanner: fsscan.New(root, fsscan.WithExcludes())}
	host.EXPECT().GetFilesystemScanner().Return(scanner).AnyTimes()
	return host, scanner
}

func writeFile(t *testing.T, root, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
	return path
}

// writeAccounts creates passwd and group databases naming the owner of the
// test process "owner" and its group "staff".
func writeAccounts(t *testing.T, root string) {
	t.Helper()
	sample := writeFile(t, root, "sample", "", 0644)
	var st unix.Stat_t
	require.NoError(t, unix.Stat(sample, &st))
	require.NoError(t, os.Remove(sample))

	writeFile(t, root, "etc/passwd", fmt.Sprintf("owner:x:%d:%d::/home/owner:/bin/sh\n", st.Uid, st.Gid), 0644)
	writeFile(t, root, "etc/group", fmt.Sprintf("staff:x:%d:owner\n", st.Gid), 0644)
}

func modeOf(t *testing.T, path string) os.FileMode {
	t.Helper()
	info, err := os.Lstat(path)
	require.NoError(t, err)
	return info.Mode()
}

func ptr[T any](v T) *T { return &v }

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{
		"AuditSuccess", "AuditFailure", "RemediationSuccess", "RemediationFailure", "RemediationParametrized",
		"PackageInstalled", "EnsureFilePermissions", "EnsureFilePermissionsCollection",
		"EnsureNoWorldWritableFiles", "EnsureNoUnowned", "EnsureUserIsOnlyAccountWith",
		"EnsureGroupIsOnlyGroupWith", "ExecuteCommandGrep", "EnsureSysctl",
	} {
		assert.True(t, reg.Has(name), name)
	}

	for _, info := range reg.Procedures() {
		if info.Name == "PackageInstalled" {
			assert.True(t, info.HasAudit)
			assert.False(t, info.HasRemediate)
		}
	}

	assert.Error(t, Register(reg), "registering twice must fail")
}

const dpkgListing = `Desired=Unknown/Install/Remove/Purge/Hold
| Status=Not/Inst/Conf-files/Unpacked/halF-conf/Half-inst/trig-aWait/Trig-pend
|/ Err?=(none)/Reinst-required (Status,Err: uppercase=bad)
||/ Name           Version            Architecture Description
+++-==============-==================-============-=================
ii  openssh-server 1:8.9p1-3ubuntu0.6 amd64        secure shell (SSH) server
ii  libc6:amd64    2.35-0ubuntu3.6    amd64        GNU C Library
rc  telnetd        0.17-44build1      amd64        removed
`

func TestPackageInstalledDpkg(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	defer func(prev func() time.Time) { now = prev }(now)
	now = func() time.Time { return stamp }

	cachePath := filepath.Join(t.TempDir(), "cache", "packagecache")
	host := newRootHost(t, t.TempDir())
	host.EXPECT().ExecuteCommand("dpkg -l dpkg").Return("", nil).Times(1)
	host.EXPECT().ExecuteCommand("dpkg -l").Return(dpkgListing, nil).Times(1)

	params := packageInstalledParams{PackageName: "openssh-server", PackageManager: autodetect, CachePath: cachePath}
	tree := compliance.NewIndicatorsTree()
	status, err := auditPackageInstalled(params, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)
	assert.Equal(t, "Package openssh-server is installed with version 1:8.9p1-3ubuntu0.6", tree.Current().Indicators[0].Message)

	cached, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("# PackageCache dpkg@%d\nlibc6 2.35-0ubuntu3.6\nopenssh-server 1:8.9p1-3ubuntu0.6\n", stamp.Unix()), string(cached))

	// Served from the cache: no further commands expected.
	params.PackageName = "telnetd"
	tree = compliance.NewIndicatorsTree()
	status, err = auditPackageInstalled(params, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.NonCompliant, status)
	msg, _ := tree.LastNonCompliant()
	assert.Equal(t, "Package telnetd is not installed", msg)
}

func TestPackageInstalledStaleCache(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	defer func(prev func() time.Time) { now = prev }(now)

	dir := t.TempDir()
	cachePath := writeFile(t, dir, "packagecache",
		fmt.Sprintf("# PackageCache rpm@%d\nopenssl 1:3.0.7-27.el9\n", stamp.Unix()), 0644)
	host := newRootHost(t, dir)

	t.Run("fresh cache is used as is", func(t *testing.T) {
		now = func() time.Time { return stamp.Add(10 * time.Minute) }
		tree := compliance.NewIndicatorsTree()
		status, err := auditPackageInstalled(packageInstalledParams{
			PackageName:       "openssl",
			MinPackageVersion: ptr("1:3.0.8"),
			PackageManager:    autodetect,
			CachePath:         cachePath,
		}, tree, host)
		require.NoError(t, err)
		assert.Equal(t, compliance.NonCompliant, status)
		msg, _ := tree.LastNonCompliant()
		assert.Equal(t, "Package openssl is installed with version 1:3.0.7-27.el9, which is older than 1:3.0.8", msg)
	})

	t.Run("stale cache survives a failed refresh", func(t *testing.T) {
		now = func() time.Time { return stamp.Add(time.Hour) }
		host.EXPECT().ExecuteCommand(`rpm -qa --qf='%{NAME} %{EVR}\n'`).Return("", errors.New("rpm db locked")).Times(1)
		status, err := auditPackageInstalled(packageInstalledParams{
			PackageName:       "openssl",
			MinPackageVersion: ptr("3.0.8"),
			PackageManager:    rpm,
			CachePath:         cachePath,
		}, compliance.NewIndicatorsTree(), host)
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status, "epoch 1 beats an implicit epoch 0")
	})

	t.Run("expired cache must be refreshed", func(t *testing.T) {
		now = func() time.Time { return stamp.Add(4 * time.Hour) }
		host.EXPECT().ExecuteCommand(`rpm -qa --qf='%{NAME} %{EVR}\n'`).Return("", errors.New("rpm db locked")).Times(1)
		_, err := auditPackageInstalled(packageInstalledParams{
			PackageName:    "openssl",
			PackageManager: rpm,
			CachePath:      cachePath,
		}, compliance.NewIndicatorsTree(), host)
		require.Error(t, err)
		assert.Equal(t, compliance.KindExecution, compliance.KindOf(err))
	})
}

func TestPackageManagerNotFound(t *testing.T) {
	host := newRootHost(t, t.TempDir())
	host.EXPECT().ExecuteCommand(gomock.Any()).Return("", errors.New("not found")).Times(3)

	_, err := auditPackageInstalled(packageInstalledParams{
		PackageName:    "bash",
		PackageManager: autodetect,
		CachePath:      filepath.Join(t.TempDir(), "missing"),
	}, compliance.NewIndicatorsTree(), host)
	require.Error(t, err)
	assert.Equal(t, unix.ENOENT, compliance.CodeOf(err))
}

func TestComparePackageVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.10.0", "1.9.0", 1},
		{"2.35-0ubuntu3.6", "2.35-0ubuntu3.10", -1},
		{"1:1.0", "2.0", 1},
		{"3.0.7-27.el9", "3.0.7-27.el9", 0},
		{"1.0a", "1.0", 1},
		{"1.0", "1.0.1", -1},
		{"010", "9", 1},
		{"1.0-1", "1.0-2", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, comparePackageVersions(tt.a, tt.b))
			assert.Equal(t, -tt.want, comparePackageVersions(tt.b, tt.a))
		})
	}
}

func TestEnsureFilePermissions(t *testing.T) {
	root := t.TempDir()
	writeAccounts(t, root)
	file := writeFile(t, root, "etc/app.conf", "key=value\n", 0644)
	host, scanner := newScannedHost(t, root)

	owners, err := bindings.ParseSeparated[pattern.Pattern]("nobody|own.*", '|')
	require.NoError(t, err)
	groups := bindings.NewSeparated('|', pattern.MustMake("staff"))

	t.Run("compliant", func(t *testing.T) {
		tree := compliance.NewIndicatorsTree()
		status, err := auditFilePermissions(filePermissionsParams{
			Filename:    "/etc/app.conf",
			Owner:       &owners,
			Group:       &groups,
			Permissions: ptr(bindings.Mode(0o644)),
			Mask:        ptr(bindings.Mode(0o022)),
		}, tree, host)
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)
		last := tree.Current().Indicators[len(tree.Current().Indicators)-1]
		assert.Equal(t, "File '/etc/app.conf' has correct permissions and ownership", last.Message)
	})

	t.Run("wrong owner", func(t *testing.T) {
		wrong := bindings.NewSeparated('|', pattern.MustMake("root"))
		tree := compliance.NewIndicatorsTree()
		status, err := auditFilePermissions(filePermissionsParams{Filename: "/etc/app.conf", Owner: &wrong}, tree, host)
		require.NoError(t, err)
		assert.Equal(t, compliance.NonCompliant, status)
		msg, _ := tree.LastNonCompliant()
		assert.Equal(t, "Invalid owner on '/etc/app.conf' - is 'owner' should be 'root'", msg)
	})

	t.Run("mask violated", func(t *testing.T) {
		tree := compliance.NewIndicatorsTree()
		status, err := auditFilePermissions(filePermissionsParams{
			Filename: "/etc/app.conf",
			Mask:     ptr(bindings.Mode(0o044)),
		}, tree, host)
		require.NoError(t, err)
		assert.Equal(t, compliance.NonCompliant, status)
		msg, _ := tree.LastNonCompliant()
		assert.Equal(t, "Invalid permissions on '/etc/app.conf' - are 0644 should be set to 0600 or a more restrictive value", msg)
	})

	t.Run("overlapping permissions and mask", func(t *testing.T) {
		_, err := auditFilePermissions(filePermissionsParams{
			Filename:    "/etc/app.conf",
			Permissions: ptr(bindings.Mode(0o600)),
			Mask:        ptr(bindings.Mode(0o700)),
		}, compliance.NewIndicatorsTree(), host)
		require.Error(t, err)
		assert.Equal(t, unix.EINVAL, compliance.CodeOf(err))
	})

	t.Run("missing file", func(t *testing.T) {
		params := filePermissionsParams{Filename: "/etc/missing.conf", Permissions: ptr(bindings.Mode(0o600))}
		status, err := auditFilePermissions(params, compliance.NewIndicatorsTree(), host)
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)

		status, err = remediateFilePermissions(params, compliance.NewIndicatorsTree(), host)
		require.NoError(t, err)
		assert.Equal(t, compliance.NonCompliant, status)
	})

	t.Run("remediation applies mask and permissions", func(t *testing.T) {
		params := filePermissionsParams{
			Filename:    "/etc/app.conf",
			Owner:       &owners,
			Permissions: ptr(bindings.Mode(0o400)),
			Mask:        ptr(bindings.Mode(0o077)),
		}
		status, err := remediateFilePermissions(params, compliance.NewIndicatorsTree(), host)
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)
		assert.Equal(t, os.FileMode(0o600), modeOf(t, file).Perm())
		assert.Equal(t, 1, scanner.invalidations)

		status, err = remediateFilePermissions(params, compliance.NewIndicatorsTree(), host)
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)
		assert.Equal(t, 1, scanner.invalidations, "an unchanged file keeps the scan")

		status, err = auditFilePermissions(params, compliance.NewIndicatorsTree(), host)
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)
	})
}

func TestEnsureFilePermissionsCollection(t *testing.T) {
	root := t.TempDir()
	writeAccounts(t, root)
	writeFile(t, root, "etc/cron.d/a.conf", "", 0644)
	bad := writeFile(t, root, "etc/cron.d/nested/b.conf", "", 0666)
	other := writeFile(t, root, "etc/cron.d/c.txt", "", 0666)
	host, scanner := newScannedHost(t, root)

	params := filePermissionsCollectionParams{
		Directory: "/etc/cron.d",
		Ext:       "*.conf",
		Recurse:   true,
		Mask:      ptr(bindings.Mode(0o002)),
	}

	tree := compliance.NewIndicatorsTree()
	status, err := auditFilePermissionsCollection(params, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.NonCompliant, status)
	msg, _ := tree.LastNonCompliant()
	assert.Contains(t, msg, "/etc/cron.d/nested/b.conf")

	flat := params
	flat.Recurse = false
	status, err = auditFilePermissionsCollection(flat, compliance.NewIndicatorsTree(), host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status, "nested files are skipped without recursion")

	status, err = remediateFilePermissionsCollection(params, compliance.NewIndicatorsTree(), host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)
	assert.Equal(t, os.FileMode(0o664), modeOf(t, bad).Perm())
	assert.Equal(t, os.FileMode(0o666), modeOf(t, other).Perm())
	assert.Equal(t, 1, scanner.invalidations)

	tree = compliance.NewIndicatorsTree()
	status, err = auditFilePermissionsCollection(filePermissionsCollectionParams{Directory: "/etc/cron.d", Ext: "*.yaml", Recurse: true}, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)
	assert.Equal(t, "No files in '/etc/cron.d' match the pattern", tree.Current().Indicators[0].Message)

	status, err = auditFilePermissionsCollection(filePermissionsCollectionParams{Directory: "/etc/absent", Ext: "*", Recurse: true}, compliance.NewIndicatorsTree(), host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)

	_, err = auditFilePermissionsCollection(filePermissionsCollectionParams{Directory: "/etc/cron.d", Ext: "[", Recurse: true}, compliance.NewIndicatorsTree(), host)
	require.Error(t, err)
	assert.Equal(t, compliance.KindPatternCompile, compliance.KindOf(err))
}

func TestEnsureNoWorldWritableFiles(t *testing.T) {
	root := t.TempDir()
	open := writeFile(t, root, "srv/data/open.txt", "", 0666)
	writeFile(t, root, "srv/data/closed.txt", "", 0644)
	shared := filepath.Join(root, "srv/shared")
	tmp := filepath.Join(root, "srv/tmp")
	require.NoError(t, os.MkdirAll(shared, 0755))
	require.NoError(t, os.MkdirAll(tmp, 0755))
	require.NoError(t, os.Chmod(shared, 0o777))
	require.NoError(t, os.Chmod(tmp, 0o777|os.ModeSticky))
	host, scanner := newScannedHost(t, root)

	tree := compliance.NewIndicatorsTree()
	status, err := auditNoWorldWritableFiles(noWorldWritableParams{Directory: "/srv", Limit: 1}, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.NonCompliant, status)
	indicators := tree.Current().Indicators
	require.Len(t, indicators, 2)
	assert.Equal(t, "'/srv/data/open.txt' is world writable", indicators[0].Message)
	assert.Equal(t, "1 more world writable entries not shown", indicators[1].Message)

	status, err = remediateNoWorldWritableFiles(noWorldWritableParams{Directory: "/srv", Limit: 10}, compliance.NewIndicatorsTree(), host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)
	assert.Equal(t, os.FileMode(0o664), modeOf(t, open).Perm())
	assert.Equal(t, os.FileMode(0o775), modeOf(t, shared).Perm())
	assert.Equal(t, os.ModeSticky, modeOf(t, tmp)&os.ModeSticky)
	assert.Equal(t, os.FileMode(0o777), modeOf(t, tmp).Perm())
	assert.Equal(t, 1, scanner.invalidations)

	status, err = auditNoWorldWritableFiles(noWorldWritableParams{Directory: "/srv", Limit: 10}, compliance.NewIndicatorsTree(), host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)
}

type fakeScanner struct {
	entries []compliance.FileEntry
}

func (f *fakeScanner) Entries() ([]compliance.FileEntry, error) { return f.entries, nil }

func (f *fakeScanner) Invalidate() {}

func (f *fakeScanner) Find(hasPerms, noPerms uint32) ([]compliance.FileEntry, error) {
	var out []compliance.FileEntry
	for _, e := range f.entries {
		if e.Mode&hasPerms == hasPerms && e.Mode&noPerms == 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestEnsureNoUnowned(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "etc/passwd", "root:x:0:0:root:/root:/bin/bash\n", 0644)
	writeFile(t, root, "etc/group", "root:x:0:\n", 0644)
	host := newRootHost(t, root)

	scanner := &fakeScanner{entries: []compliance.FileEntry{
		{Path: "/usr/bin/ls", Mode: 0o755},
		{Path: "/home/orphan/notes", Mode: 0o644, UID: 4242},
		{Path: "/srv/shared", Mode: 0o755, GID: 777},
		{Path: "/proc/1/status", Mode: 0o444, UID: 9999},
		{Path: "/var/lib/private/state", Mode: 0o600, UID: 61000},
		{Path: "/opt/containerd/layer", Mode: 0o644, UID: 100000},
	}}
	host.EXPECT().GetFilesystemScanner().Return(scanner).AnyTimes()

	tree := compliance.NewIndicatorsTree()
	status, err := auditNoUnowned(noUnownedParams{Limit: 1}, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.NonCompliant, status)
	indicators := tree.Current().Indicators
	require.Len(t, indicators, 2)
	assert.Equal(t, "File '/home/orphan/notes' is owned by unknown user 4242", indicators[0].Message)
	assert.Equal(t, "1 more unowned files not shown", indicators[1].Message)

	scanner.entries = scanner.entries[:1]
	status, err = auditNoUnowned(noUnownedParams{Limit: 3}, compliance.NewIndicatorsTree(), host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)
}

func TestSkipUnowned(t *testing.T) {
	assert.True(t, skipUnowned("/run/user/1000/bus"))
	assert.True(t, skipUnowned("/sys/fs/cgroup/memory/x"))
	assert.True(t, skipUnowned("/var/lib/kubelet/pods"))
	assert.True(t, skipUnowned("/var/cache/private/x"))
	assert.False(t, skipUnowned("/var/private/x"))
	assert.False(t, skipUnowned("/etc/passwd"))
}

const accountsPasswd = `root:x:0:0:root:/root:/bin/bash
daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin
toor:x:0:0:backdoor:/root:/bin/bash
`

const accountsGroup = `root:x:0:
daemon:x:1:
shadow:x:42:
wheel:x:42:
`

func TestMatchesName(t *testing.T) {
	assert.True(t, matchesName(pattern.MustMake("ad|adm"), "adm"))
	assert.True(t, matchesName(pattern.MustMake("own.*"), "owner"))
	assert.True(t, matchesName(pattern.MustMake("a+b"), "a+b"), "source text compares literally")
	assert.False(t, matchesName(pattern.MustMake("root"), "chroot"))
	assert.False(t, matchesAny([]pattern.Pattern{pattern.MustMake("nobody"), pattern.MustMake("ad")}, "adm"))
}

func TestEnsureUserIsOnlyAccountWith(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "etc/passwd", accountsPasswd, 0644)
	writeFile(t, root, "etc/group", accountsGroup, 0644)
	host := newRootHost(t, root)

	tests := []struct {
		name    string
		params  userOnlyWithParams
		status  compliance.Status
		message string
	}{
		{"duplicate uid", userOnlyWithParams{Username: "root", UID: ptr(0)}, compliance.NonCompliant, "A user other than 'root' has UID 0"},
		{"unique uid", userOnlyWithParams{Username: "daemon", UID: ptr(1)}, compliance.Compliant, "All criteria has been met for user 'daemon'"},
		{"missing uid", userOnlyWithParams{Username: "nobody", UID: ptr(65534)}, compliance.NonCompliant, "No user with UID 65534 found"},
		{"duplicate gid", userOnlyWithParams{Username: "daemon", GID: ptr(0)}, compliance.NonCompliant, "A user other than 'daemon' has GID 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := compliance.NewIndicatorsTree()
			status, err := auditUserIsOnlyAccountWith(tt.params, tree, host)
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)
			indicators := tree.Current().Indicators
			require.NotEmpty(t, indicators)
			assert.Equal(t, tt.message, indicators[len(indicators)-1].Message)
		})
	}

	_, err := auditUserIsOnlyAccountWith(userOnlyWithParams{Username: "root"}, compliance.NewIndicatorsTree(), host)
	assert.Equal(t, compliance.KindBinding, compliance.KindOf(err))
}

func TestEnsureGroupIsOnlyGroupWith(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "etc/group", accountsGroup, 0644)
	host := newRootHost(t, root)

	tree := compliance.NewIndicatorsTree()
	status, err := auditGroupIsOnlyGroupWith(groupOnlyWithParams{Group: "root", GID: 0}, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.Compliant, status)

	tree = compliance.NewIndicatorsTree()
	status, err = auditGroupIsOnlyGroupWith(groupOnlyWithParams{Group: "shadow", GID: 42}, tree, host)
	require.NoError(t, err)
	assert.Equal(t, compliance.NonCompliant, status)
	msg, _ := tree.LastNonCompliant()
	assert.Equal(t, "A group other than 'shadow' has GID 42", msg)

	status, err = auditGroupIsOnlyGroupWith(groupOnlyWithParams{Group: "nogroup", GID: 65534}, compliance.NewIndicatorsTree(), host)
	require.NoError(t, err)
	assert.Equal(t, compliance.NonCompliant, status)
}

func TestExecuteCommandGrep(t *testing.T) {
	host := newRootHost(t, t.TempDir())

	t.Run("command not allowed", func(t *testing.T) {
		_, err := auditExecuteCommandGrep(commandGrepParams{Command: "rm -rf /", Regex: "."}, compliance.NewIndicatorsTree(), host)
		require.Error(t, err)
		assert.Equal(t, unix.EINVAL, compliance.CodeOf(err))
	})

	t.Run("match", func(t *testing.T) {
		host.EXPECT().
			ExecuteCommand(`iptables -L INPUT -v -n | awk "{print \$1}" | grep -P -- "policy DROP\$" || (echo -n 'No match found'; exit 1)`).
			Return("Chain INPUT (policy DROP)\n", nil)
		tree := compliance.NewIndicatorsTree()
		status, err := auditExecuteCommandGrep(commandGrepParams{
			Command: "iptables -L INPUT -v -n",
			Awk:     ptr("{print $1}"),
			Regex:   "policy DROP$",
			Type:    grepPerl,
		}, tree, host)
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)
		assert.Equal(t, "Output of command 'iptables -L INPUT -v -n' matches regex 'policy DROP$'", tree.Current().Indicators[0].Message)
	})

	t.Run("no match", func(t *testing.T) {
		host.EXPECT().
			ExecuteCommand(`uname | grep -E -- "Darwin" || (echo -n 'No match found'; exit 1)`).
			Return("No match found", compliance.ExecutionError(unix.Errno(1), "No match found"))
		tree := compliance.NewIndicatorsTree()
		status, err := auditExecuteCommandGrep(commandGrepParams{Command: "uname", Regex: "Darwin", Type: grepExtended}, tree, host)
		require.NoError(t, err)
		assert.Equal(t, compliance.NonCompliant, status)
		msg, _ := tree.LastNonCompliant()
		assert.Equal(t, "No match found", msg)
	})
}

func TestEscapeForShell(t *testing.T) {
	assert.Equal(t, `a\"b\\c\$d\`+"`"+`e`, escapeForShell(`a"b\c$d`+"`"+`e`))
}

const sysctlConfig = `# /usr/lib/sysctl.d/50-default.conf
net.ipv4.ip_forward = 1
kernel.sysrq = 16

# /etc/sysctl.d/99-hardening.conf
; comment
-net.ipv4.ip_forward=0 # disable forwarding
`

func sysctlHost(t *testing.T, runtime string) *mocks.MockHost {
	root := t.TempDir()
	writeFile(t, root, "proc/sys/net/ipv4/ip_forward", runtime, 0644)
	writeFile(t, root, "proc/sys/kernel/sysrq", "16\n", 0644)
	host := newRootHost(t, root)
	host.EXPECT().ExecuteCommand("/lib/systemd/systemd-sysctl --version").Return("", syscall.ENOENT).AnyTimes()
	host.EXPECT().ExecuteCommand("/usr/lib/systemd/systemd-sysctl --version").Return("systemd 252", nil).AnyTimes()
	host.EXPECT().ExecuteCommand("/usr/lib/systemd/systemd-sysctl --cat-config").Return(sysctlConfig, nil).AnyTimes()
	return host
}

func TestEnsureSysctl(t *testing.T) {
	t.Run("runtime and stored agree", func(t *testing.T) {
		tree := compliance.NewIndicatorsTree()
		status, err := auditSysctl(sysctlParams{SysctlName: "net.ipv4.ip_forward", Value: pattern.MustMake("^0$")}, tree, sysctlHost(t, "0\n"))
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)
		indicators := tree.Current().Indicators
		require.Len(t, indicators, 2)
		assert.Equal(t, "Correct value for 'net.ipv4.ip_forward' in stored configuration", indicators[1].Message)
	})

	t.Run("runtime mismatch", func(t *testing.T) {
		tree := compliance.NewIndicatorsTree()
		status, err := auditSysctl(sysctlParams{SysctlName: "net.ipv4.ip_forward", Value: pattern.MustMake("^0$")}, tree, sysctlHost(t, "1\n"))
		require.NoError(t, err)
		assert.Equal(t, compliance.NonCompliant, status)
		msg, _ := tree.LastNonCompliant()
		assert.Equal(t, "Expected '^0$' got '1' in runtime configuration", msg)
	})

	t.Run("stored mismatch names the file", func(t *testing.T) {
		tree := compliance.NewIndicatorsTree()
		status, err := auditSysctl(sysctlParams{SysctlName: "kernel.sysrq", Value: pattern.MustMake("^(0|16)$")}, tree, sysctlHost(t, "0\n"))
		require.NoError(t, err)
		assert.Equal(t, compliance.Compliant, status)

		tree = compliance.NewIndicatorsTree()
		status, err = auditSysctl(sysctlParams{SysctlName: "net.ipv4.ip_forward", Value: pattern.MustMake("^1$")}, tree, sysctlHost(t, "1\n"))
		require.NoError(t, err)
		assert.Equal(t, compliance.NonCompliant, status)
		msg, _ := tree.LastNonCompliant()
		assert.Equal(t, "Expected '^1$' got '0' found in: '/etc/sysctl.d/99-hardening.conf'", msg)
	})

	t.Run("systemd-sysctl missing", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "proc/sys/kernel/sysrq", "16\n", 0644)
		host := newRootHost(t, root)
		host.EXPECT().ExecuteCommand(gomock.Any()).Return("", syscall.ENOENT).Times(2)
		_, err := auditSysctl(sysctlParams{SysctlName: "kernel.sysrq", Value: pattern.MustMake("16")}, compliance.NewIndicatorsTree(), host)
		require.Error(t, err)
		assert.Equal(t, unix.ENOENT, compliance.CodeOf(err))
	})
}

func TestLastSysctlSetting(t *testing.T) {
	value, source, found := lastSysctlSetting(sysctlConfig, "net.ipv4.ip_forward")
	require.True(t, found)
	assert.Equal(t, "0", value)
	assert.Equal(t, "/etc/sysctl.d/99-hardening.conf", source)

	value, source, found = lastSysctlSetting(sysctlConfig, "kernel.sysrq")
	require.True(t, found)
	assert.Equal(t, "16", value)
	assert.Equal(t, "/usr/lib/sysctl.d/50-default.conf", source)

	_, _, found = lastSysctlSetting(sysctlConfig, "kernel.randomize_va_space")
	assert.False(t, found)
}

func TestProceduresThroughEvaluator(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "etc/group", accountsGroup, 0644)
	host := newRootHost(t, root)

	info, err := benchmark.Parse("/cis/ubuntu/22.04/v1.0.0/6.2.18")
	require.NoError(t, err)
	dist := benchmark.DistributionInfo{OSType: "linux", Architecture: "amd64", Distribution: benchmark.Ubuntu, Version: "22.04"}
	eval := engine.NewEvaluator(NewRegistry(), host, dist)

	res := &catalog.Resource{
		ID:        "shadow-gid",
		Benchmark: info,
		Rule:      "Ensure no duplicate GIDs exist",
		Audit:     catalog.Call("EnsureGroupIsOnlyGroupWith", map[string]string{"group": "root", "gid": "0"}),
	}
	out := eval.Evaluate(context.Background(), res, compliance.Audit)
	require.NoError(t, out.Err)
	assert.Equal(t, compliance.Compliant, out.Status)

	res.Audit = catalog.Call("EnsureGroupIsOnlyGroupWith", map[string]string{"group": "root", "gid": "zero"})
	out = eval.Evaluate(context.Background(), res, compliance.Audit)
	require.Error(t, out.Err)
	assert.Equal(t, compliance.KindBinding, compliance.KindOf(out.Err))

	res.Audit = catalog.Call("PackageInstalled", map[string]string{"packageName": "bash"})
	out = eval.Evaluate(context.Background(), res, compliance.Remediation)
	assert.Equal(t, compliance.NonCompliant, out.Status)
	msg, _ := out.Indicators.LastNonCompliant()
	assert.True(t, strings.HasPrefix(msg, "manual remediation required"), msg)
}
