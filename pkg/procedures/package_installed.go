package procedures

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

const (
	// DefaultPackageCachePath stores the installed package list between runs.
	DefaultPackageCachePath = "/var/lib/hostcomply/packagecache"

	packageCacheTTL      = 50 * time.Minute
	packageCacheStaleTTL = 210 * time.Minute
	packageCacheHeader   = "# PackageCache "
)

// now is replaced in tests.
var now = time.Now

type packageManager string

const (
	autodetect packageManager = "autodetect"
	dpkg       packageManager = "dpkg"
	rpm        packageManager = "rpm"
)

func (m *packageManager) UnmarshalText(text []byte) error {
	switch v := packageManager(text); v {
	case autodetect, dpkg, rpm:
		*m = v
		return nil
	}
	return compliance.ParseError("expected one of autodetect, dpkg, rpm")
}

type packageInstalledParams struct {
	PackageName       string         `arg:"packageName"`
	MinPackageVersion *string        `arg:"minPackageVersion"`
	PackageManager    packageManager `arg:"packageManager" default:"autodetect"`
	CachePath         string         `arg:"test_cachePath" default:"/var/lib/hostcomply/packagecache"`
}

type packageCache struct {
	manager  packageManager
	updated  time.Time
	packages map[string]string
}

func auditPackageInstalled(p packageInstalledParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	log := host.GetLogHandle()

	cache, err := loadPackageCache(p.CachePath)
	valid := err == nil
	if err != nil {
		log.Infof("Failed to load package cache: %v", err)
	}

	manager := p.PackageManager
	switch {
	case valid && manager == autodetect:
		manager = cache.manager
	case valid && cache.manager != manager:
		log.Infof("Package manager mismatch: expected %s, found %s", manager, cache.manager)
		valid = false
	case !valid && manager == autodetect:
		manager, err = detectPackageManager(host)
		if err != nil {
			return compliance.NonCompliant, err
		}
	}

	stale := false
	if valid {
		age := now().Sub(cache.updated)
		if age > packageCacheStaleTTL {
			log.Infof("Package cache is stale over limit (%s > %s), cannot use", age, packageCacheStaleTTL)
			valid = false
		} else if age > packageCacheTTL {
			stale = true
		}
	}

	if !valid || stale {
		fresh, err := installedPackages(manager, host)
		switch {
		case err == nil:
			cache = fresh
			if err := savePackageCache(cache, p.CachePath); err != nil {
				log.Errorf("Failed to save package cache: %v", err)
			} else {
				log.Infof("Saved package cache to %s", p.CachePath)
			}
		case stale:
			log.Errorf("Failed to get installed packages: %v, reusing stale cache", err)
		default:
			return compliance.NonCompliant, compliance.ExecutionError(compliance.CodeOf(err), "failed to get installed packages: %v", err)
		}
	}

	installed, ok := cache.packages[p.PackageName]
	if !ok {
		log.Infof("Package %s is not installed", p.PackageName)
		return indicators.NonCompliantf("Package %s is not installed", p.PackageName)
	}
	if p.MinPackageVersion != nil && comparePackageVersions(installed, *p.MinPackageVersion) < 0 {
		return indicators.NonCompliantf("Package %s is installed with version %s, which is older than %s", p.PackageName, installed, *p.MinPackageVersion)
	}
	return indicators.Compliantf("Package %s is installed with version %s", p.PackageName, installed)
}

func detectPackageManager(host compliance.Host) (packageManager, error) {
	if _, err := host.ExecuteCommand("dpkg -l dpkg"); err == nil {
		return dpkg, nil
	}
	if _, err := host.ExecuteCommand("rpm -q rpm"); err == nil {
		return rpm, nil
	}
	// SLES 15 ships rpm as rpm-ndb.
	if _, err := host.ExecuteCommand("rpm -q rpm-ndb"); err == nil {
		return rpm, nil
	}
	return autodetect, compliance.NewError(unix.ENOENT, "no package manager found")
}

func installedPackages(manager packageManager, host compliance.Host) (*packageCache, error) {
	cache := &packageCache{manager: manager, updated: now(), packages: map[string]string{}}
	switch manager {
	case dpkg:
		out, err := host.ExecuteCommand("dpkg -l")
		if err != nil {
			return nil, err
		}
		parseDpkgList(out, cache.packages)
	case rpm:
		out, err := host.ExecuteCommand(`rpm -qa --qf='%{NAME} %{EVR}\n'`)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(out, "\n") {
			if name, version, ok := strings.Cut(line, " "); ok && name != "" {
				cache.packages[name] = version
			}
		}
	default:
		return nil, compliance.Errorf(unix.EINVAL, "unsupported package manager: %s", manager)
	}
	return cache, nil
}

// parseDpkgList reads "dpkg -l" output. Only installed ("ii") rows after the
// "+++-" ruler count; architecture suffixes are dropped from names.
func parseDpkgList(out string, packages map[string]string) {
	header := true
	for _, line := range strings.Split(out, "\n") {
		if header {
			header = !strings.HasPrefix(line, "+++-")
			continue
		}
		if !strings.HasPrefix(line, "ii ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name, _, _ := strings.Cut(fields[1], ":")
		packages[name] = fields[2]
	}
}

func loadPackageCache(path string) (*packageCache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() || !strings.HasPrefix(scanner.Text(), packageCacheHeader) {
		return nil, fmt.Errorf("invalid cache file format")
	}
	managerText, stamp, ok := strings.Cut(strings.TrimPrefix(scanner.Text(), packageCacheHeader), "@")
	if !ok {
		return nil, fmt.Errorf("invalid cache file header format")
	}
	var manager packageManager
	if err := manager.UnmarshalText([]byte(managerText)); err != nil || manager == autodetect {
		return nil, fmt.Errorf("invalid package manager type '%s'", managerText)
	}
	seconds, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp in cache file header")
	}

	cache := &packageCache{manager: manager, updated: time.Unix(seconds, 0), packages: map[string]string{}}
	for scanner.Scan() {
		if name, version, ok := strings.Cut(scanner.Text(), " "); ok {
			cache.packages[name] = version
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cache file: %w", err)
	}
	return cache, nil
}

// savePackageCache replaces the cache file atomically.
func savePackageCache(cache *packageCache, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	names := make([]string, 0, len(cache.packages))
	for name := range cache.packages {
		names = append(names, name)
	}
	sort.Strings(names)

	w := bufio.NewWriter(tmp)
	fmt.Fprintf(w, "%s%s@%d\n", packageCacheHeader, cache.manager, cache.updated.Unix())
	for _, name := range names {
		fmt.Fprintf(w, "%s %s\n", name, cache.packages[name])
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write package cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// comparePackageVersions orders two package versions. Plain semantic
// versions are compared by semver; anything else by epoch, version and
// release the way dpkg and rpm do.
func comparePackageVersions(a, b string) int {
	va, errA := semver.StrictNewVersion(a)
	vb, errB := semver.StrictNewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}

	ea, eb := splitEVR(a), splitEVR(b)
	for i := range ea {
		if c := compareVersionPart(ea[i], eb[i]); c != 0 {
			return c
		}
	}
	return 0
}

// splitEVR splits [epoch:]version[-release]. Missing parts are "0".
func splitEVR(v string) [3]string {
	evr := [3]string{"0", "", "0"}
	if epoch, rest, ok := strings.Cut(v, ":"); ok {
		evr[0], v = epoch, rest
	}
	if i := strings.LastIndex(v, "-"); i > 0 {
		evr[1], evr[2] = v[:i], v[i+1:]
	} else {
		evr[1] = v
	}
	return evr
}

// versionSegments splits into runs of digits and runs of letters, dropping
// every other character.
func versionSegments(v string) []string {
	var out []string
	for i := 0; i < len(v); {
		c := v[i]
		if !isAlnum(c) {
			i++
			continue
		}
		j := i
		digit := isDigit(c)
		for j < len(v) && isAlnum(v[j]) && isDigit(v[j]) == digit {
			j++
		}
		out = append(out, v[i:j])
		i = j
	}
	return out
}

func compareVersionPart(a, b string) int {
	sa, sb := versionSegments(a), versionSegments(b)
	for i := 0; i < len(sa) || i < len(sb); i++ {
		if i >= len(sa) {
			return -1
		}
		if i >= len(sb) {
			return 1
		}
		na, nb := isDigit(sa[i][0]), isDigit(sb[i][0])
		switch {
		case na && nb:
			x, y := strings.TrimLeft(sa[i], "0"), strings.TrimLeft(sb[i], "0")
			if len(x) != len(y) {
				return sign(len(x) - len(y))
			}
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		case !na && !nb:
			if c := strings.Compare(sa[i], sb[i]); c != 0 {
				return c
			}
		case na:
			return 1
		default:
			return -1
		}
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
