package benchmark

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"runtime"
	"sort"
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

const (
	OverridePath  = "/etc/osconfig/system_id.override"
	OSReleasePath = "/etc/os-release"
)

// Distribution is a supported Linux distribution identifier.
type Distribution string

const (
	Ubuntu      Distribution = "ubuntu"
	CentOS      Distribution = "centos"
	RHEL        Distribution = "rhel"
	SUSE        Distribution = "sles"
	OracleLinux Distribution = "ol"
	Mariner     Distribution = "mariner"
	Debian      Distribution = "debian"
	AzureLinux  Distribution = "azurelinux"
	AmazonLinux Distribution = "amzn"
	AlmaLinux   Distribution = "almalinux"
	RockyLinux  Distribution = "rocky"
)

var distributions = map[Distribution]bool{
	Ubuntu: true, CentOS: true, RHEL: true, SUSE: true, OracleLinux: true, Mariner: true,
	Debian: true, AzureLinux: true, AmazonLinux: true, AlmaLinux: true, RockyLinux: true,
}

// ParseDistribution validates an os-release style identifier.
func ParseDistribution(s string) (Distribution, error) {
	d := Distribution(s)
	if !distributions[d] {
		names := make([]string, 0, len(distributions))
		for _, known := range Distributions() {
			names = append(names, string(known))
		}
		return "", compliance.Errorf(unix.EINVAL, "unsupported Linux distribution: %s (supported: %s)", s, strings.Join(names, ", "))
	}
	return d, nil
}

// Distributions lists the supported identifiers in sorted order.
func Distributions() []Distribution {
	out := make([]Distribution, 0, len(distributions))
	for d := range distributions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var osTypes = map[string]bool{"Linux": true}

var architectures = map[string]string{
	"x86_64":  "x86_64",
	"amd64":   "x86_64",
	"aarch64": "aarch64",
	"arm64":   "aarch64",
}

// DistributionInfo identifies the audited system.
type DistributionInfo struct {
	OSType       string
	Architecture string
	Distribution Distribution
	Version      string
}

func (d DistributionInfo) String() string {
	return d.OSType + " " + d.Architecture + " " + string(d.Distribution) + " " + d.Version
}

// ParseKeyValues reads KEY=value lines. Values may be double-quoted; an
// unquoted value ends at whitespace or '#'. Blank lines and comments are
// skipped. Later keys override earlier ones.
func ParseKeyValues(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rest, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, compliance.Errorf(unix.EINVAL, "line %d: expected KEY=value", lineNo)
		}
		if strings.ContainsAny(key, " \t#") {
			return nil, compliance.Errorf(unix.EINVAL, "line %d: unexpected character in key %q", lineNo, key)
		}
		value, err := parseValue(strings.TrimLeft(rest, " \t"))
		if err != nil {
			return nil, compliance.Errorf(unix.EINVAL, "line %d: %v", lineNo, err)
		}
		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseValue(s string) (string, error) {
	if strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s[1:], '"')
		if end < 0 {
			return "", errors.New("unterminated quoted value")
		}
		return s[1 : end+1], nil
	}
	if i := strings.IndexAny(s, " \t#"); i >= 0 {
		s = s[:i]
	}
	if strings.Contains(s, `"`) {
		return "", errors.New("unexpected quote past the start of value")
	}
	return s, nil
}

// ParseOSRelease builds DistributionInfo from /etc/os-release content and
// the running platform.
func ParseOSRelease(r io.Reader) (DistributionInfo, error) {
	kv, err := ParseKeyValues(r)
	if err != nil {
		return DistributionInfo{}, err
	}
	id, ok := kv["ID"]
	if !ok {
		return DistributionInfo{}, compliance.Errorf(unix.EINVAL, "%s does not contain 'ID' field", OSReleasePath)
	}
	dist, err := ParseDistribution(id)
	if err != nil {
		return DistributionInfo{}, err
	}
	version, ok := kv["VERSION_ID"]
	if !ok {
		return DistributionInfo{}, compliance.Errorf(unix.EINVAL, "%s does not contain 'VERSION_ID' field", OSReleasePath)
	}

	osType := strings.ToUpper(runtime.GOOS[:1]) + runtime.GOOS[1:]
	if !osTypes[osType] {
		return DistributionInfo{}, compliance.Errorf(unix.EINVAL, "unsupported OS type: %s", osType)
	}
	arch, ok := architectures[runtime.GOARCH]
	if !ok {
		return DistributionInfo{}, compliance.Errorf(unix.EINVAL, "unsupported architecture: %s", runtime.GOARCH)
	}
	return DistributionInfo{OSType: osType, Architecture: arch, Distribution: dist, Version: version}, nil
}

// ParseOverride reads the system id override file (OS, ARCH, DISTRO, VERSION).
func ParseOverride(r io.Reader) (DistributionInfo, error) {
	kv, err := ParseKeyValues(r)
	if err != nil {
		return DistributionInfo{}, err
	}
	for _, key := range []string{"OS", "ARCH", "DISTRO", "VERSION"} {
		if _, ok := kv[key]; !ok {
			return DistributionInfo{}, compliance.Errorf(unix.EINVAL, "%s file does not contain '%s' field", OverridePath, key)
		}
	}
	if !osTypes[kv["OS"]] {
		return DistributionInfo{}, compliance.Errorf(unix.EINVAL, "unsupported OS type: %s", kv["OS"])
	}
	arch, ok := architectures[kv["ARCH"]]
	if !ok {
		return DistributionInfo{}, compliance.Errorf(unix.EINVAL, "unsupported architecture: %s", kv["ARCH"])
	}
	dist, err := ParseDistribution(kv["DISTRO"])
	if err != nil {
		return DistributionInfo{}, err
	}
	return DistributionInfo{OSType: kv["OS"], Architecture: arch, Distribution: dist, Version: kv["VERSION"]}, nil
}

// Detect identifies the host, preferring the override file when present.
func Detect(host compliance.Host) (DistributionInfo, error) {
	content, err := host.GetFileContents(OverridePath)
	if err == nil {
		host.GetLogHandle().Debugf("Using distribution override from %s", OverridePath)
		return ParseOverride(strings.NewReader(content))
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, unix.ENOENT) {
		return DistributionInfo{}, err
	}

	content, err = host.GetFileContents(OSReleasePath)
	if err != nil {
		return DistributionInfo{}, err
	}
	return ParseOSRelease(strings.NewReader(content))
}
