// Package benchmark parses benchmark keys and identifies the audited
// distribution so that rules can be filtered by applicability.
package benchmark

import (
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/user/hostcomply/pkg/compliance"
)

// TypeCIS is the only supported benchmark family.
const TypeCIS = "cis"

// Info describes which benchmark a rule belongs to and where the rule is
// applicable. Keys look like /cis/<distro>/<distroVersion>/<benchmarkVersion>/<section...>.
type Info struct {
	Type                string
	Distribution        Distribution
	DistributionVersion string
	BenchmarkVersion    string
	Section             string
}

// Parse reads a benchmark key. The section keeps any embedded '/'.
func Parse(key string) (Info, error) {
	if !strings.HasPrefix(key, "/") {
		return Info{}, compliance.ParseError("invalid benchmark key '%s': must start with '/'", key)
	}
	parts := strings.SplitN(key[1:], "/", 5)
	if parts[0] != TypeCIS {
		return Info{}, compliance.ParseError("unsupported benchmark type: '%s'", parts[0])
	}

	fields := []string{"distribution", "distribution version", "benchmark version", "benchmark section"}
	for i, name := range fields {
		if len(parts) <= i+1 || parts[i+1] == "" {
			return Info{}, compliance.ParseError("invalid CIS benchmark key '%s': missing %s", key, name)
		}
	}

	dist, err := ParseDistribution(parts[1])
	if err != nil {
		return Info{}, err
	}
	if _, err := semver.NewVersion(parts[3]); err != nil {
		return Info{}, compliance.ParseError("invalid benchmark version '%s': %v", parts[3], err)
	}
	if _, err := path.Match(parts[2], ""); err != nil {
		return Info{}, compliance.ParseError("invalid distribution version pattern '%s'", parts[2])
	}

	return Info{
		Type:                TypeCIS,
		Distribution:        dist,
		DistributionVersion: parts[2],
		BenchmarkVersion:    parts[3],
		Section:             parts[4],
	}, nil
}

// String is the inverse of Parse.
func (i Info) String() string {
	return "/" + i.Type + "/" + string(i.Distribution) + "/" + i.DistributionVersion + "/" + i.BenchmarkVersion + "/" + i.Section
}

// DottedSection renders the section as 1.2.3.
func (i Info) DottedSection() string {
	return strings.ReplaceAll(i.Section, "/", ".")
}

// Match reports whether the rule applies to dist. The distribution version
// may be a glob such as "22.*".
func (i Info) Match(dist DistributionInfo) bool {
	if i.Distribution != dist.Distribution {
		return false
	}
	ok, err := path.Match(i.DistributionVersion, dist.Version)
	return err == nil && ok
}
