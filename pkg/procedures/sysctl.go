package procedures

import (
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/pattern"
	"golang.org/x/sys/unix"
)

var systemdSysctlPaths = []string{"/lib/systemd/systemd-sysctl", "/usr/lib/systemd/systemd-sysctl"}

type sysctlParams struct {
	SysctlName string          `arg:"sysctlName"`
	Value      pattern.Pattern `arg:"value"`
}

func auditSysctl(p sysctlParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	log := host.GetLogHandle()

	procPath := "/proc/sys/" + strings.ReplaceAll(p.SysctlName, ".", "/")
	runtime, err := host.GetFileContents(procPath)
	if err != nil {
		return compliance.NonCompliant, compliance.ExecutionError(compliance.CodeOf(err), "failed to read sysctl '%s': %v", p.SysctlName, err)
	}
	runtime = strings.TrimSuffix(runtime, "\n")
	if !p.Value.Match(runtime) {
		return indicators.NonCompliantf("Expected '%s' got '%s' in runtime configuration", p.Value, runtime)
	}
	indicators.Compliantf("Correct value for '%s' in runtime configuration", p.SysctlName)

	sysctl := ""
	for _, candidate := range systemdSysctlPaths {
		if _, err := host.ExecuteCommand(candidate + " --version"); err == nil {
			sysctl = candidate
			break
		}
	}
	if sysctl == "" {
		return compliance.NonCompliant, compliance.ExecutionError(unix.ENOENT, "Cannot find systemd-sysctl command")
	}
	stored, err := host.ExecuteCommand(sysctl + " --cat-config")
	if err != nil {
		return compliance.NonCompliant, err
	}

	value, source, found := lastSysctlSetting(stored, p.SysctlName)
	if !found {
		log.Debugf("'%s' not present in stored configuration", p.SysctlName)
		return indicators.NonCompliantf("Expected '%s' not found in stored sysctl configuration", p.SysctlName)
	}
	if !p.Value.Match(value) {
		return indicators.NonCompliantf("Expected '%s' got '%s' found in: '%s'", p.Value, value, source)
	}
	return indicators.Compliantf("Correct value for '%s' in stored configuration", p.SysctlName)
}

// lastSysctlSetting finds the effective assignment of name in the output of
// systemd-sysctl --cat-config, where the last assignment wins. source is the
// configuration file the assignment came from.
func lastSysctlSetting(config, name string) (value, source string, found bool) {
	lines := strings.Split(config, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if idx := strings.IndexAny(line, "#;"); idx >= 0 {
			line = line[:idx]
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok || strings.TrimPrefix(strings.TrimSpace(key), "-") != name {
			continue
		}
		value = strings.TrimSpace(val)
		for j := i - 1; j >= 0; j-- {
			if file, ok := strings.CutPrefix(lines[j], "# /"); ok {
				source = "/" + strings.TrimSpace(file)
				break
			}
		}
		return value, source, true
	}
	return "", "", false
}
