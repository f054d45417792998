package procedures

import (
	"fmt"
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

// allowedGrepCommands lists the only commands ExecuteCommandGrep will run.
var allowedGrepCommands = map[string]struct{}{
	"nft list ruleset":          {},
	"nft list chain":            {},
	"nft list tables":           {},
	"ip6tables -L -n":           {},
	"ip6tables -L INPUT -v -n":  {},
	"ip6tables -L OUTPUT -v -n": {},
	"iptables -L -n":            {},
	"iptables -L INPUT -v -n":   {},
	"iptables -L OUTPUT -v -n":  {},
	"uname":                     {},
}

type grepType int

const (
	grepPerl grepType = iota
	grepExtended
)

func (t *grepType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "P":
		*t = grepPerl
	case "E":
		*t = grepExtended
	default:
		return fmt.Errorf("invalid regex type '%s'", text)
	}
	return nil
}

func (t grepType) flag() string {
	if t == grepExtended {
		return "E"
	}
	return "P"
}

type commandGrepParams struct {
	Command string   `arg:"command"`
	Awk     *string  `arg:"awk"`
	Regex   string   `arg:"regex"`
	Type    grepType `arg:"type" default:"P"`
}

// escapeForShell escapes text for use inside a double-quoted shell string.
func escapeForShell(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '\\', '"', '`', '$':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func grepCommandLine(p commandGrepParams) string {
	line := p.Command
	if p.Awk != nil {
		line += fmt.Sprintf(" | awk \"%s\"", escapeForShell(*p.Awk))
	}
	return line + fmt.Sprintf(" | grep -%s -- \"%s\" || (echo -n 'No match found'; exit 1)", p.Type.flag(), escapeForShell(p.Regex))
}

func auditExecuteCommandGrep(p commandGrepParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	if _, ok := allowedGrepCommands[p.Command]; !ok {
		return compliance.NonCompliant, compliance.NewError(unix.EINVAL, fmt.Sprintf("command '%s' is not allowed", p.Command))
	}
	log := host.GetLogHandle()
	line := grepCommandLine(p)
	log.Debugf("Executing command '%s'", line)
	if _, err := host.ExecuteCommand(line); err != nil {
		return indicators.NonCompliant(err.Error())
	}
	return indicators.Compliantf("Output of command '%s' matches regex '%s'", p.Command, p.Regex)
}
