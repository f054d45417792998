package procedures

import (
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/sysiter"
)

// unownedSkipPrefixes hold volatile or container-managed trees whose
// ownership is not meaningful to the host account databases.
var unownedSkipPrefixes = []string{"/run/", "/proc/", "/sys/fs/cgroup/memory/"}

type noUnownedParams struct {
	Limit int `arg:"limit" default:"3"`
}

func skipUnowned(path string) bool {
	for _, prefix := range unownedSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if strings.Contains(path, "/containerd/") || strings.Contains(path, "/kubelet/") {
		return true
	}
	// /var/<anything>/private/
	if rest, ok := strings.CutPrefix(path, "/var/"); ok {
		if i := strings.IndexByte(rest, '/'); i > 0 && strings.HasPrefix(rest[i:], "/private/") {
			return true
		}
	}
	return false
}

func auditNoUnowned(p noUnownedParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	uids := map[uint32]struct{}{}
	if err := sysiter.ForEachUser(host, func(e sysiter.PasswdEntry) error {
		uids[e.UID] = struct{}{}
		return nil
	}); err != nil {
		return compliance.NonCompliant, err
	}
	gids := map[uint32]struct{}{}
	if err := sysiter.ForEachGroup(host, func(e sysiter.GroupEntry) error {
		gids[e.GID] = struct{}{}
		return nil
	}); err != nil {
		return compliance.NonCompliant, err
	}

	entries, err := host.GetFilesystemScanner().Entries()
	if err != nil {
		return compliance.NonCompliant, err
	}

	unowned := 0
	for _, e := range entries {
		if skipUnowned(e.Path) {
			continue
		}
		_, knownUser := uids[e.UID]
		_, knownGroup := gids[e.GID]
		if knownUser && knownGroup {
			continue
		}
		unowned++
		if p.Limit > 0 && unowned > p.Limit {
			continue
		}
		if !knownUser {
			indicators.NonCompliantf("File '%s' is owned by unknown user %d", e.Path, e.UID)
		} else {
			indicators.NonCompliantf("File '%s' is owned by unknown group %d", e.Path, e.GID)
		}
	}
	if unowned > 0 {
		if p.Limit > 0 && unowned > p.Limit {
			indicators.NonCompliantf("%d more unowned files not shown", unowned-p.Limit)
		}
		return compliance.NonCompliant, nil
	}
	return indicators.Compliant("All files have a known owner and group")
}
