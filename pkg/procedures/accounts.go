package procedures

import (
	"errors"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/pattern"
	"github.com/user/hostcomply/pkg/sysiter"
	"golang.org/x/sys/unix"
)

// errStop ends an account database walk early.
var errStop = errors.New("stop")

// userName resolves uid against the audited host's user database.
func userName(host compliance.Host, uid uint32) (string, bool, error) {
	var name string
	found := false
	err := sysiter.ForEachUser(host, func(e sysiter.PasswdEntry) error {
		if !found && e.UID == uid {
			name, found = e.Name, true
		}
		return nil
	})
	return name, found, err
}

func groupName(host compliance.Host, gid uint32) (string, bool, error) {
	var name string
	found := false
	err := sysiter.ForEachGroup(host, func(e sysiter.GroupEntry) error {
		if !found && e.GID == gid {
			name, found = e.Name, true
		}
		return nil
	})
	return name, found, err
}

// matchesName reports whether name is the pattern text or matches the
// pattern in full.
func matchesName(p pattern.Pattern, name string) bool {
	return p.String() == name || p.MatchFull(name)
}

func matchesAny(patterns []pattern.Pattern, name string) bool {
	for _, p := range patterns {
		if matchesName(p, name) {
			return true
		}
	}
	return false
}

type userOnlyWithParams struct {
	Username string `arg:"username"`
	UID      *int   `arg:"uid"`
	GID      *int   `arg:"gid"`
}

func auditUserIsOnlyAccountWith(p userOnlyWithParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	if p.UID == nil && p.GID == nil {
		return compliance.NonCompliant, compliance.BindingError(unix.EINVAL, "at least one of 'uid' or 'gid' is required")
	}
	var status compliance.Status
	uidFound := false
	err := sysiter.ForEachUser(host, func(e sysiter.PasswdEntry) error {
		if p.UID != nil && int(e.UID) == *p.UID {
			if e.Name != p.Username {
				status, _ = indicators.NonCompliantf("A user other than '%s' has UID %d", p.Username, *p.UID)
				return errStop
			}
			uidFound = true
		}
		if p.GID != nil && int(e.GID) == *p.GID && e.Name != p.Username {
			status, _ = indicators.NonCompliantf("A user other than '%s' has GID %d", p.Username, *p.GID)
			return errStop
		}
		return nil
	})
	if err == errStop {
		return status, nil
	}
	if err != nil {
		return compliance.NonCompliant, err
	}
	if p.UID != nil && !uidFound {
		return indicators.NonCompliantf("No user with UID %d found", *p.UID)
	}
	return indicators.Compliantf("All criteria has been met for user '%s'", p.Username)
}

type groupOnlyWithParams struct {
	Group string `arg:"group"`
	GID   int    `arg:"gid"`
}

func auditGroupIsOnlyGroupWith(p groupOnlyWithParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	found := false
	err := sysiter.ForEachGroup(host, func(e sysiter.GroupEntry) error {
		if int(e.GID) != p.GID {
			return nil
		}
		if e.Name != p.Group {
			return errStop
		}
		found = true
		return nil
	})
	if err == errStop {
		return indicators.NonCompliantf("A group other than '%s' has GID %d", p.Group, p.GID)
	}
	if err != nil {
		return compliance.NonCompliant, err
	}
	if !found {
		return indicators.NonCompliantf("No group with GID %d found", p.GID)
	}
	return indicators.Compliantf("All criteria has been met for group '%s'", p.Group)
}
