// Package sysiter enumerates the user and group databases and walks
// directory trees on behalf of procedures.
package sysiter

import (
	"strconv"
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

const (
	PasswdPath = "/etc/passwd"
	GroupPath  = "/etc/group"
)

// PasswdEntry is one line of the user database.
type PasswdEntry struct {
	Name     string
	Password string
	UID      uint32
	GID      uint32
	GECOS    string
	Home     string
	Shell    string
}

// GroupEntry is one line of the group database.
type GroupEntry struct {
	Name     string
	Password string
	GID      uint32
	Members  []string
}

func parseID(field, what string) (uint32, error) {
	v, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, compliance.Errorf(unix.EINVAL, "invalid %s '%s'", what, field)
	}
	return uint32(v), nil
}

func parsePasswd(fields []string) (PasswdEntry, error) {
	uid, err := parseID(fields[2], "uid")
	if err != nil {
		return PasswdEntry{}, err
	}
	gid, err := parseID(fields[3], "gid")
	if err != nil {
		return PasswdEntry{}, err
	}
	return PasswdEntry{
		Name:     fields[0],
		Password: fields[1],
		UID:      uid,
		GID:      gid,
		GECOS:    fields[4],
		Home:     fields[5],
		Shell:    fields[6],
	}, nil
}

func parseGroup(fields []string) (GroupEntry, error) {
	gid, err := parseID(fields[2], "gid")
	if err != nil {
		return GroupEntry{}, err
	}
	var members []string
	for _, m := range strings.Split(fields[3], ",") {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}
	return GroupEntry{Name: fields[0], Password: fields[1], GID: gid, Members: members}, nil
}
