package procedures

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/user/hostcomply/pkg/bindings"
	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/pattern"
	"github.com/user/hostcomply/pkg/sysiter"
	"golang.org/x/sys/unix"
)

const permissionBits = 0o7777

// filePermissionsParams describe the expected state of one file. Owner and
// group accept "|"-separated alternatives; remediation uses the first one.
type filePermissionsParams struct {
	Filename    string                               `arg:"filename"`
	Owner       *bindings.Separated[pattern.Pattern] `arg:"owner" sep:"|"`
	Group       *bindings.Separated[pattern.Pattern] `arg:"group" sep:"|"`
	Permissions *bindings.Mode                       `arg:"permissions"`
	Mask        *bindings.Mode                       `arg:"mask"`
}

func (p filePermissionsParams) validate() error {
	if p.Permissions != nil && p.Mask != nil && *p.Permissions&*p.Mask != 0 {
		return compliance.NewError(unix.EINVAL, "invalid permissions and mask - same bits set in both")
	}
	return nil
}

func statFile(host compliance.Host, filename string) (*unix.Stat_t, error) {
	var st unix.Stat_t
	if err := unix.Stat(host.GetSpecialFilePath(filename), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func auditFilePermissions(p filePermissionsParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	log := host.GetLogHandle()
	st, err := statFile(host, p.Filename)
	if err == unix.ENOENT {
		log.Debugf("File '%s' does not exist", p.Filename)
		return indicators.Compliantf("File '%s' does not exist", p.Filename)
	}
	if err != nil {
		return compliance.NonCompliant, compliance.ExecutionError(compliance.CodeOf(err), "stat error '%v'", err)
	}

	if p.Owner != nil {
		name, ok, err := userName(host, st.Uid)
		if err != nil {
			return compliance.NonCompliant, err
		}
		if !ok {
			return indicators.NonCompliantf("No user with uid %d", st.Uid)
		}
		if !matchesAny(p.Owner.Items, name) {
			return indicators.NonCompliantf("Invalid owner on '%s' - is '%s' should be '%s'", p.Filename, name, p.Owner)
		}
		indicators.Compliantf("%s owner matches expected value '%s'", p.Filename, p.Owner)
	}

	if p.Group != nil {
		name, ok, err := groupName(host, st.Gid)
		if err != nil {
			return compliance.NonCompliant, err
		}
		if !ok {
			return indicators.NonCompliantf("No group with gid %d", st.Gid)
		}
		if !matchesAny(p.Group.Items, name) {
			return indicators.NonCompliantf("Invalid group on '%s' - is '%s' should be '%s'", p.Filename, name, p.Group)
		}
		indicators.Compliantf("%s group matches expected value '%s'", p.Filename, p.Group)
	}

	if err := p.validate(); err != nil {
		return compliance.NonCompliant, err
	}
	mode := bindings.Mode(st.Mode & permissionBits)
	if p.Permissions != nil {
		if mode&*p.Permissions != *p.Permissions {
			return indicators.NonCompliantf("Invalid permissions on '%s' - are %s should be at least %s", p.Filename, mode, *p.Permissions)
		}
		indicators.Compliantf("%s matches expected permissions %s", p.Filename, *p.Permissions)
	}
	if p.Mask != nil {
		if mode&*p.Mask != 0 {
			return indicators.NonCompliantf("Invalid permissions on '%s' - are %s should be set to %s or a more restrictive value", p.Filename, mode, mode&^*p.Mask)
		}
		indicators.Compliantf("%s mask matches expected mask %s", p.Filename, *p.Mask)
	}

	return indicators.Compliantf("File '%s' has correct permissions and ownership", p.Filename)
}

func remediateFilePermissions(p filePermissionsParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	log := host.GetLogHandle()
	if err := p.validate(); err != nil {
		return compliance.NonCompliant, err
	}
	st, err := statFile(host, p.Filename)
	if err == unix.ENOENT {
		return indicators.NonCompliantf("File '%s' does not exist", p.Filename)
	}
	if err != nil {
		return compliance.NonCompliant, compliance.ExecutionError(compliance.CodeOf(err), "stat error '%v'", err)
	}

	uid, gid := st.Uid, st.Gid
	if p.Owner != nil {
		if p.Owner.Len() == 0 {
			return compliance.NonCompliant, compliance.NewError(unix.EINVAL, "empty list of owners provided")
		}
		name, ok, err := userName(host, st.Uid)
		if err != nil {
			return compliance.NonCompliant, err
		}
		if !ok || !matchesAny(p.Owner.Items, name) {
			first := p.Owner.Items[0].String()
			user, found, err := sysiter.LookupUser(host, first)
			if err != nil {
				return compliance.NonCompliant, err
			}
			if !found {
				return indicators.NonCompliantf("No user with name %s", first)
			}
			uid = user.UID
		}
	}
	if p.Group != nil {
		if p.Group.Len() == 0 {
			return compliance.NonCompliant, compliance.NewError(unix.EINVAL, "empty list of groups provided")
		}
		name, ok, err := groupName(host, st.Gid)
		if err != nil {
			return compliance.NonCompliant, err
		}
		if !ok || !matchesAny(p.Group.Items, name) {
			first := p.Group.Items[0].String()
			group, found, err := sysiter.LookupGroup(host, first)
			if err != nil {
				return compliance.NonCompliant, err
			}
			if !found {
				return indicators.NonCompliantf("No group with name %s", first)
			}
			gid = group.GID
		}
	}

	changed := false
	defer func() {
		if changed {
			host.GetFilesystemScanner().Invalidate()
		}
	}()

	resolved := host.GetSpecialFilePath(p.Filename)
	if uid != st.Uid || gid != st.Gid {
		log.Infof("Changing owner of '%s' from %d:%d to %d:%d", p.Filename, st.Uid, st.Gid, uid, gid)
		if err := unix.Chown(resolved, int(uid), int(gid)); err != nil {
			return compliance.NonCompliant, compliance.ExecutionError(compliance.CodeOf(err), "chown error: %v", err)
		}
		changed = true
		indicators.Compliantf("%s owner changed to %d:%d", p.Filename, uid, gid)
	}

	mode := bindings.Mode(st.Mode & permissionBits)
	wanted := mode
	if p.Permissions != nil {
		wanted |= *p.Permissions
	}
	if p.Mask != nil {
		wanted &^= *p.Mask
	}
	if wanted != mode {
		log.Infof("Changing permissions of '%s' from %s to %s", p.Filename, mode, wanted)
		if err := unix.Chmod(resolved, uint32(wanted)); err != nil {
			return compliance.NonCompliant, compliance.ExecutionError(compliance.CodeOf(err), "chmod error: %v", err)
		}
		changed = true
		indicators.Compliantf("%s permissions changed to %s", p.Filename, wanted)
	}

	return indicators.Compliantf("File '%s' has correct permissions and ownership", p.Filename)
}

// filePermissionsCollectionParams apply filePermissionsParams to every file
// under Directory whose name matches the Ext glob.
type filePermissionsCollectionParams struct {
	Directory   string                               `arg:"directory"`
	Ext         string                               `arg:"ext"`
	Recurse     bool                                 `arg:"recurse" default:"true"`
	Owner       *bindings.Separated[pattern.Pattern] `arg:"owner" sep:"|"`
	Group       *bindings.Separated[pattern.Pattern] `arg:"group" sep:"|"`
	Permissions *bindings.Mode                       `arg:"permissions"`
	Mask        *bindings.Mode                       `arg:"mask"`
}

func (p filePermissionsCollectionParams) forFile(filename string) filePermissionsParams {
	return filePermissionsParams{
		Filename:    filename,
		Owner:       p.Owner,
		Group:       p.Group,
		Permissions: p.Permissions,
		Mask:        p.Mask,
	}
}

func auditFilePermissionsCollection(p filePermissionsCollectionParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	return filePermissionsCollection(p, indicators, host, auditFilePermissions)
}

func remediateFilePermissionsCollection(p filePermissionsCollectionParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	return filePermissionsCollection(p, indicators, host, remediateFilePermissions)
}

type filePermissionsFunc func(filePermissionsParams, *compliance.IndicatorsTree, compliance.Host) (compliance.Status, error)

func filePermissionsCollection(p filePermissionsCollectionParams, indicators *compliance.IndicatorsTree, host compliance.Host, check filePermissionsFunc) (compliance.Status, error) {
	if _, err := path.Match(p.Ext, ""); err != nil {
		return compliance.NonCompliant, compliance.PatternError(p.Ext, err)
	}
	log := host.GetLogHandle()
	root := host.GetSpecialFilePath(p.Directory)
	if _, err := statFile(host, p.Directory); err == unix.ENOENT {
		return indicators.Compliantf("Directory '%s' does not exist", p.Directory)
	}

	hasFiles := false
	status, err := sysiter.Walk(root, func(_, rel string, info fs.FileInfo) (compliance.Status, error) {
		if !info.Mode().IsRegular() {
			return compliance.Compliant, nil
		}
		if !p.Recurse && strings.Contains(rel, "/") {
			return compliance.Compliant, nil
		}
		if ok, _ := path.Match(p.Ext, info.Name()); !ok {
			return compliance.Compliant, nil
		}
		hasFiles = true
		filename := filepath.Join(p.Directory, rel)
		status, err := check(p.forFile(filename), indicators, host)
		if err != nil {
			log.Errorf("Error processing permissions for '%s'", filename)
			return status, err
		}
		if status == compliance.NonCompliant {
			log.Infof("File '%s' does not match expected permissions", filename)
		}
		return status, nil
	}, true)
	if err != nil || status == compliance.NonCompliant {
		return compliance.NonCompliant, err
	}

	if hasFiles {
		return indicators.Compliantf("All matching files in '%s' match expected permissions", p.Directory)
	}
	return indicators.Compliantf("No files in '%s' match the pattern", p.Directory)
}
