package procedures

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/sysiter"
	"golang.org/x/sys/unix"
)

type noWorldWritableParams struct {
	Directory string `arg:"directory" default:"/"`
	Limit     int    `arg:"limit" default:"10"`
}

// worldWritable reports regular files writable by others, and such
// directories that lack the sticky bit.
func worldWritable(info fs.FileInfo) bool {
	mode := info.Mode()
	if mode.Perm()&0o002 == 0 {
		return false
	}
	switch {
	case mode.IsRegular():
		return true
	case mode.IsDir():
		return mode&fs.ModeSticky == 0
	}
	return false
}

// worldWritableEntry is worldWritable for a scanner entry.
func worldWritableEntry(e compliance.FileEntry) bool {
	switch e.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		return true
	case unix.S_IFDIR:
		return e.Mode&unix.S_ISVTX == 0
	}
	return false
}

// under reports whether host path p is dir or inside it.
func under(p, dir string) bool {
	dir = strings.TrimSuffix(dir, "/")
	return dir == "" || p == dir || strings.HasPrefix(p, dir+"/")
}

func auditNoWorldWritableFiles(p noWorldWritableParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	entries, err := host.GetFilesystemScanner().Find(0o002, 0)
	if err != nil {
		return compliance.NonCompliant, err
	}
	reported := 0
	for _, e := range entries {
		if !under(e.Path, p.Directory) || !worldWritableEntry(e) {
			continue
		}
		reported++
		if p.Limit <= 0 || reported <= p.Limit {
			indicators.NonCompliantf("'%s' is world writable", e.Path)
		}
	}
	if reported > 0 {
		if p.Limit > 0 && reported > p.Limit {
			indicators.NonCompliantf("%d more world writable entries not shown", reported-p.Limit)
		}
		return compliance.NonCompliant, nil
	}
	return indicators.Compliantf("No world writable files found in '%s'", p.Directory)
}

func remediateNoWorldWritableFiles(p noWorldWritableParams, indicators *compliance.IndicatorsTree, host compliance.Host) (compliance.Status, error) {
	log := host.GetLogHandle()
	root := host.GetSpecialFilePath(p.Directory)
	status, err := sysiter.Walk(root, func(path, rel string, info fs.FileInfo) (compliance.Status, error) {
		if !worldWritable(info) {
			return compliance.Compliant, nil
		}
		name := filepath.Join(p.Directory, rel)
		mode := uint32(info.Mode().Perm()&^0o002) | unixSpecialBits(info.Mode())
		log.Infof("Removing world write permission from '%s'", name)
		if err := unix.Chmod(path, mode); err != nil {
			indicators.NonCompliantf("Failed to remove world write permission from '%s': %v", name, err)
			return compliance.NonCompliant, nil
		}
		indicators.Compliantf("Removed world write permission from '%s'", name)
		return compliance.Compliant, nil
	}, false)
	host.GetFilesystemScanner().Invalidate()
	if err != nil {
		return compliance.NonCompliant, err
	}
	if status == compliance.NonCompliant {
		return compliance.NonCompliant, nil
	}
	return indicators.Compliantf("No world writable files remain in '%s'", p.Directory)
}

// unixSpecialBits converts the setuid, setgid and sticky flags of an
// fs.FileMode into their chmod bits.
func unixSpecialBits(mode fs.FileMode) uint32 {
	var bits uint32
	if mode&fs.ModeSetuid != 0 {
		bits |= unix.S_ISUID
	}
	if mode&fs.ModeSetgid != 0 {
		bits |= unix.S_ISGID
	}
	if mode&fs.ModeSticky != 0 {
		bits |= unix.S_ISVTX
	}
	return bits
}
