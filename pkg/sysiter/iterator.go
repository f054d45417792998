package sysiter

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

// One enumeration per database may be open in the process at a time.
var (
	userCursor  sync.Mutex
	groupCursor sync.Mutex
)

// Iterator walks a colon-separated database. It holds the process-wide
// cursor of its database until the sequence ends or Close is called, and it
// cannot be restarted.
type Iterator[T any] struct {
	lock    *sync.Mutex
	file    *os.File
	scanner *bufio.Scanner
	path    string
	fields  int
	parse   func([]string) (T, error)

	line    int
	current T
	err     error
	closed  bool
}

func open[T any](host compliance.Host, lock *sync.Mutex, db, path string, fields int, parse func([]string) (T, error)) (*Iterator[T], error) {
	if !lock.TryLock() {
		return nil, compliance.Errorf(unix.EBUSY, "%s database enumeration already in progress", db)
	}
	resolved := host.GetSpecialFilePath(path)
	f, err := os.Open(resolved)
	if err != nil {
		lock.Unlock()
		return nil, compliance.ExecutionError(compliance.CodeOf(err), "failed to open %s: %v", resolved, err)
	}
	return &Iterator[T]{
		lock:    lock,
		file:    f,
		scanner: bufio.NewScanner(f),
		path:    resolved,
		fields:  fields,
		parse:   parse,
	}, nil
}

// OpenUsers starts enumerating the user database.
func OpenUsers(host compliance.Host) (*Iterator[PasswdEntry], error) {
	return open(host, &userCursor, "user", PasswdPath, 7, parsePasswd)
}

// OpenGroups starts enumerating the group database.
func OpenGroups(host compliance.Host) (*Iterator[GroupEntry], error) {
	return open(host, &groupCursor, "group", GroupPath, 4, parseGroup)
}

// Next advances to the next entry. It returns false at the end of the
// sequence or on error; either way the cursor is released.
func (it *Iterator[T]) Next() bool {
	if it.closed {
		return false
	}
	for it.scanner.Scan() {
		it.line++
		text := strings.TrimSpace(it.scanner.Text())
		if text == "" || text[0] == '#' || text[0] == '+' || text[0] == '-' {
			continue
		}
		parts := strings.Split(text, ":")
		if len(parts) != it.fields {
			it.fail(compliance.Errorf(unix.EINVAL, "%s:%d: expected %d fields, got %d", it.path, it.line, it.fields, len(parts)))
			return false
		}
		entry, err := it.parse(parts)
		if err != nil {
			it.fail(compliance.Errorf(unix.EINVAL, "%s:%d: %v", it.path, it.line, err))
			return false
		}
		it.current = entry
		return true
	}
	if err := it.scanner.Err(); err != nil {
		it.fail(compliance.ExecutionError(compliance.CodeOf(err), "failed to read %s: %v", it.path, err))
		return false
	}
	it.Close()
	return false
}

func (it *Iterator[T]) fail(err error) {
	it.err = err
	it.Close()
}

// Entry returns the entry produced by the last successful Next.
func (it *Iterator[T]) Entry() T {
	return it.current
}

// Err returns the error that ended the sequence, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Close releases the cursor. It is safe to call more than once.
func (it *Iterator[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	err := it.file.Close()
	it.lock.Unlock()
	return err
}

// ForEachUser calls fn for every user. fn returning an error stops the walk.
func ForEachUser(host compliance.Host, fn func(PasswdEntry) error) error {
	it, err := OpenUsers(host)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		if err := fn(it.Entry()); err != nil {
			return err
		}
	}
	return it.Err()
}

// ForEachGroup calls fn for every group. fn returning an error stops the walk.
func ForEachGroup(host compliance.Host, fn func(GroupEntry) error) error {
	it, err := OpenGroups(host)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		if err := fn(it.Entry()); err != nil {
			return err
		}
	}
	return it.Err()
}

// LookupUser finds a user by name.
func LookupUser(host compliance.Host, name string) (PasswdEntry, bool, error) {
	var found PasswdEntry
	ok := false
	err := ForEachUser(host, func(e PasswdEntry) error {
		if !ok && e.Name == name {
			found, ok = e, true
		}
		return nil
	})
	return found, ok, err
}

// LookupGroup finds a group by name.
func LookupGroup(host compliance.Host, name string) (GroupEntry, bool, error) {
	var found GroupEntry
	ok := false
	err := ForEachGroup(host, func(e GroupEntry) error {
		if !ok && e.Name == name {
			found, ok = e, true
		}
		return nil
	})
	return found, ok, err
}
