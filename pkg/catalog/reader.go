package catalog

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format selects the catalog syntax.
type Format int

const (
	FormatAuto Format = iota
	FormatYAML
	FormatMOF
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatMOF:
		return "mof"
	}
	return "auto"
}

// ParseFormat accepts "auto", "yaml", "yml" and "mof".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "mof":
		return FormatMOF, nil
	}
	return FormatAuto, fmt.Errorf("unknown catalog format %q", s)
}

// Resolve turns FormatAuto into a concrete format using the file name.
func (f Format) Resolve(path string) Format {
	if f != FormatAuto {
		return f
	}
	if strings.EqualFold(filepath.Ext(path), ".mof") {
		return FormatMOF
	}
	return FormatYAML
}

// Reader yields resources from a catalog stream one entry at a time.
type Reader struct {
	scanner *bufio.Scanner
	format  Format
	entry   int
	done    bool
}

// NewReader reads entries of the given format from r. FormatAuto is read as
// YAML.
func NewReader(r io.Reader, format Format) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if format == FormatAuto {
		format = FormatYAML
	}
	return &Reader{scanner: s, format: format}
}

// ParseNext returns the next resource. At a clean end of stream it returns
// (nil, nil). A malformed entry yields a parse error for that entry only;
// the following call continues with the next entry.
func (r *Reader) ParseNext() (*Resource, error) {
	if r.done {
		return nil, nil
	}
	if r.format == FormatMOF {
		return r.nextMOF()
	}
	return r.nextYAML()
}

// ReadAll drains the reader, collecting resources and per-entry errors.
func (r *Reader) ReadAll() ([]*Resource, []error) {
	var resources []*Resource
	var errs []error
	for {
		res, err := r.ParseNext()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res == nil {
			return resources, errs
		}
		resources = append(resources, res)
	}
}
