package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// catalogExts are the file extensions picked up from a catalog directory.
var catalogExts = map[string]bool{".yaml": true, ".yml": true, ".mof": true}

// IsCatalogFile reports whether name is read when its directory is opened
// as a catalog.
func IsCatalogFile(name string) bool {
	return catalogExts[strings.ToLower(filepath.Ext(name))]
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open returns a reader over the catalog at path. A directory is read as the
// concatenation of its catalog files in name order; they must all resolve
// to the same format. The returned closer releases every opened file.
func Open(path string, format Format) (*Reader, io.Closer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		return NewReader(f, format.Resolve(path)), f, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, nil, err
	}

	var files multiCloser
	var parts []io.Reader
	resolved := format
	for _, entry := range entries {
		if entry.IsDir() || !IsCatalogFile(entry.Name()) {
			continue
		}
		name := filepath.Join(path, entry.Name())
		fileFormat := format.Resolve(name)
		if resolved == FormatAuto {
			resolved = fileFormat
		} else if fileFormat != resolved {
			files.Close()
			return nil, nil, fmt.Errorf("catalog directory %s mixes %s and %s files", path, resolved, fileFormat)
		}

		f, err := os.Open(name)
		if err != nil {
			files.Close()
			return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		files = append(files, f)
		if len(parts) > 0 {
			parts = append(parts, strings.NewReader(separator(resolved)))
		}
		parts = append(parts, f)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no catalog files in %s", path)
	}
	return NewReader(io.MultiReader(parts...), resolved), files, nil
}

func separator(f Format) string {
	if f == FormatMOF {
		return "\n"
	}
	return "\n---\n"
}
