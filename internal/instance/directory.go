package instance

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Directory is the instance's application directory on disk. Relative names are
// resolved below Root; nothing is read until a method asks for it.
type Directory struct {
	root string
}

// Root returns the absolute directory path.
func (d Directory) Root() string {
	return d.root
}

// Join returns the absolute path of a name below the root.
func (d Directory) Join(elem ...string) string {
	return filepath.Join(append([]string{d.root}, elem...)...)
}

// Stat describes a file below the root.
func (d Directory) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(d.Join(name))
}

// Exists reports whether name is present. Errors other than absence are returned.
func (d Directory) Exists(name string) (bool, error) {
	_, err := d.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadFile reads a file below the root.
func (d Directory) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(d.Join(name))
}

// Glob returns the absolute paths below the root matching pattern.
func (d Directory) Glob(pattern string) ([]string, error) {
	return filepath.Glob(d.Join(pattern))
}

// Find looks up a direct child of the root by case-insensitive name. Application
// files such as Web.config are not consistently cased across deployments.
func (d Directory) Find(name string) (string, bool, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Name() == name {
			return d.Join(e.Name()), true, nil
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			return d.Join(e.Name()), true, nil
		}
	}
	return "", false, nil
}
