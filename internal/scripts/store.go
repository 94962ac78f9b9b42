// Package scripts resolves named SQL script references ("Category/Name") to script
// text. Scripts shipped with the binary are embedded; operators may layer a
// directory of their own scripts over them.
package scripts

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/steveyegge/inspector/internal/data"
)

//go:embed sql
var embedded embed.FS

// Store is a data.ScriptLoader backed by a file system.
type Store struct {
	fsys fs.FS
}

var _ data.ScriptLoader = (*Store)(nil)

// FS returns a store reading scripts from fsys.
func FS(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// Embedded returns the store of scripts compiled into the binary.
func Embedded() *Store {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		// fs.Sub only fails for invalid paths; "sql" is a literal.
		panic(err)
	}
	return FS(sub)
}

// Dir returns a store reading scripts below dir.
func Dir(dir string) *Store {
	return FS(os.DirFS(dir))
}

// Normalize turns a reference into the file path it is stored under.
// "Setup\SitesOverview" and "Setup/SitesOverview.sql" both become
// "Setup/SitesOverview.sql". ok is false for references that escape the store.
func Normalize(ref string) (name string, ok bool) {
	name = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", false
	}
	if path.Ext(name) == "" {
		name += ".sql"
	}
	if !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

// LoadScript implements data.ScriptLoader.
func (s *Store) LoadScript(ref string) (string, error) {
	name, ok := Normalize(ref)
	if !ok {
		return "", &data.ScriptNotFoundError{Ref: ref, Err: errors.New("invalid script reference")}
	}
	b, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return "", &data.ScriptNotFoundError{Ref: ref, Err: err}
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", &data.ScriptNotFoundError{Ref: ref, Err: errors.New("script is empty")}
	}
	return text, nil
}

// Refs lists every script reference in the store, without the .sql extension.
func (s *Store) Refs() ([]string, error) {
	var refs []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".sql" {
			return nil
		}
		refs = append(refs, strings.TrimSuffix(p, ".sql"))
		return nil
	})
	return refs, err
}

// Layered consults each loader in order and returns the first script found.
type Layered []data.ScriptLoader

// LoadScript implements data.ScriptLoader.
func (l Layered) LoadScript(ref string) (string, error) {
	var last error
	for _, loader := range l {
		if loader == nil {
			continue
		}
		text, err := loader.LoadScript(ref)
		if err == nil {
			return text, nil
		}
		last = err
	}
	var notFound *data.ScriptNotFoundError
	if last == nil || !errors.As(last, &notFound) {
		return "", &data.ScriptNotFoundError{Ref: ref, Err: last}
	}
	return "", last
}

// Default returns the embedded scripts, overlaid by dir when dir is set.
func Default(dir string) data.ScriptLoader {
	if dir == "" {
		return Embedded()
	}
	return Layered{Dir(dir), Embedded()}
}
