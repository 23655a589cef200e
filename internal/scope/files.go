package scope

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const fileSuffix = ".json"

// FileName is the scope file path for kind, group and process id. An empty
// group or a negative pid is left out of the name.
func FileName(dir string, kind Kind, group string, pid int) string {
	name := string(kind) + "_scopes"
	if group != "" {
		name += "_" + group
	}
	if pid >= 0 {
		name += fmt.Sprintf("_%d", pid)
	}
	return filepath.Join(dir, name+fileSuffix)
}

// Write stores every file under dir.
func Write(dir string, files []File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create scope dir %s", dir)
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.Scopes, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode scopes")
		}
		path := FileName(dir, f.Kind, f.Group, f.PID)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return nil
}

// Load reads the scopes of one process.
func Load(dir string, kind Kind, group string, pid int) ([]Scope, error) {
	path := FileName(dir, kind, group, pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scope file %s", path)
	}
	var scopes []Scope
	if err := json.Unmarshal(data, &scopes); err != nil {
		return nil, errors.Wrapf(err, "decode scope file %s", path)
	}
	for i, s := range scopes {
		if err := s.Validate(); err != nil {
			return nil, errors.Wrapf(err, "%s scope %d", path, i)
		}
	}
	return scopes, nil
}

// Clear removes the scope files of kind, or of every kind when kind is
// empty.
func Clear(dir string, kind Kind) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "list scope dir %s", dir)
	}
	prefix := string(kind)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) || !strings.Contains(name, "_scopes") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix+"_scopes") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return errors.Wrapf(err, "remove %s", name)
		}
	}
	return nil
}

// Listing describes one scope file on disk.
type Listing struct {
	Name   string `json:"name"`
	Scopes int    `json:"scopes"`
	Keys   int    `json:"keys"`
}

// List summarizes every scope file under dir.
func List(dir string) ([]Listing, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*_scopes*"+fileSuffix))
	if err != nil {
		return nil, errors.Wrap(err, "glob scope files")
	}
	out := make([]Listing, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", p)
		}
		var scopes []Scope
		if err := json.Unmarshal(data, &scopes); err != nil {
			return nil, errors.Wrapf(err, "decode %s", p)
		}
		l := Listing{Name: filepath.Base(p), Scopes: len(scopes)}
		for _, s := range scopes {
			l.Keys += s.Len()
		}
		out = append(out, l)
	}
	return out, nil
}
