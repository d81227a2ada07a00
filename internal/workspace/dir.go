package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ObjectExt is the file extension of object files in a DirStore root.
const ObjectExt = ".json"

// objectFile is the on-disk envelope of one object.
type objectFile struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DirStore is a MemoryStore loaded from a directory tree laid out as
// <root>/<workspace>/<name>.json. Reload and Remove keep it in sync with the
// files; the watcher package calls them on change.
type DirStore struct {
	*MemoryStore
	root   string
	logger *zap.Logger
}

// DirStoreOption configures a DirStore.
type DirStoreOption func(*DirStore)

// WithDirLogger sets the logger used for load events.
func WithDirLogger(l *zap.Logger) DirStoreOption {
	return func(d *DirStore) { d.logger = l }
}

// NewDirStore creates the root if needed and loads every object file below it.
// Files are loaded in lexical order so object ids are stable across restarts.
func NewDirStore(root string, opts ...DirStoreOption) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object directory %s: %w", abs, err)
	}
	d := &DirStore{MemoryStore: NewMemoryStore(), root: abs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != abs {
				if _, werr := d.ensureWorkspace(entry.Name()); werr != nil {
					return werr
				}
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ObjectExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	for _, f := range files {
		if err := d.Reload(f); err != nil {
			d.logger.Warn("skip object file", zap.String("path", f), zap.Error(err))
		}
	}
	return d, nil
}

// Root returns the absolute root directory.
func (d *DirStore) Root() string {
	return d.root
}

// Reload saves the content of path as a new version of its object.
func (d *DirStore) Reload(path string) error {
	ws, name, err := d.locate(path)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file objectFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if file.Type == "" {
		return fmt.Errorf("%s: missing object type", path)
	}
	if len(file.Data) == 0 {
		file.Data = json.RawMessage("{}")
	}
	if _, err := d.ensureWorkspace(ws); err != nil {
		return err
	}
	infos, err := d.SaveObjects(context.Background(), ws, []SaveObject{{Type: file.Type, Name: name, Data: file.Data}})
	if err != nil {
		return err
	}
	d.logger.Debug("object loaded", zap.String("path", path), zap.String("ref", infos[0].Ref()), zap.String("type", file.Type))
	return nil
}

// Remove deletes the object stored at path.
func (d *DirStore) Remove(path string) error {
	ws, name, err := d.locate(path)
	if err != nil {
		return err
	}
	if err := d.DeleteObject(ws, name); err != nil {
		return err
	}
	d.logger.Debug("object removed", zap.String("path", path))
	return nil
}

// locate maps a file path to its workspace and object name.
func (d *DirStore) locate(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return "", "", err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || parts[0] == ".." {
		return "", "", fmt.Errorf("%s is not <workspace>/<name>%s under %s", path, ObjectExt, d.root)
	}
	return parts[0], strings.TrimSuffix(parts[1], filepath.Ext(parts[1])), nil
}

func (d *DirStore) ensureWorkspace(name string) (*WorkspaceInfo, error) {
	info, err := d.CreateWorkspace(context.Background(), name)
	if errors.Is(err, ErrExists) {
		return nil, nil
	}
	return info, err
}
