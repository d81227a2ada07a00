// Package workspace provides access to the versioned object store that holds
// genomes and assemblies: a JSON-RPC client for the platform workspace service,
// an in-process store, a directory-backed store, and a caching wrapper.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound indicates that a workspace or object reference does not resolve.
	ErrNotFound = errors.New("object not found")

	// ErrUnavailable indicates that the object store could not be reached.
	ErrUnavailable = errors.New("object store unavailable")

	// ErrExists indicates that a workspace with the requested name already exists.
	ErrExists = errors.New("workspace already exists")
)

// ObjectStore is the subset of the workspace API the service depends on.
type ObjectStore interface {
	// GetObjectInfo resolves refs to object infos. It doubles as the read
	// permission check for the caller in ctx.
	GetObjectInfo(ctx context.Context, refs []string) ([]ObjectInfo, error)
	// GetObjectSubset fetches the parts of objects selected by each spec.
	GetObjectSubset(ctx context.Context, specs []ObjectSpec) ([]ObjectData, error)
	SaveObjects(ctx context.Context, workspace string, objects []SaveObject) ([]ObjectInfo, error)
	CreateWorkspace(ctx context.Context, name string) (*WorkspaceInfo, error)
	DeleteWorkspace(ctx context.Context, name string) error
}

// ObjectSpec selects an object and, optionally, the paths to include.
// Paths use "/" separators, "[*]" for every list element and "*" for every map value.
type ObjectSpec struct {
	Ref      string   `json:"ref"`
	Included []string `json:"included,omitempty"`
}

// ObjectData is a fetched object (or subset) with its info.
type ObjectData struct {
	Data json.RawMessage `json:"data"`
	Info ObjectInfo      `json:"info"`
}

// SaveObject is one object to save. Data is marshaled to JSON.
type SaveObject struct {
	Type string      `json:"type"`
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

// WorkspaceInfo identifies a workspace.
type WorkspaceInfo struct {
	ID    int64
	Name  string
	Owner string
}

// UnmarshalJSON decodes the workspace info tuple.
func (w *WorkspaceInfo) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) < 3 {
		return fmt.Errorf("workspace info tuple has %d elements", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &w.ID); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &w.Name); err != nil {
		return err
	}
	return json.Unmarshal(tuple[2], &w.Owner)
}

// ObjectInfo describes one version of an object. On the wire it is the
// 11-element object info tuple.
type ObjectInfo struct {
	ObjID     int64
	Name      string
	Type      string
	SaveDate  string
	Version   int64
	SavedBy   string
	WsID      int64
	Workspace string
	Checksum  string
	Size      int64
	Meta      map[string]string
}

// Ref returns the immutable "wsid/objid/version" reference.
func (i ObjectInfo) Ref() string {
	return fmt.Sprintf("%d/%d/%d", i.WsID, i.ObjID, i.Version)
}

// TypeName returns the type without its version suffix,
// e.g. "KBaseGenomes.Genome" for "KBaseGenomes.Genome-8.2".
func (i ObjectInfo) TypeName() string {
	if idx := strings.LastIndex(i.Type, "-"); idx > 0 {
		return i.Type[:idx]
	}
	return i.Type
}

// MarshalJSON encodes the info tuple.
func (i ObjectInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		i.ObjID, i.Name, i.Type, i.SaveDate, i.Version, i.SavedBy,
		i.WsID, i.Workspace, i.Checksum, i.Size, i.Meta,
	})
}

// UnmarshalJSON decodes the info tuple.
func (i *ObjectInfo) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) < 10 {
		return fmt.Errorf("object info tuple has %d elements", len(tuple))
	}
	targets := []interface{}{
		&i.ObjID, &i.Name, &i.Type, &i.SaveDate, &i.Version, &i.SavedBy,
		&i.WsID, &i.Workspace, &i.Checksum, &i.Size,
	}
	for n, target := range targets {
		if err := json.Unmarshal(tuple[n], target); err != nil {
			return fmt.Errorf("object info element %d: %w", n, err)
		}
	}
	if len(tuple) > 10 && string(tuple[10]) != "null" {
		if err := json.Unmarshal(tuple[10], &i.Meta); err != nil {
			return fmt.Errorf("object info metadata: %w", err)
		}
	}
	return nil
}

var numericRef = regexp.MustCompile(`^\d+/\d+/\d+$`)

// IsImmutableRef reports whether every element of a reference path is a
// fully numeric "wsid/objid/version" reference.
func IsImmutableRef(ref string) bool {
	for _, part := range strings.Split(ref, ";") {
		if !numericRef.MatchString(strings.TrimSpace(part)) {
			return false
		}
	}
	return ref != ""
}

// RefPath joins references into a reference path, e.g. "1/2/3;4/5/6".
func RefPath(refs ...string) string {
	return strings.Join(refs, ";")
}
