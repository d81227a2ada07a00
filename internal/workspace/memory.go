package workspace

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/genomesearch/internal/auth"
)

// MemoryStore is an in-process ObjectStore. It keeps every saved version and
// resolves names, numeric ids and reference paths the way the workspace
// service does. It performs no permission checks.
type MemoryStore struct {
	mu       sync.RWMutex
	byName   map[string]*memWorkspace
	byID     map[int64]*memWorkspace
	nextWsID int64
	now      func() time.Time
}

type memWorkspace struct {
	id        int64
	name      string
	owner     string
	objByName map[string]*memObject
	objByID   map[int64]*memObject
	nextObjID int64
}

type memObject struct {
	id       int64
	name     string
	versions []ObjectData // versions[i] holds version i+1
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName:   make(map[string]*memWorkspace),
		byID:     make(map[int64]*memWorkspace),
		nextWsID: 1,
		now:      time.Now,
	}
}

// CreateWorkspace implements ObjectStore.
func (m *MemoryStore) CreateWorkspace(ctx context.Context, name string) (*WorkspaceInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("workspace name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	ws := m.createLocked(name, auth.UserFromContext(ctx))
	return &WorkspaceInfo{ID: ws.id, Name: ws.name, Owner: ws.owner}, nil
}

func (m *MemoryStore) createLocked(name, owner string) *memWorkspace {
	ws := &memWorkspace{
		id:        m.nextWsID,
		name:      name,
		owner:     owner,
		objByName: make(map[string]*memObject),
		objByID:   make(map[int64]*memObject),
		nextObjID: 1,
	}
	m.nextWsID++
	m.byName[name] = ws
	m.byID[ws.id] = ws
	return ws
}

// DeleteWorkspace implements ObjectStore.
func (m *MemoryStore) DeleteWorkspace(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, err := m.workspaceLocked(name)
	if err != nil {
		return err
	}
	delete(m.byName, ws.name)
	delete(m.byID, ws.id)
	return nil
}

// SaveObjects implements ObjectStore. Saving an existing name adds a version.
func (m *MemoryStore) SaveObjects(ctx context.Context, workspace string, objects []SaveObject) ([]ObjectInfo, error) {
	encoded := make([][]byte, len(objects))
	for i, obj := range objects {
		if obj.Name == "" || obj.Type == "" {
			return nil, fmt.Errorf("object %d: name and type are required", i)
		}
		data, err := json.Marshal(obj.Data)
		if err != nil {
			return nil, fmt.Errorf("encode object %s: %w", obj.Name, err)
		}
		encoded[i] = data
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ws, err := m.workspaceLocked(workspace)
	if err != nil {
		return nil, err
	}
	user := auth.UserFromContext(ctx)
	infos := make([]ObjectInfo, len(objects))
	for i, obj := range objects {
		o, ok := ws.objByName[obj.Name]
		if !ok {
			o = &memObject{id: ws.nextObjID, name: obj.Name}
			ws.nextObjID++
			ws.objByName[o.name] = o
			ws.objByID[o.id] = o
		}
		sum := md5.Sum(encoded[i])
		info := ObjectInfo{
			ObjID:     o.id,
			Name:      o.name,
			Type:      obj.Type,
			SaveDate:  m.now().UTC().Format("2006-01-02T15:04:05+0000"),
			Version:   int64(len(o.versions) + 1),
			SavedBy:   user,
			WsID:      ws.id,
			Workspace: ws.name,
			Checksum:  hex.EncodeToString(sum[:]),
			Size:      int64(len(encoded[i])),
		}
		o.versions = append(o.versions, ObjectData{Data: encoded[i], Info: info})
		infos[i] = info
	}
	return infos, nil
}

// DeleteObject removes an object and all of its versions.
func (m *MemoryStore) DeleteObject(workspace, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, err := m.workspaceLocked(workspace)
	if err != nil {
		return err
	}
	o, ok := ws.objByName[name]
	if !ok {
		return fmt.Errorf("%w: no object with name %s in workspace %s", ErrNotFound, name, ws.name)
	}
	delete(ws.objByName, o.name)
	delete(ws.objByID, o.id)
	return nil
}

// GetObjectInfo implements ObjectStore.
func (m *MemoryStore) GetObjectInfo(ctx context.Context, refs []string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]ObjectInfo, len(refs))
	for i, ref := range refs {
		obj, err := m.resolvePathLocked(ref)
		if err != nil {
			return nil, err
		}
		infos[i] = obj.Info
	}
	return infos, nil
}

// GetObjectSubset implements ObjectStore.
func (m *MemoryStore) GetObjectSubset(ctx context.Context, specs []ObjectSpec) ([]ObjectData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ObjectData, len(specs))
	for i, spec := range specs {
		obj, err := m.resolvePathLocked(spec.Ref)
		if err != nil {
			return nil, err
		}
		data, err := Subset(obj.Data, spec.Included)
		if err != nil {
			return nil, fmt.Errorf("subset of %s: %w", spec.Ref, err)
		}
		out[i] = ObjectData{Data: data, Info: obj.Info}
	}
	return out, nil
}

// resolvePathLocked resolves every element of a reference path and returns
// the last one.
func (m *MemoryStore) resolvePathLocked(path string) (ObjectData, error) {
	var target ObjectData
	parts := strings.Split(path, ";")
	for _, part := range parts {
		obj, err := m.resolveLocked(strings.TrimSpace(part))
		if err != nil {
			return ObjectData{}, err
		}
		target = obj
	}
	return target, nil
}

func (m *MemoryStore) resolveLocked(ref string) (ObjectData, error) {
	parts := strings.Split(ref, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return ObjectData{}, fmt.Errorf("%w: illegal reference %q", ErrNotFound, ref)
	}
	ws, err := m.workspaceLocked(parts[0])
	if err != nil {
		return ObjectData{}, err
	}
	o, ok := ws.objByName[parts[1]]
	if !ok {
		if id, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			o, ok = ws.objByID[id]
		}
	}
	if !ok {
		return ObjectData{}, fmt.Errorf("%w: no object with id %s exists in workspace %d", ErrNotFound, parts[1], ws.id)
	}
	if len(parts) == 2 {
		return o.versions[len(o.versions)-1], nil
	}
	ver, err := strconv.Atoi(parts[2])
	if err != nil || ver < 1 || ver > len(o.versions) {
		return ObjectData{}, fmt.Errorf("%w: no object with id %d (name %s) and version %s exists in workspace %d",
			ErrNotFound, o.id, o.name, parts[2], ws.id)
	}
	return o.versions[ver-1], nil
}

func (m *MemoryStore) workspaceLocked(nameOrID string) (*memWorkspace, error) {
	if ws, ok := m.byName[nameOrID]; ok {
		return ws, nil
	}
	if id, err := strconv.ParseInt(nameOrID, 10, 64); err == nil {
		if ws, ok := m.byID[id]; ok {
			return ws, nil
		}
	}
	return nil, fmt.Errorf("%w: no workspace with name %s exists", ErrNotFound, nameOrID)
}
