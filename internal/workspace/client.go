package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/genomesearch/internal/auth"
	"github.com/hyperjump/genomesearch/internal/jsonrpc"
)

// Client talks to the platform workspace service over JSON-RPC. Each call
// uses the token carried by its context.
type Client struct {
	rpc *jsonrpc.Client
}

// NewClient creates a workspace client for url.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{rpc: jsonrpc.NewClient(url, &http.Client{Timeout: timeout})}
}

// GetObjectInfo implements ObjectStore.
func (c *Client) GetObjectInfo(ctx context.Context, refs []string) ([]ObjectInfo, error) {
	objects := make([]ObjectSpec, len(refs))
	for i, r := range refs {
		objects[i] = ObjectSpec{Ref: r}
	}
	params := map[string]interface{}{"objects": objects, "includeMetadata": 0}
	var result []struct {
		Infos []ObjectInfo `json:"infos"`
	}
	if err := c.call(ctx, "Workspace.get_object_info3", params, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 || len(result[0].Infos) != len(refs) {
		return nil, fmt.Errorf("get_object_info3 returned an unexpected result for %d refs", len(refs))
	}
	return result[0].Infos, nil
}

// GetObjectSubset implements ObjectStore.
func (c *Client) GetObjectSubset(ctx context.Context, specs []ObjectSpec) ([]ObjectData, error) {
	var result [][]ObjectData
	if err := c.call(ctx, "Workspace.get_object_subset", specs, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 || len(result[0]) != len(specs) {
		return nil, fmt.Errorf("get_object_subset returned an unexpected result for %d specs", len(specs))
	}
	return result[0], nil
}

// SaveObjects implements ObjectStore. workspace is a name or a numeric id.
func (c *Client) SaveObjects(ctx context.Context, workspace string, objects []SaveObject) ([]ObjectInfo, error) {
	params := map[string]interface{}{"workspace": workspace, "objects": objects}
	var result [][]ObjectInfo
	if err := c.call(ctx, "Workspace.save_objects", params, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, errors.New("save_objects returned no result")
	}
	return result[0], nil
}

// CreateWorkspace implements ObjectStore.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (*WorkspaceInfo, error) {
	var result []WorkspaceInfo
	if err := c.call(ctx, "Workspace.create_workspace", map[string]string{"workspace": name}, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, errors.New("create_workspace returned no result")
	}
	return &result[0], nil
}

// DeleteWorkspace implements ObjectStore.
func (c *Client) DeleteWorkspace(ctx context.Context, name string) error {
	return c.call(ctx, "Workspace.delete_workspace", map[string]string{"workspace": name}, nil)
}

func (c *Client) call(ctx context.Context, method string, param interface{}, result interface{}) error {
	err := c.rpc.Call(ctx, auth.TokenFromContext(ctx), method, []interface{}{param}, result)
	return classify(err)
}

// classify maps service and transport errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, jsonrpc.ErrTransport) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message)
		switch {
		case strings.Contains(msg, "does not exist"),
			strings.Contains(msg, "no object with"),
			strings.Contains(msg, "no workspace with"),
			strings.Contains(msg, "is deleted"):
			return fmt.Errorf("%w: %s", ErrNotFound, rpcErr.Message)
		case strings.Contains(msg, "already exists"):
			return fmt.Errorf("%w: %s", ErrExists, rpcErr.Message)
		}
	}
	return err
}
