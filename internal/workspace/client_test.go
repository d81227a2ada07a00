package workspace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/genomesearch/internal/auth"
	"github.com/hyperjump/genomesearch/internal/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRPCServer(t *testing.T, handle func(req jsonrpc.Request) (interface{}, *jsonrpc.Error)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "tok", r.Header.Get("Authorization"))
		result, rpcErr := handle(req)
		resp := jsonrpc.Response{Version: jsonrpc.Version, ID: req.ID, Error: rpcErr}
		if rpcErr != nil {
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			b, _ := json.Marshal(result)
			resp.Result = b
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetObjectInfo(t *testing.T) {
	srv := newRPCServer(t, func(req jsonrpc.Request) (interface{}, *jsonrpc.Error) {
		assert.Equal(t, "Workspace.get_object_info3", req.Method)
		var p struct {
			Objects []ObjectSpec `json:"objects"`
		}
		assert.NoError(t, req.FirstParam(&p))
		assert.Equal(t, "ws/g", p.Objects[0].Ref)
		info := json.RawMessage(`[3,"g","KBaseGenomes.Genome-8.2","2020",4,"u",7,"ws","c",10,{}]`)
		return []interface{}{map[string]interface{}{"infos": []json.RawMessage{info}}}, nil
	})
	c := NewClient(srv.URL, time.Second)
	ctx := auth.WithToken(context.Background(), "tok")
	infos, err := c.GetObjectInfo(ctx, []string{"ws/g"})
	require.NoError(t, err)
	assert.Equal(t, "7/3/4", infos[0].Ref())
}

func TestClient_GetObjectSubset(t *testing.T) {
	srv := newRPCServer(t, func(req jsonrpc.Request) (interface{}, *jsonrpc.Error) {
		assert.Equal(t, "Workspace.get_object_subset", req.Method)
		var specs []ObjectSpec
		assert.NoError(t, req.FirstParam(&specs))
		assert.Equal(t, []string{"features/[*]/id"}, specs[0].Included)
		item := map[string]interface{}{
			"data": map[string]string{"id": "g"},
			"info": json.RawMessage(`[3,"g","T-1.0","2020",4,"u",7,"ws","c",10,null]`),
		}
		return []interface{}{[]interface{}{item}}, nil
	})
	c := NewClient(srv.URL, time.Second)
	ctx := auth.WithToken(context.Background(), "tok")
	got, err := c.GetObjectSubset(ctx, []ObjectSpec{{Ref: "7/3/4", Included: []string{"features/[*]/id"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"g"}`, string(got[0].Data))
	assert.Equal(t, "T", got[0].Info.TypeName())
}

func TestClient_ErrorClassification(t *testing.T) {
	srv := newRPCServer(t, func(req jsonrpc.Request) (interface{}, *jsonrpc.Error) {
		switch req.Method {
		case "Workspace.create_workspace":
			return nil, jsonrpc.NewError(jsonrpc.CodeServerError, "A workspace with name ws already exists")
		case "Workspace.delete_workspace":
			return nil, jsonrpc.NewError(jsonrpc.CodeServerError, "No workspace with name ws exists")
		}
		return nil, jsonrpc.NewError(jsonrpc.CodeServerError, "Object g cannot be accessed: Object g does not exist")
	})
	c := NewClient(srv.URL, time.Second)
	ctx := auth.WithToken(context.Background(), "tok")

	_, err := c.GetObjectInfo(ctx, []string{"ws/g"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.CreateWorkspace(ctx, "ws")
	assert.ErrorIs(t, err, ErrExists)
	assert.ErrorIs(t, c.DeleteWorkspace(ctx, "ws"), ErrNotFound)

	down := NewClient("http://127.0.0.1:1", time.Second)
	_, err = down.GetObjectInfo(ctx, []string{"ws/g"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
