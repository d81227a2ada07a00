package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/genomesearch/internal/auth"
	"github.com/hyperjump/genomesearch/internal/config"
	"github.com/hyperjump/genomesearch/internal/indexer"
	"github.com/hyperjump/genomesearch/internal/jsonrpc"
	"github.com/hyperjump/genomesearch/internal/search"
	"github.com/hyperjump/genomesearch/internal/storage"
	"github.com/hyperjump/genomesearch/internal/workspace"
	"go.uber.org/zap"
)

type stubResolver struct {
	users map[string]string
}

func (s *stubResolver) GetUser(_ context.Context, token string) (string, error) {
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return "", auth.ErrInvalidToken
}

func newTestServer(t *testing.T, users UserResolver) *Server {
	t.Helper()
	ctx := context.Background()
	store := workspace.NewMemoryStore()
	if _, err := store.CreateWorkspace(ctx, "ws"); err != nil {
		t.Fatal(err)
	}
	_, err := store.SaveObjects(ctx, "ws", []workspace.SaveObject{{
		Type: "KBaseGenomes.Genome-8.2",
		Name: "g",
		Data: map[string]interface{}{
			"contig_ids":     []string{"c1", "c2"},
			"contig_lengths": []int{5000, 800},
			"features": []interface{}{
				map[string]interface{}{"id": "f1", "type": "CDS", "function": "alcohol dehydrogenase", "location": []interface{}{[]interface{}{"c1", 100, "+", 300}}},
				map[string]interface{}{"id": "f2", "type": "CDS", "function": "kinase", "location": []interface{}{[]interface{}{"c1", 1000, "+", 300}}},
				map[string]interface{}{"id": "f3", "type": "gene", "function": "dehydrogenase subunit", "location": []interface{}{[]interface{}{"c2", 50, "-", 40}}},
			},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	st, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	ix := indexer.NewIndexer(store, st, "")
	t.Cleanup(func() {
		_ = ix.Close()
		_ = st.Close()
	})
	engine := search.NewEngine(store, ix, st, config.SearchConfig{DefaultLimit: 10, MaxLimit: 100, ResultCacheSize: 10})
	return NewServer(engine, users, &config.ServerConfig{Port: 8080}, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func rpcRequest(method string, params ...interface{}) jsonrpc.Request {
	req := jsonrpc.Request{Version: jsonrpc.Version, Method: method, ID: "42"}
	for _, p := range params {
		raw, _ := json.Marshal(p)
		req.Params = append(req.Params, raw)
	}
	return req
}

func decodeRPC(t *testing.T, w *httptest.ResponseRecorder) jsonrpc.Response {
	t.Helper()
	var resp jsonrpc.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode rpc response: %v", err)
	}
	return resp
}

func TestHandleRPC_Search(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w := do(t, h, http.MethodPost, "/rpc", rpcRequest(ServiceName+".search", map[string]interface{}{
		"ref":     "ws/g",
		"query":   "dehydrogenase",
		"sort_by": [][]interface{}{{"feature_id", 0}},
	}), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	resp := decodeRPC(t, w)
	if resp.Error != nil || resp.ID != "42" || resp.Version != jsonrpc.Version {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	var results []struct {
		NumFound int64 `json:"num_found"`
		Features []struct {
			FeatureID string `json:"feature_id"`
		} `json:"features"`
	}
	if err := json.Unmarshal(resp.Result, &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("result list length: got %d, want 1", len(results))
	}
	if results[0].NumFound != 2 {
		t.Errorf("num_found: got %d, want 2", results[0].NumFound)
	}
	if len(results[0].Features) != 2 || results[0].Features[0].FeatureID != "f3" {
		t.Errorf("features: got %+v, want f3 first", results[0].Features)
	}
}

func TestHandleRPC_SearchRegionAndContigs(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w := do(t, h, http.MethodPost, "/", rpcRequest(ServiceName+".search_region", map[string]interface{}{
		"ref": "ws/g", "query_contig_id": "c1", "query_region_start": 900, "query_region_length": 200,
	}), nil)
	resp := decodeRPC(t, w)
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error)
	}
	var region []struct {
		NumFound     int64  `json:"num_found"`
		ContigLength *int64 `json:"contig_length"`
	}
	_ = json.Unmarshal(resp.Result, &region)
	if region[0].NumFound != 1 || region[0].ContigLength == nil || *region[0].ContigLength != 5000 {
		t.Errorf("region: got %+v", region[0])
	}

	w = do(t, h, http.MethodPost, "/", rpcRequest(ServiceName+".search_contigs", map[string]interface{}{
		"ref": "ws/g", "query": "", "sort_by": [][]interface{}{{"length", false}},
	}), nil)
	resp = decodeRPC(t, w)
	var contigs []struct {
		NumFound int64 `json:"num_found"`
		Contigs  []struct {
			ContigID     string `json:"contig_id"`
			FeatureCount int64  `json:"feature_count"`
		} `json:"contigs"`
	}
	_ = json.Unmarshal(resp.Result, &contigs)
	if contigs[0].NumFound != 2 || contigs[0].Contigs[0].ContigID != "c1" || contigs[0].Contigs[0].FeatureCount != 2 {
		t.Errorf("contigs: got %+v", contigs[0])
	}
}

func TestHandleRPC_Errors(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	cases := []struct {
		name string
		body interface{}
		code int
	}{
		{"parse error", "{not json", jsonrpc.CodeParseError},
		{"unknown method", rpcRequest(ServiceName + ".nope"), jsonrpc.CodeMethodNotFound},
		{"missing params", rpcRequest(ServiceName + ".search"), jsonrpc.CodeInvalidParams},
		{"missing ref", rpcRequest(ServiceName+".search", map[string]interface{}{"query": "x"}), jsonrpc.CodeInvalidParams},
		{"bad sort field", rpcRequest(ServiceName+".search", map[string]interface{}{"ref": "ws/g", "sort_by": [][]interface{}{{"score", true}}}), jsonrpc.CodeInvalidParams},
		{"missing object", rpcRequest(ServiceName+".search", map[string]interface{}{"ref": "ws/none"}), jsonrpc.CodeServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/rpc", tc.body, nil)
			if w.Code != http.StatusInternalServerError {
				t.Errorf("status: got %d, want 500", w.Code)
			}
			resp := decodeRPC(t, w)
			if resp.Error == nil {
				t.Fatal("expected an error object")
			}
			if resp.Error.Code != tc.code || resp.Error.Name != "JSONRPCError" {
				t.Errorf("error: got %+v, want code %d", resp.Error, tc.code)
			}
		})
	}
}

func TestHandleRPC_Status(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	do(t, h, http.MethodPost, "/rpc", rpcRequest(ServiceName+".search", map[string]interface{}{"ref": "ws/g"}), nil)
	resp := decodeRPC(t, do(t, h, http.MethodPost, "/rpc", rpcRequest(ServiceName+".status"), nil))
	var status []search.Status
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		t.Fatal(err)
	}
	if status[0].State != "OK" || status[0].Indexes != 1 || status[0].Features != 3 {
		t.Errorf("status: got %+v", status[0])
	}
}

func TestHandleSearch(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{"ref": "ws/g", "query": "kinase"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		NumFound int64 `json:"num_found"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.NumFound != 1 {
		t.Errorf("num_found: got %d, want 1", out.NumFound)
	}
}

func TestHandleSearch_StatusCodes(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	cases := []struct {
		path string
		body interface{}
		want int
	}{
		{"/api/v1/search", "{", http.StatusBadRequest},
		{"/api/v1/search", map[string]interface{}{"query": "x"}, http.StatusBadRequest},
		{"/api/v1/search", map[string]interface{}{"ref": "ws/none"}, http.StatusNotFound},
		{"/api/v1/search_region", map[string]interface{}{"ref": "ws/g", "query_region_length": -1}, http.StatusBadRequest},
		{"/api/v1/search_region", map[string]interface{}{"ref": "ws/g", "query_contig_id": "c2", "query_region_length": 100}, http.StatusOK},
		{"/api/v1/search_contigs", map[string]interface{}{"ref": "ws/g", "sort_by": [][]interface{}{{"start", true}}}, http.StatusBadRequest},
		{"/api/v1/search_contigs", map[string]interface{}{"ref": "ws/g"}, http.StatusOK},
	}
	for _, tc := range cases {
		w := do(t, h, http.MethodPost, tc.path, tc.body, nil)
		if w.Code != tc.want {
			t.Errorf("%s %v: got %d, want %d (body %s)", tc.path, tc.body, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestHandleIndexes(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{"ref": "ws/g"}, nil)

	w := do(t, h, http.MethodGet, "/api/v1/indexes", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Indexes []struct {
			Key          string `json:"key"`
			Ref          string `json:"ref"`
			FeatureCount int64  `json:"feature_count"`
		} `json:"indexes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Indexes) != 1 || out.Indexes[0].Key != "1_1_1" || out.Indexes[0].FeatureCount != 3 {
		t.Fatalf("indexes: got %+v", out.Indexes)
	}

	if w := do(t, h, http.MethodDelete, "/api/v1/indexes/1_1_1", nil, nil); w.Code != http.StatusOK {
		t.Errorf("delete: got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/api/v1/indexes/1_1_1", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
}

func TestHandleWarm(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/indexes/warm", map[string]interface{}{"refs": []string{"ws/g", "ws/missing"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("warm: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Ready     int    `json:"ready"`
		Requested int    `json:"requested"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Ready != 1 || out.Requested != 2 || out.Error == "" {
		t.Errorf("warm: got %+v", out)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/indexes/warm", map[string]interface{}{}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty warm: got %d, want 400", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w := do(t, h, http.MethodGet, "/api/v1/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out search.Status
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.State != "OK" || out.Indexes != 0 {
		t.Errorf("status: got %+v", out)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(t, &stubResolver{}).Handler()
	w := do(t, h, http.MethodGet, "/health", nil, map[string]string{"Authorization": "bad"})
	if w.Code != http.StatusOK {
		t.Errorf("health should not need a token, got %d", w.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	h := newTestServer(t, &stubResolver{users: map[string]string{"good": "alice"}}).Handler()
	body := map[string]interface{}{"ref": "ws/g"}

	if w := do(t, h, http.MethodPost, "/api/v1/search", body, nil); w.Code != http.StatusOK {
		t.Errorf("anonymous: got %d", w.Code)
	}
	for _, header := range []string{"good", "OAuth good", "Bearer good"} {
		if w := do(t, h, http.MethodPost, "/api/v1/search", body, map[string]string{"Authorization": header}); w.Code != http.StatusOK {
			t.Errorf("%q: got %d", header, w.Code)
		}
	}
	if w := do(t, h, http.MethodPost, "/api/v1/search", body, map[string]string{"Authorization": "bad"}); w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d, want 401", w.Code)
	}

	w := do(t, h, http.MethodPost, "/rpc", rpcRequest(ServiceName+".search", body), map[string]string{"Authorization": "bad"})
	resp := decodeRPC(t, w)
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeAuthError {
		t.Errorf("rpc invalid token: got %+v", resp.Error)
	}
}

func TestTokenFromHeader(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"abc":          "abc",
		"OAuth abc":    "abc",
		"oauth abc":    "abc",
		"Bearer  abc ": "abc",
		"Basic abc":    "Basic abc",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", header)
		if got := tokenFromHeader(r); got != want {
			t.Errorf("%q: got %q, want %q", header, got, want)
		}
	}
}
