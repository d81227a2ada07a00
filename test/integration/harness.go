// Package integration runs the service operations against a workspace:
// an in-process store loaded with fixture genomes by default, or a live
// deployment when KB_AUTH_TOKEN and GENOMESEARCH_WORKSPACE_URL are set.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/genomesearch/internal/auth"
	"github.com/hyperjump/genomesearch/internal/config"
	"github.com/hyperjump/genomesearch/internal/indexer"
	"github.com/hyperjump/genomesearch/internal/search"
	"github.com/hyperjump/genomesearch/internal/storage"
	"github.com/hyperjump/genomesearch/internal/workspace"
	"github.com/hyperjump/genomesearch/test/e2e"
)

// Environment variables enabling the live variant.
const (
	TokenEnv        = "KB_AUTH_TOKEN"
	WorkspaceURLEnv = "GENOMESEARCH_WORKSPACE_URL"
)

// LiveExpectations are the counts of the platform's public example data.
func LiveExpectations() e2e.Expectations {
	exp := e2e.FixtureExpectations()
	exp.DraftContigs = 25680
	exp.AssemblyRef = "10882/13/1"
	return exp
}

// Harness holds an engine over one object store and the scratch workspace
// created for the run.
type Harness struct {
	Store   workspace.ObjectStore
	Engine  *search.Engine
	Indexer *indexer.Indexer
	Expect  e2e.Expectations
	Live    bool

	ctx    context.Context
	wsName string
}

// NewHarness builds a fixture harness, or a live one when live is true and
// the environment provides a token and workspace URL. A live harness
// without them skips the test.
func NewHarness(t *testing.T, live bool) *Harness {
	t.Helper()
	ctx := context.Background()
	h := &Harness{Live: live}

	if live {
		token, url := os.Getenv(TokenEnv), os.Getenv(WorkspaceURLEnv)
		if token == "" || url == "" {
			t.Skipf("%s and %s are required for the live variant", TokenEnv, WorkspaceURLEnv)
		}
		ctx = auth.WithToken(ctx, token)
		h.Store = workspace.NewClient(url, 5*time.Minute)
		h.Expect = LiveExpectations()
	} else {
		mem := workspace.NewMemoryStore()
		if err := e2e.LoadPublic(ctx, mem); err != nil {
			t.Fatal(err)
		}
		h.Store = mem
		h.Expect = e2e.FixtureExpectations()
	}
	h.ctx = ctx

	dir := t.TempDir()
	st, err := storage.NewSQLiteStorage(filepath.Join(dir, "catalogue.db"))
	if err != nil {
		t.Fatal(err)
	}
	h.Indexer = indexer.NewIndexer(h.Store, st, filepath.Join(dir, "indices"))
	h.Engine = search.NewEngine(h.Store, h.Indexer, st, config.SearchConfig{DefaultLimit: 10, MaxLimit: 100, ResultCacheSize: 256})
	t.Cleanup(func() {
		h.deleteWorkspace(t)
		_ = h.Indexer.Close()
		_ = st.Close()
	})
	return h
}

// Context carries the caller's token for live runs.
func (h *Harness) Context() context.Context {
	return h.ctx
}

// Workspace returns the scratch workspace, creating it on first use.
func (h *Harness) Workspace(t *testing.T) string {
	t.Helper()
	if h.wsName != "" {
		return h.wsName
	}
	name := fmt.Sprintf("test_GenomeSearchUtil_%d", time.Now().UnixMilli())
	if _, err := h.Store.CreateWorkspace(h.ctx, name); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	h.wsName = name
	return name
}

func (h *Harness) deleteWorkspace(t *testing.T) {
	if h.wsName == "" {
		return
	}
	if err := h.Store.DeleteWorkspace(h.ctx, h.wsName); err != nil {
		t.Logf("delete workspace %s: %v", h.wsName, err)
		return
	}
	t.Logf("test workspace %s was deleted", h.wsName)
}
