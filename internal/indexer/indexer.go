// Package indexer builds, reopens and drops the per-genome indexes: Bleve for
// search and SQLite for the records and the catalogue.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/genomesearch/internal/genome"
	"github.com/hyperjump/genomesearch/internal/index"
	"github.com/hyperjump/genomesearch/internal/models"
	"github.com/hyperjump/genomesearch/internal/storage"
	"github.com/hyperjump/genomesearch/internal/workspace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// GenomeIndex is the open index of one immutable object version.
type GenomeIndex struct {
	Record   *models.IndexRecord
	Features *index.FeatureIndex
	Contigs  *index.ContigIndex
}

// Key returns the index key.
func (g *GenomeIndex) Key() string {
	return g.Record.Key
}

// Close closes both Bleve indexes.
func (g *GenomeIndex) Close() error {
	return errors.Join(g.Features.Close(), g.Contigs.Close())
}

// Indexer owns the open genome indexes. Each key is built at most once per
// process; concurrent callers share the build.
type Indexer struct {
	store    workspace.ObjectStore
	loader   *genome.Loader
	storage  storage.Storage
	dir      string // "" keeps Bleve in memory
	poolSize int
	logger   *zap.Logger

	mu     sync.RWMutex
	open   map[string]*GenomeIndex
	group  singleflight.Group
	builds atomic.Int64
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build, restore and drop events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// WithWarmPoolSize sets the number of concurrent builds during Warm.
func WithWarmPoolSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.poolSize = n
		}
	}
}

// NewIndexer creates an indexer reading objects from store and persisting
// to st. Bleve indexes live under dir/<key>/, or in memory when dir is "".
func NewIndexer(store workspace.ObjectStore, st storage.Storage, dir string, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		store:    store,
		storage:  st,
		dir:      dir,
		poolSize: 1,
		logger:   zap.NewNop(),
		open:     make(map[string]*GenomeIndex),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.loader = genome.NewLoader(store, genome.WithLogger(ix.logger))
	return ix
}

// Ensure returns the open index for info, building or restoring it if
// needed. Cancelling ctx abandons the wait but not the shared build.
func (ix *Indexer) Ensure(ctx context.Context, info workspace.ObjectInfo) (*GenomeIndex, error) {
	key := genome.IndexKey(info)
	if gi := ix.lookup(key); gi != nil {
		return gi, nil
	}
	buildCtx := context.WithoutCancel(ctx)
	ch := ix.group.DoChan(key, func() (interface{}, error) {
		return ix.build(buildCtx, info, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*GenomeIndex), nil
	}
}

// Lookup returns the open index for key, if any.
func (ix *Indexer) Lookup(key string) (*GenomeIndex, bool) {
	gi := ix.lookup(key)
	return gi, gi != nil
}

func (ix *Indexer) lookup(key string) *GenomeIndex {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.open[key]
}

func (ix *Indexer) register(gi *GenomeIndex) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.open[gi.Key()] = gi
}

func (ix *Indexer) build(ctx context.Context, info workspace.ObjectInfo, key string) (*GenomeIndex, error) {
	if gi := ix.lookup(key); gi != nil {
		return gi, nil
	}

	rec, err := ix.storage.GetIndexRecord(ctx, key)
	switch {
	case err == nil:
		gi, err := ix.restore(ctx, rec)
		if err == nil {
			ix.register(gi)
			return gi, nil
		}
		ix.logger.Warn("index restore failed, rebuilding from object store", zap.String("key", key), zap.Error(err))
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}

	ds, err := ix.loader.Load(ctx, info)
	if err != nil {
		return nil, err
	}
	gi, err := ix.createIndexes(key, ds.Features, ds.Contigs)
	if err != nil {
		return nil, err
	}
	// The catalogue row is written last: a row without Bleve directories is
	// restorable, Bleve directories without a row are rebuilt.
	rec = &models.IndexRecord{
		Key:            key,
		Ref:            info.Ref(),
		Name:           info.Name,
		Type:           info.TypeName(),
		ScientificName: ds.ScientificName,
	}
	if err := ix.storage.SaveIndex(ctx, rec, ds.Features, ds.Contigs); err != nil {
		_ = gi.Close()
		return nil, fmt.Errorf("failed to store index %s: %w", key, err)
	}
	gi.Record = rec
	ix.register(gi)
	ix.builds.Add(1)
	ix.logger.Info("index built",
		zap.String("key", key),
		zap.String("type", rec.Type),
		zap.Int64("features", rec.FeatureCount),
		zap.Int64("contigs", rec.ContigCount))
	return gi, nil
}

// restore reopens persisted Bleve indexes, or rebuilds them from SQLite when
// the directories are missing.
func (ix *Indexer) restore(ctx context.Context, rec *models.IndexRecord) (*GenomeIndex, error) {
	featurePath, contigPath := ix.paths(rec.Key)
	if index.Exists(featurePath) && index.Exists(contigPath) {
		fi, err := index.OpenFeatureIndex(featurePath)
		if err != nil {
			return nil, err
		}
		ci, err := index.OpenContigIndex(contigPath)
		if err != nil {
			_ = fi.Close()
			return nil, err
		}
		ix.logger.Debug("index reopened", zap.String("key", rec.Key))
		return &GenomeIndex{Record: rec, Features: fi, Contigs: ci}, nil
	}

	features, err := ix.storage.AllFeatures(ctx, rec.Key)
	if err != nil {
		return nil, err
	}
	contigs, err := ix.storage.AllContigs(ctx, rec.Key)
	if err != nil {
		return nil, err
	}
	gi, err := ix.createIndexes(rec.Key, features, contigs)
	if err != nil {
		return nil, err
	}
	gi.Record = rec
	ix.logger.Debug("index rebuilt from catalogue", zap.String("key", rec.Key), zap.Int("features", len(features)))
	return gi, nil
}

// createIndexes builds the feature and contig indexes concurrently.
func (ix *Indexer) createIndexes(key string, features []models.FeatureData, contigs []models.ContigData) (*GenomeIndex, error) {
	featurePath, contigPath := ix.paths(key)
	var (
		g  errgroup.Group
		fi *index.FeatureIndex
		ci *index.ContigIndex
	)
	g.Go(func() error {
		var err error
		fi, err = index.CreateFeatureIndex(featurePath, features)
		return err
	})
	g.Go(func() error {
		var err error
		ci, err = index.CreateContigIndex(contigPath, contigs)
		return err
	})
	if err := g.Wait(); err != nil {
		if fi != nil {
			_ = fi.Close()
		}
		if ci != nil {
			_ = ci.Close()
		}
		return nil, fmt.Errorf("failed to build index %s: %w", key, err)
	}
	return &GenomeIndex{Features: fi, Contigs: ci}, nil
}

func (ix *Indexer) paths(key string) (string, string) {
	if ix.dir == "" {
		return "", ""
	}
	return filepath.Join(ix.dir, key, "features"), filepath.Join(ix.dir, key, "contigs")
}

// Drop closes and deletes the index of key. It returns storage.ErrNotFound
// when the key is neither open nor catalogued.
func (ix *Indexer) Drop(ctx context.Context, key string) error {
	ix.mu.Lock()
	gi, wasOpen := ix.open[key]
	delete(ix.open, key)
	ix.mu.Unlock()

	if wasOpen {
		if err := gi.Close(); err != nil {
			ix.logger.Warn("failed to close index", zap.String("key", key), zap.Error(err))
		}
	} else if _, err := ix.storage.GetIndexRecord(ctx, key); err != nil {
		return err
	}
	if err := ix.storage.DeleteIndex(ctx, key); err != nil {
		return err
	}
	if ix.dir != "" {
		if err := os.RemoveAll(filepath.Join(ix.dir, key)); err != nil {
			return fmt.Errorf("failed to remove index directory: %w", err)
		}
	}
	ix.logger.Info("index dropped", zap.String("key", key))
	return nil
}

// Builds returns the number of indexes built from the object store.
func (ix *Indexer) Builds() int64 {
	return ix.builds.Load()
}

// OpenCount returns the number of open indexes.
func (ix *Indexer) OpenCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.open)
}

// Close closes every open index.
func (ix *Indexer) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var errs []error
	for key, gi := range ix.open {
		errs = append(errs, gi.Close())
		delete(ix.open, key)
	}
	return errors.Join(errs...)
}
