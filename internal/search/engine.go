// Package search implements the search operations over genome indexes:
// feature text search, region search and contig search, with a result cache.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/genomesearch/internal/config"
	"github.com/hyperjump/genomesearch/internal/index"
	"github.com/hyperjump/genomesearch/internal/indexer"
	"github.com/hyperjump/genomesearch/internal/models"
	"github.com/hyperjump/genomesearch/internal/storage"
	"github.com/hyperjump/genomesearch/internal/workspace"
	"go.uber.org/zap"
)

// Engine resolves references, ensures their indexes and answers queries.
type Engine struct {
	store     workspace.ObjectStore
	indexer   *indexer.Indexer
	storage   storage.Storage
	results   *resultCache
	config    config.SearchConfig
	diskPaths []string
	version   string
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithDiskUsagePaths sets the paths summed into Status.DiskUsageBytes.
func WithDiskUsagePaths(paths ...string) EngineOption {
	return func(e *Engine) { e.diskPaths = paths }
}

// WithVersion sets the version reported by Status.
func WithVersion(v string) EngineOption {
	return func(e *Engine) { e.version = v }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	store workspace.ObjectStore,
	ix *indexer.Indexer,
	st storage.Storage,
	cfg config.SearchConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		store:   store,
		indexer: ix,
		storage: st,
		results: newResultCache(cfg.ResultCacheSize),
		config:  cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// resolve maps ref to its current object info. It is also the read check
// for the caller in ctx.
func (e *Engine) resolve(ctx context.Context, ref string) (workspace.ObjectInfo, error) {
	infos, err := e.store.GetObjectInfo(ctx, []string{ref})
	if err != nil {
		return workspace.ObjectInfo{}, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return infos[0], nil
}

func (e *Engine) ensure(ctx context.Context, ref string) (*indexer.GenomeIndex, error) {
	info, err := e.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return e.indexer.Ensure(ctx, info)
}

// matches serves key from the result cache or runs compute and caches it.
func (e *Engine) matches(key string, hint *int64, compute func() (*index.Matches, error)) (*index.Matches, error) {
	if m, ok := e.results.get(key, hint); ok {
		return m, nil
	}
	m, err := compute()
	if err != nil {
		return nil, err
	}
	e.results.set(key, m)
	return m, nil
}

// Search runs a text query over the features of p.Ref.
func (e *Engine) Search(ctx context.Context, p *models.SearchParams) (*models.SearchResult, error) {
	startTime := time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	gi, err := e.ensure(ctx, p.Ref)
	if err != nil {
		return nil, err
	}
	m, err := e.matches(featureKey(gi.Key(), p.Query, p.SortBy.Key()), p.NumFound, func() (*index.Matches, error) {
		return gi.Features.Search(ctx, p.Query, p.SortBy)
	})
	if err != nil {
		return nil, err
	}
	limit := models.ClampLimit(p.Limit, e.config.DefaultLimit, e.config.MaxLimit)
	features, err := e.storage.GetFeatures(ctx, gi.Key(), page(m.Positions, p.Start, limit))
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	e.logger.Debug("search",
		zap.String("ref", p.Ref),
		zap.String("key", gi.Key()),
		zap.String("query", p.Query),
		zap.Int64("num_found", m.Total),
		zap.Duration("took", time.Since(startTime)))
	return &models.SearchResult{
		Query:    p.Query,
		Start:    p.Start,
		Features: featurePtrs(features),
		NumFound: m.Total,
	}, nil
}

// SearchRegion returns the features overlapping a window of one contig.
// An empty contig id matches nothing and reports no contig length.
func (e *Engine) SearchRegion(ctx context.Context, p *models.SearchRegionParams) (*models.SearchRegionResult, error) {
	startTime := time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := &models.SearchRegionResult{
		QueryContigID:     p.QueryContigID,
		QueryRegionStart:  p.QueryRegionStart,
		QueryRegionLength: p.QueryRegionLength,
		PageStart:         p.PageStart,
		Features:          []*models.FeatureData{},
	}
	if p.QueryContigID == "" {
		if _, err := e.resolve(ctx, p.Ref); err != nil {
			return nil, err
		}
		return out, nil
	}

	gi, err := e.ensure(ctx, p.Ref)
	if err != nil {
		return nil, err
	}
	length, ok, err := e.storage.GetContigLength(ctx, gi.Key(), p.QueryContigID)
	if err != nil {
		return nil, fmt.Errorf("load contig: %w", err)
	}
	if ok {
		out.ContigLength = &length
	}
	key := regionKey(gi.Key(), p.QueryContigID, p.QueryRegionStart, p.QueryRegionLength)
	m, err := e.matches(key, p.NumFound, func() (*index.Matches, error) {
		return gi.Features.SearchRegion(ctx, p.QueryContigID, p.QueryRegionStart, p.QueryRegionLength)
	})
	if err != nil {
		return nil, err
	}
	limit := models.ClampLimit(p.PageLimit, e.config.DefaultLimit, e.config.MaxLimit)
	features, err := e.storage.GetFeatures(ctx, gi.Key(), page(m.Positions, p.PageStart, limit))
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	out.Features = featurePtrs(features)
	out.NumFound = m.Total
	e.logger.Debug("search region",
		zap.String("ref", p.Ref),
		zap.String("contig", p.QueryContigID),
		zap.Int64("num_found", m.Total),
		zap.Duration("took", time.Since(startTime)))
	return out, nil
}

// SearchContigs runs a text query over the contigs of p.Ref.
func (e *Engine) SearchContigs(ctx context.Context, p *models.SearchContigsParams) (*models.SearchContigsResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	gi, err := e.ensure(ctx, p.Ref)
	if err != nil {
		return nil, err
	}
	m, err := e.matches(contigKey(gi.Key(), p.Query, p.SortBy.Key()), p.NumFound, func() (*index.Matches, error) {
		return gi.Contigs.Search(ctx, p.Query, p.SortBy)
	})
	if err != nil {
		return nil, err
	}
	limit := models.ClampLimit(p.Limit, e.config.DefaultLimit, e.config.MaxLimit)
	contigs, err := e.storage.GetContigs(ctx, gi.Key(), page(m.Positions, p.Start, limit))
	if err != nil {
		return nil, fmt.Errorf("load contigs: %w", err)
	}
	out := make([]*models.ContigData, len(contigs))
	for i := range contigs {
		out[i] = &contigs[i]
	}
	return &models.SearchContigsResult{
		Query:    p.Query,
		Start:    p.Start,
		Contigs:  out,
		NumFound: m.Total,
	}, nil
}

// Warm builds the indexes of refs ahead of the first query.
func (e *Engine) Warm(ctx context.Context, refs []string) (int, error) {
	return e.indexer.Warm(ctx, refs)
}

// ListIndexes returns catalogue entries, most recent first.
func (e *Engine) ListIndexes(ctx context.Context, offset, limit int) ([]*models.IndexRecord, error) {
	return e.storage.ListIndexRecords(ctx, offset, limit)
}

// DropIndex deletes an index and its cached results.
func (e *Engine) DropIndex(ctx context.Context, key string) error {
	if err := e.indexer.Drop(ctx, key); err != nil {
		return err
	}
	n := e.results.purge(key)
	e.logger.Debug("result cache purged", zap.String("key", key), zap.Int("entries", n))
	return nil
}

// Status describes the service state.
type Status struct {
	State              string `json:"state"`
	Version            string `json:"version,omitempty"`
	Indexes            int64  `json:"indexes"`
	OpenIndexes        int    `json:"open_indexes"`
	Builds             int64  `json:"builds"`
	Features           int64  `json:"features"`
	ResultCacheEntries int    `json:"result_cache_entries"`
	ResultCacheHits    int64  `json:"result_cache_hits"`
	ResultCacheMisses  int64  `json:"result_cache_misses"`
	DiskUsageBytes     int64  `json:"disk_usage_bytes"`
}

// Status reports catalogue and cache statistics.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	indexes, err := e.storage.CountIndexes(ctx)
	if err != nil {
		return nil, err
	}
	features, err := e.storage.CountFeatures(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := storage.DiskUsageBytes(e.diskPaths...)
	if err != nil {
		e.logger.Warn("disk usage failed", zap.Error(err))
	}
	return &Status{
		State:              "OK",
		Version:            e.version,
		Indexes:            indexes,
		OpenIndexes:        e.indexer.OpenCount(),
		Builds:             e.indexer.Builds(),
		Features:           features,
		ResultCacheEntries: e.results.len(),
		ResultCacheHits:    e.results.hits.Load(),
		ResultCacheMisses:  e.results.misses.Load(),
		DiskUsageBytes:     usage,
	}, nil
}

// page returns positions[start : start+limit], clipped to the slice.
func page(positions []int64, start, limit int) []int64 {
	if start >= len(positions) {
		return nil
	}
	end := start + limit
	if end > len(positions) {
		end = len(positions)
	}
	return positions[start:end]
}

func featurePtrs(features []models.FeatureData) []*models.FeatureData {
	out := make([]*models.FeatureData, len(features))
	for i := range features {
		out[i] = &features[i]
	}
	return out
}
