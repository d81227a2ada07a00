package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

const subsetPrefix = "subset:"

// CachedStore wraps an ObjectStore and keeps subset results for immutable
// references in BadgerDB. Object info always goes to the wrapped store.
type CachedStore struct {
	ObjectStore
	db     *badger.DB
	logger *zap.Logger
}

// CachedStoreOption configures a CachedStore.
type CachedStoreOption func(*CachedStore)

// WithCacheLogger sets the logger for cache events and badger's own output.
func WithCacheLogger(l *zap.Logger) CachedStoreOption {
	return func(c *CachedStore) { c.logger = l }
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...interface{})   { l.logger.Errorf(msg, items...) }
func (l *badgerLogger) Warningf(msg string, items ...interface{}) { l.logger.Warnf(msg, items...) }
func (l *badgerLogger) Infof(msg string, items ...interface{})    { l.logger.Debugf(msg, items...) }
func (l *badgerLogger) Debugf(msg string, items ...interface{})   { l.logger.Debugf(msg, items...) }

// NewCachedStore opens (or creates) the cache directory at path and wraps
// inner. A path of ":memory:" keeps the cache in memory.
func NewCachedStore(inner ObjectStore, path string, opts ...CachedStoreOption) (*CachedStore, error) {
	c := &CachedStore{ObjectStore: inner, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	var bopts badger.Options
	if path == ":memory:" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create object cache directory: %w", err)
		}
		bopts = badger.DefaultOptions(path)
	}
	bopts.Logger = &badgerLogger{logger: c.logger.Sugar()}
	bopts.Compression = options.Snappy

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open object cache: %w", err)
	}
	c.db = db
	return c, nil
}

// GetObjectSubset serves immutable specs from the cache and fetches the rest
// from the wrapped store in one call.
func (c *CachedStore) GetObjectSubset(ctx context.Context, specs []ObjectSpec) ([]ObjectData, error) {
	out := make([]ObjectData, len(specs))
	var (
		missing []ObjectSpec
		slots   []int
	)
	err := c.db.View(func(txn *badger.Txn) error {
		for i, spec := range specs {
			if !IsImmutableRef(spec.Ref) {
				missing = append(missing, spec)
				slots = append(slots, i)
				continue
			}
			item, err := txn.Get(subsetKey(spec))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missing = append(missing, spec)
				slots = append(slots, i)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &out[i])
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read object cache: %w", err)
	}
	if len(missing) == 0 {
		c.logger.Debug("object cache hit", zap.Int("specs", len(specs)))
		return out, nil
	}

	fetched, err := c.ObjectStore.GetObjectSubset(ctx, missing)
	if err != nil {
		return nil, err
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		for n, data := range fetched {
			out[slots[n]] = data
			if !IsImmutableRef(missing[n].Ref) {
				continue
			}
			val, err := json.Marshal(data)
			if err != nil {
				return err
			}
			if err := txn.Set(subsetKey(missing[n]), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The fetched data is still valid; only the cache write failed.
		c.logger.Warn("object cache write failed", zap.Error(err))
	}
	return out, nil
}

// Close closes the cache database.
func (c *CachedStore) Close() error {
	return c.db.Close()
}

func subsetKey(spec ObjectSpec) []byte {
	included := append([]string(nil), spec.Included...)
	sort.Strings(included)
	return []byte(subsetPrefix + spec.Ref + "|" + strings.Join(included, ","))
}
