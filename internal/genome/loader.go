package genome

import (
	"context"
	"fmt"

	"github.com/hyperjump/genomesearch/internal/models"
	"github.com/hyperjump/genomesearch/internal/workspace"
	"go.uber.org/zap"
)

// Dataset is the searchable content of one resolved object.
type Dataset struct {
	Info           workspace.ObjectInfo
	LinkedRef      string // immutable ref of the contig collection, if linked
	ScientificName string
	Features       []models.FeatureData
	Contigs        []models.ContigData
}

// Key returns the index key of the dataset.
func (d *Dataset) Key() string {
	return IndexKey(d.Info)
}

// IndexKey returns "<wsid>_<objid>_<version>".
func IndexKey(info workspace.ObjectInfo) string {
	return fmt.Sprintf("%d_%d_%d", info.WsID, info.ObjID, info.Version)
}

// Loader fetches objects and their linked contig collections.
type Loader struct {
	store  workspace.ObjectStore
	logger *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// NewLoader creates a loader reading from store.
func NewLoader(store workspace.ObjectStore, opts ...LoaderOption) *Loader {
	l := &Loader{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load decodes the object described by info. A Genome's linked ContigSet or
// Assembly is resolved through the path "<genome ref>;<link>" so that access
// follows the genome's permissions.
func (l *Loader) Load(ctx context.Context, info workspace.ObjectInfo) (*Dataset, error) {
	shape, err := ShapeFor(info.TypeName())
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Info: info}
	ref := info.Ref()
	link, err := l.decode(ctx, ref, shape, ds)
	if err != nil {
		return nil, err
	}

	if link != "" {
		linked, err := l.store.GetObjectInfo(ctx, []string{workspace.RefPath(ref, link)})
		if err != nil {
			return nil, fmt.Errorf("resolve %s linked from %s: %w", link, ref, err)
		}
		linkedShape, err := ShapeFor(linked[0].TypeName())
		if err != nil {
			return nil, err
		}
		if _, ok := linkedShape.(genomeShape); ok {
			return nil, fmt.Errorf("%w: %s links to another genome", ErrUnsupportedType, ref)
		}
		ds.LinkedRef = linked[0].Ref()
		if _, err := l.decode(ctx, workspace.RefPath(ref, ds.LinkedRef), linkedShape, ds); err != nil {
			return nil, err
		}
	}

	countFeatures(ds)
	l.logger.Debug("dataset loaded",
		zap.String("ref", ref),
		zap.String("type", shape.Name()),
		zap.String("linked", ds.LinkedRef),
		zap.Int("features", len(ds.Features)),
		zap.Int("contigs", len(ds.Contigs)))
	return ds, nil
}

func (l *Loader) decode(ctx context.Context, ref string, shape Shape, ds *Dataset) (string, error) {
	objs, err := l.store.GetObjectSubset(ctx, []workspace.ObjectSpec{{Ref: ref, Included: shape.Included()}})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref, err)
	}
	return shape.Decode(objs[0].Data, ds)
}

// countFeatures sets each contig's feature count from the features' global
// locations.
func countFeatures(ds *Dataset) {
	if len(ds.Contigs) == 0 {
		return
	}
	counts := make(map[string]int64)
	for _, f := range ds.Features {
		if f.GlobalLocation != nil {
			counts[f.GlobalLocation.ContigID]++
		}
	}
	for i := range ds.Contigs {
		ds.Contigs[i].FeatureCount = counts[ds.Contigs[i].ContigID]
	}
}
