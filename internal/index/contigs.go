package index

import (
	"context"
	"strconv"
	"strings"

	"github.com/hyperjump/genomesearch/internal/models"
)

var contigKinds = map[string]fieldKind{
	"contig_id":     stringField,
	"length":        numberField,
	"feature_count": numberField,
}

// ContigIndex indexes the contigs of one genome or assembly.
type ContigIndex struct {
	*bleveIndex
}

// CreateContigIndex builds a new contig index at path ("" for memory only).
func CreateContigIndex(path string, contigs []models.ContigData) (*ContigIndex, error) {
	b, err := create(path, newMapping([]string{"contig_id"}, []string{"length", "feature_count"}))
	if err != nil {
		return nil, err
	}
	err = b.add(func(yield func(string, map[string]interface{}) error) error {
		for _, c := range contigs {
			doc := map[string]interface{}{
				posField:        float64(c.Position),
				"contig_id":     c.ContigID,
				"length":        float64(c.Length),
				"feature_count": float64(c.FeatureCount),
				textField:       strings.Join([]string{c.ContigID, c.Name, c.Description}, " "),
			}
			if err := yield(strconv.FormatInt(c.Position, 10), doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &ContigIndex{b}, nil
}

// OpenContigIndex opens a contig index built earlier at path.
func OpenContigIndex(path string) (*ContigIndex, error) {
	b, err := open(path)
	if err != nil {
		return nil, err
	}
	return &ContigIndex{b}, nil
}

// Search returns the contigs matching query, ordered by spec.
func (ci *ContigIndex) Search(ctx context.Context, query string, spec models.SortSpec) (*Matches, error) {
	return ci.search(ctx, textQuery(strings.TrimSpace(query), "contig_id"), sortOrder(spec, contigKinds))
}
