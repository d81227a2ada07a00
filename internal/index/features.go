package index

import (
	"context"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/genomesearch/internal/models"
)

var featureKinds = map[string]fieldKind{
	"feature_id":   stringField,
	"feature_type": stringField,
	"contig_id":    stringField,
	"start":        numberField,
	"length":       numberField,
}

// FeatureIndex indexes the features of one genome.
type FeatureIndex struct {
	*bleveIndex
}

// CreateFeatureIndex builds a new feature index at path ("" for memory only).
func CreateFeatureIndex(path string, features []models.FeatureData) (*FeatureIndex, error) {
	b, err := create(path, newMapping(
		[]string{"feature_id", "feature_type", "contig_id", "alias"},
		[]string{"start", "end", "length"},
	))
	if err != nil {
		return nil, err
	}
	err = b.add(func(yield func(string, map[string]interface{}) error) error {
		for _, f := range features {
			if err := yield(strconv.FormatInt(f.FeatureIdx, 10), featureDoc(f)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &FeatureIndex{b}, nil
}

// OpenFeatureIndex opens a feature index built earlier at path.
func OpenFeatureIndex(path string) (*FeatureIndex, error) {
	b, err := open(path)
	if err != nil {
		return nil, err
	}
	return &FeatureIndex{b}, nil
}

// featureDoc flattens a feature. Features without a location carry no
// contig_id, start, end or length, so they sort last on those fields.
func featureDoc(f models.FeatureData) map[string]interface{} {
	doc := map[string]interface{}{
		posField:       float64(f.FeatureIdx),
		"feature_id":   f.FeatureID,
		"feature_type": f.FeatureType,
		textField:      featureText(f),
	}
	if len(f.Aliases) > 0 {
		aliases := make([]string, 0, len(f.Aliases))
		for a := range f.Aliases {
			aliases = append(aliases, a)
		}
		doc["alias"] = aliases
	}
	if g := f.GlobalLocation; g != nil {
		doc["contig_id"] = g.ContigID
		doc["start"] = float64(g.Start)
		doc["end"] = float64(g.Start + g.Length)
		doc["length"] = float64(g.Length)
	}
	return doc
}

func featureText(f models.FeatureData) string {
	parts := []string{f.FeatureID, f.FeatureType, f.Function}
	for alias, sources := range f.Aliases {
		parts = append(parts, alias)
		parts = append(parts, sources...)
	}
	for id, name := range f.OntologyTerms {
		parts = append(parts, id, name)
	}
	return strings.Join(parts, " ")
}

// Search returns the features matching query, ordered by spec.
func (fi *FeatureIndex) Search(ctx context.Context, query string, spec models.SortSpec) (*Matches, error) {
	return fi.search(ctx, textQuery(strings.TrimSpace(query), "feature_id", "alias"), sortOrder(spec, featureKinds))
}

// SearchRegion returns the features on contigID overlapping the half-open
// window [start, start+length), ordered by start then position.
func (fi *FeatureIndex) SearchRegion(ctx context.Context, contigID string, start, length int64) (*Matches, error) {
	contig := bleve.NewTermQuery(contigID)
	contig.SetField("contig_id")

	startsBefore := bleve.NewNumericRangeInclusiveQuery(nil, float(start+length), nil, boolPtr(false))
	startsBefore.SetField("start")
	endsAfter := bleve.NewNumericRangeInclusiveQuery(float(start), nil, boolPtr(false), nil)
	endsAfter.SetField("end")

	q := bleve.NewConjunctionQuery([]blevequery.Query{contig, startsBefore, endsAfter}...)
	order := search.SortOrder{
		&search.SortField{Field: "start", Type: search.SortFieldAsNumber, Missing: search.SortFieldMissingLast},
		&search.SortField{Field: posField, Type: search.SortFieldAsNumber, Missing: search.SortFieldMissingLast},
	}
	return fi.search(ctx, q, order)
}
