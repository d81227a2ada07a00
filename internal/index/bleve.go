// Package index provides the Bleve indexes built per genome: one over
// features and one over contigs. Document ids are the record positions in the
// source object, so hits map straight back to stored rows.
package index

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/genomesearch/internal/models"
)

const (
	batchSize = 1000
	posField  = "pos"
	textField = "text"
)

// Matches is an ordered list of record positions. Total equals len(Positions).
type Matches struct {
	Positions []int64
	Total     int64
}

type fieldKind int

const (
	stringField fieldKind = iota
	numberField
)

// bleveIndex is the storage shared by the feature and contig indexes.
type bleveIndex struct {
	index bleve.Index
	path  string
}

// create builds a fresh index at path, replacing whatever is there. An empty
// path keeps the index in memory.
func create(path string, im mapping.IndexMapping) (*bleveIndex, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &bleveIndex{index: idx}, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to clear Bleve index %s: %w", path, err)
	}
	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &bleveIndex{index: idx, path: path}, nil
}

// open opens an index previously built at path.
func open(path string) (*bleveIndex, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return &bleveIndex{index: idx, path: path}, nil
}

// Exists reports whether an index directory is present at path.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (b *bleveIndex) add(docs func(yield func(id string, doc map[string]interface{}) error) error) error {
	batch := b.index.NewBatch()
	err := docs(func(id string, doc map[string]interface{}) error {
		if err := batch.Index(id, doc); err != nil {
			return err
		}
		if batch.Size() >= batchSize {
			if err := b.index.Batch(batch); err != nil {
				return err
			}
			batch.Reset()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if batch.Size() > 0 {
		return b.index.Batch(batch)
	}
	return nil
}

// search returns every hit of q in the given order.
func (b *bleveIndex) search(ctx context.Context, q blevequery.Query, order search.SortOrder) (*Matches, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(q, int(count), 0, false)
	req.SortByCustom(order)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := &Matches{Positions: make([]int64, 0, len(res.Hits)), Total: int64(len(res.Hits))}
	for _, hit := range res.Hits {
		pos, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", hit.ID, err)
		}
		out.Positions = append(out.Positions, pos)
	}
	return out, nil
}

// Count returns the number of indexed records.
func (b *bleveIndex) Count() (int64, error) {
	n, err := b.index.DocCount()
	return int64(n), err
}

// Path returns the index directory, or "" for an in-memory index.
func (b *bleveIndex) Path() string {
	return b.path
}

// Close closes the index.
func (b *bleveIndex) Close() error {
	return b.index.Close()
}

// sortOrder converts spec to a Bleve sort. Missing values sort last in either
// direction and the position breaks ties.
func sortOrder(spec models.SortSpec, kinds map[string]fieldKind) search.SortOrder {
	order := make(search.SortOrder, 0, len(spec)+1)
	for _, f := range spec {
		sf := &search.SortField{
			Field:   f.Field,
			Desc:    !f.Ascending,
			Type:    search.SortFieldAsString,
			Missing: search.SortFieldMissingLast,
		}
		if kinds[f.Field] == numberField {
			sf.Type = search.SortFieldAsNumber
		}
		order = append(order, sf)
	}
	return append(order, &search.SortField{
		Field:   posField,
		Type:    search.SortFieldAsNumber,
		Missing: search.SortFieldMissingLast,
	})
}

// textQuery matches an exact value of any keyword field, or every analyzed
// token of q in the text field. An empty q matches everything.
func textQuery(q string, keywordFields ...string) blevequery.Query {
	if q == "" {
		return bleve.NewMatchAllQuery()
	}
	var queries []blevequery.Query
	for _, field := range keywordFields {
		tq := bleve.NewTermQuery(q)
		tq.SetField(field)
		queries = append(queries, tq)
	}
	mq := bleve.NewMatchQuery(q)
	mq.SetField(textField)
	mq.SetOperator(blevequery.MatchQueryOperatorAnd)
	queries = append(queries, mq)
	return bleve.NewDisjunctionQuery(queries...)
}

func newMapping(keywords, numbers []string) mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentStaticMapping()
	for _, name := range keywords {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = false
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}
	for _, name := range append([]string{posField}, numbers...) {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = false
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}
	// Standard analyzer (lowercase + tokenize, no stemming) so identifiers
	// and function words match as written.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	text.IncludeTermVectors = false
	text.DocValues = false
	doc.AddFieldMappingsAt(textField, text)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

func float(v int64) *float64 {
	f := float64(v)
	return &f
}

func boolPtr(v bool) *bool {
	return &v
}
