// Package genome decodes workspace objects into searchable datasets. A Genome
// may delegate its contigs to a linked ContigSet or Assembly, which is fetched
// through a reference path.
package genome

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/genomesearch/internal/models"
)

// ErrUnsupportedType is returned for objects that are not a Genome, ContigSet
// or Assembly.
var ErrUnsupportedType = errors.New("unsupported object type")

// Shape is the decoded form of one object type.
type Shape interface {
	// Name is the workspace type name without version.
	Name() string
	// Included lists the subset paths needed to decode the object.
	Included() []string
	// Decode fills ds from data and returns the reference of a linked contig
	// collection, if any.
	Decode(data json.RawMessage, ds *Dataset) (link string, err error)
}

var shapes = map[string]Shape{
	"KBaseGenomes.Genome":             genomeShape{},
	"KBaseGenomes.ContigSet":          contigSetShape{},
	"KBaseGenomeAnnotations.Assembly": assemblyShape{},
}

// ShapeFor returns the shape registered for a workspace type name.
func ShapeFor(typeName string) (Shape, error) {
	s, ok := shapes[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typeName)
	}
	return s, nil
}

// featureLists are the genome lists that carry features, in concatenation
// order, with the type used when a feature does not name one.
var featureLists = []struct {
	field       string
	defaultType string
}{
	{"features", "gene"},
	{"cdss", "CDS"},
	{"mrnas", "mRNA"},
	{"non_coding_features", "non_coding_feature"},
}

var featureFields = []string{"id", "type", "function", "functions", "location", "aliases", "ontology_terms"}

type genomeShape struct{}

func (genomeShape) Name() string { return "KBaseGenomes.Genome" }

func (genomeShape) Included() []string {
	paths := []string{"/id", "/scientific_name", "/assembly_ref", "/contigset_ref", "/contig_ids", "/contig_lengths"}
	for _, list := range featureLists {
		for _, f := range featureFields {
			paths = append(paths, list.field+"/[*]/"+f)
		}
	}
	return paths
}

func (genomeShape) Decode(data json.RawMessage, ds *Dataset) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode genome: %w", err)
	}
	var g struct {
		ScientificName string   `json:"scientific_name"`
		AssemblyRef    string   `json:"assembly_ref"`
		ContigSetRef   string   `json:"contigset_ref"`
		ContigIDs      []string `json:"contig_ids"`
		ContigLengths  []int64  `json:"contig_lengths"`
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return "", fmt.Errorf("decode genome: %w", err)
	}
	ds.ScientificName = g.ScientificName

	for _, list := range featureLists {
		raw, ok := doc[list.field]
		if !ok || string(raw) == "null" {
			continue
		}
		var items []rawFeature
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", fmt.Errorf("decode genome %s: %w", list.field, err)
		}
		for _, item := range items {
			ds.Features = append(ds.Features, item.toFeature(int64(len(ds.Features)), list.defaultType))
		}
	}

	switch {
	case g.AssemblyRef != "":
		return g.AssemblyRef, nil
	case g.ContigSetRef != "":
		return g.ContigSetRef, nil
	}
	for i, id := range g.ContigIDs {
		c := models.ContigData{ContigID: id, Position: int64(i)}
		if i < len(g.ContigLengths) {
			c.Length = g.ContigLengths[i]
		}
		ds.Contigs = append(ds.Contigs, c)
	}
	return "", nil
}

type contigSetShape struct{}

func (contigSetShape) Name() string { return "KBaseGenomes.ContigSet" }

func (contigSetShape) Included() []string {
	return []string{"contigs/[*]/id", "contigs/[*]/length", "contigs/[*]/name", "contigs/[*]/description"}
}

func (contigSetShape) Decode(data json.RawMessage, ds *Dataset) (string, error) {
	var cs struct {
		Contigs []struct {
			ID          string `json:"id"`
			Length      int64  `json:"length"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"contigs"`
	}
	if err := json.Unmarshal(data, &cs); err != nil {
		return "", fmt.Errorf("decode contig set: %w", err)
	}
	for i, c := range cs.Contigs {
		ds.Contigs = append(ds.Contigs, models.ContigData{
			ContigID:    c.ID,
			Length:      c.Length,
			Name:        c.Name,
			Description: c.Description,
			Position:    int64(i),
		})
	}
	return "", nil
}

type assemblyShape struct{}

func (assemblyShape) Name() string { return "KBaseGenomeAnnotations.Assembly" }

func (assemblyShape) Included() []string {
	return []string{"contigs/*/contig_id", "contigs/*/length", "contigs/*/name", "contigs/*/description"}
}

// Decode orders an assembly's contigs by contig id; the contig map has no
// inherent order.
func (assemblyShape) Decode(data json.RawMessage, ds *Dataset) (string, error) {
	var a struct {
		Contigs map[string]struct {
			ContigID    string `json:"contig_id"`
			Length      int64  `json:"length"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"contigs"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return "", fmt.Errorf("decode assembly: %w", err)
	}
	keys := make([]string, 0, len(a.Contigs))
	for k := range a.Contigs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		c := a.Contigs[k]
		id := c.ContigID
		if id == "" {
			id = k
		}
		ds.Contigs = append(ds.Contigs, models.ContigData{
			ContigID:    id,
			Length:      c.Length,
			Name:        c.Name,
			Description: c.Description,
			Position:    int64(i),
		})
	}
	return "", nil
}
