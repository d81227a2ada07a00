// Package models defines core data structures for features, contigs, queries, and search results.
package models

import "time"

// Location is one part of a feature's position on a contig. Start is 1-based
// as stored in the genome; on the "-" strand it is the rightmost base.
type Location struct {
	ContigID string `json:"contig_id"`
	Start    int64  `json:"start"`
	Strand   string `json:"strand"`
	Length   int64  `json:"length"`
}

// Left returns the leftmost base covered by the location.
func (l Location) Left() int64 {
	if l.Strand == "-" {
		return l.Start - l.Length + 1
	}
	return l.Start
}

// FeatureData is a feature record as returned by the search operations.
// GlobalLocation spans all parts of Location and is nil when the feature has
// no coordinates. FeatureIdx is the feature's position in the genome.
type FeatureData struct {
	FeatureID      string              `json:"feature_id"`
	Aliases        map[string][]string `json:"aliases,omitempty"`
	Function       string              `json:"function,omitempty"`
	Location       []Location          `json:"location,omitempty"`
	FeatureType    string              `json:"feature_type"`
	GlobalLocation *Location           `json:"global_location,omitempty"`
	FeatureIdx     int64               `json:"feature_idx"`
	OntologyTerms  map[string]string   `json:"ontology_terms,omitempty"`
}

// GlobalLocationOf returns the span of locs on the first location's contig,
// or nil when locs is empty. Start is the leftmost base; strand follows the
// first part.
func GlobalLocationOf(locs []Location) *Location {
	if len(locs) == 0 {
		return nil
	}
	contig := locs[0].ContigID
	left := locs[0].Left()
	right := left + locs[0].Length
	for _, l := range locs[1:] {
		if l.ContigID != contig {
			continue
		}
		if l.Left() < left {
			left = l.Left()
		}
		if end := l.Left() + l.Length; end > right {
			right = end
		}
	}
	return &Location{
		ContigID: contig,
		Start:    left,
		Strand:   locs[0].Strand,
		Length:   right - left,
	}
}

// ContigData summarizes one contig of an assembly. Position is the contig's
// index in the source object and is not serialized.
type ContigData struct {
	ContigID     string `json:"contig_id"`
	Length       int64  `json:"length"`
	FeatureCount int64  `json:"feature_count"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	Position     int64  `json:"-"`
}

// IndexRecord is the catalogue entry of one built genome index.
type IndexRecord struct {
	Key            string    `json:"key"`
	Ref            string    `json:"ref"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	ScientificName string    `json:"scientific_name,omitempty"`
	FeatureCount   int64     `json:"feature_count"`
	ContigCount    int64     `json:"contig_count"`
	BuiltAt        time.Time `json:"built_at"`
}
