package genome

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/genomesearch/internal/models"
)

type rawFeature struct {
	ID            string                                `json:"id"`
	Type          string                                `json:"type"`
	Function      string                                `json:"function"`
	Functions     []string                              `json:"functions"`
	Location      []rawLocation                         `json:"location"`
	Aliases       []json.RawMessage                     `json:"aliases"`
	OntologyTerms map[string]map[string]json.RawMessage `json:"ontology_terms"`
}

// rawLocation is the [contig_id, start, strand, length] tuple.
type rawLocation models.Location

func (l *rawLocation) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 4 {
		return fmt.Errorf("location tuple has %d elements", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &l.ContigID); err != nil {
		return fmt.Errorf("location contig: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &l.Start); err != nil {
		return fmt.Errorf("location start: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &l.Strand); err != nil {
		return fmt.Errorf("location strand: %w", err)
	}
	if err := json.Unmarshal(tuple[3], &l.Length); err != nil {
		return fmt.Errorf("location length: %w", err)
	}
	return nil
}

func (f rawFeature) toFeature(idx int64, defaultType string) models.FeatureData {
	out := models.FeatureData{
		FeatureID:   f.ID,
		Function:    f.Function,
		FeatureType: f.Type,
		FeatureIdx:  idx,
	}
	if out.FeatureType == "" {
		out.FeatureType = defaultType
	}
	if out.Function == "" && len(f.Functions) > 0 {
		out.Function = strings.Join(f.Functions, "; ")
	}
	for _, l := range f.Location {
		out.Location = append(out.Location, models.Location(l))
	}
	out.GlobalLocation = models.GlobalLocationOf(out.Location)
	out.Aliases = decodeAliases(f.Aliases)
	out.OntologyTerms = decodeOntology(f.OntologyTerms)
	return out
}

// decodeAliases accepts plain alias strings and [source, alias] pairs and
// returns alias -> sources.
func decodeAliases(raw []json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for _, r := range raw {
		var alias string
		if err := json.Unmarshal(r, &alias); err == nil {
			if _, ok := out[alias]; !ok {
				out[alias] = []string{}
			}
			continue
		}
		var pair []string
		if err := json.Unmarshal(r, &pair); err != nil || len(pair) != 2 {
			continue
		}
		out[pair[1]] = append(out[pair[1]], pair[0])
	}
	return out
}

// decodeOntology flattens namespace -> term id -> details into
// term id -> "term name, namespace". Terms without a name map to the namespace.
func decodeOntology(raw map[string]map[string]json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string)
	for namespace, terms := range raw {
		for id, details := range terms {
			var term struct {
				TermName string `json:"term_name"`
			}
			if json.Unmarshal(details, &term) == nil && term.TermName != "" {
				out[id] = term.TermName + ", " + namespace
				continue
			}
			out[id] = namespace
		}
	}
	return out
}
