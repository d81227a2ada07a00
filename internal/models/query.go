package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParams is returned when a request is missing a required field or
// carries a malformed value.
var ErrInvalidParams = errors.New("invalid parameters")

// FeatureSortFields are the feature fields accepted in sort_by.
var FeatureSortFields = []string{"feature_id", "feature_type", "contig_id", "start", "length"}

// ContigSortFields are the contig fields accepted in sort_by.
var ContigSortFields = []string{"contig_id", "length", "feature_count"}

// SortField is one [field, ascending] pair of a sort specification.
// On the wire ascending may be a boolean or a 0/1 integer.
type SortField struct {
	Field     string
	Ascending bool
}

// UnmarshalJSON decodes a two-element array.
func (s *SortField) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("sort field must be a [field, ascending] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("sort field must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Field); err != nil {
		return fmt.Errorf("sort field name: %w", err)
	}
	raw := bytes.TrimSpace(pair[1])
	switch string(raw) {
	case "true", "1":
		s.Ascending = true
	case "false", "0":
		s.Ascending = false
	default:
		return fmt.Errorf("sort direction for %q must be boolean or 0/1, got %s", s.Field, raw)
	}
	return nil
}

// MarshalJSON encodes the pair as [field, ascending].
func (s SortField) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{s.Field, s.Ascending})
}

// SortSpec is an ordered list of sort fields.
type SortSpec []SortField

// Validate rejects field names not in allowed.
func (s SortSpec) Validate(allowed []string) error {
	for _, f := range s {
		ok := false
		for _, a := range allowed {
			if f.Field == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: unsupported sort field %q (allowed: %s)", ErrInvalidParams, f.Field, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// Key returns a canonical string for cache keys, e.g. "feature_type-,start+".
func (s SortSpec) Key() string {
	parts := make([]string, len(s))
	for i, f := range s {
		dir := "-"
		if f.Ascending {
			dir = "+"
		}
		parts[i] = f.Field + dir
	}
	return strings.Join(parts, ",")
}

// SearchParams are the parameters of the search operation.
type SearchParams struct {
	Ref      string   `json:"ref"`
	Query    string   `json:"query"`
	SortBy   SortSpec `json:"sort_by,omitempty"`
	Start    int      `json:"start,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	NumFound *int64   `json:"num_found,omitempty"`
}

// Validate checks required fields and trims the query.
func (p *SearchParams) Validate() error {
	if strings.TrimSpace(p.Ref) == "" {
		return fmt.Errorf("%w: ref is required", ErrInvalidParams)
	}
	if p.Start < 0 || p.Limit < 0 {
		return fmt.Errorf("%w: start and limit must not be negative", ErrInvalidParams)
	}
	p.Query = strings.TrimSpace(p.Query)
	return p.SortBy.Validate(FeatureSortFields)
}

// SearchRegionParams are the parameters of the search_region operation.
type SearchRegionParams struct {
	Ref               string `json:"ref"`
	QueryContigID     string `json:"query_contig_id"`
	QueryRegionStart  int64  `json:"query_region_start"`
	QueryRegionLength int64  `json:"query_region_length"`
	PageStart         int    `json:"page_start,omitempty"`
	PageLimit         int    `json:"page_limit,omitempty"`
	NumFound          *int64 `json:"num_found,omitempty"`
}

// Validate checks required fields.
func (p *SearchRegionParams) Validate() error {
	if strings.TrimSpace(p.Ref) == "" {
		return fmt.Errorf("%w: ref is required", ErrInvalidParams)
	}
	if p.QueryRegionLength < 0 {
		return fmt.Errorf("%w: query_region_length must not be negative", ErrInvalidParams)
	}
	if p.PageStart < 0 || p.PageLimit < 0 {
		return fmt.Errorf("%w: page_start and page_limit must not be negative", ErrInvalidParams)
	}
	return nil
}

// SearchContigsParams are the parameters of the search_contigs operation.
type SearchContigsParams struct {
	Ref      string   `json:"ref"`
	Query    string   `json:"query"`
	SortBy   SortSpec `json:"sort_by,omitempty"`
	Start    int      `json:"start,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	NumFound *int64   `json:"num_found,omitempty"`
}

// Validate checks required fields and trims the query.
func (p *SearchContigsParams) Validate() error {
	if strings.TrimSpace(p.Ref) == "" {
		return fmt.Errorf("%w: ref is required", ErrInvalidParams)
	}
	if p.Start < 0 || p.Limit < 0 {
		return fmt.Errorf("%w: start and limit must not be negative", ErrInvalidParams)
	}
	p.Query = strings.TrimSpace(p.Query)
	return p.SortBy.Validate(ContigSortFields)
}

// ClampLimit returns limit, or def when limit is zero, capped at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
