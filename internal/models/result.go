package models

// SearchResult is the response of the search operation.
type SearchResult struct {
	Query    string         `json:"query"`
	Start    int            `json:"start"`
	Features []*FeatureData `json:"features"`
	NumFound int64          `json:"num_found"`
}

// SearchRegionResult is the response of the search_region operation.
// ContigLength is null when the contig is empty or unknown.
type SearchRegionResult struct {
	QueryContigID     string         `json:"query_contig_id"`
	QueryRegionStart  int64          `json:"query_region_start"`
	QueryRegionLength int64          `json:"query_region_length"`
	PageStart         int            `json:"page_start"`
	Features          []*FeatureData `json:"features"`
	NumFound          int64          `json:"num_found"`
	ContigLength      *int64         `json:"contig_length"`
}

// SearchContigsResult is the response of the search_contigs operation.
type SearchContigsResult struct {
	Query    string        `json:"query"`
	Start    int           `json:"start"`
	Contigs  []*ContigData `json:"contigs"`
	NumFound int64         `json:"num_found"`
}
