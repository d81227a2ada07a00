// Package cli formats genome search results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/genomesearch/internal/models"
	"github.com/hyperjump/genomesearch/internal/search"
	"github.com/hyperjump/genomesearch/pkg/utils"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per record.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a --format value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (text, compact, json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a feature search result.
func WriteSearchResults(w io.Writer, res *models.SearchResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		writeFeaturesCompact(w, res.Features)
	default:
		fmt.Fprintf(w, "\nFound %d features for %q (showing %d from %d)\n\n",
			res.NumFound, res.Query, len(res.Features), res.Start)
		writeFeaturesText(w, res.Features)
	}
	return nil
}

// WriteRegionResults writes a region search result.
func WriteRegionResults(w io.Writer, res *models.SearchRegionResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		writeFeaturesCompact(w, res.Features)
	default:
		length := "unknown"
		if res.ContigLength != nil {
			length = humanize.Comma(*res.ContigLength)
		}
		fmt.Fprintf(w, "\nFound %d features on %s [%s, +%s) (contig length %s)\n\n",
			res.NumFound, utils.OrDash(res.QueryContigID),
			humanize.Comma(res.QueryRegionStart), humanize.Comma(res.QueryRegionLength), length)
		writeFeaturesText(w, res.Features)
	}
	return nil
}

// WriteContigResults writes a contig search result.
func WriteContigResults(w io.Writer, res *models.SearchContigsResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		for _, c := range res.Contigs {
			fmt.Fprintf(w, "%s\t%d\t%d\n", c.ContigID, c.Length, c.FeatureCount)
		}
	default:
		fmt.Fprintf(w, "\nFound %d contigs for %q\n\n", res.NumFound, res.Query)
		for _, c := range res.Contigs {
			fmt.Fprintf(w, "%-30s %14s bp %8d features", c.ContigID, humanize.Comma(c.Length), c.FeatureCount)
			if c.Description != "" {
				fmt.Fprintf(w, "  %s", utils.Truncate(c.Description, 60))
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

// WriteStatus writes service status.
func WriteStatus(w io.Writer, st *search.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "State:          %s\n", st.State)
	if st.Version != "" {
		fmt.Fprintf(w, "Version:        %s\n", st.Version)
	}
	fmt.Fprintf(w, "Indexes:        %d (%d open, %d built)\n", st.Indexes, st.OpenIndexes, st.Builds)
	fmt.Fprintf(w, "Features:       %s\n", humanize.Comma(st.Features))
	fmt.Fprintf(w, "Result cache:   %d entries, %d hits, %d misses\n", st.ResultCacheEntries, st.ResultCacheHits, st.ResultCacheMisses)
	fmt.Fprintf(w, "Disk usage:     %s\n", humanize.Bytes(uint64(st.DiskUsageBytes)))
	return nil
}

// WriteIndexes writes catalogue entries.
func WriteIndexes(w io.Writer, records []*models.IndexRecord, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, records)
	case OutputCompact:
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.Key, r.Ref, r.FeatureCount, r.ContigCount)
		}
	default:
		for _, r := range records {
			fmt.Fprintf(w, "%-16s %-40s %8d features %6d contigs  built %s\n",
				r.Key, utils.Truncate(r.Ref+" "+r.Name, 40), r.FeatureCount, r.ContigCount, humanize.Time(r.BuiltAt))
		}
	}
	return nil
}

func writeFeaturesCompact(w io.Writer, features []*models.FeatureData) {
	for _, f := range features {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.FeatureID, f.FeatureType, formatLocation(f.GlobalLocation), f.Function)
	}
}

func writeFeaturesText(w io.Writer, features []*models.FeatureData) {
	for _, f := range features {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s (%s)\n", f.FeatureIdx, f.FeatureID, utils.OrDash(f.FeatureType))
		fmt.Fprintf(w, "Location: %s\n", formatLocation(f.GlobalLocation))
		if f.Function != "" {
			fmt.Fprintf(w, "Function: %s\n", utils.Truncate(f.Function, 200))
		}
		if len(f.Aliases) > 0 {
			fmt.Fprintf(w, "Aliases:  %s\n", strings.Join(sortedKeys(f.Aliases), ", "))
		}
		if len(f.OntologyTerms) > 0 {
			fmt.Fprintf(w, "Ontology: %s\n", strings.Join(sortedKeys(f.OntologyTerms), ", "))
		}
		fmt.Fprintln(w)
	}
}

func formatLocation(l *models.Location) string {
	if l == nil {
		return "-"
	}
	return fmt.Sprintf("%s:%d%s%d", l.ContigID, l.Start, l.Strand, l.Length)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
