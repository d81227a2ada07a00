package e2e

import (
	"github.com/hyperjump/genomesearch/internal/models"
)

// QueryTestCase is one JSON-RPC call against the fixture data and the
// num_found it must report. WantFirst, when set, is the first feature or
// contig id of the page.
type QueryTestCase struct {
	Description  string
	Method       string
	Params       interface{}
	WantNumFound int64
	WantFirst    string
}

// Corpus holds the query test cases for the public fixture workspaces.
type Corpus struct {
	TestCases    []QueryTestCase
	TotalQueries int
}

// BuildCorpus returns query cases whose expected counts follow from exp.
func BuildCorpus(exp Expectations) *Corpus {
	asc := func(field string) models.SortSpec { return models.SortSpec{{Field: field, Ascending: true}} }
	desc := func(field string) models.SortSpec { return models.SortSpec{{Field: field, Ascending: false}} }
	cases := []QueryTestCase{
		{
			Description:  "exact feature id on a genome without locations",
			Method:       "search",
			Params:       models.SearchParams{Ref: exp.TranscriptomeRef, Query: TranscriptomeCDS, SortBy: asc("feature_id")},
			WantNumFound: 1,
			WantFirst:    TranscriptomeCDS,
		},
		{
			Description:  "unscoped contig on a genome without locations",
			Method:       "search_region",
			Params:       models.SearchRegionParams{Ref: exp.TranscriptomeRef, QueryRegionStart: 100, QueryRegionLength: 10000, PageLimit: 5},
			WantNumFound: 0,
		},
		{
			Description:  "region window on the first contig",
			Method:       "search_region",
			Params:       models.SearchRegionParams{Ref: exp.RegionRef, QueryContigID: RegionContig, QueryRegionStart: 1000000, QueryRegionLength: 10000, PageLimit: 5},
			WantNumFound: exp.RegionMatches,
			WantFirst:    "kb|g.0.peg.11",
		},
		{
			Description:  "region window past the last feature",
			Method:       "search_region",
			Params:       models.SearchRegionParams{Ref: exp.RegionRef, QueryContigID: RegionContig, QueryRegionStart: 4000000, QueryRegionLength: 10000},
			WantNumFound: 0,
		},
		{
			Description:  "text query with sort by feature id",
			Method:       "search",
			Params:       models.SearchParams{Ref: exp.RegionRef, Query: "alcohol dehydrogenase", SortBy: asc("feature_id")},
			WantNumFound: regionFeatures / 2,
			WantFirst:    "kb|g.0.peg.1",
		},
		{
			Description:  "alias lookup",
			Method:       "search",
			Params:       models.SearchParams{Ref: exp.RegionRef, Query: "b0007"},
			WantNumFound: 1,
			WantFirst:    "kb|g.0.peg.7",
		},
		{
			Description:  "function word across a draft genome",
			Method:       "search",
			Params:       models.SearchParams{Ref: exp.DraftRef, Query: "glutamate", SortBy: desc("start")},
			WantNumFound: exp.DraftContigs,
		},
		{
			Description:  "all contigs of an embedded assembly",
			Method:       "search_contigs",
			Params:       models.SearchContigsParams{Ref: exp.DraftRef, SortBy: desc("length")},
			WantNumFound: exp.DraftContigs,
			WantFirst:    "kb|g.23390.c.119",
		},
		{
			Description:  "no contigs on a transcriptome",
			Method:       "search_contigs",
			Params:       models.SearchContigsParams{Ref: exp.TranscriptomeRef, SortBy: desc("length")},
			WantNumFound: 0,
		},
		{
			Description:  "contigs dereferenced through assembly_ref",
			Method:       "search_contigs",
			Params:       models.SearchContigsParams{Ref: exp.AssemblyRef, SortBy: desc("length")},
			WantNumFound: exp.AssemblyContigs,
			WantFirst:    "contig_1",
		},
		{
			Description:  "features across the cdss list",
			Method:       "search",
			Params:       models.SearchParams{Ref: exp.AssemblyRef, Query: "succinate"},
			WantNumFound: 1,
			WantFirst:    "gene_1.CDS",
		},
	}
	return &Corpus{TestCases: cases, TotalQueries: len(cases)}
}
