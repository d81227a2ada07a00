package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperjump/genomesearch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func located(idx int64, id, typ, contig string, start, length int64) models.FeatureData {
	loc := []models.Location{{ContigID: contig, Start: start, Strand: "+", Length: length}}
	return models.FeatureData{FeatureID: id, FeatureType: typ, FeatureIdx: idx, Location: loc, GlobalLocation: models.GlobalLocationOf(loc)}
}

func testFeatures() []models.FeatureData {
	f2 := models.FeatureData{FeatureID: "Sb01g000360.1.CDS", FeatureType: "CDS", FeatureIdx: 2, Function: "hypothetical protein"}
	f0 := located(0, "kb|g.0.peg.1", "gene", "c1", 300, 10)
	f0.Function = "alcohol dehydrogenase"
	f0.Aliases = map[string][]string{"adhE": {"RefSeq"}}
	f1 := located(1, "kb|g.0.peg.2", "CDS", "c1", 100, 50)
	f1.Function = "glucose dehydrogenase subunit"
	f1.OntologyTerms = map[string]string{"GO:0006355": "regulation of transcription, GO"}
	f3 := located(3, "kb|g.0.rna.1", "rna", "c2", 5, 20)
	return []models.FeatureData{f0, f1, f2, f3}
}

func TestFeatureIndex_Search(t *testing.T) {
	ctx := context.Background()
	fi, err := CreateFeatureIndex("", testFeatures())
	require.NoError(t, err)
	defer fi.Close()

	tests := []struct {
		name  string
		query string
		sort  models.SortSpec
		want  []int64
	}{
		{"empty query matches all in position order", "  ", nil, []int64{0, 1, 2, 3}},
		{"exact id", "Sb01g000360.1.CDS", nil, []int64{2}},
		{"exact alias", "adhE", nil, []int64{0}},
		{"all tokens required", "glucose dehydrogenase", nil, []int64{1}},
		{"token in several features", "dehydrogenase", nil, []int64{0, 1}},
		{"case insensitive text", "ALCOHOL", nil, []int64{0}},
		{"ontology id", "GO:0006355", nil, []int64{1}},
		{"no match", "dehydrogenase kinase", nil, []int64{}},
		{"start ascending, missing last", "", models.SortSpec{{Field: "start", Ascending: true}}, []int64{3, 1, 0, 2}},
		{"start descending, missing last", "", models.SortSpec{{Field: "start", Ascending: false}}, []int64{0, 1, 3, 2}},
		{"type then position", "", models.SortSpec{{Field: "feature_type", Ascending: true}}, []int64{1, 2, 0, 3}},
		{"contig then length desc", "", models.SortSpec{{Field: "contig_id", Ascending: true}, {Field: "length", Ascending: false}}, []int64{1, 0, 3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fi.Search(ctx, tt.query, tt.sort)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got.Positions); diff != "" {
				t.Errorf("positions mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, int64(len(tt.want)), got.Total)
		})
	}
}

func TestFeatureIndex_SearchRegion(t *testing.T) {
	ctx := context.Background()
	var features []models.FeatureData
	for i := int64(0); i < 30; i++ {
		features = append(features, located(i, "f", "gene", "kb|g.0.c.1", 990000+1000*i, 900))
	}
	features = append(features, located(30, "other", "gene", "kb|g.0.c.2", 1000000, 900))
	fi, err := CreateFeatureIndex("", features)
	require.NoError(t, err)
	defer fi.Close()

	got, err := fi.SearchRegion(ctx, "kb|g.0.c.1", 1000000, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Total)
	assert.Equal(t, []int64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, got.Positions)

	// window end is exclusive, start is inclusive
	got, err = fi.SearchRegion(ctx, "kb|g.0.c.1", 990900, 100)
	require.NoError(t, err)
	assert.Empty(t, got.Positions)
	got, err = fi.SearchRegion(ctx, "kb|g.0.c.1", 990899, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, got.Positions)

	got, err = fi.SearchRegion(ctx, "missing", 0, 1<<40)
	require.NoError(t, err)
	assert.Zero(t, got.Total)
}

func TestFeatureIndex_Persisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "features")
	assert.False(t, Exists(path))

	fi, err := CreateFeatureIndex(path, testFeatures())
	require.NoError(t, err)
	assert.Equal(t, path, fi.Path())
	require.NoError(t, fi.Close())
	assert.True(t, Exists(path))

	reopened, err := OpenFeatureIndex(path)
	require.NoError(t, err)
	defer reopened.Close()
	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	got, err := reopened.Search(ctx, "dehydrogenase", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, got.Positions)

	_, err = OpenFeatureIndex(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestContigIndex_Search(t *testing.T) {
	ctx := context.Background()
	contigs := []models.ContigData{
		{ContigID: "c1", Length: 100, FeatureCount: 3, Position: 0, Description: "main chromosome"},
		{ContigID: "c2", Length: 4639221, FeatureCount: 1, Position: 1},
		{ContigID: "plasmid_a", Length: 100, Position: 2, Name: "pA"},
	}
	ci, err := CreateContigIndex("", contigs)
	require.NoError(t, err)
	defer ci.Close()

	all, err := ci.Search(ctx, "", models.SortSpec{{Field: "length", Ascending: false}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0, 2}, all.Positions)

	byCount, err := ci.Search(ctx, "", models.SortSpec{{Field: "feature_count", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 0}, byCount.Positions)

	exact, err := ci.Search(ctx, "plasmid_a", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, exact.Positions)

	text, err := ci.Search(ctx, "chromosome", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, text.Positions)

	empty, err := CreateContigIndex("", nil)
	require.NoError(t, err)
	defer empty.Close()
	none, err := empty.Search(ctx, "", nil)
	require.NoError(t, err)
	assert.Zero(t, none.Total)
}
