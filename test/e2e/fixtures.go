// Package e2e provides end-to-end tests; this file builds fixture genome
// objects shaped like the platform's public example data.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/genomesearch/internal/workspace"
)

// Workspace and object names of the fixture data.
const (
	PublicWorkspace  = "KBasePublicGenomesV5"
	ExampleWorkspace = "KBaseExampleData"

	RegionGenome      = "kb|g.0"
	RegionContig      = "kb|g.0.c.1"
	RegionContigLen   = 4639221
	DraftGenome       = "kb|g.23390"
	Transcriptome     = "Transcriptome_Sbi_shoots_ABA_upregulated"
	TranscriptomeCDS  = "Sb01g000360.1.CDS"
	AssemblyGenome    = "assembly_linked_genome"
	CustomContigSet   = "b.anno.2.contigs"
	CustomGenome      = "b.anno.2.genome"
	regionFeatures    = 30
	draftContigs      = 120
	customFeatures    = 57
	regionFeatureBase = 990000
)

// Expectations are the counts the fixture data is built to produce.
type Expectations struct {
	RegionRef          string
	RegionMatches      int64
	RegionContigLength int64
	DraftRef           string
	DraftContigs       int64
	TranscriptomeRef   string
	AssemblyRef        string
	AssemblyContigs    int64
	CustomFeatures     int64
	DehydrogenaseRefs  []string
}

// FixtureExpectations returns the counts of the data written by LoadPublic.
func FixtureExpectations() Expectations {
	return Expectations{
		RegionRef:          PublicWorkspace + "/" + RegionGenome,
		RegionMatches:      10,
		RegionContigLength: RegionContigLen,
		DraftRef:           PublicWorkspace + "/" + DraftGenome,
		DraftContigs:       draftContigs,
		TranscriptomeRef:   ExampleWorkspace + "/" + Transcriptome,
		AssemblyRef:        ExampleWorkspace + "/" + AssemblyGenome,
		AssemblyContigs:    1,
		CustomFeatures:     customFeatures,
		DehydrogenaseRefs:  []string{PublicWorkspace + "/" + RegionGenome, PublicWorkspace + "/" + DraftGenome},
	}
}

// PublicObjects returns the objects of each public workspace, in save order.
func PublicObjects() map[string][]workspace.SaveObject {
	return map[string][]workspace.SaveObject{
		PublicWorkspace: {
			{Type: "KBaseGenomes.Genome-8.2", Name: RegionGenome, Data: regionGenome()},
			{Type: "KBaseGenomes.Genome-8.2", Name: DraftGenome, Data: draftGenome()},
		},
		ExampleWorkspace: {
			{Type: "KBaseGenomes.Genome-9.0", Name: Transcriptome, Data: transcriptome()},
			{Type: "KBaseGenomeAnnotations.Assembly-6.0", Name: AssemblyGenome + ".assembly", Data: assembly()},
			{Type: "KBaseGenomes.Genome-14.1", Name: AssemblyGenome, Data: assemblyGenome()},
		},
	}
}

// LoadPublic creates the public workspaces in store and saves their objects.
func LoadPublic(ctx context.Context, store workspace.ObjectStore) error {
	for _, ws := range []string{PublicWorkspace, ExampleWorkspace} {
		if _, err := store.CreateWorkspace(ctx, ws); err != nil {
			return fmt.Errorf("create %s: %w", ws, err)
		}
		if _, err := store.SaveObjects(ctx, ws, PublicObjects()[ws]); err != nil {
			return fmt.Errorf("save into %s: %w", ws, err)
		}
	}
	return nil
}

// WriteDir writes the public objects as a DirStore tree under root.
func WriteDir(root string) error {
	for ws, objects := range PublicObjects() {
		dir := filepath.Join(root, ws)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		for _, obj := range objects {
			data, err := json.Marshal(map[string]interface{}{"type": obj.Type, "data": obj.Data})
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, obj.Name+workspace.ObjectExt), data, 0644); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveCustomGenome saves a ContigSet and a Genome pointing at it through
// contigset_ref into ws, and returns the genome's immutable reference.
func SaveCustomGenome(ctx context.Context, store workspace.ObjectStore, ws string) (string, error) {
	infos, err := store.SaveObjects(ctx, ws, []workspace.SaveObject{
		{Type: "KBaseGenomes.ContigSet", Name: CustomContigSet, Data: customContigSet()},
	})
	if err != nil {
		return "", err
	}
	genome := customGenome()
	genome["contigset_ref"] = infos[0].Ref()
	infos, err = store.SaveObjects(ctx, ws, []workspace.SaveObject{
		{Type: "KBaseGenomes.Genome", Name: CustomGenome, Data: genome},
	})
	if err != nil {
		return "", err
	}
	return infos[0].Ref(), nil
}

type object = map[string]interface{}

func location(contig string, start int, strand string, length int) []interface{} {
	return []interface{}{[]interface{}{contig, start, strand, length}}
}

// regionGenome has regionFeatures genes on one contig spaced 1000 apart,
// each 900 long, so [1000000, 1010000) overlaps exactly ten of them.
func regionGenome() object {
	features := make([]interface{}, 0, regionFeatures)
	for i := 0; i < regionFeatures; i++ {
		features = append(features, object{
			"id":       fmt.Sprintf("kb|g.0.peg.%d", i+1),
			"type":     "CDS",
			"function": []string{"Alcohol dehydrogenase", "Oxidoreductase"}[i%2],
			"location": location(RegionContig, regionFeatureBase+1000*i, "+", 900),
			"aliases":  []interface{}{fmt.Sprintf("b%04d", i+1)},
		})
	}
	return object{
		"id":              RegionGenome,
		"scientific_name": "Escherichia coli K12",
		"contig_ids":      []string{RegionContig},
		"contig_lengths":  []int{RegionContigLen},
		"features":        features,
	}
}

// draftGenome is a fragmented assembly embedded in the genome object.
func draftGenome() object {
	ids := make([]string, draftContigs)
	lengths := make([]int, draftContigs)
	features := make([]interface{}, 0, draftContigs)
	for i := range ids {
		ids[i] = fmt.Sprintf("kb|g.23390.c.%d", i)
		lengths[i] = 500 + 37*i
		features = append(features, object{
			"id":       fmt.Sprintf("kb|g.23390.peg.%d", i),
			"type":     "CDS",
			"function": "Glutamate dehydrogenase",
			"location": location(ids[i], 10, "-", 300),
		})
	}
	return object{
		"id":              DraftGenome,
		"scientific_name": "Streptomyces sp. draft",
		"contig_ids":      ids,
		"contig_lengths":  lengths,
		"features":        features,
	}
}

// transcriptome has features without locations and no contigs.
func transcriptome() object {
	return object{
		"id":              Transcriptome,
		"scientific_name": "Sorghum bicolor",
		"features": []interface{}{
			object{"id": TranscriptomeCDS, "type": "CDS", "function": "ABA upregulated transcript"},
			object{"id": "Sb01g000370.1.CDS", "type": "CDS", "function": "ABA upregulated transcript"},
			object{"id": "Sb01g000380.1.CDS", "type": "CDS", "function": "hypothetical protein"},
		},
	}
}

func assembly() object {
	return object{
		"contigs": object{
			"contig_1": object{"contig_id": "contig_1", "length": 4020, "description": "complete replicon"},
		},
	}
}

// assemblyGenome links its Assembly by name within the same workspace.
func assemblyGenome() object {
	return object{
		"id":              AssemblyGenome,
		"scientific_name": "Shewanella sp.",
		"assembly_ref":    ExampleWorkspace + "/" + AssemblyGenome + ".assembly",
		"features": []interface{}{
			object{"id": "gene_1", "type": "gene", "location": location("contig_1", 100, "+", 600)},
		},
		"cdss": []interface{}{
			object{"id": "gene_1.CDS", "location": location("contig_1", 100, "+", 600), "functions": []string{"Succinate dehydrogenase"}},
		},
	}
}

func customContigSet() object {
	contigs := make([]interface{}, 3)
	for i := range contigs {
		contigs[i] = object{"id": fmt.Sprintf("NODE_%d", i+1), "length": 20000 + i, "name": fmt.Sprintf("NODE_%d", i+1)}
	}
	return object{"id": CustomContigSet, "contigs": contigs}
}

func customGenome() object {
	features := make([]interface{}, customFeatures)
	for i := range features {
		features[i] = object{
			"id":       fmt.Sprintf("b.anno.2.%03d", i),
			"type":     "CDS",
			"function": "hypothetical protein",
			"location": location(fmt.Sprintf("NODE_%d", i%3+1), 100+200*i, "+", 150),
		}
	}
	return object{"id": CustomGenome, "scientific_name": "Bacterium anno", "features": features}
}
