package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSearchParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  *SearchParams
		wantErr bool
	}{
		{"missing ref", &SearchParams{Query: "x"}, true},
		{"blank ref", &SearchParams{Ref: "  "}, true},
		{"valid", &SearchParams{Ref: "1/2/3", Query: "dehydrogenase"}, false},
		{"empty query allowed", &SearchParams{Ref: "1/2/3"}, false},
		{"negative start", &SearchParams{Ref: "1/2/3", Start: -1}, true},
		{"known sort fields", &SearchParams{Ref: "1/2/3", SortBy: SortSpec{{"feature_type", false}, {"contig_id", true}, {"start", false}}}, false},
		{"unknown sort field", &SearchParams{Ref: "1/2/3", SortBy: SortSpec{{"score", true}}}, true},
		{"contig-only sort field", &SearchParams{Ref: "1/2/3", SortBy: SortSpec{{"feature_count", true}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error should wrap ErrInvalidParams: %v", err)
			}
		})
	}
}

func TestSearchParams_ValidateTrimsQuery(t *testing.T) {
	p := &SearchParams{Ref: "1/2/3", Query: "  kinase \n"}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.Query != "kinase" {
		t.Errorf("query = %q, want %q", p.Query, "kinase")
	}
}

func TestSearchRegionParams_Validate(t *testing.T) {
	if err := (&SearchRegionParams{}).Validate(); err == nil {
		t.Error("expected error for missing ref")
	}
	if err := (&SearchRegionParams{Ref: "a/b", QueryRegionLength: -5}).Validate(); err == nil {
		t.Error("expected error for negative length")
	}
	if err := (&SearchRegionParams{Ref: "a/b", QueryContigID: "", QueryRegionStart: 100, QueryRegionLength: 10000, PageLimit: 5}).Validate(); err != nil {
		t.Errorf("empty contig id should be valid: %v", err)
	}
}

func TestSearchContigsParams_Validate(t *testing.T) {
	if err := (&SearchContigsParams{Ref: "a/b", SortBy: SortSpec{{"length", false}}}).Validate(); err != nil {
		t.Errorf("length sort should be valid: %v", err)
	}
	if err := (&SearchContigsParams{Ref: "a/b", SortBy: SortSpec{{"start", false}}}).Validate(); err == nil {
		t.Error("start is not a contig sort field")
	}
}

func TestSortField_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    SortField
		wantErr bool
	}{
		{`["feature_id", true]`, SortField{"feature_id", true}, false},
		{`["start", false]`, SortField{"start", false}, false},
		{`["length", 1]`, SortField{"length", true}, false},
		{`["length", 0]`, SortField{"length", false}, false},
		{`["length"]`, SortField{}, true},
		{`["length", "yes"]`, SortField{}, true},
		{`{"field": "length"}`, SortField{}, true},
	}
	for _, tt := range tests {
		var got SortField
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSearchParams_DecodePlatformRequest(t *testing.T) {
	body := `{"ref": "KBasePublicGenomesV5/kb|g.0", "query": "dehydrogenase",
		"sort_by": [["feature_type", false], ["contig_id", true], ["start", false]], "num_found": 42}`
	var p SearchParams
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatal(err)
	}
	if len(p.SortBy) != 3 || p.SortBy[1] != (SortField{"contig_id", true}) {
		t.Errorf("sort_by: got %+v", p.SortBy)
	}
	if p.NumFound == nil || *p.NumFound != 42 {
		t.Errorf("num_found: got %v", p.NumFound)
	}
	if p.SortBy.Key() != "feature_type-,contig_id+,start-" {
		t.Errorf("sort key: got %s", p.SortBy.Key())
	}
}

func TestClampLimit(t *testing.T) {
	if got := ClampLimit(0, 10, 100); got != 10 {
		t.Errorf("default: got %d", got)
	}
	if got := ClampLimit(500, 10, 100); got != 100 {
		t.Errorf("cap: got %d", got)
	}
	if got := ClampLimit(5, 10, 100); got != 5 {
		t.Errorf("explicit: got %d", got)
	}
}

func TestGlobalLocationOf(t *testing.T) {
	if GlobalLocationOf(nil) != nil {
		t.Error("no locations should give nil")
	}
	got := GlobalLocationOf([]Location{
		{ContigID: "c1", Start: 300, Strand: "-", Length: 100},
		{ContigID: "c1", Start: 500, Strand: "-", Length: 50},
	})
	// parts cover [201, 301) and [451, 501)
	if got.ContigID != "c1" || got.Start != 201 || got.Length != 300 || got.Strand != "-" {
		t.Errorf("got %+v", got)
	}
	plus := GlobalLocationOf([]Location{{ContigID: "c2", Start: 10, Strand: "+", Length: 5}})
	if plus.Start != 10 || plus.Length != 5 {
		t.Errorf("got %+v", plus)
	}
}
