package e2e

import (
	"testing"
)

func TestBuildCorpus_QueryTestCasesExist(t *testing.T) {
	c := BuildCorpus(FixtureExpectations())
	if c.TotalQueries == 0 || c.TotalQueries != len(c.TestCases) {
		t.Fatalf("total queries = %d, cases = %d", c.TotalQueries, len(c.TestCases))
	}
	seen := make(map[string]bool)
	for i, tc := range c.TestCases {
		if tc.Description == "" {
			t.Errorf("test case %d: empty description", i)
		}
		if seen[tc.Description] {
			t.Errorf("duplicate description %q", tc.Description)
		}
		seen[tc.Description] = true
		switch tc.Method {
		case "search", "search_region", "search_contigs":
		default:
			t.Errorf("test case %d: unknown method %q", i, tc.Method)
		}
	}
}
