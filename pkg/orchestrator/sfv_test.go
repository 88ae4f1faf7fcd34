package orchestrator

import (
	"testing"

	"sentryproc/pkg/decision"
)

func TestFormatDecisionHeader_BlankSlate(t *testing.T) {
	got := FormatDecisionHeader(decision.Ignorance)
	want := "accept=0.000, restrict=0.000, unknown=1.000"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFormatTagsHeader_SortsAndDedupes(t *testing.T) {
	got := FormatTagsHeader([]string{"zebra", "apple", "zebra"})
	want := "apple, zebra"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFormatTagsHeader_Empty(t *testing.T) {
	if got := FormatTagsHeader(nil); got != "" {
		t.Fatalf("expected empty string for no tags, got %q", got)
	}
}

func TestUnionTags_Dedupes(t *testing.T) {
	got := UnionTags([]string{"a", "b"}, []string{"b", "c"})
	seen := map[string]bool{}
	for _, t := range got {
		seen[t] = true
	}
	if len(seen) != 3 || !seen["a"] || !seen["b"] || !seen["c"] {
		t.Fatalf("unexpected union: %v", got)
	}
}
