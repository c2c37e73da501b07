package app

import (
	"sort"
	"strings"
	"testing"
)

func TestULIDReferenceGenerator_PrefixAndUniqueness(t *testing.T) {
	gen := NewULIDReferenceGenerator()

	seen := make(map[string]struct{})
	refs := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		ref := gen.NewReference()
		if !strings.HasPrefix(ref, "txn_") {
			t.Fatalf("expected txn_ prefix, got %q", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("generator produced duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	if !sort.StringsAreSorted(refs) {
		t.Fatal("expected references to sort in creation order")
	}
}
