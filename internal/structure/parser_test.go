package structure

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_BulletList(t *testing.T) {
	p := NewParser(0)
	tree := p.Parse("- Hero\n- Features\n- CTA")
	if tree == nil {
		t.Fatal("expected a tree")
	}
	want := []string{"Hero", "Features", "CTA"}
	if diff := cmp.Diff(want, LeafSections(tree)); diff != "" {
		t.Errorf("leaf mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NestedBullets(t *testing.T) {
	p := NewParser(0)
	tree := p.Parse("- Hero\n  - Headline\n  - Subhead\n- Footer")
	if tree == nil {
		t.Fatal("expected a tree")
	}
	if len(tree.Sections) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(tree.Sections))
	}
	if got := len(tree.Sections[0].Children); got != 2 {
		t.Errorf("Hero should have 2 children, got %d", got)
	}
	// Hero is not a leaf once it has children.
	want := []string{"Headline", "Subhead", "Footer"}
	if diff := cmp.Diff(want, LeafSections(tree)); diff != "" {
		t.Errorf("leaf mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HeadingsWithBullets(t *testing.T) {
	p := NewParser(0)
	tree := p.Parse("# Page\n## Hero\n- Headline\n- CTA button\n## Pricing\n- Tier table")
	if tree == nil {
		t.Fatal("expected a tree")
	}
	// Bullets nest under their heading regardless of indentation.
	want := []string{"Headline", "CTA button", "Tier table"}
	if diff := cmp.Diff(want, LeafSections(tree)); diff != "" {
		t.Errorf("leaf mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_MixedProse(t *testing.T) {
	p := NewParser(0)
	tree := p.Parse("Here is my take on the layout:\n- Hero\n- Social proof\nand that is all we need.")
	if tree == nil {
		t.Fatal("structure embedded in prose should still parse")
	}
	want := []string{"Hero", "Social proof"}
	if diff := cmp.Diff(want, LeafSections(tree)); diff != "" {
		t.Errorf("leaf mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NoStructure(t *testing.T) {
	p := NewParser(0)
	if tree := p.Parse("plain prose with no lists or headings at all"); tree != nil {
		t.Errorf("expected nil for unstructured text, got %+v", tree)
	}
	if tree := p.Parse(""); tree != nil {
		t.Errorf("expected nil for empty text, got %+v", tree)
	}
}

func TestParse_MalformedLinesSkipped(t *testing.T) {
	p := NewParser(0)
	// "-" with no label and "#" with no title are not structure.
	tree := p.Parse("-\n#\n- Valid section")
	if tree == nil {
		t.Fatal("expected a tree")
	}
	want := []string{"Valid section"}
	if diff := cmp.Diff(want, LeafSections(tree)); diff != "" {
		t.Errorf("leaf mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CacheReturnsSameTree(t *testing.T) {
	p := NewParser(4)
	first := p.Parse("- Hero\n- CTA")
	second := p.Parse("- Hero\n- CTA")
	if first != second {
		t.Error("identical content should hit the parse cache")
	}
}

func TestLeafSections_Nil(t *testing.T) {
	if got := LeafSections(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hero Section!", "hero-section"},
		{"  CTA  ", "cta"},
		{"Social Proof / Logos", "social-proof-logos"},
		{"FAQ", "faq"},
		{"hero-section", "hero-section"},
	}
	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
