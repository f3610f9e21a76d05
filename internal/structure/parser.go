// Package structure extracts a labeled section tree from free text. It is
// the structural-text collaborator the wireframe voting cycle depends on:
// Parse turns a participant's message into a Tree (or nil when no structure
// is present) and LeafSections flattens a tree to its leaf labels.
package structure

import (
	"hash/fnv"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Section is one labeled node in a proposal tree.
type Section struct {
	Label    string    `json:"label"`
	Children []Section `json:"children,omitempty"`
}

// Tree is the root of a parsed structural proposal.
type Tree struct {
	Sections []Section `json:"sections"`
}

// Parser parses structural blocks out of free text. Parses are memoized in
// a bounded cache keyed by a content hash, since the same message content is
// commonly parsed more than once per cycle.
type Parser struct {
	cache *lru.Cache[uint64, *Tree]
}

// DefaultCacheSize bounds the parse memo.
const DefaultCacheSize = 256

// NewParser creates a parser with a bounded parse cache. size <= 0 uses the
// default.
func NewParser(size int) *Parser {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[uint64, *Tree](size)
	return &Parser{cache: cache}
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	bulletRe  = regexp.MustCompile(`^(\s*)[-*]\s+(.+)$`)
)

// Parse extracts a section tree from text. Returns nil when the text
// contains no recognizable structure; malformed fragments are skipped, not
// rejected.
func (p *Parser) Parse(text string) *Tree {
	key := hashContent(text)
	if p.cache != nil {
		if tree, ok := p.cache.Get(key); ok {
			return tree
		}
	}

	tree := parse(text)
	if p.cache != nil {
		p.cache.Add(key, tree)
	}
	return tree
}

func parse(text string) *Tree {
	type frame struct {
		depth   int
		section *Section
	}

	root := &Section{}
	stack := []frame{{depth: -1, section: root}}

	push := func(depth int, label string) {
		label = strings.TrimSpace(label)
		if label == "" {
			return
		}
		for len(stack) > 1 && stack[len(stack)-1].depth >= depth {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].section
		parent.Children = append(parent.Children, Section{Label: label})
		stack = append(stack, frame{depth: depth, section: &parent.Children[len(parent.Children)-1]})
	}

	found := false
	for _, line := range strings.Split(text, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			// Headings restart nesting relative to other headings; depth is
			// negative-biased so bullets always nest under the last heading.
			push(len(m[1])-10, m[2])
			found = true
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			push(len(m[1]), m[2])
			found = true
		}
	}

	if !found {
		return nil
	}
	return &Tree{Sections: root.Children}
}

// LeafSections flattens a tree to its leaf labels in document order.
func LeafSections(t *Tree) []string {
	if t == nil {
		return nil
	}
	var leaves []string
	var walk func(s []Section)
	walk = func(sections []Section) {
		for _, s := range sections {
			if len(s.Children) == 0 {
				leaves = append(leaves, s.Label)
				continue
			}
			walk(s.Children)
		}
	}
	walk(t.Sections)
	return leaves
}

var labelStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeLabel converts a section label to its canonical lowercase
// hyphenated key, e.g. "Hero Section!" -> "hero-section".
func NormalizeLabel(label string) string {
	key := labelStripRe.ReplaceAllString(strings.ToLower(label), "-")
	return strings.Trim(key, "-")
}

func hashContent(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}
