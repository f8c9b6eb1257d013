// Package memory implements a file-backed store for small units of
// structured text. Memories live as Markdown files with YAML front-matter
// under a hierarchical category tree; every category directory carries a
// derived index.yaml describing its direct memories and subcategories.
// Memory files are the single source of truth; indexes are a rebuildable
// cache over them.
package memory

import (
	"sort"
	"time"
)

// Metadata holds the front-matter fields of a memory file.
type Metadata struct {
	CreatedAt time.Time  // set once at first write, never changed afterwards
	UpdatedAt time.Time  // refreshed on every write
	Tags      []string   // possibly empty; every element non-empty
	Source    string     // non-empty after trimming
	ExpiresAt *time.Time // optional; expiry enforcement is a caller concern
}

// Memory is the parsed form of a single memory file.
type Memory struct {
	Metadata Metadata
	Content  string
}

// NewMemory builds a memory stamped with the current time. Tags may be nil.
func NewMemory(content, source string, tags []string) *Memory {
	now := time.Now().UTC()
	if tags == nil {
		tags = []string{}
	}
	return &Memory{
		Metadata: Metadata{
			CreatedAt: now,
			UpdatedAt: now,
			Tags:      tags,
			Source:    source,
		},
		Content: content,
	}
}

// Touch refreshes UpdatedAt, leaving CreatedAt untouched.
func (m *Memory) Touch() {
	m.Metadata.UpdatedAt = time.Now().UTC()
}

// IndexMemoryEntry describes one direct memory of a category.
type IndexMemoryEntry struct {
	Path          string     `yaml:"path"`
	TokenEstimate int        `yaml:"tokenEstimate"`
	Summary       string     `yaml:"summary,omitempty"`
	UpdatedAt     *time.Time `yaml:"updatedAt,omitempty"`
}

// SubcategoryEntry describes one direct child category. MemoryCount is the
// total number of memories in the child's subtree.
type SubcategoryEntry struct {
	Path        string `yaml:"path"`
	MemoryCount int    `yaml:"memoryCount"`
	Description string `yaml:"description,omitempty"`
}

// CategoryIndex is the derived record stored as index.yaml in each category
// directory. Memories lists only direct children of the category, never
// descendants; Subcategories lists only direct child categories. Both are
// kept sorted by path for deterministic output.
type CategoryIndex struct {
	Memories      []IndexMemoryEntry `yaml:"memories"`
	Subcategories []SubcategoryEntry `yaml:"subcategories"`
}

// NewCategoryIndex returns an empty index with non-nil lists, so an empty
// category serializes as explicit empty sequences.
func NewCategoryIndex() *CategoryIndex {
	return &CategoryIndex{
		Memories:      []IndexMemoryEntry{},
		Subcategories: []SubcategoryEntry{},
	}
}

func (idx *CategoryIndex) normalize() {
	if idx.Memories == nil {
		idx.Memories = []IndexMemoryEntry{}
	}
	if idx.Subcategories == nil {
		idx.Subcategories = []SubcategoryEntry{}
	}
	sort.Slice(idx.Memories, func(i, j int) bool {
		return idx.Memories[i].Path < idx.Memories[j].Path
	})
	sort.Slice(idx.Subcategories, func(i, j int) bool {
		return idx.Subcategories[i].Path < idx.Subcategories[j].Path
	})
}

// TotalMemoryCount is the number of memories in the category's subtree:
// its direct memories plus the counts carried by its subcategory entries.
func (idx *CategoryIndex) TotalMemoryCount() int {
	total := len(idx.Memories)
	for _, sub := range idx.Subcategories {
		total += sub.MemoryCount
	}
	return total
}

// upsertMemory replaces any prior entry with the same path, carrying the
// prior entry's summary forward when the new one has none.
func (idx *CategoryIndex) upsertMemory(entry IndexMemoryEntry) {
	for i, existing := range idx.Memories {
		if existing.Path == entry.Path {
			if entry.Summary == "" {
				entry.Summary = existing.Summary
			}
			idx.Memories[i] = entry
			idx.normalize()
			return
		}
	}
	idx.Memories = append(idx.Memories, entry)
	idx.normalize()
}

// removeMemory deletes the entry with the given path, reporting whether the
// index changed.
func (idx *CategoryIndex) removeMemory(path string) bool {
	for i, existing := range idx.Memories {
		if existing.Path == path {
			idx.Memories = append(idx.Memories[:i], idx.Memories[i+1:]...)
			return true
		}
	}
	return false
}

// upsertSubcategory sets the memory count of a child entry, creating it when
// absent and preserving any existing description.
func (idx *CategoryIndex) upsertSubcategory(path string, memoryCount int) {
	for i, existing := range idx.Subcategories {
		if existing.Path == path {
			idx.Subcategories[i].MemoryCount = memoryCount
			return
		}
	}
	idx.Subcategories = append(idx.Subcategories, SubcategoryEntry{Path: path, MemoryCount: memoryCount})
	idx.normalize()
}

// removeSubcategory deletes the child entry with the given path, reporting
// whether the index changed.
func (idx *CategoryIndex) removeSubcategory(path string) bool {
	for i, existing := range idx.Subcategories {
		if existing.Path == path {
			idx.Subcategories = append(idx.Subcategories[:i], idx.Subcategories[i+1:]...)
			return true
		}
	}
	return false
}
