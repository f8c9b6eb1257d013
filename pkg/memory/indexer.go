package memory

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Indexer keeps category indexes consistent with the memory file tree. It
// offers two algorithms: an incremental update touching only one memory's
// owning category and its ancestor chain, and a full bottom-up reindex that
// reconstructs every index from a filesystem scan.
type Indexer struct {
	files       *FileStore
	indexes     *IndexStore
	countTokens func(string) int
}

// NewIndexer wires the maintenance engine over the given stores. countTokens
// computes the deterministic token estimate recorded for each memory body.
func NewIndexer(files *FileStore, indexes *IndexStore, countTokens func(string) int) *Indexer {
	return &Indexer{files: files, indexes: indexes, countTokens: countTokens}
}

func (ix *Indexer) entryFor(slugPath string, mem *Memory) IndexMemoryEntry {
	updatedAt := mem.Metadata.UpdatedAt
	return IndexMemoryEntry{
		Path:          slugPath,
		TokenEstimate: ix.countTokens(mem.Content),
		UpdatedAt:     &updatedAt,
	}
}

// ApplyWrite runs the incremental update after a single memory write: it
// upserts the memory's entry into its owning category's index, then refreshes
// the subtree memory counts along the ancestor chain up to the root. The work
// is proportional to the slug path's depth, not to the store size.
// createMissing controls whether absent indexes are created along the way;
// writes default it to true.
func (ix *Indexer) ApplyWrite(slugPath string, mem *Memory, createMissing bool) error {
	categoryPath, _, err := SplitSlugPath(slugPath)
	if err != nil {
		return err
	}
	idx, err := ix.indexes.Read(categoryPath)
	if err != nil {
		return indexUpdateFailed(slugPath, err)
	}
	if idx == nil {
		if !createMissing {
			return nil
		}
		idx = NewCategoryIndex()
	}
	idx.upsertMemory(ix.entryFor(slugPath, mem))
	if err := ix.indexes.Write(categoryPath, idx); err != nil {
		return indexUpdateFailed(slugPath, err)
	}
	return ix.propagate(categoryPath, createMissing)
}

// ApplyRemove updates indexes after a memory file was removed or moved away:
// the entry disappears from the owning category's index and ancestor counts
// are refreshed. Subcategory entries whose subtree count reaches zero are
// dropped from their parent; absent ancestor indexes are only created when
// there is a non-zero count to record in them.
func (ix *Indexer) ApplyRemove(slugPath string) error {
	categoryPath, _, err := SplitSlugPath(slugPath)
	if err != nil {
		return err
	}
	idx, err := ix.indexes.Read(categoryPath)
	if err != nil {
		return indexUpdateFailed(slugPath, err)
	}
	if idx != nil && idx.removeMemory(slugPath) {
		if err := ix.indexes.Write(categoryPath, idx); err != nil {
			return indexUpdateFailed(slugPath, err)
		}
	}
	return ix.propagate(categoryPath, false)
}

// propagate walks the ancestor chain child-first, setting each parent's
// subcategory entry for the child to the child's current subtree memory
// count. Counts must be refreshed bottom-up so each level reads totals its
// own update already produced.
func (ix *Indexer) propagate(categoryPath string, createMissing bool) error {
	for child := categoryPath; child != ""; child = parentOf(child) {
		parent := parentOf(child)

		childIdx, err := ix.indexes.Read(child)
		if err != nil {
			return indexUpdateFailed(child, err)
		}
		total := 0
		if childIdx != nil {
			total = childIdx.TotalMemoryCount()
		}

		parentIdx, err := ix.indexes.Read(parent)
		if err != nil {
			return indexUpdateFailed(parent, err)
		}
		if parentIdx == nil {
			if !createMissing && total == 0 {
				continue
			}
			parentIdx = NewCategoryIndex()
		}
		if total == 0 {
			if !parentIdx.removeSubcategory(child) {
				continue
			}
		} else {
			parentIdx.upsertSubcategory(child, total)
		}
		if err := ix.indexes.Write(parent, parentIdx); err != nil {
			return indexUpdateFailed(parent, err)
		}
	}
	return nil
}

// Reindex rebuilds every category index from scratch by walking the memory
// file tree once. Existing subcategory descriptions and memory summaries are
// not preserved; they are derived-state metadata a higher layer must copy
// forward if it wants them to survive. An empty or missing store root yields
// a single empty root index. Any memory file whose derived slug fails
// validation, or whose content fails to parse, aborts the whole reindex.
func (ix *Indexer) Reindex() error {
	memoriesByCategory := map[string][]IndexMemoryEntry{}
	children := map[string]map[string]bool{}
	categories := map[string]bool{"": true}

	err := ix.files.walkMemories(func(slugPath, absPath string) error {
		raw, err := os.ReadFile(absPath)
		if err != nil {
			return &Error{Code: CodeReadFailed, Op: "reindex", Path: slugPath, Err: err}
		}
		mem, err := Parse(raw)
		if err != nil {
			return fmt.Errorf("reindex %s: %w", slugPath, err)
		}

		categoryPath, _, err := SplitSlugPath(slugPath)
		if err != nil {
			return err
		}
		memoriesByCategory[categoryPath] = append(memoriesByCategory[categoryPath], ix.entryFor(slugPath, mem))

		for child := categoryPath; child != ""; child = parentOf(child) {
			categories[child] = true
			parent := parentOf(child)
			if children[parent] == nil {
				children[parent] = map[string]bool{}
			}
			children[parent][child] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Second pass over the in-memory structures: subtree totals, computed
	// deepest-first so parents sum already-final child counts.
	totals := map[string]int{}
	ordered := make([]string, 0, len(categories))
	for categoryPath := range categories {
		ordered = append(ordered, categoryPath)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})
	for _, categoryPath := range ordered {
		total := len(memoriesByCategory[categoryPath])
		for child := range children[categoryPath] {
			total += totals[child]
		}
		totals[categoryPath] = total
	}

	for categoryPath := range categories {
		idx := NewCategoryIndex()
		idx.Memories = append(idx.Memories, memoriesByCategory[categoryPath]...)
		for child := range children[categoryPath] {
			idx.Subcategories = append(idx.Subcategories, SubcategoryEntry{
				Path:        child,
				MemoryCount: totals[child],
			})
		}
		if err := ix.indexes.Write(categoryPath, idx); err != nil {
			return indexUpdateFailed(categoryPath, err)
		}
	}
	slog.Debug("memory: reindex complete",
		"categories", len(categories),
		"memories", totals[""])
	return nil
}

func indexUpdateFailed(path string, err error) error {
	if CodeOf(err) == CodePathEscapesRoot {
		return err
	}
	return &Error{Code: CodeIndexUpdateFailed, Op: "indexUpdate", Path: path, Err: err}
}
