package memory

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/gobwas/glob"

	"github.com/entrhq/cortex/pkg/tokenizer"
)

// Store is the storage engine for a single memory store rooted at a
// directory. It is stateless given the root: every operation is a sequence
// of filesystem calls with no process-wide cache, no locks, and no retries.
// Concurrent writers race on index files; callers are expected to treat a
// store as single-writer.
type Store struct {
	files   *FileStore
	indexes *IndexStore
	indexer *Indexer
}

// Open creates a store over the given root directory. The directory itself
// is created lazily by the first write. Token counting uses the tiktoken
// encoding when it can be loaded and a deterministic heuristic otherwise.
func Open(root string) (*Store, error) {
	resolver, err := NewResolver(root)
	if err != nil {
		return nil, err
	}

	countTokens := tokenizer.Estimate
	if tok, err := tokenizer.New(); err != nil {
		slog.Debug("memory: tiktoken unavailable, using heuristic token estimates", "err", err)
	} else {
		countTokens = tok.CountTokens
	}

	files := NewFileStore(resolver)
	indexes := NewIndexStore(resolver)
	return &Store{
		files:   files,
		indexes: indexes,
		indexer: NewIndexer(files, indexes, countTokens),
	}, nil
}

// Root returns the absolute store root directory.
func (s *Store) Root() string {
	return s.files.resolver.Root()
}

// ReadMemory returns the raw file content of a memory, or (nil, nil) when no
// such memory exists.
func (s *Store) ReadMemory(slugPath string) ([]byte, error) {
	return s.files.Read(slugPath)
}

// WriteMemory validates content through the front-matter codec, persists the
// file, then runs the incremental index update for the owning category and
// its ancestor chain. Nothing is written when validation fails.
func (s *Store) WriteMemory(slugPath string, content []byte) error {
	mem, err := Parse(content)
	if err != nil {
		return err
	}
	if err := s.files.Write(slugPath, content); err != nil {
		return err
	}
	return s.indexer.ApplyWrite(slugPath, mem, true)
}

// RemoveMemory deletes a memory file and drops its index entry, refreshing
// ancestor counts. Removing a memory that does not exist is a success.
func (s *Store) RemoveMemory(slugPath string) error {
	if err := s.files.Remove(slugPath); err != nil {
		return err
	}
	return s.indexer.ApplyRemove(slugPath)
}

// MoveMemory relocates a memory to a new slug path, changing its identity
// and owning category without touching its metadata. The destination's
// category directory must already exist. Both the source and destination
// ancestor chains are updated, so no follow-up reindex is required.
func (s *Store) MoveMemory(sourceSlugPath, destinationSlugPath string) error {
	raw, err := s.files.Read(sourceSlugPath)
	if err != nil {
		return err
	}
	if raw == nil {
		return &Error{
			Code: CodeWriteFailed,
			Op:   "move",
			Path: sourceSlugPath,
			Err:  fmt.Errorf("source memory does not exist"),
		}
	}
	mem, err := Parse(raw)
	if err != nil {
		return err
	}
	if err := s.files.Move(sourceSlugPath, destinationSlugPath); err != nil {
		return err
	}
	if err := s.indexer.ApplyRemove(sourceSlugPath); err != nil {
		return err
	}
	return s.indexer.ApplyWrite(destinationSlugPath, mem, true)
}

// ReadIndex returns a category's index, or (nil, nil) when none exists yet.
func (s *Store) ReadIndex(categoryPath string) (*CategoryIndex, error) {
	return s.indexes.Read(categoryPath)
}

// WriteIndex persists a category's index as given.
func (s *Store) WriteIndex(categoryPath string, idx *CategoryIndex) error {
	return s.indexes.Write(categoryPath, idx)
}

// Reindex rebuilds every index file from the memory file tree. See
// Indexer.Reindex for the exact semantics.
func (s *Store) Reindex() error {
	return s.indexer.Reindex()
}

// CategoryExists reports whether the category's directory exists.
func (s *Store) CategoryExists(categoryPath string) (bool, error) {
	return s.indexes.Exists(categoryPath)
}

// EnsureCategory creates the category directory and missing ancestors.
func (s *Store) EnsureCategory(categoryPath string) error {
	return s.indexes.Ensure(categoryPath)
}

// DeleteCategory recursively removes a category directory and its contents.
// Index entries referring to the category elsewhere are untouched; use
// RemoveSubcategoryEntry or Reindex to clean them up.
func (s *Store) DeleteCategory(categoryPath string) error {
	return s.indexes.Delete(categoryPath)
}

// SetSubcategoryDescription sets or clears (empty string) a subcategory
// entry's description in the parent's index.
func (s *Store) SetSubcategoryDescription(parentPath, subcategoryPath, description string) error {
	return s.indexes.SetSubcategoryDescription(parentPath, subcategoryPath, description)
}

// RemoveSubcategoryEntry drops a subcategory entry from the parent's index.
func (s *Store) RemoveSubcategoryEntry(parentPath, subcategoryPath string) error {
	return s.indexes.RemoveSubcategoryEntry(parentPath, subcategoryPath)
}

// ListMemories returns the sorted slug paths of every memory whose slug path
// matches the glob pattern, with '/' as the separator. An empty pattern
// matches everything.
func (s *Store) ListMemories(pattern string) ([]string, error) {
	var matcher glob.Glob
	if pattern != "" {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, &Error{Code: CodeReadFailed, Op: "list", Path: pattern, Err: err}
		}
		matcher = g
	}
	var slugs []string
	err := s.files.walkMemories(func(slugPath, _ string) error {
		if matcher == nil || matcher.Match(slugPath) {
			slugs = append(slugs, slugPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(slugs)
	return slugs, nil
}
