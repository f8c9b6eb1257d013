package memory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// IndexStore reads and writes the per-category index records. One index
// belongs to exactly one category directory; the root category is the empty
// path. Indexes are derived state and can always be rebuilt from the memory
// files, so corruption is recoverable via a full reindex rather than partial
// repair.
type IndexStore struct {
	resolver *Resolver
}

// NewIndexStore creates an index store over the given resolver's root.
func NewIndexStore(resolver *Resolver) *IndexStore {
	return &IndexStore{resolver: resolver}
}

func (s *IndexStore) pathFor(categoryPath string) (string, error) {
	if err := ValidateCategoryPath(categoryPath); err != nil {
		return "", err
	}
	return s.resolver.Resolve(indexRelPath(categoryPath))
}

func (s *IndexStore) dirFor(categoryPath string) (string, error) {
	if err := ValidateCategoryPath(categoryPath); err != nil {
		return "", err
	}
	return s.resolver.Resolve(categoryPath)
}

// Exists reports whether the category's directory exists.
func (s *IndexStore) Exists(categoryPath string) (bool, error) {
	dir, err := s.dirFor(categoryPath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Code: CodeStorageError, Op: "exists", Path: categoryPath, Err: err}
	}
	return info.IsDir(), nil
}

// Ensure creates the category directory and any missing ancestors.
// Idempotent.
func (s *IndexStore) Ensure(categoryPath string) error {
	dir, err := s.dirFor(categoryPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &Error{Code: CodeStorageError, Op: "ensure", Path: categoryPath, Err: err}
	}
	return nil
}

// Delete recursively removes the category directory and everything under
// it. A missing directory is a success. The root category is refused: that
// would erase the entire store.
func (s *IndexStore) Delete(categoryPath string) error {
	if categoryPath == "" {
		return &Error{
			Code: CodeStorageError,
			Op:   "delete",
			Err:  fmt.Errorf("refusing to delete the root category"),
		}
	}
	dir, err := s.dirFor(categoryPath)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return &Error{Code: CodeStorageError, Op: "delete", Path: categoryPath, Err: err}
	}
	return nil
}

// Read loads a category's index. A missing index file is reported as
// (nil, nil); malformed index content is a hard error, never reinterpreted
// as an empty index.
func (s *IndexStore) Read(categoryPath string) (*CategoryIndex, error) {
	path, err := s.pathFor(categoryPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Code: CodeStorageError, Op: "readIndex", Path: categoryPath, Err: err}
	}
	var idx CategoryIndex
	if err := yaml.Unmarshal(b, &idx); err != nil {
		return nil, &Error{Code: CodeStorageError, Op: "readIndex", Path: categoryPath, Err: err}
	}
	idx.normalize()
	return &idx, nil
}

// Write serializes and persists a category's index, creating parent
// directories as needed. Lists are normalized so output stays sorted and
// empty lists serialize explicitly.
func (s *IndexStore) Write(categoryPath string, idx *CategoryIndex) error {
	path, err := s.pathFor(categoryPath)
	if err != nil {
		return err
	}
	idx.normalize()
	b, err := yaml.Marshal(idx)
	if err != nil {
		return &Error{Code: CodeStorageError, Op: "writeIndex", Path: categoryPath, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &Error{Code: CodeStorageError, Op: "writeIndex", Path: categoryPath, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return &Error{Code: CodeStorageError, Op: "writeIndex", Path: categoryPath, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &Error{Code: CodeStorageError, Op: "writeIndex", Path: categoryPath, Err: err}
	}
	return nil
}

// SetSubcategoryDescription sets or clears (empty string) the description on
// a subcategory entry in the parent's index, creating the index and the
// entry when missing.
func (s *IndexStore) SetSubcategoryDescription(parentPath, subcategoryPath, description string) error {
	idx, err := s.Read(parentPath)
	if err != nil {
		return err
	}
	if idx == nil {
		idx = NewCategoryIndex()
	}
	found := false
	for i, sub := range idx.Subcategories {
		if sub.Path == subcategoryPath {
			idx.Subcategories[i].Description = description
			found = true
			break
		}
	}
	if !found {
		idx.Subcategories = append(idx.Subcategories, SubcategoryEntry{
			Path:        subcategoryPath,
			Description: description,
		})
	}
	return s.Write(parentPath, idx)
}

// RemoveSubcategoryEntry drops a subcategory entry from the parent's index.
// A missing parent index or entry is a no-op success.
func (s *IndexStore) RemoveSubcategoryEntry(parentPath, subcategoryPath string) error {
	idx, err := s.Read(parentPath)
	if err != nil || idx == nil {
		return err
	}
	if !idx.removeSubcategory(subcategoryPath) {
		return nil
	}
	return s.Write(parentPath, idx)
}
