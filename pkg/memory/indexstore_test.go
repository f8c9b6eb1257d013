package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexStore(t *testing.T) (*IndexStore, string) {
	t.Helper()
	root := t.TempDir()
	r, err := NewResolver(root)
	require.NoError(t, err)
	return NewIndexStore(r), root
}

func TestIndexStoreReadMissingIsNil(t *testing.T) {
	s, _ := newTestIndexStore(t)

	idx, err := s.Read("project")
	assert.NoError(t, err)
	assert.Nil(t, idx)
}

func TestIndexStoreWriteThenRead(t *testing.T) {
	s, _ := newTestIndexStore(t)

	idx := NewCategoryIndex()
	idx.Memories = append(idx.Memories, IndexMemoryEntry{Path: "project/cortex/design", TokenEstimate: 1})
	idx.Subcategories = append(idx.Subcategories, SubcategoryEntry{Path: "project/cortex", MemoryCount: 1})
	require.NoError(t, s.Write("project", idx))

	got, err := s.Read("project")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, idx.Memories, got.Memories)
	assert.Equal(t, idx.Subcategories, got.Subcategories)
}

func TestIndexStoreEmptyListsSerializeExplicitly(t *testing.T) {
	s, root := newTestIndexStore(t)

	require.NoError(t, s.Write("", NewCategoryIndex()))

	b, err := os.ReadFile(filepath.Join(root, "index.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memories: []\nsubcategories: []\n", string(b))
}

func TestIndexStoreWriteSortsEntries(t *testing.T) {
	s, _ := newTestIndexStore(t)

	idx := NewCategoryIndex()
	idx.Memories = []IndexMemoryEntry{{Path: "a/z"}, {Path: "a/b"}}
	idx.Subcategories = []SubcategoryEntry{{Path: "zz"}, {Path: "aa"}}
	require.NoError(t, s.Write("", idx))

	got, err := s.Read("")
	require.NoError(t, err)
	assert.Equal(t, "a/b", got.Memories[0].Path)
	assert.Equal(t, "a/z", got.Memories[1].Path)
	assert.Equal(t, "aa", got.Subcategories[0].Path)
	assert.Equal(t, "zz", got.Subcategories[1].Path)
}

func TestIndexStoreMalformedIsHardError(t *testing.T) {
	s, root := newTestIndexStore(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "project"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "project", "index.yaml"), []byte("{not yaml"), 0o600))

	_, err := s.Read("project")
	assert.Equal(t, CodeStorageError, CodeOf(err))
}

func TestIndexStoreExistsEnsureDelete(t *testing.T) {
	s, _ := newTestIndexStore(t)

	ok, err := s.Exists("project/cortex")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Ensure("project/cortex"))
	require.NoError(t, s.Ensure("project/cortex")) // idempotent

	ok, err = s.Exists("project/cortex")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists("project")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete("project"))
	ok, err = s.Exists("project/cortex")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting again is a success
	assert.NoError(t, s.Delete("project"))
}

func TestIndexStoreDeleteRootRefused(t *testing.T) {
	s, _ := newTestIndexStore(t)
	err := s.Delete("")
	assert.Equal(t, CodeStorageError, CodeOf(err))
}

func TestSetSubcategoryDescription(t *testing.T) {
	s, _ := newTestIndexStore(t)

	// creates the parent index and the entry when missing
	require.NoError(t, s.SetSubcategoryDescription("project", "project/cortex", "memory engine notes"))

	idx, err := s.Read("project")
	require.NoError(t, err)
	require.Len(t, idx.Subcategories, 1)
	assert.Equal(t, "memory engine notes", idx.Subcategories[0].Description)
	assert.Equal(t, 0, idx.Subcategories[0].MemoryCount)

	// empty string clears the description
	require.NoError(t, s.SetSubcategoryDescription("project", "project/cortex", ""))
	idx, err = s.Read("project")
	require.NoError(t, err)
	assert.Empty(t, idx.Subcategories[0].Description)
}

func TestRemoveSubcategoryEntry(t *testing.T) {
	s, _ := newTestIndexStore(t)

	// no parent index at all: no-op success
	assert.NoError(t, s.RemoveSubcategoryEntry("project", "project/cortex"))

	require.NoError(t, s.SetSubcategoryDescription("project", "project/cortex", "x"))
	require.NoError(t, s.RemoveSubcategoryEntry("project", "project/cortex"))

	idx, err := s.Read("project")
	require.NoError(t, err)
	assert.Empty(t, idx.Subcategories)

	// entry already gone: no-op success
	assert.NoError(t, s.RemoveSubcategoryEntry("project", "project/cortex"))
}
