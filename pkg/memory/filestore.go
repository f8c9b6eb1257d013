package memory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore performs the raw file operations for individual memories. It
// never touches index files; index consistency after a mutation is the
// caller's responsibility.
type FileStore struct {
	resolver *Resolver
}

// NewFileStore creates a file store over the given resolver's root.
func NewFileStore(resolver *Resolver) *FileStore {
	return &FileStore{resolver: resolver}
}

// pathFor validates a slug path and maps it to the memory file's absolute
// location. Shape errors surface under the calling operation's code;
// containment errors keep PATH_ESCAPES_ROOT.
func (fs *FileStore) pathFor(op string, code ErrorCode, slugPath string) (string, error) {
	if err := ValidateSlugPath(slugPath); err != nil {
		return "", tagError(code, op, slugPath, err)
	}
	return fs.resolver.Resolve(slugPath + Extension)
}

// Read returns the raw bytes of a memory file. A missing file is a normal
// outcome reported as (nil, nil), never as an error.
func (fs *FileStore) Read(slugPath string) ([]byte, error) {
	path, err := fs.pathFor("read", CodeReadFailed, slugPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Code: CodeReadFailed, Op: "read", Path: slugPath, Err: err}
	}
	return b, nil
}

// Write persists a memory file, creating parent directories as needed. The
// replacement is atomic from the caller's perspective: content lands in a
// temporary file first and is renamed over the destination.
func (fs *FileStore) Write(slugPath string, content []byte) error {
	path, err := fs.pathFor("write", CodeWriteFailed, slugPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &Error{Code: CodeWriteFailed, Op: "write", Path: slugPath, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return &Error{Code: CodeWriteFailed, Op: "write", Path: slugPath, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return &Error{Code: CodeWriteFailed, Op: "write", Path: slugPath, Err: err}
	}
	return nil
}

// Remove deletes a memory file. Removing a file that does not exist is a
// success, so Remove is idempotent.
func (fs *FileStore) Remove(slugPath string) error {
	path, err := fs.pathFor("remove", CodeWriteFailed, slugPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Code: CodeWriteFailed, Op: "remove", Path: slugPath, Err: err}
	}
	return nil
}

// Move renames a memory file to a new slug path. The destination's category
// directory must already exist; Move never creates destination categories.
func (fs *FileStore) Move(sourceSlugPath, destinationSlugPath string) error {
	src, err := fs.pathFor("move", CodeWriteFailed, sourceSlugPath)
	if err != nil {
		return err
	}
	dst, err := fs.pathFor("move", CodeWriteFailed, destinationSlugPath)
	if err != nil {
		return err
	}
	destDir := filepath.Dir(dst)
	info, err := os.Stat(destDir)
	if err != nil || !info.IsDir() {
		return &Error{
			Code: CodeWriteFailed,
			Op:   "move",
			Path: destinationSlugPath,
			Err:  fmt.Errorf("destination category directory does not exist"),
		}
	}
	if err := os.Rename(src, dst); err != nil {
		return &Error{Code: CodeWriteFailed, Op: "move", Path: sourceSlugPath, Err: err}
	}
	return nil
}

// walkMemories visits every memory file under the store root in lexical
// order, invoking fn with the derived slug path and the file's absolute
// location. A missing root directory is treated as an empty store. A file
// whose derived slug fails validation aborts the walk with that error.
func (fs *FileStore) walkMemories(fn func(slugPath, absPath string) error) error {
	root := fs.resolver.Root()
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return &Error{Code: CodeReadFailed, Op: "walk", Path: path, Err: err}
		}
		if d.IsDir() || filepath.Ext(d.Name()) != Extension {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return &Error{Code: CodeReadFailed, Op: "walk", Path: path, Err: err}
		}
		slugPath, err := slugFromRelFile(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		return fn(slugPath, path)
	})
}
