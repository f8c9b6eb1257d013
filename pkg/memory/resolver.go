package memory

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolver maps store-relative paths to absolute filesystem paths and
// guarantees the result stays inside the store root. It defends against
// traversal segments and absolute-path injection in user-supplied slugs.
// Resolution is pure string manipulation; no filesystem access happens here.
type Resolver struct {
	root string
}

// NewResolver creates a resolver anchored at the given store root.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, &Error{Code: CodeStorageError, Err: fmt.Errorf("store root cannot be empty")}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &Error{Code: CodeStorageError, Path: root, Err: fmt.Errorf("resolve store root: %w", err)}
	}
	return &Resolver{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute store root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve joins a store-relative path (slash-separated) against the root and
// verifies containment. An empty relative path resolves to the root itself.
func (r *Resolver) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", &Error{
			Code: CodePathEscapesRoot,
			Path: rel,
			Err:  fmt.Errorf("absolute paths are not permitted"),
		}
	}
	resolved := filepath.Clean(filepath.Join(r.root, filepath.FromSlash(rel)))
	if resolved != r.root && !strings.HasPrefix(resolved, r.root+string(filepath.Separator)) {
		return "", &Error{
			Code: CodePathEscapesRoot,
			Path: rel,
			Err:  fmt.Errorf("resolved path %q escapes store root %q", resolved, r.root),
		}
	}
	return resolved, nil
}
