package memory

import (
	"fmt"
	"path"
	"strings"
)

const (
	// Extension is the on-disk suffix for memory files.
	Extension = ".md"

	// IndexFileName is the per-category index file, present in every
	// indexed category directory including the store root.
	IndexFileName = "index.yaml"

	// reservedSlug collides with the index filename and is therefore
	// forbidden as a memory's final path segment.
	reservedSlug = "index"
)

// ValidateSlugPath checks a memory slug path: at least two /-delimited
// segments, every segment well formed, and a final segment that is not the
// reserved name "index". Traversal attempts are reported with
// PATH_ESCAPES_ROOT; shape errors are plain and get tagged with the calling
// operation's code.
func ValidateSlugPath(slugPath string) error {
	segments, err := splitSegments(slugPath)
	if err != nil {
		return err
	}
	if len(segments) < 2 {
		return fmt.Errorf("slug path %q needs at least a category and a slug", slugPath)
	}
	if segments[len(segments)-1] == reservedSlug {
		return fmt.Errorf("%q is reserved for index files", reservedSlug)
	}
	return nil
}

// ValidateCategoryPath checks a category path. The empty string denotes the
// root category and is always valid.
func ValidateCategoryPath(categoryPath string) error {
	if categoryPath == "" {
		return nil
	}
	_, err := splitSegments(categoryPath)
	return err
}

func splitSegments(p string) ([]string, error) {
	segments := strings.Split(p, "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `\`) {
			return nil, &Error{
				Code: CodePathEscapesRoot,
				Path: p,
				Err:  fmt.Errorf("invalid path segment %q", seg),
			}
		}
	}
	return segments, nil
}

// SplitSlugPath separates a slug path into its owning category path and the
// memory's own slug.
func SplitSlugPath(slugPath string) (categoryPath, slug string, err error) {
	if err := ValidateSlugPath(slugPath); err != nil {
		return "", "", err
	}
	i := strings.LastIndex(slugPath, "/")
	return slugPath[:i], slugPath[i+1:], nil
}

// parentOf returns the parent category of a category path, "" for top-level
// categories and for the root itself.
func parentOf(categoryPath string) string {
	i := strings.LastIndex(categoryPath, "/")
	if i < 0 {
		return ""
	}
	return categoryPath[:i]
}

// slugFromRelFile derives a slug path from a store-relative memory file path
// (slash-separated, with the memory extension still attached). A file whose
// derived slug is invalid poisons the scan that found it.
func slugFromRelFile(rel string) (string, error) {
	slug := strings.TrimSuffix(rel, Extension)
	if slug == rel {
		return "", &Error{
			Code: CodeStorageError,
			Op:   "scan",
			Path: rel,
			Err:  fmt.Errorf("not a memory file"),
		}
	}
	if err := ValidateSlugPath(slug); err != nil {
		return "", tagError(CodeStorageError, "scan", rel, err)
	}
	return slug, nil
}

// indexRelPath is the store-relative location of a category's index file.
func indexRelPath(categoryPath string) string {
	return path.Join(categoryPath, IndexFileName)
}
