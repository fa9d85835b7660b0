// Package filesystem finds book files on the local filesystem.
package filesystem

import (
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

// ResolvePath converts a file:// URI to a local path.
// Bare paths pass through unchanged.
func ResolvePath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		return strings.TrimPrefix(uri, "file://")
	}
	return u.Path
}

// FindBooks returns the supported book files under root in lexical order.
// Hidden files and directories are skipped. Subdirectories are only
// descended into when recursive is set.
func FindBooks(root string, recursive bool) ([]string, error) {
	root = ResolvePath(root)
	var books []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if normalisers.IsSupported(path) {
			books = append(books, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(books)
	return books, nil
}
