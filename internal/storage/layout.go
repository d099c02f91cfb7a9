package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/FacetGrab/internal/types"
)

// Layout places product images under Root/{metal}/{cut}/{product}.
type Layout struct {
	Root string
}

// NewLayout creates a layout rooted at the given destination folder.
func NewLayout(root string) *Layout {
	return &Layout{Root: filepath.Clean(root)}
}

// Path returns the folder for a product without creating it.
func (l *Layout) Path(metal, cut, product string) (string, error) {
	dir := filepath.Join(l.Root, SanitizeSegment(metal), SanitizeSegment(cut), SanitizeSegment(product))

	rel, err := filepath.Rel(l.Root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", dir, types.ErrUnsafePath)
	}
	return dir, nil
}

// Folder returns the folder for a product, creating it and any missing
// parents. Calling it again for the same product is a no-op.
func (l *Layout) Folder(metal, cut, product string) (string, error) {
	dir, err := l.Path(metal, cut, product)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create product folder: %w", err)
	}
	return dir, nil
}

// Rel returns path relative to the layout root using forward slashes.
func (l *Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// ImageFilename returns "{product}_{type}_{n}.jpg".
func ImageFilename(product string, typ types.ImageType, n int) string {
	return fmt.Sprintf("%s_%s_%d.jpg", SanitizeSegment(product), typ, n)
}

// SanitizeSegment makes s safe to use as a single path component.
// Separators, reserved characters and control characters become "_".
func SanitizeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, s)

	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ". ")

	switch s {
	case "", ".", "..":
		return "_"
	}
	return s
}
