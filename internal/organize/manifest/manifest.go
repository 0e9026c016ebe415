// internal/organize/manifest/manifest.go

// Package manifest turns raw zip bytes into the flat list of file
// descriptors the planner and rewriter operate on. It filters OS metadata
// entries and provides the folder-counting helper used symmetrically on
// original and proposed paths.
package manifest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// FileEntry describes one non-directory archive member. Paths are
// archive-relative and forward-slash separated. The JSON tags match the
// shape embedded in the planner prompt.
type FileEntry struct {
	OriginalPath string `json:"originalPath"`
	FileName     string `json:"fileName"`
	Extension    string `json:"extension"`
	SizeBytes    int64  `json:"sizeBytes"`
	MimeType     string `json:"mimeType"`
}

// ErrNoFiles is returned when an archive contains no qualifying entries.
var ErrNoFiles = errors.New("no files found in zip")

const (
	macMetadataPrefix = "__MACOSX"
	dsStoreMarker     = ".DS_Store"
)

// Build reads a zip archive and returns one FileEntry per qualifying
// member. Directory entries, the macOS resource-fork folder, and .DS_Store
// markers are skipped. Corrupt archive bytes and empty manifests are hard
// errors surfaced to the caller.
func Build(data []byte) ([]FileEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}

	var entries []FileEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(f.Name, macMetadataPrefix) {
			continue
		}
		if strings.Contains(f.Name, dsStoreMarker) {
			continue
		}
		entries = append(entries, FileEntry{
			OriginalPath: f.Name,
			FileName:     FileName(f.Name),
			Extension:    Extension(f.Name),
			SizeBytes:    int64(f.UncompressedSize64),
			MimeType:     MimeType(f.Name),
		})
	}

	if len(entries) == 0 {
		return nil, ErrNoFiles
	}
	return entries, nil
}

// CountUniqueFolders counts the distinct folder prefixes across paths.
// For ["a/b/c.txt", "a/d.txt"] the folders are "a" and "a/b", so the count
// is 2. The result is independent of path order.
func CountUniqueFolders(paths []string) int {
	folders := make(map[string]struct{})
	for _, p := range paths {
		parts := strings.Split(p, "/")
		parts = parts[:len(parts)-1] // drop the filename
		current := ""
		for _, part := range parts {
			if current == "" {
				current = part
			} else {
				current = current + "/" + part
			}
			if current != "" {
				folders[current] = struct{}{}
			}
		}
	}
	return len(folders)
}

// TotalBytes sums the uncompressed sizes of all entries.
func TotalBytes(entries []FileEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.SizeBytes
	}
	return total
}

// Paths returns the original path of every entry, in manifest order.
func Paths(entries []FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.OriginalPath
	}
	return paths
}

// FileName returns the final path segment.
func FileName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		if name := path[i+1:]; name != "" {
			return name
		}
	}
	return path
}

// Extension returns the lowercased substring after the last dot of the
// filename, or "" when there is none.
func Extension(path string) string {
	name := FileName(path)
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
