// internal/organize/rewrite/rewrite.go

// Package rewrite materializes an approved plan into a new zip archive by
// copying each entry's bytes from its original path to its new path.
package rewrite

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/dalemusser/stratasort/internal/domain/models"
)

// compressionLevel is the fixed DEFLATE level for the rewritten archive.
const compressionLevel = 6

// Build copies every plan item from the original archive into a fresh one.
// An item whose originalPath is not present in the source is skipped
// without error; the repair pass upstream should have removed such items,
// so this only covers a plan/manifest desynchronization.
func Build(plan *models.OrganizationPlan, original []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(original), int64(len(original)))
	if err != nil {
		return nil, fmt.Errorf("read original zip: %w", err)
	}

	source := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		source[f.Name] = f
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, compressionLevel)
	})

	for _, item := range plan.Items {
		src, ok := source[item.OriginalPath]
		if !ok {
			continue
		}
		if err := copyEntry(zw, src, item.NewPath); err != nil {
			return nil, fmt.Errorf("copy %q to %q: %w", item.OriginalPath, item.NewPath, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}

func copyEntry(zw *zip.Writer, src *zip.File, newPath string) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := zw.Create(newPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	return err
}
