package rewrite

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/dalemusser/stratasort/internal/domain/models"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read rewritten zip: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %q: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %q: %v", f.Name, err)
		}
		out[f.Name] = string(content)
	}
	return out
}

func TestBuild(t *testing.T) {
	original := makeZip(t, map[string]string{
		"IMG_001.jpg": "photo one",
		"IMG_002.jpg": "photo two",
		"notes.txt":   "remember the milk",
	})

	plan := &models.OrganizationPlan{Items: []models.PlanItem{
		{OriginalPath: "IMG_001.jpg", NewPath: "Photos/IMG_001.jpg"},
		{OriginalPath: "IMG_002.jpg", NewPath: "Photos/IMG_002.jpg"},
		{OriginalPath: "notes.txt", NewPath: "Documents/notes.txt"},
	}}

	organized, err := Build(plan, original)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got := readZip(t, organized)
	want := map[string]string{
		"Photos/IMG_001.jpg":  "photo one",
		"Photos/IMG_002.jpg":  "photo two",
		"Documents/notes.txt": "remember the milk",
	}
	if len(got) != len(want) {
		t.Fatalf("rewritten zip has %d entries, want %d: %v", len(got), len(want), got)
	}
	for path, content := range want {
		if got[path] != content {
			t.Errorf("entry %q = %q, want %q", path, got[path], content)
		}
	}
}

func TestBuild_SkipsUnknownSourcePaths(t *testing.T) {
	original := makeZip(t, map[string]string{"a.txt": "alpha"})

	plan := &models.OrganizationPlan{Items: []models.PlanItem{
		{OriginalPath: "a.txt", NewPath: "Docs/a.txt"},
		{OriginalPath: "missing.txt", NewPath: "Docs/missing.txt"},
	}}

	organized, err := Build(plan, original)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got := readZip(t, organized)
	if len(got) != 1 {
		t.Fatalf("rewritten zip has %d entries, want 1", len(got))
	}
	if got["Docs/a.txt"] != "alpha" {
		t.Errorf("Docs/a.txt = %q, want alpha", got["Docs/a.txt"])
	}
}

func TestBuild_CorruptOriginal(t *testing.T) {
	plan := &models.OrganizationPlan{Items: []models.PlanItem{
		{OriginalPath: "a.txt", NewPath: "b.txt"},
	}}
	if _, err := Build(plan, []byte("not a zip")); err == nil {
		t.Error("Build() on corrupt original should fail")
	}
}
