package script

import (
	"bytes"
	"testing"

	"github.com/dalemusser/stratasort/internal/domain/models"
)

func TestRender(t *testing.T) {
	items := []models.PlanItem{
		{OriginalPath: "A", NewPath: "B"},
	}

	got := Render("photos.zip", items)
	want := "#!/bin/bash\n" +
		"# stratasort organization script\n" +
		"# Generated for: photos.zip\n" +
		"\n" +
		"move \"A\" \"B\"\n"
	if string(got) != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
}

func TestRender_PreservesItemOrder(t *testing.T) {
	items := []models.PlanItem{
		{OriginalPath: "z.txt", NewPath: "Docs/z.txt"},
		{OriginalPath: "a.txt", NewPath: "Docs/a.txt"},
	}

	got := Render("stuff.zip", items)
	zIdx := bytes.Index(got, []byte("z.txt"))
	aIdx := bytes.Index(got, []byte("a.txt"))
	if zIdx < 0 || aIdx < 0 || zIdx > aIdx {
		t.Errorf("move lines not in plan order:\n%s", got)
	}
}

func TestRender_ByteStable(t *testing.T) {
	items := []models.PlanItem{
		{OriginalPath: "a.txt", NewPath: "Docs/a.txt"},
	}
	first := Render("photos.zip", items)
	second := Render("photos.zip", items)
	if !bytes.Equal(first, second) {
		t.Error("identical input produced different output")
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain.txt`, `"plain.txt"`},
		{`has space.txt`, `"has space.txt"`},
		{`say "hi".txt`, `"say \"hi\".txt"`},
		{`back\slash`, `"back\\slash"`},
		{"price$`.txt", "\"price\\$\\`.txt\""},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
