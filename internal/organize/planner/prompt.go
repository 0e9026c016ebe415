// internal/organize/planner/prompt.go
package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/dalemusser/stratasort/internal/organize/manifest"
)

// sampleCap bounds how many manifest entries are embedded in the prompt.
// The model is told the true total and instructed to cover every file even
// though only a sample is shown.
const sampleCap = 150

func systemPrompt(settings models.OrganizationSettings) string {
	return fmt.Sprintf(`You are an expert file organization assistant. Analyze files and propose a clean folder structure.

Rules:
- Group files by %s
- Maximum folder depth: %d
- Naming style: %s
- Use human-readable folder names
- Preserve file extensions
- Avoid filename collisions
- Identify duplicates by similar names

Respond with valid JSON only.`,
		strings.Join(settings.GroupBy, ", "), settings.MaxDepth, settings.NamingStyle)
}

func userPrompt(entries []manifest.FileEntry) (string, error) {
	sample := entries
	if len(sample) > sampleCap {
		sample = sample[:sampleCap]
	}
	sampleJSON, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Organize these %d files:\n\n%s\n", len(entries), sampleJSON)
	if len(entries) > sampleCap {
		fmt.Fprintf(&b, "\n... and %d more similar files\n", len(entries)-sampleCap)
	}
	fmt.Fprintf(&b, `
Respond with this JSON structure:
{
  "summary": "Brief description",
  "rules": ["Rule 1", "Rule 2"],
  "items": [{"originalPath": "path/file.ext", "newPath": "New/path/file.ext"}],
  "foldersBefore": 0,
  "foldersAfter": 0,
  "duplicatesFound": 0
}

IMPORTANT: Include ALL %d files in the items array with their new paths.`, len(entries))
	return b.String(), nil
}

// stripFences removes a markdown code fence around the completion content,
// if present. Models often wrap JSON in a fenced block despite being told
// not to.
func stripFences(content string) string {
	if i := strings.Index(content, "```json"); i >= 0 {
		rest := content[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(content, "```"); i >= 0 {
		rest := content[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(content)
}
