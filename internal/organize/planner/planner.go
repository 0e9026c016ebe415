// internal/organize/planner/planner.go

// Package planner asks a chat-completions endpoint for a restructuring
// plan over a file manifest and repairs the response so it is a total,
// deterministic mapping over the input files.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratasort/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/dalemusser/stratasort/internal/organize/manifest"
)

// DefaultBaseURL is the OpenRouter chat-completions endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

const (
	temperature      = 0.2
	maxErrorBodySize = 2048
)

// Config carries everything a single plan request needs. It is passed in
// explicitly at call time; there is no ambient credential state.
type Config struct {
	BaseURL    string // completion endpoint; DefaultBaseURL when empty
	APIKey     string // BYOK credential, required
	Model      string // completion model identifier, required
	HTTPClient *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GeneratePlan issues one synchronous completion request for the manifest
// and returns a validated, repaired OrganizationPlan. Every error is a hard
// error; the caller records it as the session's failure, nothing retries
// here.
func GeneratePlan(ctx context.Context, entries []manifest.FileEntry, settings models.OrganizationSettings, cfg Config) (*models.OrganizationPlan, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	user, err := userPrompt(entries)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	content, err := complete(ctx, cfg, []message{
		{Role: "system", Content: systemPrompt(settings)},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, err
	}

	plan, err := parsePlan(content)
	if err != nil {
		return nil, err
	}

	Repair(plan, entries)
	return plan, nil
}

func complete(ctx context.Context, cfg Config, messages []message) (string, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	payload, err := json.Marshal(completionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ParseError{Err: err}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}

// parsePlan deserializes the completion content into a plan, stripping a
// markdown fence when present. The narrative fields pass through the HTML
// sanitizer since the model output is untrusted.
func parsePlan(content string) (*models.OrganizationPlan, error) {
	var plan models.OrganizationPlan
	if err := json.Unmarshal([]byte(stripFences(content)), &plan); err != nil {
		return nil, &ParseError{Err: err}
	}

	plan.Summary = htmlsanitize.Strip(plan.Summary)
	for i, rule := range plan.Rules {
		plan.Rules[i] = htmlsanitize.Strip(rule)
	}
	return &plan, nil
}

// Repair makes the plan items exactly the manifest's path set: duplicate
// originalPath items keep their first occurrence, items naming a path that
// is not in the manifest are dropped, every manifest path missing from the
// plan gets an identity mapping appended, and the folder counts are
// recomputed from the actual paths, overwriting whatever the model claimed.
func Repair(plan *models.OrganizationPlan, entries []manifest.FileEntry) {
	known := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		known[entry.OriginalPath] = struct{}{}
	}

	seen := make(map[string]struct{}, len(plan.Items))
	deduped := plan.Items[:0]
	for _, item := range plan.Items {
		if _, ok := known[item.OriginalPath]; !ok {
			continue
		}
		if _, dup := seen[item.OriginalPath]; dup {
			continue
		}
		seen[item.OriginalPath] = struct{}{}
		deduped = append(deduped, item)
	}
	plan.Items = deduped

	for _, entry := range entries {
		if _, ok := seen[entry.OriginalPath]; ok {
			continue
		}
		plan.Items = append(plan.Items, models.PlanItem{
			OriginalPath: entry.OriginalPath,
			NewPath:      entry.OriginalPath,
		})
	}

	newPaths := make([]string, len(plan.Items))
	for i, item := range plan.Items {
		newPaths[i] = item.NewPath
	}
	plan.FoldersBefore = manifest.CountUniqueFolders(manifest.Paths(entries))
	plan.FoldersAfter = manifest.CountUniqueFolders(newPaths)
}
