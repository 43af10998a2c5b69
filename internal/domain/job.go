package domain

import (
	"strings"

	"github.com/google/uuid"
)

// JobInput is one atomic job as the backend consumes it. Field names match
// the submission wire contract.
type JobInput struct {
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ImageURLs   string `json:"imageUrls,omitempty"`
	EndImageURL string `json:"endImageUrl,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// ImageBatch is a named group of uploaded image URLs. Batch order and image
// order within a batch are significant: frame pairing consumes the
// flattened list in order.
type ImageBatch struct {
	ID     string   `json:"id"`
	Images []string `json:"images"`
}

// FlattenBatches concatenates all batch images preserving batch order then
// image order within each batch.
func FlattenBatches(batches []ImageBatch) []string {
	var out []string
	for _, b := range batches {
		out = append(out, b.Images...)
	}
	return out
}

// PreciseTask is a user-authored atomic job for precise mode
type PreciseTask struct {
	ID          uuid.UUID `json:"id"`
	Prompt      string    `json:"prompt"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	ImageURLs   string    `json:"imageUrls,omitempty"`
	EndImageURL string    `json:"endImageUrl,omitempty"`
	AspectRatio string    `json:"aspectRatio,omitempty"`
	Duration    string    `json:"duration,omitempty"`
}

// JobInput converts the precise task to its atomic job form
func (p PreciseTask) JobInput() JobInput {
	return JobInput{
		Prompt:      p.Prompt,
		ImageURL:    p.ImageURL,
		ImageURLs:   p.ImageURLs,
		EndImageURL: p.EndImageURL,
		AspectRatio: p.AspectRatio,
		Duration:    p.Duration,
	}
}

// NormalizePrompts trims whitespace and drops blank entries, preserving
// order. Output order drives expansion order.
func NormalizePrompts(prompts []string) []string {
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
