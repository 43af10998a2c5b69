package manifest

import (
	"strings"
	"testing"

	"github.com/mediaforge/batchctl/internal/expand"
)

const sampleManifest = `
name: autumn campaign
model: veo
task_type: image_to_video
prompts:
  - a leaf falling
  - rain on a window
image_batches:
  - id: b1
    images:
      - https://cdn.example.com/1.png
      - https://cdn.example.com/2.png
repeat: 2
aspect_ratio: "16:9"
duration: "5"
scheduled_time: "2026-09-01T10:00:00+08:00"
`

func TestParse_FullManifest(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	if m.Name != "autumn campaign" {
		t.Errorf("Name = %q", m.Name)
	}
	if len(m.Prompts) != 2 || len(m.ImageBatches) != 1 {
		t.Fatalf("prompts=%d batches=%d", len(m.Prompts), len(m.ImageBatches))
	}

	spec, err := m.SubmitSpec()
	if err != nil {
		t.Fatal(err)
	}
	if spec.Mode != expand.ModeCombinatorial {
		t.Error("default mode should be combinatorial")
	}
	if spec.ScheduledAt == nil {
		t.Fatal("ScheduledAt should be set")
	}
	if spec.ScheduledAt.Hour() != 10 {
		t.Errorf("scheduled hour = %d, want 10", spec.ScheduledAt.Hour())
	}

	// The expanded spec should walk batch-major: 2 images x 2 prompts x 2 repeats.
	jobs, err := expand.Expand(spec.ExpandRequest())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 8 {
		t.Errorf("expanded to %d jobs, want 8", len(jobs))
	}
}

func TestParse_PreciseMode(t *testing.T) {
	m, err := Parse([]byte(`
task_type: image_to_video
mode: precise
precise_tasks:
  - prompt: hello
    image_url: https://cdn.example.com/a.png
`))
	if err != nil {
		t.Fatal(err)
	}

	spec, err := m.SubmitSpec()
	if err != nil {
		t.Fatal(err)
	}
	if spec.Mode != expand.ModePrecise {
		t.Error("mode should be precise")
	}
	if len(spec.Precise) != 1 || spec.Precise[0].Prompt != "hello" {
		t.Errorf("precise tasks = %+v", spec.Precise)
	}
	if spec.Precise[0].ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("precise task should get a generated id")
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing task type", `prompts: [x]`, "task_type"},
		{"bad task type", "task_type: make_gifs\nprompts: [x]", "unknown task type"},
		{"bad mode", "task_type: text_to_image\nmode: shuffle\nprompts: [x]", "unknown mode"},
		{"precise without tasks", "task_type: text_to_image\nmode: precise", "precise_tasks"},
		{"no inputs", "task_type: text_to_image", "prompts or image_batches"},
		{"bad schedule", "task_type: text_to_image\nprompts: [x]\nscheduled_time: tomorrow", "scheduled_time"},
		{"not yaml", `{{{{`, "parsing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSubmitSpec_GeneratesBatchIDs(t *testing.T) {
	m, err := Parse([]byte(`
task_type: image_to_image
image_batches:
  - images: [https://cdn.example.com/a.png]
prompts: [restyle]
`))
	if err != nil {
		t.Fatal(err)
	}

	spec, err := m.SubmitSpec()
	if err != nil {
		t.Fatal(err)
	}
	if spec.Batches[0].ID == "" {
		t.Error("batch without id should get a generated one")
	}
}
