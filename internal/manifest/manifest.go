// Package manifest loads mission submissions from YAML files so that
// batches can be prepared in an editor or dropped into a watched
// directory instead of being typed out as flags.
package manifest

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mediaforge/batchctl/internal/domain"
	"github.com/mediaforge/batchctl/internal/expand"
	"github.com/mediaforge/batchctl/internal/mission"
)

// Manifest is the YAML shape of a submission file
type Manifest struct {
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description"`
	Model        string       `yaml:"model"`
	TaskType     string       `yaml:"task_type"`
	Mode         string       `yaml:"mode"`
	Prompts      []string     `yaml:"prompts"`
	ImageBatches []ImageBatch `yaml:"image_batches"`
	Repeat       int          `yaml:"repeat"`
	AspectRatio  string       `yaml:"aspect_ratio"`
	Duration     string       `yaml:"duration"`
	// RFC 3339; interpreted as a future submission time when set.
	ScheduledTime string        `yaml:"scheduled_time"`
	PreciseTasks  []PreciseTask `yaml:"precise_tasks"`
}

// ImageBatch is one named group of reference images
type ImageBatch struct {
	ID     string   `yaml:"id"`
	Images []string `yaml:"images"`
}

// PreciseTask is one explicit prompt/image pairing
type PreciseTask struct {
	Prompt      string `yaml:"prompt"`
	ImageURL    string `yaml:"image_url"`
	EndImageURL string `yaml:"end_image_url"`
}

// Load reads and validates a manifest file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates manifest bytes
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.TaskType == "" {
		return fmt.Errorf("manifest: task_type is required")
	}
	if _, err := domain.ParseTaskType(m.TaskType); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	switch m.Mode {
	case "", "combinatorial", "precise":
	default:
		return fmt.Errorf("manifest: unknown mode %q", m.Mode)
	}
	if m.Mode == "precise" {
		if len(m.PreciseTasks) == 0 {
			return fmt.Errorf("manifest: precise mode requires precise_tasks")
		}
	} else if len(m.Prompts) == 0 && len(m.ImageBatches) == 0 {
		return fmt.Errorf("manifest: prompts or image_batches required")
	}
	if m.ScheduledTime != "" {
		if _, err := time.Parse(time.RFC3339, m.ScheduledTime); err != nil {
			return fmt.Errorf("manifest: invalid scheduled_time: %w", err)
		}
	}
	return nil
}

// SubmitSpec converts the manifest into a submission spec
func (m *Manifest) SubmitSpec() (mission.SubmitSpec, error) {
	taskType, err := domain.ParseTaskType(m.TaskType)
	if err != nil {
		return mission.SubmitSpec{}, err
	}

	mode := expand.ModeCombinatorial
	if m.Mode == "precise" {
		mode = expand.ModePrecise
	}

	spec := mission.SubmitSpec{
		Name:        m.Name,
		Description: m.Description,
		ModelID:     m.Model,
		TaskType:    taskType,
		Mode:        mode,
		Prompts:     m.Prompts,
		Repeat:      m.Repeat,
		AspectRatio: m.AspectRatio,
		Duration:    m.Duration,
	}

	for _, b := range m.ImageBatches {
		id := b.ID
		if id == "" {
			id = uuid.NewString()
		}
		spec.Batches = append(spec.Batches, domain.ImageBatch{ID: id, Images: b.Images})
	}

	for _, p := range m.PreciseTasks {
		spec.Precise = append(spec.Precise, domain.PreciseTask{
			ID:          uuid.New(),
			Prompt:      p.Prompt,
			ImageURL:    p.ImageURL,
			EndImageURL: p.EndImageURL,
		})
	}

	if m.ScheduledTime != "" {
		at, err := time.Parse(time.RFC3339, m.ScheduledTime)
		if err != nil {
			return mission.SubmitSpec{}, err
		}
		spec.ScheduledAt = &at
	}

	return spec, nil
}
