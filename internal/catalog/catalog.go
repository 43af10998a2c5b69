// Package catalog caches the backend's model and platform capability
// catalogs and validates aspect-ratio/duration choices against them.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mediaforge/batchctl/internal/api"
	"github.com/mediaforge/batchctl/internal/domain"
)

// Source provides the capability catalogs
type Source interface {
	ListModels(ctx context.Context) ([]api.Model, error)
	ListPlatforms(ctx context.Context) ([]api.Platform, error)
}

// Catalog caches the catalogs for the process lifetime after first fetch
type Catalog struct {
	source Source

	mu        sync.Mutex
	models    []api.Model
	platforms []api.Platform
	loaded    bool
}

// New creates a catalog over the given source
func New(source Source) *Catalog {
	return &Catalog{source: source}
}

// load fetches both catalogs once. Caller holds c.mu.
func (c *Catalog) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	models, err := c.source.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("loading model catalog: %w", err)
	}
	platforms, err := c.source.ListPlatforms(ctx)
	if err != nil {
		return fmt.Errorf("loading platform catalog: %w", err)
	}

	c.models = models
	c.platforms = platforms
	c.loaded = true
	return nil
}

// Models returns the model catalog, fetching it on first use
func (c *Catalog) Models(ctx context.Context) ([]api.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return append([]api.Model(nil), c.models...), nil
}

// Platforms returns the platform catalog, fetching it on first use
func (c *Catalog) Platforms(ctx context.Context) ([]api.Platform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return append([]api.Platform(nil), c.platforms...), nil
}

// Model looks up a model by id
func (c *Catalog) Model(ctx context.Context, id string) (*api.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	for i := range c.models {
		if c.models[i].ID == id {
			m := c.models[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("unknown model: %q", id)
}

// Validate checks a submission's model and config choices against the
// catalog. An empty modelID skips model-specific checks; an empty aspect
// ratio or duration is always acceptable (the backend applies defaults).
func (c *Catalog) Validate(ctx context.Context, modelID string, taskType domain.TaskType, aspectRatio, duration string) error {
	if modelID == "" {
		return nil
	}

	model, err := c.Model(ctx, modelID)
	if err != nil {
		return err
	}

	if len(model.TaskTypes) > 0 && !slices.Contains(model.TaskTypes, taskType.String()) {
		return fmt.Errorf("model %s does not support task type %s", model.Name, taskType)
	}
	if aspectRatio != "" && len(model.AspectRatios) > 0 && !slices.Contains(model.AspectRatios, aspectRatio) {
		return fmt.Errorf("model %s does not support aspect ratio %s", model.Name, aspectRatio)
	}
	if duration != "" {
		if !taskType.Caps().SupportsDuration {
			return fmt.Errorf("task type %s does not take a duration", taskType)
		}
		if len(model.Durations) > 0 && !slices.Contains(model.Durations, duration) {
			return fmt.Errorf("model %s does not support duration %s", model.Name, duration)
		}
	}
	return nil
}
