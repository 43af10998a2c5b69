package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/mediaforge/batchctl/internal/api"
	"github.com/mediaforge/batchctl/internal/domain"
)

type fakeSource struct {
	models    []api.Model
	platforms []api.Platform
	calls     int
	err       error
}

func (f *fakeSource) ListModels(ctx context.Context) ([]api.Model, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func (f *fakeSource) ListPlatforms(ctx context.Context) ([]api.Platform, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.platforms, nil
}

func testSource() *fakeSource {
	return &fakeSource{
		models: []api.Model{
			{
				ID: "veo", Name: "Veo",
				TaskTypes:    []string{"text_to_video", "image_to_video"},
				AspectRatios: []string{"16:9", "9:16"},
				Durations:    []string{"5", "10"},
			},
		},
		platforms: []api.Platform{{ID: "p1", Name: "Studio", Enabled: true}},
	}
}

func TestCatalog_FetchedOnce(t *testing.T) {
	src := testSource()
	cat := New(src)
	ctx := context.Background()

	if _, err := cat.Models(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Models(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Platforms(ctx); err != nil {
		t.Fatal(err)
	}

	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1 (cached)", src.calls)
	}
}

func TestCatalog_Validate(t *testing.T) {
	cat := New(testSource())
	ctx := context.Background()

	if err := cat.Validate(ctx, "veo", domain.TextToVideo, "16:9", "5"); err != nil {
		t.Errorf("valid choice rejected: %v", err)
	}

	if err := cat.Validate(ctx, "veo", domain.TextToImage, "", ""); err == nil {
		t.Error("unsupported task type should be rejected")
	}

	if err := cat.Validate(ctx, "veo", domain.TextToVideo, "4:3", ""); err == nil {
		t.Error("unsupported aspect ratio should be rejected")
	}

	if err := cat.Validate(ctx, "veo", domain.TextToVideo, "", "30"); err == nil {
		t.Error("unsupported duration should be rejected")
	}

	if err := cat.Validate(ctx, "missing", domain.TextToVideo, "", ""); err == nil {
		t.Error("unknown model should be rejected")
	}

	// No model pinned: nothing to check against.
	if err := cat.Validate(ctx, "", domain.TextToVideo, "21:9", "99"); err != nil {
		t.Errorf("modelless validation should pass: %v", err)
	}
}

func TestCatalog_SourceErrorSurfaces(t *testing.T) {
	boom := errors.New("catalog down")
	cat := New(&fakeSource{err: boom})

	if _, err := cat.Models(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped source error", err)
	}
}
