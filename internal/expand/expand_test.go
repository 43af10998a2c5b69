package expand

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mediaforge/batchctl/internal/domain"
)

func batches(groups ...[]string) []domain.ImageBatch {
	out := make([]domain.ImageBatch, 0, len(groups))
	for i, imgs := range groups {
		out = append(out, domain.ImageBatch{ID: string(rune('a' + i)), Images: imgs})
	}
	return out
}

func TestExpand_TextToImage_RepeatOrdering(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.TextToImage,
		Prompts:     []string{"a", "b"},
		RepeatCount: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.JobInput{
		{Prompt: "a"}, {Prompt: "a"},
		{Prompt: "b"}, {Prompt: "b"},
	}
	if !reflect.DeepEqual(jobs, want) {
		t.Errorf("jobs = %+v, want %+v", jobs, want)
	}
}

func TestExpand_BlankPromptsFiltered(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:     ModeCombinatorial,
		TaskType: domain.TextToVideo,
		Prompts:  []string{" a ", "", "b"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	if jobs[0].Prompt != "a" || jobs[1].Prompt != "b" {
		t.Errorf("prompts = %q, %q", jobs[0].Prompt, jobs[1].Prompt)
	}
}

func TestExpand_NoPrompts(t *testing.T) {
	_, err := Expand(Request{
		Mode:     ModeCombinatorial,
		TaskType: domain.TextToImage,
		Prompts:  []string{"", "   "},
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "prompts" {
		t.Errorf("Field = %q, want prompts", verr.Field)
	}
}

func TestExpand_ImageToImage_MergesImages(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.ImageToImage,
		Prompts:     []string{"p1", "p2"},
		Batches:     batches([]string{"i1", "i2"}, []string{"i3"}),
		RepeatCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Images merge into one group per job; they do not multiply the count.
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	for _, j := range jobs {
		if j.ImageURLs != "i1,i2,i3" {
			t.Errorf("ImageURLs = %q, want i1,i2,i3", j.ImageURLs)
		}
		if j.ImageURL != "" {
			t.Errorf("ImageURL should be empty, got %q", j.ImageURL)
		}
	}
}

func TestExpand_ImageRequired(t *testing.T) {
	for _, tt := range []domain.TaskType{domain.ImageToImage, domain.ImageToVideo, domain.FrameToVideo} {
		_, err := Expand(Request{
			Mode:     ModeCombinatorial,
			TaskType: tt,
			Prompts:  []string{"p"},
		})

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: err = %v, want ValidationError", tt, err)
			continue
		}
		if verr.Field != "images" {
			t.Errorf("%s: Field = %q, want images", tt, verr.Field)
		}
	}
}

func TestExpand_ImageToVideo_BatchMajorOrdering(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.ImageToVideo,
		Prompts:     []string{"p"},
		Batches:     batches([]string{"i1", "i2"}),
		RepeatCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.JobInput{
		{Prompt: "p", ImageURL: "i1"},
		{Prompt: "p", ImageURL: "i2"},
	}
	if !reflect.DeepEqual(jobs, want) {
		t.Errorf("jobs = %+v, want %+v", jobs, want)
	}
}

func TestExpand_ImageToVideo_FullProduct(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.ImageToVideo,
		Prompts:     []string{"p1", "p2"},
		Batches:     batches([]string{"i1"}, []string{"i2", "i3"}),
		RepeatCount: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	// 3 images x 2 prompts x 2 repeats
	if len(jobs) != 12 {
		t.Fatalf("len = %d, want 12", len(jobs))
	}

	// Batch-major, then image, then prompt, then repeat.
	want := []domain.JobInput{
		{Prompt: "p1", ImageURL: "i1"}, {Prompt: "p1", ImageURL: "i1"},
		{Prompt: "p2", ImageURL: "i1"}, {Prompt: "p2", ImageURL: "i1"},
		{Prompt: "p1", ImageURL: "i2"}, {Prompt: "p1", ImageURL: "i2"},
		{Prompt: "p2", ImageURL: "i2"}, {Prompt: "p2", ImageURL: "i2"},
		{Prompt: "p1", ImageURL: "i3"}, {Prompt: "p1", ImageURL: "i3"},
		{Prompt: "p2", ImageURL: "i3"}, {Prompt: "p2", ImageURL: "i3"},
	}
	if !reflect.DeepEqual(jobs, want) {
		t.Errorf("jobs = %+v, want %+v", jobs, want)
	}
}

func TestExpand_FrameToVideo_Pairing(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.FrameToVideo,
		Prompts:     []string{"p"},
		Batches:     batches([]string{"i1", "i2"}, []string{"i3", "i4"}),
		RepeatCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.JobInput{
		{Prompt: "p", ImageURL: "i1", EndImageURL: "i2"},
		{Prompt: "p", ImageURL: "i3", EndImageURL: "i4"},
	}
	if !reflect.DeepEqual(jobs, want) {
		t.Errorf("jobs = %+v, want %+v", jobs, want)
	}
}

func TestExpand_FrameToVideo_OddImageDropped(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.FrameToVideo,
		Prompts:     []string{"p"},
		Batches:     batches([]string{"i1", "i2", "i3", "i4", "i5"}),
		RepeatCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// floor(5/2) pairs, trailing i5 dropped, never an error.
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	for _, j := range jobs {
		if j.ImageURL == "i5" || j.EndImageURL == "i5" {
			t.Errorf("trailing image leaked into %+v", j)
		}
	}
}

func TestExpand_FrameToVideo_SingleImageYieldsNothing(t *testing.T) {
	jobs, err := Expand(Request{
		Mode:     ModeCombinatorial,
		TaskType: domain.FrameToVideo,
		Prompts:  []string{"p"},
		Batches:  batches([]string{"i1"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Errorf("len = %d, want 0 (no complete pair)", len(jobs))
	}
}

func TestExpand_Precise_BlockRepeat(t *testing.T) {
	tasks := []domain.PreciseTask{
		{Prompt: "one", ImageURL: "i1", AspectRatio: "16:9", Duration: "5"},
		{Prompt: "two", AspectRatio: "1:1"},
	}

	jobs, err := Expand(Request{
		Mode:         ModePrecise,
		PreciseTasks: tasks,
		RepeatCount:  3,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The whole authored list repeats end-to-end, not per task.
	if len(jobs) != 6 {
		t.Fatalf("len = %d, want 6", len(jobs))
	}
	wantPrompts := []string{"one", "two", "one", "two", "one", "two"}
	for i, w := range wantPrompts {
		if jobs[i].Prompt != w {
			t.Errorf("jobs[%d].Prompt = %q, want %q", i, jobs[i].Prompt, w)
		}
	}

	if jobs[0].AspectRatio != "16:9" || jobs[0].Duration != "5" || jobs[0].ImageURL != "i1" {
		t.Errorf("precise fields not carried: %+v", jobs[0])
	}
}

func TestExpand_Precise_BlankPrompt(t *testing.T) {
	_, err := Expand(Request{
		Mode: ModePrecise,
		PreciseTasks: []domain.PreciseTask{
			{Prompt: "ok"},
			{Prompt: "  "},
		},
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "precise_tasks" {
		t.Errorf("Field = %q, want precise_tasks", verr.Field)
	}
}

func TestExpand_Precise_EmptyListYieldsNothing(t *testing.T) {
	jobs, err := Expand(Request{Mode: ModePrecise, RepeatCount: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Errorf("len = %d, want 0", len(jobs))
	}
}

func TestClampRepeat(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{50, 50},
		{100, 100},
		{101, 100},
		{1000, 100},
	}

	for _, tt := range tests {
		if got := ClampRepeat(tt.in); got != tt.want {
			t.Errorf("ClampRepeat(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestExpand_Idempotent(t *testing.T) {
	req := Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.ImageToVideo,
		Prompts:     []string{"p1", "p2", "p3"},
		Batches:     batches([]string{"i1", "i2"}, []string{"i3"}),
		RepeatCount: 4,
	}

	first, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated expansion should be order-stable")
	}
}

func TestCount_MatchesExpand(t *testing.T) {
	reqs := []Request{
		{Mode: ModeCombinatorial, TaskType: domain.TextToImage, Prompts: []string{"a", "b"}, RepeatCount: 7},
		{Mode: ModeCombinatorial, TaskType: domain.ImageToVideo, Prompts: []string{"a"}, Batches: batches([]string{"i1", "i2", "i3"}), RepeatCount: 2},
		{Mode: ModeCombinatorial, TaskType: domain.FrameToVideo, Prompts: []string{"a", "b"}, Batches: batches([]string{"i1", "i2", "i3"}), RepeatCount: 3},
		{Mode: ModePrecise, PreciseTasks: []domain.PreciseTask{{Prompt: "x"}}, RepeatCount: 9},
	}

	for i, req := range reqs {
		jobs, err := Expand(req)
		if err != nil {
			t.Fatalf("req %d: %v", i, err)
		}
		n, err := Count(req)
		if err != nil {
			t.Fatalf("req %d: %v", i, err)
		}
		if n != len(jobs) {
			t.Errorf("req %d: Count = %d, len(Expand) = %d", i, n, len(jobs))
		}
	}
}

func TestExpand_CountFormula(t *testing.T) {
	// len == prompts x imageMultiplier x repeat for the product task types.
	jobs, err := Expand(Request{
		Mode:        ModeCombinatorial,
		TaskType:    domain.FrameToVideo,
		Prompts:     []string{"a", "b"},
		Batches:     batches([]string{"i1", "i2", "i3", "i4", "i5"}),
		RepeatCount: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	// 2 prompts x floor(5/2) pairs x 3 repeats
	if len(jobs) != 12 {
		t.Errorf("len = %d, want 12", len(jobs))
	}
}
