// Package expand turns multi-valued batch inputs into the ordered list of
// atomic jobs a mission submits. It is a pure transform: no I/O, no state,
// and deterministic output order.
package expand

import (
	"fmt"
	"strings"

	"github.com/mediaforge/batchctl/internal/domain"
)

// Mode selects how inputs combine into jobs
type Mode string

const (
	// ModeCombinatorial generates jobs as a cartesian product of the
	// multi-valued inputs.
	ModeCombinatorial Mode = "combinatorial"
	// ModePrecise maps explicitly authored tasks one-to-one to jobs.
	ModePrecise Mode = "precise"
)

// Repeat count bounds. Out-of-range values are clamped, never rejected.
const (
	MinRepeat = 1
	MaxRepeat = 100
)

// ValidationError reports an unmet precondition, naming the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Request carries everything the engine needs for one expansion
type Request struct {
	Mode         Mode
	TaskType     domain.TaskType
	Prompts      []string
	Batches      []domain.ImageBatch
	RepeatCount  int
	PreciseTasks []domain.PreciseTask
}

// ClampRepeat normalizes a repeat count into [MinRepeat, MaxRepeat],
// defaulting to MinRepeat when unset.
func ClampRepeat(n int) int {
	if n < MinRepeat {
		return MinRepeat
	}
	if n > MaxRepeat {
		return MaxRepeat
	}
	return n
}

// Expand produces the ordered job list for a request. The output ordering
// is a contract: downstream result-to-prompt correlation relies on it.
// An empty (non-error) result means the inputs were valid but expanded to
// nothing; callers must treat that as submission-blocking.
func Expand(req Request) ([]domain.JobInput, error) {
	repeat := ClampRepeat(req.RepeatCount)

	if req.Mode == ModePrecise {
		return expandPrecise(req.PreciseTasks, repeat)
	}

	prompts := domain.NormalizePrompts(req.Prompts)
	if len(prompts) == 0 {
		return nil, &ValidationError{Field: "prompts", Reason: "at least one non-blank prompt is required"}
	}

	images := domain.FlattenBatches(req.Batches)
	if req.TaskType.RequiresImage() && len(images) == 0 {
		return nil, &ValidationError{Field: "images", Reason: "at least one uploaded image is required"}
	}

	switch req.TaskType {
	case domain.TextToImage, domain.TextToVideo:
		return expandText(prompts, repeat), nil
	case domain.ImageToImage:
		return expandMergedImages(prompts, images, repeat), nil
	case domain.ImageToVideo:
		return expandPerImage(prompts, req.Batches, repeat), nil
	case domain.FrameToVideo:
		return expandFramePairs(prompts, images, repeat), nil
	default:
		return nil, &ValidationError{Field: "task_type", Reason: fmt.Sprintf("unknown task type %q", req.TaskType)}
	}
}

// Count returns the number of jobs a request expands to. It runs the same
// expansion as Expand so the live preview can never drift from submission.
func Count(req Request) (int, error) {
	jobs, err := Expand(req)
	if err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// expandText yields one job per prompt, each repeated consecutively: all
// repeats of prompt i precede prompt i+1.
func expandText(prompts []string, repeat int) []domain.JobInput {
	jobs := make([]domain.JobInput, 0, len(prompts)*repeat)
	for _, p := range prompts {
		for r := 0; r < repeat; r++ {
			jobs = append(jobs, domain.JobInput{Prompt: p})
		}
	}
	return jobs
}

// expandMergedImages joins every image across all batches into one
// comma-separated group carried by each job. Images travel together, they
// are not multiplied.
func expandMergedImages(prompts, images []string, repeat int) []domain.JobInput {
	joined := strings.Join(images, ",")
	jobs := make([]domain.JobInput, 0, len(prompts)*repeat)
	for _, p := range prompts {
		for r := 0; r < repeat; r++ {
			jobs = append(jobs, domain.JobInput{Prompt: p, ImageURLs: joined})
		}
	}
	return jobs
}

// expandPerImage is the full (batch, image) x prompt product, ordered
// batch-major, then image within batch, then prompt, then repeat.
func expandPerImage(prompts []string, batches []domain.ImageBatch, repeat int) []domain.JobInput {
	var jobs []domain.JobInput
	for _, b := range batches {
		for _, img := range b.Images {
			for _, p := range prompts {
				for r := 0; r < repeat; r++ {
					jobs = append(jobs, domain.JobInput{Prompt: p, ImageURL: img})
				}
			}
		}
	}
	return jobs
}

// expandFramePairs consumes the flattened image list two at a time as
// (first, end) frames. A trailing unpaired image is dropped. Ordering is
// pair-major, then prompt, then repeat.
func expandFramePairs(prompts, images []string, repeat int) []domain.JobInput {
	var jobs []domain.JobInput
	for i := 0; i+1 < len(images); i += 2 {
		first, end := images[i], images[i+1]
		for _, p := range prompts {
			for r := 0; r < repeat; r++ {
				jobs = append(jobs, domain.JobInput{Prompt: p, ImageURL: first, EndImageURL: end})
			}
		}
	}
	return jobs
}

// expandPrecise maps authored tasks one-to-one to jobs, then repeats the
// whole list end-to-end. Repetition is block-wise here, unlike the
// per-prompt repetition of combinatorial mode; both orderings are load
// bearing for result-index correlation and must not be unified.
func expandPrecise(tasks []domain.PreciseTask, repeat int) ([]domain.JobInput, error) {
	for i, task := range tasks {
		if strings.TrimSpace(task.Prompt) == "" {
			return nil, &ValidationError{
				Field:  "precise_tasks",
				Reason: fmt.Sprintf("task %d has a blank prompt", i+1),
			}
		}
	}

	block := make([]domain.JobInput, 0, len(tasks))
	for _, task := range tasks {
		block = append(block, task.JobInput())
	}

	jobs := make([]domain.JobInput, 0, len(block)*repeat)
	for r := 0; r < repeat; r++ {
		jobs = append(jobs, block...)
	}
	return jobs, nil
}
