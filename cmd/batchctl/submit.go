package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mediaforge/batchctl/internal/catalog"
	"github.com/mediaforge/batchctl/internal/domain"
	"github.com/mediaforge/batchctl/internal/expand"
	"github.com/mediaforge/batchctl/internal/manifest"
	"github.com/mediaforge/batchctl/internal/mission"
)

var (
	submitManifest string
	submitName     string
	submitDesc     string
	submitModel    string
	submitType     string
	submitPrompts  []string
	submitImages   []string
	submitRepeat   int
	submitAspect   string
	submitDuration string
	submitAt       string
)

func init() {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Expand and submit a mission",
		RunE:  runSubmit,
	}
	addSpecFlags(submitCmd)
	rootCmd.AddCommand(submitCmd)

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the jobs a submission would expand to, without submitting",
		RunE:  runPreview,
	}
	addSpecFlags(previewCmd)
	rootCmd.AddCommand(previewCmd)
}

func addSpecFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&submitManifest, "manifest", "f", "", "manifest file (overrides the other flags)")
	cmd.Flags().StringVar(&submitName, "name", "", "mission name")
	cmd.Flags().StringVar(&submitDesc, "description", "", "mission description")
	cmd.Flags().StringVar(&submitModel, "model", "", "model id")
	cmd.Flags().StringVar(&submitType, "type", "", "task type (text_to_image, image_to_image, text_to_video, image_to_video, frame_to_video)")
	cmd.Flags().StringArrayVar(&submitPrompts, "prompt", nil, "prompt (repeatable)")
	cmd.Flags().StringSliceVar(&submitImages, "image", nil, "reference image URL (repeatable, one batch)")
	cmd.Flags().IntVar(&submitRepeat, "repeat", 1, "repeat count per combination (1-100)")
	cmd.Flags().StringVar(&submitAspect, "aspect", "", "aspect ratio, e.g. 16:9")
	cmd.Flags().StringVar(&submitDuration, "duration", "", "clip duration in seconds")
	cmd.Flags().StringVar(&submitAt, "at", "", "scheduled submission time (RFC 3339)")
}

// buildSpec assembles the submission from a manifest file or from flags
func buildSpec() (mission.SubmitSpec, error) {
	if submitManifest != "" {
		m, err := manifest.Load(submitManifest)
		if err != nil {
			return mission.SubmitSpec{}, err
		}
		return m.SubmitSpec()
	}

	taskType, err := domain.ParseTaskType(submitType)
	if err != nil {
		return mission.SubmitSpec{}, err
	}

	spec := mission.SubmitSpec{
		Name:        submitName,
		Description: submitDesc,
		ModelID:     submitModel,
		TaskType:    taskType,
		Mode:        expand.ModeCombinatorial,
		Prompts:     submitPrompts,
		Repeat:      submitRepeat,
		AspectRatio: submitAspect,
		Duration:    submitDuration,
	}

	if len(submitImages) > 0 {
		spec.Batches = []domain.ImageBatch{{ID: uuid.NewString(), Images: submitImages}}
	}

	if submitAt != "" {
		at, err := time.Parse(time.RFC3339, submitAt)
		if err != nil {
			return mission.SubmitSpec{}, fmt.Errorf("invalid --at: %w", err)
		}
		spec.ScheduledAt = &at
	}

	return spec, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	spec, err := buildSpec()
	if err != nil {
		return err
	}

	log := newLogger()
	client := newClient(cfg, log)

	if spec.ModelID != "" {
		cat := catalog.New(client)
		if err := cat.Validate(cmd.Context(), spec.ModelID, spec.TaskType, spec.AspectRatio, spec.Duration); err != nil {
			return err
		}
	}

	count, err := expand.Count(spec.ExpandRequest())
	if err != nil {
		return err
	}

	mgr := newManager(cfg, log, nil)
	result, err := mgr.Submit(cmd.Context(), spec)
	if err != nil {
		return err
	}

	fmt.Printf("Submitted mission %s with %d jobs\n", result.MissionID, count)
	if spec.ScheduledAt != nil {
		fmt.Printf("Scheduled for %s\n", spec.ScheduledAt.Format(time.RFC3339))
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	spec, err := buildSpec()
	if err != nil {
		return err
	}

	jobs, err := expand.Expand(spec.ExpandRequest())
	if err != nil {
		return err
	}

	fmt.Printf("%d jobs:\n", len(jobs))
	for i, job := range jobs {
		line := fmt.Sprintf("  %3d. %s", i, job.Prompt)
		if job.ImageURL != "" {
			line += "  [" + job.ImageURL + "]"
		}
		if job.ImageURLs != "" {
			line += "  [" + job.ImageURLs + "]"
		}
		if job.EndImageURL != "" {
			line += " -> " + job.EndImageURL
		}
		fmt.Println(line)
	}
	return nil
}
