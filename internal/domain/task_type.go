package domain

import "fmt"

// TaskType identifies the kind of generation a mission performs
type TaskType string

const (
	TextToImage  TaskType = "text_to_image"
	ImageToImage TaskType = "image_to_image"
	TextToVideo  TaskType = "text_to_video"
	ImageToVideo TaskType = "image_to_video"
	FrameToVideo TaskType = "frame_to_video"
)

// String returns the wire representation
func (t TaskType) String() string {
	return string(t)
}

// ParseTaskType validates a string against the closed set of task types
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(s)
	if _, ok := taskTypeCaps[t]; !ok {
		return "", fmt.Errorf("unknown task type: %q", s)
	}
	return t, nil
}

// Capabilities describes which inputs and config fields a task type uses
type Capabilities struct {
	Label            string
	RequiresImage    bool
	UsesEndImage     bool
	SupportsDuration bool
	SupportsAspect   bool
}

// taskTypeCaps is the read-only capability table, initialized once at
// process start and never mutated afterward.
var taskTypeCaps = map[TaskType]Capabilities{
	TextToImage:  {Label: "Text to Image", SupportsAspect: true},
	ImageToImage: {Label: "Image to Image", RequiresImage: true, SupportsAspect: true},
	TextToVideo:  {Label: "Text to Video", SupportsAspect: true, SupportsDuration: true},
	ImageToVideo: {Label: "Image to Video", RequiresImage: true, SupportsAspect: true, SupportsDuration: true},
	FrameToVideo: {Label: "Frame to Video", RequiresImage: true, UsesEndImage: true, SupportsAspect: true, SupportsDuration: true},
}

// Caps returns the capability flags for the task type
func (t TaskType) Caps() Capabilities {
	return taskTypeCaps[t]
}

// RequiresImage reports whether the task type needs at least one input image
func (t TaskType) RequiresImage() bool {
	return taskTypeCaps[t].RequiresImage
}

// TaskTypes returns all known task types in a stable order
func TaskTypes() []TaskType {
	return []TaskType{TextToImage, ImageToImage, TextToVideo, ImageToVideo, FrameToVideo}
}
