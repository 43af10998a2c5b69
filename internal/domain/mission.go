package domain

import "time"

// MissionStatus is the backend-owned lifecycle state of a mission
type MissionStatus string

const (
	MissionQueued    MissionStatus = "queued"
	MissionRunning   MissionStatus = "running"
	MissionCompleted MissionStatus = "completed"
	MissionCancelled MissionStatus = "cancelled"
	MissionFailed    MissionStatus = "failed"
)

// String returns the wire representation
func (s MissionStatus) String() string {
	return string(s)
}

// Terminal reports whether the mission has left the active lifecycle
func (s MissionStatus) Terminal() bool {
	switch s {
	case MissionCompleted, MissionCancelled, MissionFailed:
		return true
	}
	return false
}

// ItemStatus is the backend-owned state of one atomic job
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
)

// String returns the wire representation
func (s ItemStatus) String() string {
	return string(s)
}

// Terminal reports whether the item has finished, successfully or not
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed
}

// Mission is one user submission comprising one or more atomic jobs.
// All fields are owned by the backend; the client reads them via polling.
type Mission struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	TaskType       TaskType      `json:"task_type"`
	ModelID        string        `json:"model_id,omitempty"`
	Status         MissionStatus `json:"status"`
	TotalCount     int           `json:"total_count"`
	CompletedCount int           `json:"completed_count"`
	FailedCount    int           `json:"failed_count"`
	ScheduledTime  *time.Time    `json:"scheduled_time,omitempty"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CanCancel reports whether a cancel request is meaningful
func (m *Mission) CanCancel() bool {
	return m.Status == MissionQueued || m.Status == MissionRunning
}

// CountsConsistent checks the completed+failed <= total invariant
func (m *Mission) CountsConsistent() bool {
	return m.CompletedCount+m.FailedCount <= m.TotalCount
}

// MissionItem is one atomic job's remote record. item_index is fixed at
// submission time and preserves expansion order.
type MissionItem struct {
	ID           string     `json:"id"`
	ItemIndex    int        `json:"item_index"`
	InputParams  JobInput   `json:"input_params"`
	Status       ItemStatus `json:"status"`
	ResultURL    string     `json:"result_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
}

// Retryable reports whether the item is waiting on a server-side retry
func (i *MissionItem) Retryable() bool {
	return i.RetryCount > 0 && i.NextRetryAt != nil &&
		(i.Status == ItemPending || i.Status == ItemFailed)
}

// MissionPage is one page of the mission list
type MissionPage struct {
	Items    []Mission `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// missionColors and itemColors map statuses to terminal color codes for
// display. Read-only after init.
var missionColors = map[MissionStatus]string{
	MissionQueued:    "244",
	MissionRunning:   "214",
	MissionCompleted: "42",
	MissionCancelled: "240",
	MissionFailed:    "196",
}

var itemColors = map[ItemStatus]string{
	ItemPending:    "244",
	ItemProcessing: "214",
	ItemCompleted:  "42",
	ItemFailed:     "196",
}

// Color returns the display color for the mission status
func (s MissionStatus) Color() string {
	if c, ok := missionColors[s]; ok {
		return c
	}
	return "255"
}

// Color returns the display color for the item status
func (s ItemStatus) Color() string {
	if c, ok := itemColors[s]; ok {
		return c
	}
	return "255"
}
