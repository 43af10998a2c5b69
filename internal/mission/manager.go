// Package mission owns the client-side view of submitted missions: a
// list/detail cache fed by polling, and the submit/cancel/retry/delete
// operations. The manager is the only writer of the cache; every mutation
// goes through the backend and is confirmed by re-fetch.
package mission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediaforge/batchctl/internal/api"
	"github.com/mediaforge/batchctl/internal/domain"
	"github.com/mediaforge/batchctl/internal/expand"
	"github.com/mediaforge/batchctl/internal/notify"
)

// DefaultPageSize matches the backend's fixed list page size
const DefaultPageSize = 20

// ErrNotConfirmed is returned when the user declines a destructive action
var ErrNotConfirmed = errors.New("action not confirmed")

// ErrEmptyExpansion is returned when valid inputs expand to zero jobs;
// submission is blocked rather than sending an empty mission.
var ErrEmptyExpansion = errors.New("expansion produced no jobs")

// Backend is the remote collaborator surface the manager consumes
type Backend interface {
	SubmitMission(ctx context.Context, req api.SubmitRequest, scheduledAt *time.Time) (*api.SubmitResult, error)
	ListMissions(ctx context.Context, page, pageSize int, status string) (*domain.MissionPage, error)
	GetMission(ctx context.Context, id string) (*domain.Mission, error)
	ListMissionItems(ctx context.Context, id string) ([]domain.MissionItem, error)
	CancelMission(ctx context.Context, id string) (int, error)
	RetryMission(ctx context.Context, id string) (int, error)
	DeleteMission(ctx context.Context, id string) error
	DownloadURL(ctx context.Context, id string) (string, error)
}

// ConfirmFunc gates destructive actions. The CLI backs it with a prompt,
// the TUI with a confirm overlay, tests with a constant.
type ConfirmFunc func(action, missionID string) bool

// ConfirmAll accepts every action
func ConfirmAll(string, string) bool { return true }

// Detail is a mission joined with its item records
type Detail struct {
	Mission domain.Mission
	Items   []domain.MissionItem
}

// Options configures a Manager
type Options struct {
	PageSize int
	Confirm  ConfirmFunc
	Notifier notify.Notifier
	Logger   zerolog.Logger
}

// Manager maintains the paginated mission view and drives the
// submit -> poll -> terminal lifecycle.
type Manager struct {
	backend  Backend
	pageSize int
	confirm  ConfirmFunc
	notifier notify.Notifier
	log      zerolog.Logger

	mu sync.Mutex

	// Current view parameters, read at refresh fire-time so a poller never
	// acts on captured-at-creation values.
	listPage   int
	listStatus string
	detailID   string

	page   *domain.MissionPage
	detail *Detail

	// Monotonic fetch sequencing: a newer resolved response always wins
	// over an older in-flight one.
	listSeq, listApplied     uint64
	detailSeq, detailApplied uint64

	// Last observed status per mission, for terminal-transition notices
	seen map[string]domain.MissionStatus
}

// NewManager creates a manager over the given backend
func NewManager(backend Backend, opts Options) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Confirm == nil {
		opts.Confirm = ConfirmAll
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NoopNotifier{}
	}
	return &Manager{
		backend:  backend,
		pageSize: opts.PageSize,
		confirm:  opts.Confirm,
		notifier: opts.Notifier,
		log:      opts.Logger.With().Str("component", "mission").Logger(),
		listPage: 1,
		seen:     make(map[string]domain.MissionStatus),
	}
}

// SubmitSpec is everything one submission needs: the expansion inputs plus
// mission metadata.
type SubmitSpec struct {
	Name        string
	Description string
	ModelID     string
	TaskType    domain.TaskType
	Mode        expand.Mode
	Prompts     []string
	Batches     []domain.ImageBatch
	Repeat      int
	Precise     []domain.PreciseTask
	AspectRatio string
	Duration    string
	ScheduledAt *time.Time
}

// ExpandRequest returns the expansion request for the spec
func (s SubmitSpec) ExpandRequest() expand.Request {
	return expand.Request{
		Mode:         s.Mode,
		TaskType:     s.TaskType,
		Prompts:      s.Prompts,
		Batches:      s.Batches,
		RepeatCount:  s.Repeat,
		PreciseTasks: s.Precise,
	}
}

// Submit expands the spec and submits the result as one mission.
// Validation errors and empty expansions block the submission; no network
// call is made for either.
func (m *Manager) Submit(ctx context.Context, spec SubmitSpec) (*api.SubmitResult, error) {
	jobs, err := expand.Expand(spec.ExpandRequest())
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrEmptyExpansion
	}

	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", spec.TaskType.Caps().Label, time.Now().Format("2006-01-02 15:04"))
	}

	result, err := m.backend.SubmitMission(ctx, api.SubmitRequest{
		Name:        name,
		Description: spec.Description,
		ModelID:     spec.ModelID,
		TaskType:    spec.TaskType.String(),
		Config: api.SubmitConfig{
			AspectRatio: spec.AspectRatio,
			Duration:    spec.Duration,
			BatchInput:  jobs,
		},
	}, spec.ScheduledAt)
	if err != nil {
		return nil, err
	}

	m.log.Info().Str("mission", result.MissionID).Int("jobs", len(jobs)).Msg("mission submitted")
	return result, nil
}

// SetListView points the manager's refresh at a list page and filter
func (m *Manager) SetListView(page int, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page < 1 {
		page = 1
	}
	m.listPage = page
	m.listStatus = status
}

// SetDetailView points the manager's refresh at one mission's detail.
// An empty id returns to list-only refreshing.
func (m *Manager) SetDetailView(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailID = id
	if id == "" {
		m.detail = nil
	}
}

// Page returns the cached mission page, or nil before the first load
func (m *Manager) Page() *domain.MissionPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page
}

// CurrentDetail returns the cached detail, or nil before the first load
func (m *Manager) CurrentDetail() *Detail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detail
}

// Refresh re-fetches whatever the manager is currently viewing, reading the
// view parameters at call time.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	page, status, detailID := m.listPage, m.listStatus, m.detailID
	m.mu.Unlock()

	if detailID != "" {
		_, err := m.RefreshDetail(ctx, detailID)
		return err
	}
	_, err := m.RefreshList(ctx, page, status)
	return err
}

// RefreshList fetches one list page and updates the cache. A stale response
// (one that started before a newer fetch resolved) is discarded.
func (m *Manager) RefreshList(ctx context.Context, page int, status string) (*domain.MissionPage, error) {
	m.mu.Lock()
	m.listSeq++
	seq := m.listSeq
	m.mu.Unlock()

	result, err := m.backend.ListMissions(ctx, page, m.pageSize, status)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq <= m.listApplied {
		// An in-flight newer fetch already landed; keep its data.
		return result, nil
	}
	m.listApplied = seq
	m.page = result
	m.noticeTransitions(result.Items)
	return result, nil
}

// RefreshDetail fetches mission metadata and items as two independent
// calls; failure of either surfaces as a single load error. Items are
// ordered by item_index before caching.
func (m *Manager) RefreshDetail(ctx context.Context, id string) (*Detail, error) {
	m.mu.Lock()
	m.detailSeq++
	seq := m.detailSeq
	m.mu.Unlock()

	mission, err := m.backend.GetMission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading mission: %w", err)
	}
	items, err := m.backend.ListMissionItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading mission items: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ItemIndex < items[j].ItemIndex
	})

	detail := &Detail{Mission: *mission, Items: items}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq <= m.detailApplied {
		return detail, nil
	}
	if m.detailID != id {
		// View moved on while the fetch was in flight; drop it.
		return detail, nil
	}
	m.detailApplied = seq
	m.detail = detail
	m.noticeTransitions([]domain.Mission{*mission})
	return detail, nil
}

// noticeTransitions emits a notification for each mission newly observed in
// a terminal state. Caller holds m.mu.
func (m *Manager) noticeTransitions(missions []domain.Mission) {
	for _, ms := range missions {
		prev, known := m.seen[ms.ID]
		m.seen[ms.ID] = ms.Status
		if !known || prev == ms.Status || !ms.Status.Terminal() {
			continue
		}

		typ := notify.NotifySuccess
		if ms.Status == domain.MissionFailed || ms.FailedCount > 0 {
			typ = notify.NotifyError
		} else if ms.Status == domain.MissionCancelled {
			typ = notify.NotifyWarning
		}

		n := notify.Notification{
			Title:     fmt.Sprintf("Mission %s", ms.Status),
			Message:   fmt.Sprintf("%s: %d/%d completed, %d failed", ms.Name, ms.CompletedCount, ms.TotalCount, ms.FailedCount),
			Type:      typ,
			MissionID: ms.ID,
		}
		go m.notifier.Send(n)
	}
}

// Cancel cancels the mission's queued items after user confirmation and
// returns the cancelled count. Running, completed, and failed items are
// untouched.
func (m *Manager) Cancel(ctx context.Context, id string) (int, error) {
	if !m.confirm("cancel", id) {
		return 0, ErrNotConfirmed
	}

	n, err := m.backend.CancelMission(ctx, id)
	if err != nil {
		return 0, err
	}

	m.log.Info().Str("mission", id).Int("cancelled", n).Msg("mission cancelled")
	m.resync(ctx)
	return n, nil
}

// Retry re-queues all failed items and returns how many were re-queued.
// Zero failed items is a valid no-op, not an error.
func (m *Manager) Retry(ctx context.Context, id string) (int, error) {
	n, err := m.backend.RetryMission(ctx, id)
	if err != nil {
		return 0, err
	}

	m.log.Info().Str("mission", id).Int("retried", n).Msg("mission retried")
	m.resync(ctx)
	return n, nil
}

// Delete irreversibly removes the mission after user confirmation
func (m *Manager) Delete(ctx context.Context, id string) error {
	if !m.confirm("delete", id) {
		return ErrNotConfirmed
	}

	if err := m.backend.DeleteMission(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	if m.detailID == id {
		m.detailID = ""
		m.detail = nil
	}
	delete(m.seen, id)
	m.mu.Unlock()

	m.log.Info().Str("mission", id).Msg("mission deleted")
	m.resync(ctx)
	return nil
}

// DownloadURL returns the URL of the server-produced result zip. Saving it
// is the caller's concern; no state changes here.
func (m *Manager) DownloadURL(ctx context.Context, id string) (string, error) {
	return m.backend.DownloadURL(ctx, id)
}

// resync re-fetches the current view after a mutation, best effort
func (m *Manager) resync(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		m.log.Warn().Err(err).Msg("post-mutation refresh failed")
	}
}
