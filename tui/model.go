// Package tui is the interactive mission dashboard: a polled list view
// with a per-mission detail drill-down.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mediaforge/batchctl/internal/domain"
	"github.com/mediaforge/batchctl/internal/mission"
)

// viewMode selects which screen is rendered
type viewMode int

const (
	viewList viewMode = iota
	viewDetail
)

// statusFilters is the cycle order for the list filter; empty means all
var statusFilters = []string{
	"",
	domain.MissionQueued.String(),
	domain.MissionRunning.String(),
	domain.MissionCompleted.String(),
	domain.MissionFailed.String(),
	domain.MissionCancelled.String(),
}

// pendingConfirm is a destructive action awaiting a y/n keypress
type pendingConfirm struct {
	action    string
	missionID string
}

// Model is the TUI application model
type Model struct {
	manager  *mission.Manager
	interval time.Duration

	// Data
	page   *domain.MissionPage
	detail *mission.Detail

	// UI state
	width       int
	height      int
	mode        viewMode
	selectedRow int
	listPage    int
	filterIdx   int
	confirm     *pendingConfirm
	statusMsg   string

	// First load blocks the view; later refreshes only mark refreshing
	loading    bool
	refreshing bool
	lastErr    error
}

// NewModel creates the TUI model over a mission manager
func NewModel(mgr *mission.Manager, pollInterval time.Duration) Model {
	if pollInterval <= 0 {
		pollInterval = mission.DefaultPollInterval
	}
	return Model{
		manager:  mgr,
		interval: pollInterval,
		mode:     viewList,
		listPage: 1,
		loading:  true,
	}
}

// Init starts the first load and the poll ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

// TickMsg triggers a background refresh
type TickMsg time.Time

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// RefreshedMsg carries the result of one refresh cycle
type RefreshedMsg struct {
	Page   *domain.MissionPage
	Detail *mission.Detail
	Err    error
}

// ActionMsg carries the result of a cancel/retry/delete/download
type ActionMsg struct {
	Verb  string
	Count int
	URL   string
	Err   error
}

// refreshCmd re-fetches whatever view the manager currently points at.
// View parameters are read inside the command, at fire time.
func (m Model) refreshCmd() tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := mgr.Refresh(ctx); err != nil {
			return RefreshedMsg{Err: err}
		}
		return RefreshedMsg{Page: mgr.Page(), Detail: mgr.CurrentDetail()}
	}
}
