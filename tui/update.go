package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mediaforge/batchctl/internal/domain"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.refreshing = !m.loading
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case RefreshedMsg:
		m.refreshing = false
		if msg.Err != nil {
			// Keep whatever is on screen; just surface the error.
			m.lastErr = msg.Err
			return m, nil
		}
		m.lastErr = nil
		m.loading = false
		m.page = msg.Page
		m.detail = msg.Detail
		m.clampSelection()
		return m, nil

	case ActionMsg:
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("%s failed: %v", msg.Verb, msg.Err)
			return m, nil
		}
		switch msg.Verb {
		case "cancel":
			m.statusMsg = fmt.Sprintf("cancelled %d queued items", msg.Count)
		case "retry":
			m.statusMsg = fmt.Sprintf("re-queued %d failed items", msg.Count)
		case "delete":
			m.statusMsg = "mission deleted"
			if m.mode == viewDetail {
				m.mode = viewList
				m.detail = nil
				m.manager.SetDetailView("")
			}
		case "download":
			m.statusMsg = "download ready: " + msg.URL
		}
		return m, m.refreshCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// A pending confirm overlay swallows all keys until answered.
	if m.confirm != nil {
		switch msg.String() {
		case "y", "Y":
			pending := *m.confirm
			m.confirm = nil
			return m, m.actionCmd(pending.action, pending.missionID)
		case "n", "N", "esc":
			m.confirm = nil
			m.statusMsg = "aborted"
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		m.refreshing = !m.loading
		return m, m.refreshCmd()

	case "j", "down":
		m.selectedRow++
		m.clampSelection()

	case "k", "up":
		if m.selectedRow > 0 {
			m.selectedRow--
		}

	case "n", "right":
		if m.mode == viewList && m.hasNextPage() {
			m.listPage++
			m.selectedRow = 0
			m.manager.SetListView(m.listPage, statusFilters[m.filterIdx])
			m.refreshing = !m.loading
			return m, m.refreshCmd()
		}

	case "p", "left":
		if m.mode == viewList && m.listPage > 1 {
			m.listPage--
			m.selectedRow = 0
			m.manager.SetListView(m.listPage, statusFilters[m.filterIdx])
			m.refreshing = !m.loading
			return m, m.refreshCmd()
		}

	case "f":
		if m.mode == viewList {
			m.filterIdx = (m.filterIdx + 1) % len(statusFilters)
			m.listPage = 1
			m.selectedRow = 0
			m.manager.SetListView(1, statusFilters[m.filterIdx])
			m.refreshing = !m.loading
			return m, m.refreshCmd()
		}

	case "enter":
		if m.mode == viewList {
			if sel := m.selectedMission(); sel != "" {
				m.mode = viewDetail
				m.detail = nil
				m.selectedRow = 0
				m.manager.SetDetailView(sel)
				m.refreshing = false
				m.loading = true
				return m, m.refreshCmd()
			}
		}

	case "esc":
		if m.mode == viewDetail {
			m.mode = viewList
			m.detail = nil
			m.selectedRow = 0
			m.manager.SetDetailView("")
			m.loading = m.page == nil
			return m, m.refreshCmd()
		}

	case "c":
		if ms := m.currentMissionRecord(); ms != nil {
			if !ms.CanCancel() {
				m.statusMsg = fmt.Sprintf("%s mission cannot be cancelled", ms.Status)
				return m, nil
			}
			m.confirm = &pendingConfirm{action: "cancel", missionID: ms.ID}
		}

	case "R":
		if id := m.currentMission(); id != "" {
			return m, m.actionCmd("retry", id)
		}

	case "d":
		if id := m.currentMission(); id != "" {
			m.confirm = &pendingConfirm{action: "delete", missionID: id}
		}

	case "o":
		if id := m.currentMission(); id != "" {
			return m, m.actionCmd("download", id)
		}
	}

	return m, nil
}

// currentMission is the mission an action key applies to: the open
// detail in detail mode, otherwise the highlighted list row.
func (m Model) currentMission() string {
	if m.mode == viewDetail {
		if m.detail == nil {
			return ""
		}
		return m.detail.Mission.ID
	}
	return m.selectedMission()
}

func (m Model) selectedMission() string {
	if m.page == nil || m.selectedRow >= len(m.page.Items) {
		return ""
	}
	return m.page.Items[m.selectedRow].ID
}

// currentMissionRecord is currentMission with the full record, for keys
// that need to inspect status before acting.
func (m Model) currentMissionRecord() *domain.Mission {
	if m.mode == viewDetail {
		if m.detail == nil {
			return nil
		}
		return &m.detail.Mission
	}
	if m.page == nil || m.selectedRow >= len(m.page.Items) {
		return nil
	}
	return &m.page.Items[m.selectedRow]
}

func (m *Model) clampSelection() {
	max := 0
	switch m.mode {
	case viewList:
		if m.page != nil {
			max = len(m.page.Items) - 1
		}
	case viewDetail:
		if m.detail != nil {
			max = len(m.detail.Items) - 1
		}
	}
	if max < 0 {
		max = 0
	}
	if m.selectedRow > max {
		m.selectedRow = max
	}
}

func (m Model) hasNextPage() bool {
	if m.page == nil || m.page.PageSize == 0 {
		return false
	}
	return m.listPage*m.page.PageSize < m.page.Total
}

// actionCmd runs one mutation against the backend. Confirmation already
// happened in the overlay, so the manager is built with ConfirmAll.
func (m Model) actionCmd(verb, id string) tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		switch verb {
		case "cancel":
			n, err := mgr.Cancel(ctx, id)
			return ActionMsg{Verb: verb, Count: n, Err: err}
		case "retry":
			n, err := mgr.Retry(ctx, id)
			return ActionMsg{Verb: verb, Count: n, Err: err}
		case "delete":
			return ActionMsg{Verb: verb, Err: mgr.Delete(ctx, id)}
		case "download":
			url, err := mgr.DownloadURL(ctx, id)
			return ActionMsg{Verb: verb, URL: url, Err: err}
		}
		return ActionMsg{Verb: verb, Err: fmt.Errorf("unknown action %q", verb)}
	}
}
