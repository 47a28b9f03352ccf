package model

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"tailview/pkg/core"
	"tailview/pkg/logwindow"
)

// topTriggerRows is how close to the top of the scrollback the viewer must be
// before a backward load fires.
const topTriggerRows = 2

// App is the root Bubble Tea model for the live log panel.
type App struct {
	controller *logwindow.Controller
	poller     *logwindow.Poller

	// events carries engine notifications (merges, fetch errors) into the
	// Bubble Tea loop; the engine itself knows nothing about rendering.
	events chan tea.Msg

	// Service filter: services holds the known tags, filterIdx 0 means all.
	services  []string
	filterIdx int

	viewport viewport.Model
	ready    bool
	width    int
	height   int

	// follow mirrors "viewer is at the bottom": new entries auto-scroll.
	follow bool
	paused bool

	// anchorKey remembers the first visible entry before a backward load so
	// the scroll position can be restored after the prepend.
	anchorKey     core.EntryKey
	anchorPending bool

	statusMsg string
}

// New wires the TUI to a windowing controller. The poll interval drives the
// live tail.
func New(controller *logwindow.Controller, services []string, pollInterval time.Duration) *App {
	a := &App{
		controller: controller,
		poller:     logwindow.NewPoller(controller, pollInterval),
		events:     make(chan tea.Msg, 16),
		services:   services,
		follow:     true,
	}

	controller.OnChange(func() {
		// Coalesce: a dropped notification is fine, the next one repaints.
		select {
		case a.events <- windowChangedMsg{}:
		default:
		}
	})
	controller.OnError(func(err error) {
		select {
		case a.events <- engineErrorMsg{err}:
		default:
		}
	})

	return a
}

// Init kicks off the initial load and the live poller.
func (a *App) Init() tea.Cmd {
	a.poller.Start(context.Background())
	return tea.Batch(
		a.initialLoadCmd(),
		a.waitForEvent(),
		tea.SetWindowTitle("tailview"),
	)
}

// windowChangedMsg means the store merged new entries.
type windowChangedMsg struct{}

// engineErrorMsg carries a surfaced fetch failure.
type engineErrorMsg struct{ err error }

// initialLoadedMsg reports the first population of the window.
type initialLoadedMsg struct{ added int }

// olderLoadedMsg reports a completed backward load.
type olderLoadedMsg struct{ added int }

// newerLoadedMsg reports a completed forward load.
type newerLoadedMsg struct{ added int }

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg { return <-a.events }
}

func (a *App) initialLoadCmd() tea.Cmd {
	return func() tea.Msg {
		added, _ := a.controller.InitialLoad(context.Background())
		return initialLoadedMsg{added: added}
	}
}

func (a *App) loadOlderCmd() tea.Cmd {
	return func() tea.Msg {
		added, _ := a.controller.LoadOlder(context.Background())
		return olderLoadedMsg{added: added}
	}
}

func (a *App) loadNewerCmd() tea.Cmd {
	return func() tea.Msg {
		added, _ := a.controller.LoadNewer(context.Background())
		return newerLoadedMsg{added: added}
	}
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		bodyH := a.height - chromeRows
		if bodyH < 1 {
			bodyH = 1
		}
		if !a.ready {
			a.viewport = viewport.New(a.width, bodyH)
			a.ready = true
		} else {
			a.viewport.Width = a.width
			a.viewport.Height = bodyH
		}
		a.refreshContent()
		return a, nil

	case initialLoadedMsg:
		a.refreshContent()
		a.viewport.GotoBottom()
		a.follow = true
		if msg.added == 0 {
			a.statusMsg = "no logs in the last hour"
		} else {
			a.statusMsg = ""
		}
		return a, nil

	case olderLoadedMsg:
		if msg.added > 0 {
			a.restoreAnchor()
		} else {
			a.anchorPending = false
			if !a.controller.Store().CanLoadOlder() {
				a.statusMsg = "history exhausted"
			}
		}
		return a, nil

	case newerLoadedMsg:
		if msg.added > 0 {
			a.refreshContent()
			if a.follow {
				a.viewport.GotoBottom()
			}
		}
		return a, nil

	case windowChangedMsg:
		// Merges triggered by the poller repaint here; anchored prepends are
		// handled by olderLoadedMsg instead.
		if !a.anchorPending {
			a.refreshContent()
			if a.follow {
				a.viewport.GotoBottom()
			}
		}
		return a, a.waitForEvent()

	case engineErrorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, a.waitForEvent()

	case tea.MouseMsg:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, tea.Batch(cmd, a.scrollTriggers())

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		a.poller.Stop()
		return a, tea.Quit

	case "r":
		a.statusMsg = "reloading..."
		return a, a.initialLoadCmd()

	case "c":
		a.controller.Clear()
		a.refreshContent()
		a.statusMsg = "cleared"
		return a, nil

	case "f":
		a.follow = !a.follow
		if a.follow {
			a.viewport.GotoBottom()
		}
		return a, nil

	case " ":
		a.paused = !a.paused
		if a.paused {
			a.poller.Stop()
		} else {
			a.poller.Start(context.Background())
		}
		return a, nil

	case "s":
		a.filterIdx = (a.filterIdx + 1) % (len(a.services) + 1)
		a.refreshContent()
		if a.follow {
			a.viewport.GotoBottom()
		}
		return a, nil

	case "g":
		a.follow = false
		a.viewport.GotoTop()
		return a, a.scrollTriggers()

	case "G":
		a.viewport.GotoBottom()
		return a, a.scrollTriggers()

	default:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, tea.Batch(cmd, a.scrollTriggers())
	}
}

// scrollTriggers maps the viewport position onto pagination: near the top
// loads history, the bottom edge re-enables follow mode and opportunistically
// polls forward.
func (a *App) scrollTriggers() tea.Cmd {
	if !a.ready {
		return nil
	}

	if a.viewport.AtBottom() {
		a.follow = true
		if !a.paused {
			return a.loadNewerCmd()
		}
		return nil
	}
	a.follow = false

	if a.viewport.YOffset <= topTriggerRows && a.controller.Store().CanLoadOlder() && !a.anchorPending {
		return a.recordAnchorAndLoadOlder()
	}
	return nil
}

// recordAnchorAndLoadOlder snapshots the first visible entry so the view can
// be re-anchored once older entries land above it.
func (a *App) recordAnchorAndLoadOlder() tea.Cmd {
	visible := a.visibleEntries()
	if len(visible) == 0 {
		return a.loadOlderCmd()
	}
	a.anchorKey = visible[0].Key()
	a.anchorPending = true
	return a.loadOlderCmd()
}

// restoreAnchor repaints after a prepend and shifts the offset by the number
// of lines that landed above the previous first entry, keeping what the user
// was reading in place.
func (a *App) restoreAnchor() {
	prevOffset := a.viewport.YOffset
	a.refreshContent()
	if a.anchorPending {
		prepended := 0
		for i, e := range a.visibleEntries() {
			if e.Key() == a.anchorKey {
				prepended = i
				break
			}
		}
		a.viewport.SetYOffset(prevOffset + prepended)
		a.anchorPending = false
	}
}

// filterService returns the active service filter, empty for all.
func (a *App) filterService() string {
	if a.filterIdx == 0 {
		return ""
	}
	return a.services[a.filterIdx-1]
}

// visibleEntries is the service-filtered view of the window.
func (a *App) visibleEntries() []core.LogEntry {
	return a.controller.Store().EntriesForService(a.filterService())
}

func (a *App) refreshContent() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.renderEntries(a.visibleEntries(), a.viewport.Width))
}
