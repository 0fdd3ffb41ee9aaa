package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"teamboard/internal/board"
	"teamboard/internal/engine"
	"teamboard/internal/model"
)

// Kinds the board can show, in tab order.
var boardKinds = []string{"projects", "tasks", "issues"}

// changedMsg reports that a cache of the session changed.
type changedMsg struct{}

type createdMsg struct {
	id  string
	err error
}

type boardModel struct {
	engine  *engine.Engine
	changes <-chan struct{}
	onState func(kind string, mode board.Mode)

	kind  string
	mode  board.Mode
	board board.Board
	view  engine.View
	err   error

	sel  board.Selection
	drag *board.Drag

	showDetail bool
	detail     viewport.Model

	creating bool
	input    textinput.Model

	keys  keyMap
	help  help.Model
	flash string

	width  int
	height int
}

func newBoardModel(e *engine.Engine, kind string, mode board.Mode, changes <-chan struct{}) boardModel {
	if !validKind(kind) {
		kind = boardKinds[0]
	}
	in := textinput.New()
	in.Placeholder = "title"
	in.CharLimit = 200
	m := boardModel{
		engine:  e,
		changes: changes,
		kind:    kind,
		mode:    mode,
		keys:    defaultKeyMap(),
		help:    help.New(),
		input:   in,
		detail:  viewport.New(0, 0),
		width:   100,
		height:  30,
	}
	m.rebuild()
	return m
}

func validKind(kind string) bool {
	for _, k := range boardKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m boardModel) Init() tea.Cmd {
	return waitForChange(m.changes)
}

// rebuild regroups the current cache. Local reorders made by a drop are lost, which matches
// what every other client sees.
func (m *boardModel) rebuild() {
	b, v, err := m.engine.Board(m.kind, m.mode)
	m.err = err
	if err != nil {
		m.board = board.Board{}
		m.view = nil
		return
	}
	m.board = b
	m.view = v
	m.sel = m.board.Clamp(m.sel)
	if m.drag != nil && m.drag.OverCol >= len(m.board.Columns) {
		m.drag.Hover(len(m.board.Columns)-1, 0)
	}
	m.refreshDetail()
}

func (m *boardModel) saveState() {
	if m.onState != nil {
		m.onState(m.kind, m.mode)
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.refreshDetail()
		return m, nil
	case changedMsg:
		m.rebuild()
		return m, waitForChange(m.changes)
	case createdMsg:
		if msg.err != nil {
			m.flash = "create failed: " + msg.err.Error()
		} else {
			m.flash = "created " + msg.id
			m.sel.ItemID = msg.id
			m.rebuild()
		}
		return m, nil
	case tea.KeyMsg:
		if m.creating {
			return m.updateCreate(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m boardModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Cancel):
		if m.drag != nil {
			m.drag = nil
			m.flash = "drag cancelled"
		} else {
			m.showDetail = false
		}
	case key.Matches(msg, m.keys.Left):
		m.moveColumn(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveColumn(1)
	case key.Matches(msg, m.keys.Up):
		m.moveCard(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCard(1)
	case key.Matches(msg, m.keys.Grab):
		m.grabOrDrop()
	case key.Matches(msg, m.keys.Mode):
		if m.drag == nil {
			m.mode = m.mode.Next()
			m.sel.Col = 0
			m.rebuild()
			m.saveState()
		}
	case key.Matches(msg, m.keys.Kind):
		if m.drag == nil {
			m.kind = nextKind(m.kind)
			m.sel = board.Selection{}
			m.rebuild()
			m.saveState()
		}
	case key.Matches(msg, m.keys.Detail):
		m.showDetail = !m.showDetail
		m.refreshDetail()
	case key.Matches(msg, m.keys.Open):
		m.openProject()
	case key.Matches(msg, m.keys.Back):
		m.leaveProject()
	case key.Matches(msg, m.keys.New):
		if m.drag == nil && m.err == nil && len(m.board.Columns) > 0 {
			m.creating = true
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	default:
		if m.showDetail {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func nextKind(kind string) string {
	for i, k := range boardKinds {
		if k == kind {
			return boardKinds[(i+1)%len(boardKinds)]
		}
	}
	return boardKinds[0]
}

func (m *boardModel) moveColumn(delta int) {
	n := len(m.board.Columns)
	if n == 0 {
		return
	}
	if m.drag != nil {
		col := clampInt(m.drag.OverCol+delta, 0, n-1)
		m.drag.Hover(col, clampInt(m.drag.OverIdx, 0, len(m.board.Columns[col].Items)))
		return
	}
	m.sel.Col = clampInt(m.sel.Col+delta, 0, n-1)
	m.sel.ItemID = ""
	m.sel = m.board.Clamp(m.sel)
	m.refreshDetail()
}

func (m *boardModel) moveCard(delta int) {
	if m.drag != nil {
		if m.drag.OverCol < 0 || m.drag.OverCol >= len(m.board.Columns) {
			return
		}
		n := len(m.board.Columns[m.drag.OverCol].Items)
		m.drag.Hover(m.drag.OverCol, clampInt(m.drag.OverIdx+delta, 0, n))
		return
	}
	m.sel.Item += delta
	m.sel.ItemID = ""
	m.sel = m.board.Clamp(m.sel)
	m.refreshDetail()
}

func (m *boardModel) grabOrDrop() {
	if m.view == nil {
		return
	}
	if m.drag == nil {
		sel := m.board.Clamp(m.sel)
		d, ok := m.board.PickUp(sel.Col, sel.Item)
		if !ok {
			return
		}
		m.drag = d
		m.flash = "moving " + d.ItemID
		return
	}
	d := m.drag
	m.drag = nil
	res := m.board.Drop(d, m.view.Lookup, m.view)
	switch res.Outcome {
	case board.DropMoved:
		m.sel = board.Selection{Col: d.OverCol, ItemID: d.ItemID}
		m.flash = fmt.Sprintf("moved to %s", m.board.Columns[d.OverCol].Label)
	case board.DropReordered:
		m.sel = board.Selection{Col: d.OverCol, ItemID: d.ItemID}
	case board.DropMissing:
		m.flash = "card is gone"
	case board.DropNoop:
		m.sel = board.Selection{Col: d.FromCol, ItemID: d.ItemID}
	}
	m.sel = m.board.Clamp(m.sel)
	m.refreshDetail()
}

func (m *boardModel) openProject() {
	if m.kind != "projects" || m.drag != nil {
		return
	}
	it, ok := m.board.Selected(m.sel)
	if !ok {
		return
	}
	if err := m.engine.SelectProject(it.ID); err != nil {
		m.flash = err.Error()
		return
	}
	m.kind = "tasks"
	m.sel = board.Selection{}
	m.rebuild()
	m.saveState()
}

func (m *boardModel) leaveProject() {
	if m.drag != nil || m.engine.Scope().ProjectID == "" {
		return
	}
	if err := m.engine.SelectProject(""); err != nil {
		m.flash = err.Error()
		return
	}
	m.kind = "projects"
	m.sel = board.Selection{}
	m.rebuild()
	m.saveState()
}

func (m boardModel) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.creating = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.creating = false
		m.input.Blur()
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			return m, nil
		}
		sel := m.board.Clamp(m.sel)
		col := m.board.Columns[sel.Col].Key
		return m, m.createCmd(title, col)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// createCmd creates a card already placed in column col of the current grouping.
func (m boardModel) createCmd(title, col string) tea.Cmd {
	e, kind, field := m.engine, m.kind, m.mode.Field()
	return func() tea.Msg {
		ctx := context.Background()
		var (
			id  string
			err error
		)
		switch kind {
		case "projects":
			var p model.Project
			if p, err = placeIn(model.Project{Name: title}, field, col); err == nil {
				id, err = e.CreateProject(ctx, p)
			}
		case "tasks":
			var t model.Task
			if t, err = placeIn(model.Task{Title: title}, field, col); err == nil {
				id, err = e.CreateTask(ctx, t)
			}
		case "issues":
			var i model.Issue
			if i, err = placeIn(model.Issue{Title: title}, field, col); err == nil {
				id, err = e.CreateIssue(ctx, i)
			}
		}
		return createdMsg{id: id, err: err}
	}
}

// placeIn applies the move patch that puts a new item into column key.
func placeIn[T model.Groupable](v T, f model.Field, key string) (T, error) {
	from := model.Unassigned
	if keys := v.GroupKeys(f); len(keys) > 0 {
		from = keys[0]
	}
	patch, ok := v.MovePatch(f, from, key)
	if !ok {
		return v, nil
	}
	return model.ApplyPatch(v, patch)
}

func (m *boardModel) detailWidth() int {
	return clampInt(m.width*2/5, 24, 80)
}

func (m *boardModel) refreshDetail() {
	if !m.showDetail {
		return
	}
	w := m.detailWidth()
	m.detail.Width = w
	m.detail.Height = clampInt(m.height-4, 1, m.height)
	m.detail.SetContent(m.detailContent(w - 2))
	m.detail.GotoTop()
}

func (m *boardModel) detailContent(width int) string {
	it, ok := m.board.Selected(m.sel)
	if !ok || m.view == nil {
		return styleMuted().Render("nothing selected")
	}
	var desc string
	if g, ok := m.view.Lookup(it.ID); ok {
		switch v := g.(type) {
		case model.Project:
			desc = v.Description
		case model.Task:
			desc = v.Description
		case model.Issue:
			desc = v.Description
		}
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(it.Title))
	b.WriteString("\n")
	b.WriteString(styleMuted().Render(fmt.Sprintf("%s · %s · %s", it.Kind, it.Status, it.Priority)))
	if it.Summary != "" {
		b.WriteString("\n\n" + it.Summary)
	}
	if desc != "" {
		b.WriteString("\n\n" + renderMarkdown(desc, width))
	}
	return b.String()
}

func (m boardModel) View() string {
	header := m.headerLine()
	footer := m.footerLine()
	bodyH := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyH < 1 {
		bodyH = 1
	}

	var body string
	switch {
	case m.err != nil:
		body = normalizePane(lipgloss.NewStyle().Foreground(colorError).Render(m.err.Error()), m.width, bodyH)
	default:
		boardW := m.width
		if m.showDetail {
			boardW = m.width - m.detailWidth() - 1
		}
		cols := columnsView{board: m.board, sel: m.sel, drag: m.drag, width: boardW, height: bodyH}.render()
		if m.showDetail {
			pane := lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderLeft(true).
				BorderForeground(colorMuted).
				PaddingLeft(1).
				Render(normalizePane(m.detail.View(), m.detailWidth()-2, bodyH))
			body = lipgloss.JoinHorizontal(lipgloss.Top, cols, pane)
		} else {
			body = cols
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m boardModel) headerLine() string {
	crumbs := []string{}
	if ws, ok := m.engine.Workspace(); ok {
		crumbs = append(crumbs, ws.Name)
	} else {
		crumbs = append(crumbs, string(m.engine.Status().State))
	}
	if pid := m.engine.Scope().ProjectID; pid != "" {
		name := pid
		if p, ok := m.engine.Projects.Cache().Get(pid); ok {
			name = p.Name
		}
		crumbs = append(crumbs, name)
	}
	crumbs = append(crumbs, m.kind)
	left := lipgloss.NewStyle().Bold(true).Render(strings.Join(crumbs, " / "))
	right := styleMuted().Render("by " + strings.ToLower(m.mode.Label(m.board.Kind)))
	if m.view != nil && m.view.Snapshot().Loading {
		right = styleMuted().Render("loading… ") + right
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return fit(left+strings.Repeat(" ", gap)+right, m.width)
}

func (m boardModel) footerLine() string {
	if m.creating {
		return fit("new card: "+m.input.View(), m.width)
	}
	line := m.help.View(m.keys)
	if m.flash != "" {
		line = lipgloss.NewStyle().Foreground(colorAccent).Render(m.flash) + "  " + line
	}
	return line
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
