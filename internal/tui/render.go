package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"teamboard/internal/board"
	"teamboard/internal/model"
)

const (
	columnGap   = 2
	minColumnW  = 14
	dropMarker  = "▸ drop here"
	emptyColumn = "(empty)"
)

type columnsView struct {
	board  board.Board
	sel    board.Selection
	drag   *board.Drag
	width  int
	height int
}

func (v columnsView) render() string {
	n := len(v.board.Columns)
	if n == 0 {
		return normalizePane(styleMuted().Render("no columns"), v.width, v.height)
	}
	sel := v.board.Clamp(v.sel)

	avail := v.width - columnGap*(n-1)
	colW := avail / n
	if colW < minColumnW {
		colW = minColumnW
	}

	cols := make([]string, 0, n*2)
	for i, c := range v.board.Columns {
		if i > 0 {
			cols = append(cols, strings.Repeat(" ", columnGap))
		}
		cols = append(cols, v.renderColumn(i, c, sel, colW))
	}
	return normalizePane(lipgloss.JoinHorizontal(lipgloss.Top, cols...), v.width, v.height)
}

func (v columnsView) renderColumn(idx int, c board.Column, sel board.Selection, colW int) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg)
	if idx == sel.Col && v.drag == nil {
		headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSelectedFg).Background(colorSelectedBg)
	}
	if v.drag != nil && idx == v.drag.OverCol {
		headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccentFg).Background(colorAccent)
	}
	head := fmt.Sprintf("%s %s (%d)", c.Icon, c.Label, len(c.Items))
	if c.Icon == "" {
		head = fmt.Sprintf("%s (%d)", c.Label, len(c.Items))
	}
	lines := []string{headerStyle.Render(fit(head, colW))}

	marker := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render(fit(dropMarker, colW))
	markerAt := -1
	if v.drag != nil && idx == v.drag.OverCol {
		markerAt = v.drag.OverIdx
		if markerAt > len(c.Items) {
			markerAt = len(c.Items)
		}
	}

	if len(c.Items) == 0 && markerAt < 0 {
		lines = append(lines, styleMuted().Render(fit(emptyColumn, colW)))
	}
	for i, it := range c.Items {
		if i == markerAt {
			lines = append(lines, marker)
		}
		selected := v.drag == nil && idx == sel.Col && i == sel.Item
		carried := v.drag != nil && it.ID == v.drag.ItemID
		lines = append(lines, renderCard(it, colW, selected, carried)...)
	}
	if markerAt >= len(c.Items) {
		lines = append(lines, marker)
	}
	return strings.Join(lines, "\n")
}

func renderCard(it model.BoardItem, width int, selected, carried bool) []string {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = "(untitled)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true)
	metaStyle := styleMuted()
	switch {
	case carried:
		titleStyle = titleStyle.Foreground(colorAccent).Italic(true)
	case selected:
		titleStyle = titleStyle.Foreground(colorSelectedFg).Background(colorSelectedBg)
		metaStyle = metaStyle.Background(colorSelectedBg)
	}

	lines := []string{titleStyle.Render(fit(" "+xansi.Strip(title), width))}
	if meta := cardMeta(it); meta != "" {
		st := metaStyle
		switch it.Priority {
		case "urgent":
			st = st.Foreground(colorUrgent)
		case "high":
			st = st.Foreground(colorHigh)
		}
		lines = append(lines, st.Render(fit("  "+meta, width)))
	}
	return lines
}

func cardMeta(it model.BoardItem) string {
	var parts []string
	if it.Priority != "" && it.Priority != "none" && it.Priority != "no-priority" {
		parts = append(parts, it.Priority)
	}
	if it.Lead != "" {
		parts = append(parts, "@"+it.Lead)
	}
	for _, a := range it.Assignees {
		parts = append(parts, "@"+a)
	}
	if it.TargetDate != nil {
		parts = append(parts, "due "+it.TargetDate.Format("Jan 2"))
	}
	return strings.Join(parts, " · ")
}
