package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left   key.Binding
	Right  key.Binding
	Up     key.Binding
	Down   key.Binding
	Mode   key.Binding
	Kind   key.Binding
	Grab   key.Binding
	Cancel key.Binding
	Detail key.Binding
	Open   key.Binding
	Back   key.Binding
	New    key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column")),
		Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "card")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "card")),
		Mode:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "group by")),
		Kind:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "projects/tasks/issues")),
		Grab:   key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "pick up/drop")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Detail: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open project")),
		Back:   key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "up")),
		New:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new card")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grab, k.Mode, k.Kind, k.Detail, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Grab, k.Cancel, k.Mode, k.Kind},
		{k.Detail, k.Open, k.Back, k.New},
		{k.Help, k.Quit},
	}
}
