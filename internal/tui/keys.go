package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the bindings for every page; bindings that do not apply to
// the current page are disabled so help hides them
type keyMap struct {
	Start    key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Fully    key.Binding
	Partial  key.Binding
	Not      key.Binding
	Next     key.Binding
	Previous key.Binding
	Report   key.Binding
	Back     key.Binding
	Reset    key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start:    key.NewBinding(key.WithKeys("enter", "s"), key.WithHelp("enter", "start")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "less")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "more")),
		Fully:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "fully")),
		Partial:  key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "partially")),
		Not:      key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "not")),
		Next:     key.NewBinding(key.WithKeys("n", "enter"), key.WithHelp("n", "next")),
		Previous: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		Report:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "report")),
		Back:     key.NewBinding(key.WithKeys("b", "esc"), key.WithHelp("b", "back")),
		Reset:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forPage enables the bindings that apply to p
func (k *keyMap) forPage(p page, view sectionBounds) {
	onSection := p == pageSection
	k.Start.SetEnabled(p == pageIntro)
	for _, b := range []*key.Binding{&k.Up, &k.Down, &k.Left, &k.Right, &k.Fully, &k.Partial, &k.Not, &k.Report} {
		b.SetEnabled(onSection)
	}
	k.Next.SetEnabled(onSection && !view.last)
	k.Previous.SetEnabled(onSection && !view.first)
	k.Back.SetEnabled(p == pageReport)
	k.Reset.SetEnabled(p == pageReport)
}

// sectionBounds says whether the shown section is the first or last one
type sectionBounds struct {
	first, last bool
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Up, k.Down, k.Fully, k.Partial, k.Not, k.Next, k.Previous, k.Report, k.Back, k.Reset, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Up, k.Down, k.Left, k.Right},
		{k.Fully, k.Partial, k.Not},
		{k.Next, k.Previous, k.Report},
		{k.Back, k.Reset, k.Quit},
	}
}
