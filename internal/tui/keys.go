package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Edit      key.Binding
	Commit    key.Binding
	Cancel    key.Binding
	Blur      key.Binding
	Filter    key.Binding
	Sort      key.Binding
	PrevPage  key.Binding
	NextPage  key.Binding
	FirstPage key.Binding
	LastPage  key.Binding
	PageSize  key.Binding
	Reload    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
	Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
	Edit:      key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit cell")),
	Commit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
	Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Blur:      key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "leave cell")),
	Filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
	PrevPage:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
	NextPage:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
	FirstPage: key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "first page")),
	LastPage:  key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "last page")),
	PageSize:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "page size")),
	Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
}

func (k keyMap) browseHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Filter, k.Sort, k.PrevPage, k.NextPage, k.FirstPage, k.LastPage, k.PageSize, k.Quit}
}

func (k keyMap) editHelp() []key.Binding {
	return []key.Binding{k.Commit, k.Cancel, k.Blur}
}
