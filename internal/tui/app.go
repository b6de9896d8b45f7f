package tui

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/user/arthub/internal/collection"
	"github.com/user/arthub/internal/db"
	"github.com/user/arthub/internal/search"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeFolders
)

type model struct {
	coord  *search.Coordinator
	syncer *collection.Synchronizer
	view   *collection.View

	searchInput textinput.Model
	folderInput textinput.Model
	list        list.Model

	term         string
	results      []db.Artwork
	failed       []string
	recentLimit  int
	target       db.Artwork // artwork whose folders are being edited
	folderCursor int

	searching bool // a search is in flight and its result is wanted

	mode   mode
	status string
	width  int
	height int
}

type artworkItem struct {
	art   db.Artwork
	saved bool
}

func (i artworkItem) Title() string {
	mark := "  "
	if i.saved {
		mark = "★ "
	}
	return mark + SourceTag(i.art.Source) + " " + i.art.Title
}

func (i artworkItem) Description() string {
	artist := i.art.Artist
	if artist == "" {
		artist = "Unknown artist"
	}
	return artist + " · " + i.art.Source
}

func (i artworkItem) FilterValue() string {
	return i.art.Title + " " + i.art.Artist
}

// SourceTag returns the short bracketed tag shown next to a record.
func SourceTag(source string) string {
	switch source {
	case "Art Institute of Chicago":
		return "[AIC]"
	case "Harvard Art Museums":
		return "[HAM]"
	case "The MET Museum":
		return "[MET]"
	case "Cleveland Museum of Art":
		return "[CMA]"
	case "Victoria and Albert Museum":
		return "[V&A]"
	case "Smithsonian Institution":
		return "[SI]"
	default:
		return "[?]"
	}
}

func newModel(coord *search.Coordinator, syncer *collection.Synchronizer, view *collection.View, recentLimit int) model {
	si := textinput.New()
	si.Placeholder = "Search artworks..."
	si.Focus()
	si.CharLimit = 256
	si.Width = 50

	fi := textinput.New()
	fi.Placeholder = "Filter or name a new folder"
	fi.CharLimit = 128
	fi.Width = 40

	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Recently saved"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	m := model{
		coord:       coord,
		syncer:      syncer,
		view:        view,
		searchInput: si,
		folderInput: fi,
		list:        l,
		recentLimit: recentLimit,
		mode:        modeSearch,
	}
	m.list.SetItems(m.items())
	return m
}

type searchMsg struct {
	res search.Result
	err error
}

type viewChangedMsg struct{}

type opMsg struct {
	status string
	err    error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.reconcile)
}

func (m model) reconcile() tea.Msg {
	n, err := m.syncer.Reconcile(context.Background())
	if err != nil {
		return opMsg{err: fmt.Errorf("reconcile: %w", err)}
	}
	if n == 0 {
		return nil
	}
	return opMsg{status: fmt.Sprintf("Removed %d stale folder reference(s)", n)}
}

func (m model) doSearch(term string) tea.Cmd {
	coord := m.coord
	return func() tea.Msg {
		res, err := coord.Search(context.Background(), term)
		return searchMsg{res: res, err: err}
	}
}

func (m model) toggleSave(a db.Artwork) tea.Cmd {
	view := m.view
	return func() tea.Msg {
		ctx := context.Background()
		if view.IsSaved(a.Key()) {
			err := view.Unsave(ctx, a.Key())
			if errors.Is(err, collection.ErrPartialCascade) {
				return opMsg{status: "Removed " + a.Title + "; some folders will be cleaned up on next start"}
			}
			return opMsg{status: "Removed " + a.Title, err: err}
		}
		return opMsg{status: "Saved " + a.Title, err: view.Save(ctx, a)}
	}
}

func (m model) toggleFolder(key string, f db.Folder) tea.Cmd {
	view := m.view
	return func() tea.Msg {
		member, err := view.ToggleFolder(context.Background(), key, f.ID)
		if err != nil {
			return opMsg{err: err}
		}
		if member {
			return opMsg{status: "Added to " + f.Name}
		}
		return opMsg{status: "Removed from " + f.Name}
	}
}

func (m model) createFolder(name, key string) tea.Cmd {
	view := m.view
	return func() tea.Msg {
		ctx := context.Background()
		f, err := view.CreateFolder(ctx, name)
		if err != nil {
			return opMsg{err: err}
		}
		if _, err := view.ToggleFolder(ctx, key, f.ID); err != nil {
			return opMsg{status: "Created " + f.Name, err: err}
		}
		return opMsg{status: "Created " + f.Name + " and added the artwork"}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeFolders:
			return m.updateFolders(msg)
		default:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-8)
		m.searchInput.Width = msg.Width - 20

	case searchMsg:
		// Results of a superseded query, or of one the user navigated
		// away from, are dropped.
		if !m.searching || (msg.res.Token != 0 && !m.coord.Current(msg.res.Token)) {
			return m, nil
		}
		m.searching = false
		switch {
		case errors.Is(msg.err, search.ErrQueryTooShort):
			m.status = msg.err.Error()
			return m, nil
		case msg.err != nil:
			m.term = msg.res.Term
			m.results = nil
			m.failed = msg.res.Failed
			m.status = "All sources failed, try again later"
		default:
			m.term = msg.res.Term
			m.results = msg.res.Records
			m.failed = msg.res.Failed
			m.status = fmt.Sprintf("%d result(s) for %q", len(msg.res.Records), msg.res.Term)
		}
		m.list.Title = "Results"
		m.list.SetItems(m.items())
		m.list.Select(0)

	case viewChangedMsg:
		m.list.SetItems(m.items())

	case opMsg:
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.status != "":
			m.status = msg.status
		}
		m.list.SetItems(m.items())
	}

	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = modeList
		m.searchInput.Blur()
		return m, nil
	case "enter":
		m.mode = modeList
		m.searchInput.Blur()
		m.status = "Searching..."
		m.searching = true
		return m, m.doSearch(m.searchInput.Value())
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, hasSelection := m.list.SelectedItem().(artworkItem)

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.mode = modeSearch
		m.searchInput.Focus()
		return m, textinput.Blink
	case "r":
		m.coord.Invalidate()
		m.searching = false
		m.term = ""
		m.results = nil
		m.failed = nil
		m.list.Title = "Recently saved"
		m.list.SetItems(m.items())
		return m, nil
	case "j", "down":
		m.list.CursorDown()
		return m, nil
	case "k", "up":
		m.list.CursorUp()
		return m, nil
	case "g":
		m.list.Select(0)
		return m, nil
	case "G":
		if n := len(m.list.Items()); n > 0 {
			m.list.Select(n - 1)
		}
		return m, nil
	case "s":
		if hasSelection {
			return m, m.toggleSave(selected.art)
		}
	case "f":
		if !hasSelection {
			return m, nil
		}
		if !m.view.IsSaved(selected.art.Key()) {
			m.status = "Save the artwork first (s)"
			return m, nil
		}
		m.target = selected.art
		m.mode = modeFolders
		m.folderCursor = 0
		m.folderInput.SetValue("")
		m.folderInput.Focus()
		return m, textinput.Blink
	case "o":
		if hasSelection {
			openBrowser(selected.art.SourceURL)
		}
	case "y":
		if hasSelection {
			if err := clipboard.WriteAll(selected.art.SourceURL); err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.status = "Copied " + selected.art.SourceURL
			}
		}
	}
	return m, nil
}

func (m model) updateFolders(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	folders := m.visibleFolders()
	key := m.target.Key()

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = modeList
		m.folderInput.Blur()
		return m, nil
	case "up", "ctrl+p":
		if m.folderCursor > 0 {
			m.folderCursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.folderCursor < len(folders)-1 {
			m.folderCursor++
		}
		return m, nil
	case " ", "space":
		if m.folderCursor < len(folders) {
			return m, m.toggleFolder(key, folders[m.folderCursor])
		}
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.folderInput.Value())
		if name == "" {
			return m, nil
		}
		for _, f := range m.view.State().Folders {
			if f.Slug == collection.Slugify(name) {
				m.status = "Folder " + f.Name + " already exists"
				return m, nil
			}
		}
		m.folderInput.SetValue("")
		m.folderCursor = 0
		return m, m.createFolder(name, key)
	}

	var cmd tea.Cmd
	m.folderInput, cmd = m.folderInput.Update(msg)
	m.folderCursor = 0
	return m, cmd
}

// visibleFolders returns the folders matching the checklist filter, best
// match first. An empty filter shows every folder in creation order.
func (m model) visibleFolders() []db.Folder {
	folders := m.view.State().Folders
	q := strings.TrimSpace(m.folderInput.Value())
	if q == "" {
		return folders
	}
	names := make([]string, len(folders))
	for i, f := range folders {
		names[i] = f.Name
	}
	matches := fuzzy.Find(q, names)
	out := make([]db.Folder, 0, len(matches))
	for _, match := range matches {
		out = append(out, folders[match.Index])
	}
	return out
}

// items is the list content: search results when a query is active,
// otherwise the most recently saved artworks.
func (m model) items() []list.Item {
	var arts []db.Artwork
	if m.term != "" {
		arts = m.results
	} else {
		for _, it := range m.view.Recent(m.recentLimit) {
			arts = append(arts, it.Artwork)
		}
	}
	items := make([]list.Item, 0, len(arts))
	for _, a := range arts {
		items = append(items, artworkItem{art: a, saved: m.view.IsSaved(a.Key())})
	}
	return items
}

func (m model) View() string {
	var b strings.Builder

	searchStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	okSource := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true)

	failedSource := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Strikethrough(true)

	failed := make(map[string]bool, len(m.failed))
	for _, name := range m.failed {
		failed[name] = true
	}
	tags := []string{}
	for _, src := range m.coord.Sources() {
		if failed[src.Name()] {
			tags = append(tags, failedSource.Render(SourceTag(src.Name())))
		} else {
			tags = append(tags, okSource.Render(SourceTag(src.Name())))
		}
	}

	searchBox := searchStyle.Render(m.searchInput.View())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, searchBox, "  ", strings.Join(tags, " ")))
	b.WriteString("\n")

	if len(m.failed) > 0 {
		warn := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
		b.WriteString(warn.Render("Unavailable: " + strings.Join(m.failed, ", ")))
	}
	b.WriteString("\n")

	if m.mode == modeFolders {
		b.WriteString(m.folderView())
	} else {
		b.WriteString(m.list.View())
	}

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		MarginTop(1)
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	help := "[j/k]nav [/]search [s]ave [f]olders [o]pen [y]ank url [r]ecent [q]uit"
	if m.mode == modeFolders {
		help = "[↑/↓]move [space]toggle [enter]new folder [esc]back"
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m model) folderView() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true)
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	b.WriteString(titleStyle.Render("Folders for " + m.target.Title))
	b.WriteString("\n")
	b.WriteString(m.folderInput.View())
	b.WriteString("\n\n")

	folders := m.visibleFolders()
	if len(folders) == 0 {
		b.WriteString(countStyle.Render("No folders yet. Type a name and press enter."))
		b.WriteString("\n")
	}
	key := m.target.Key()
	for i, f := range folders {
		check := "[ ]"
		if f.Contains(key) {
			check = "[x]"
		}
		line := fmt.Sprintf("%s %s %s", check, f.Name, countStyle.Render(collection.CountLabel(len(f.Images))))
		if i == m.folderCursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}
	if cmd != nil {
		cmd.Start()
	}
}

// Run starts the TUI on an open view. Store commits made in this process,
// including the TUI's own writes, refresh the list.
func Run(coord *search.Coordinator, syncer *collection.Synchronizer, view *collection.View, recentLimit int) error {
	p := tea.NewProgram(newModel(coord, syncer, view, recentLimit), tea.WithAltScreen())
	view.OnChange(func(collection.State) {
		go p.Send(viewChangedMsg{})
	})
	_, err := p.Run()
	return err
}
