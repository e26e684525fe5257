package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	keep "github.com/unowned-ai/keep/pkg"
	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/projects"
)

const timeLayout = "2006-01-02 15:04:05"

type model struct {
	stores *keep.Stores

	projects []projects.Project
	items    []items.Item

	currentItem itemDetailsMsg // Currently loaded item details

	columnFocus int // 0 = projects, 1 = items, 2 = item details
	width       int
	height      int
	err         error

	dbFilename   string
	dynamicWidth bool
	showArchived bool

	quitting bool

	projectCursor int // 0 = all items, i = projects[i-1]

	itemCursor           int
	itemCreating         bool
	itemCreatingStep     int // 0 = editing title, 1 = editing body
	itemCreatingError    string
	itemTitleInput       textinput.Model
	itemBodyInput        textinput.Model
	itemDeleting         bool
	itemDeleteConfirmIdx int // 0 = "Yes" selected, 1 = "No"

	// Animation state
	marqueeOffset int
}

func initModel(stores *keep.Stores, dbFile string) model {
	if dbFile == "" {
		dbFile = getDbFile(stores)
	}

	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 256

	body := textinput.New()
	body.Placeholder = "Body (optional)"
	body.CharLimit = 4096

	return model{
		stores:         stores,
		dbFilename:     filepath.Base(dbFile),
		itemTitleInput: title,
		itemBodyInput:  body,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listProjects(m.stores),
		tea.Tick(marqueeTickDuration, func(t time.Time) tea.Msg {
			return t
		}),
	)
}

// selectedProject returns the name of the selected project, "" for all items.
func (m model) selectedProject() string {
	if m.projectCursor == 0 || m.projectCursor > len(m.projects) {
		return ""
	}
	return m.projects[m.projectCursor-1].Name
}

func (m model) reloadItems() tea.Cmd {
	return listItems(m.stores, m.selectedProject(), m.showArchived)
}

func (m model) selectedItem() (items.Item, bool) {
	if m.itemCursor < 0 || m.itemCursor >= len(m.items) {
		return items.Item{}, false
	}
	return m.items[m.itemCursor], true
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case time.Time:
		m.marqueeOffset++
		return m, tea.Tick(marqueeTickDuration, func(t time.Time) tea.Msg {
			return t
		})

	case error:
		m.err = msg
		return m, nil

	case projectsMsg:
		m.projects = msg
		if m.projectCursor > len(m.projects) {
			m.projectCursor = len(m.projects)
		}
		return m, m.reloadItems()

	case itemsMsg:
		m.items = msg
		if m.itemCursor >= len(m.items) {
			m.itemCursor = max(len(m.items)-1, 0)
		}
		if len(m.items) == 0 {
			m.currentItem = itemDetailsMsg{}
			if m.columnFocus > 0 {
				m.columnFocus = 0
			}
			return m, nil
		}
		if m.columnFocus > 0 {
			return m, getItemDetails(m.stores, m.items[m.itemCursor].ID)
		}
		return m, nil

	case itemDetailsMsg:
		m.currentItem = msg
		return m, nil

	case itemChangedMsg:
		return m, m.reloadItems()

	case tea.KeyMsg:
		if m.itemCreating {
			return m.updateCreating(msg)
		}
		if m.itemDeleting {
			return m.updateDeleting(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m model) resetCreating() model {
	m.itemCreating = false
	m.itemCreatingStep = 0
	m.itemCreatingError = ""
	m.itemTitleInput.Reset()
	m.itemBodyInput.Reset()
	m.itemTitleInput.Blur()
	m.itemBodyInput.Blur()
	return m
}

func (m model) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if m.itemCreatingStep == 0 {
			if strings.TrimSpace(m.itemTitleInput.Value()) == "" {
				m.itemCreatingError = "Title cannot be empty"
				return m, nil
			}
			m.itemCreatingError = ""
			m.itemCreatingStep = 1
			m.itemTitleInput.Blur()
			m.itemBodyInput.Focus()
			return m, nil
		}
		cmd := createItem(m.stores, m.selectedProject(),
			m.itemTitleInput.Value(), m.itemBodyInput.Value())
		return m.resetCreating(), cmd

	case tea.KeyEsc:
		return m.resetCreating(), nil
	}

	var cmd tea.Cmd
	if m.itemCreatingStep == 0 {
		m.itemTitleInput, cmd = m.itemTitleInput.Update(msg)
	} else {
		m.itemBodyInput, cmd = m.itemBodyInput.Update(msg)
	}
	return m, cmd
}

func (m model) updateDeleting(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k", "down", "j":
		m.itemDeleteConfirmIdx = 1 - m.itemDeleteConfirmIdx
	case "esc":
		m.itemDeleting = false
	case "enter":
		m.itemDeleting = false
		item, ok := m.selectedItem()
		if m.itemDeleteConfirmIdx == 0 && ok {
			m.currentItem = itemDetailsMsg{}
			return m, hardDelete(m.stores, item.ID)
		}
	}
	return m, nil
}

func (m model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		switch m.columnFocus {
		case 0:
			if m.projectCursor > 0 {
				m.projectCursor--
				m.itemCursor = 0
				return m, m.reloadItems()
			}
		case 1:
			if m.itemCursor > 0 {
				m.itemCursor--
				return m, getItemDetails(m.stores, m.items[m.itemCursor].ID)
			}
		}

	case "down", "j":
		switch m.columnFocus {
		case 0:
			if m.projectCursor < len(m.projects) {
				m.projectCursor++
				m.itemCursor = 0
				return m, m.reloadItems()
			}
		case 1:
			if m.itemCursor < len(m.items)-1 {
				m.itemCursor++
				return m, getItemDetails(m.stores, m.items[m.itemCursor].ID)
			}
		}

	case "right", "l", "enter":
		if m.columnFocus == 0 && len(m.items) > 0 {
			m.columnFocus = 1
			return m, getItemDetails(m.stores, m.items[m.itemCursor].ID)
		}
		if m.columnFocus == 1 && m.currentItem.item.ID != 0 {
			m.columnFocus = 2
		}

	case "left", "h", "esc":
		if m.columnFocus > 0 {
			m.columnFocus--
		}
		if m.columnFocus == 0 {
			m.currentItem = itemDetailsMsg{}
		}

	case "n":
		m.itemCreating = true
		m.itemCreatingStep = 0
		m.itemTitleInput.Focus()
		return m, textinput.Blink

	case "a":
		if item, ok := m.selectedItem(); ok && m.columnFocus > 0 {
			return m, setArchived(m.stores, item.ID, !item.IsArchived)
		}

	case "v":
		m.showArchived = !m.showArchived
		return m, m.reloadItems()

	case "d":
		if _, ok := m.selectedItem(); ok && m.columnFocus > 0 {
			m.itemDeleting = true
			m.itemDeleteConfirmIdx = 1
		}

	case "w":
		m.dynamicWidth = !m.dynamicWidth

	case "r":
		return m, listProjects(m.stores)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Closing keep. Bye.\n"
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	titleBar := titleStyle.Width(m.width).Render("Keep - items, tags and projects")

	leftWidth, middleWidth, rightWidth := m.dynamicColumnWidth()
	m.itemTitleInput.Width = rightWidth - bordersAndPaddingWidth - 8
	m.itemBodyInput.Width = rightWidth - bordersAndPaddingWidth - 8

	quarterHeight := (m.height - bordersAndPaddingWidth) / 4

	// Left column: projects and info
	var projectsBuilder, infoBuilder strings.Builder
	projectsBuilder.WriteString(subtitleStyle.Width(leftWidth - bordersAndPaddingWidth).Render("  Projects"))
	projectsBuilder.WriteString("\n\n")

	names := make([]string, 0, len(m.projects)+1)
	names = append(names, "All items")
	for _, p := range m.projects {
		names = append(names, p.Name)
	}
	for i, name := range names {
		availableWidth := leftWidth - 2 - bordersAndPaddingWidth - 1
		pointer := generateLinePointer(i == m.projectCursor && m.columnFocus == 0, 2)
		style := inactiveStyle
		if i == m.projectCursor {
			style = selectedStyle
			name = m.marqueeText(name, availableWidth)
		} else {
			name = truncateText(name, availableWidth)
		}
		projectsBuilder.WriteString(pointer + style.Render(lipgloss.NewStyle().MaxWidth(availableWidth).Render(name)) + "\n")
	}

	databaseStatus := 0
	if m.dbFilename != "" {
		databaseStatus = 1
	}
	archivedStatus := 2
	if m.showArchived {
		archivedStatus = 1
	}
	infoBuilder.WriteString(fmt.Sprintf("Database file: %v\nExtensions: %v\nShow archived: %v\n",
		TextStatusColorize(m.dbFilename, databaseStatus),
		TextStatusColorize(strings.Join(m.stores.Items.Extensions(), ", "), 1),
		TextStatusColorize(fmt.Sprint(m.showArchived), archivedStatus)))

	projectsPanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, true, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(0, 2).
		Width(leftWidth).Height(quarterHeight * 3).
		Render(projectsBuilder.String())
	infoPanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(1, 2).
		Width(leftWidth).Height(quarterHeight).
		Render(infoBuilder.String())
	leftPanel := lipgloss.JoinVertical(lipgloss.Left, projectsPanel, infoPanel)

	// Middle column: items
	var middleBuilder strings.Builder
	middleBuilder.WriteString(subtitleStyle.Width(middleWidth - bordersAndPaddingWidth).Render("  Items"))
	middleBuilder.WriteString("\n\n")
	if len(m.items) == 0 {
		middleBuilder.WriteString("  No items yet. Press 'n' to create new.\n")
	}
	for i, item := range m.items {
		availableWidth := middleWidth - 2 - bordersAndPaddingWidth - 1
		pointer := generateLinePointer(i == m.itemCursor && m.columnFocus == 1, 2)
		style := inactiveStyle
		if item.IsArchived {
			style = archivedStyle
		}
		title := item.Title
		if i == m.itemCursor && m.columnFocus != 0 {
			style = selectedStyle
			title = m.marqueeText(title, availableWidth)
		} else {
			title = truncateText(title, availableWidth)
		}
		middleBuilder.WriteString(pointer + style.Render(lipgloss.NewStyle().MaxWidth(availableWidth).Render(title)) + "\n")
	}

	// Right column: item details, new item form or delete confirmation
	var rightBuilder strings.Builder
	subtitle := "Item"
	switch {
	case m.itemCreating:
		subtitle = "Create New Item"
	case m.itemDeleting:
		subtitle = "Delete Item"
	}
	rightBuilder.WriteString(subtitleStyle.Width(rightWidth - bordersAndPaddingWidth).Render(subtitle))
	rightBuilder.WriteString("\n\n")

	switch {
	case m.itemCreating:
		if project := m.selectedProject(); project != "" {
			rightBuilder.WriteString(labelStyle.Render("Project: ") + project + "\n")
		}
		rightBuilder.WriteString("Title: " + m.itemTitleInput.View() + "\n")
		rightBuilder.WriteString("Body:  " + m.itemBodyInput.View() + "\n\n")
		rightBuilder.WriteString("(enter to submit, esc to cancel)")
		if m.itemCreatingError != "" {
			rightBuilder.WriteString("\n\n" + errorStyle.Render(m.itemCreatingError) + "\n")
		}

	case m.itemDeleting:
		item, _ := m.selectedItem()
		rightBuilder.WriteString("Title: " + errorStyle.Render(item.Title) + "\n")
		rightBuilder.WriteString("Tags and project links of this item are removed too.\n\n")
		yesOpt, noOpt := "Yes", "No"
		if m.itemDeleteConfirmIdx == 0 {
			yesOpt = dangerSelectedStyle.Render(" >" + yesOpt)
			noOpt = inactiveStyle.Render("  " + noOpt)
		} else {
			yesOpt = inactiveStyle.Render("  " + yesOpt)
			noOpt = selectedStyle.Render(" >" + noOpt)
		}
		rightBuilder.WriteString(fmt.Sprintf("%s\n%s\n\n", yesOpt, noOpt))
		rightBuilder.WriteString("(enter to confirm, esc to cancel, up/down to switch)")

	case m.currentItem.item.ID != 0:
		rightBuilder.WriteString(m.renderDetails())

	default:
		rightBuilder.WriteString("Select an item to view details.")
	}

	panelHeightPadding := 3
	middlePanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(0, 2).
		Width(middleWidth).Height(m.height - panelHeightPadding).
		Render(middleBuilder.String())
	rightPanel := lipgloss.NewStyle().Padding(0, 2).
		Width(rightWidth).Height(m.height - panelHeightPadding).
		Render(rightBuilder.String())

	columns := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, middlePanel, rightPanel)

	footerText := "\n↑/↓ navigate • ←/→ columns • n new • a archive • v show archived • d delete • w widths • q quit"
	footerBar := footerStyle.Width(m.width).Render(footerText)

	return titleBar + "\n\n" + columns + footerBar
}

func (m model) renderDetails() string {
	var b strings.Builder
	item := m.currentItem.item

	b.WriteString(lipgloss.NewStyle().Bold(true).
		Render(labelStyle.Render("Title: ")+inactiveStyle.Render(item.Title)) + "\n\n")

	tagsLine := "-"
	if len(m.currentItem.tags) > 0 {
		tagsLine = strings.Join(m.currentItem.tags, " ")
	}
	b.WriteString(labelStyle.Render("Tags: ") + tagStyle.Render(tagsLine) + "\n")

	projectLine := "-"
	if m.currentItem.project != nil {
		projectLine = m.currentItem.project.Name
	}
	b.WriteString(labelStyle.Render("Project: ") + projectLine + "\n")

	status := TextStatusColorize("active", 1)
	if item.IsArchived {
		status = TextStatusColorize("archived", 2)
	}
	b.WriteString(labelStyle.Render("Status: ") + status + "\n\n")

	b.WriteString(labelStyle.Render("Created: ") + item.CreatedAt.Local().Format(timeLayout) + "\n")
	b.WriteString(labelStyle.Render("Changed: ") + item.ChangedAt.Local().Format(timeLayout) + "\n")
	if item.ArchivedStatusChangedAt != nil {
		b.WriteString(labelStyle.Render("Archive status changed: ") +
			item.ArchivedStatusChangedAt.Local().Format(timeLayout) + "\n")
	}

	if item.Body != nil {
		b.WriteString("\n" + inactiveStyle.Render(*item.Body))
	}
	return b.String()
}

// ShowTUI starts the terminal UI over an opened set of stores.
func ShowTUI(stores *keep.Stores, dbFile string) error {
	p := tea.NewProgram(initModel(stores, dbFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
