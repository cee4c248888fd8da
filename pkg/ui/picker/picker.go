// Package picker is a terminal list for choosing one of several PDF
// candidates.
package picker

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/darkpdf/pkg/manual"
)

const (
	keyEnter = "enter"
	keyEsc   = "esc"

	defaultWidth  = 100
	defaultHeight = 20
)

type candidateItem struct {
	index int
	c     manual.Candidate
}

func (i candidateItem) FilterValue() string { return i.c.Label + " " + i.c.URL }

func (i candidateItem) Title() string {
	label := i.c.Label
	if label == "" {
		label = i.c.URL
	}
	return fmt.Sprintf("%d. %s", i.index+1, label)
}

func (i candidateItem) Description() string {
	source := string(i.c.Source)
	if source == "" {
		source = string(manual.SourceLink)
	}
	return source + " | " + i.c.URL
}

// Model is the bubbletea model of the picker.
type Model struct {
	list       list.Model
	candidates []manual.Candidate
	chosen     string
	done       bool
}

// New creates a picker over candidates.
func New(candidates []manual.Candidate) Model {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.
		Foreground(salmonPink).
		BorderForeground(salmonPink)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.
		Foreground(mutedGray).
		BorderForeground(salmonPink)

	items := make([]list.Item, len(candidates))
	for i, c := range candidates {
		items[i] = candidateItem{index: i, c: c}
	}

	l := list.New(items, d, defaultWidth, defaultHeight)
	l.Title = "Choose a PDF to open"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{
			key.NewBinding(key.WithKeys(keyEnter), key.WithHelp("enter", "open")),
			key.NewBinding(key.WithKeys("1"), key.WithHelp("1-9", "open by number")),
			key.NewBinding(key.WithKeys(keyEsc, "q"), key.WithHelp("esc/q", "cancel")),
		}
	}

	return Model{list: l, candidates: candidates}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch s := msg.String(); s {
		case keyEsc, "q", "ctrl+c":
			m.done = true
			return m, tea.Quit
		case keyEnter:
			if item, ok := m.list.SelectedItem().(candidateItem); ok {
				m.chosen = item.c.URL
				m.done = true
				return m, tea.Quit
			}
		default:
			if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
				if i := int(s[0] - '1'); i < len(m.candidates) {
					m.chosen = m.candidates[i].URL
					m.done = true
					return m, tea.Quit
				}
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-4)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done {
		if m.chosen == "" {
			return ""
		}
		return chosenStyle.Render("Opening "+m.chosen) + "\n"
	}
	return boxStyle.Render(m.list.View())
}

// Chosen returns the selected URL; ok is false when the user cancelled.
func (m Model) Chosen() (string, bool) {
	return m.chosen, m.chosen != ""
}

// Chooser runs the picker on a terminal. It implements manual.Chooser.
type Chooser struct {
	In  io.Reader
	Out io.Writer
}

// Choose shows candidates and blocks until the user picks or cancels.
func (c Chooser) Choose(ctx context.Context, _ int, candidates []manual.Candidate) (string, bool, error) {
	if len(candidates) == 0 {
		return "", false, nil
	}
	var opts []tea.ProgramOption
	opts = append(opts, tea.WithContext(ctx))
	if c.In != nil {
		opts = append(opts, tea.WithInput(c.In))
	}
	if c.Out != nil {
		opts = append(opts, tea.WithOutput(c.Out))
	}

	final, err := tea.NewProgram(New(candidates), opts...).Run()
	if err != nil {
		return "", false, fmt.Errorf("picker failed: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return "", false, fmt.Errorf("unexpected picker model %T", final)
	}
	url, picked := m.Chosen()
	return url, picked, nil
}

// Plain renders candidates as numbered lines, for non-interactive output.
func Plain(candidates []manual.Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		item := candidateItem{index: i, c: c}
		fmt.Fprintf(&b, "%s\n   %s\n", item.Title(), item.Description())
	}
	return b.String()
}
