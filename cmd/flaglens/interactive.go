package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/flaglens/internal/audit"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	tuiBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	missingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	unusedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	mismatchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true)
)

// auditModel is the Bubble Tea model for browsing audit findings.
type auditModel struct {
	report   *audit.Report
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
	content  string
}

func newAuditModel(rpt *audit.Report) auditModel {
	h := help.New()
	content := renderAuditContent(rpt)
	return auditModel{
		report:  rpt,
		help:    h,
		keys:    defaultKeyMap,
		content: content,
	}
}

func renderAuditContent(rpt *audit.Report) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("Flag Audit: %d flag(s) in code, %d in configuration, %d finding(s)",
			rpt.Summary.FlagsInCode, rpt.Summary.FlagsInConfig, len(rpt.Findings))))
	sb.WriteString("\n\n")

	if len(rpt.Findings) == 0 {
		sb.WriteString(passStyle.Render("PASS: code and configuration agree"))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, kind := range []audit.Kind{audit.KindMissing, audit.KindMismatch, audit.KindUnused} {
		findings := filterFindings(rpt.Findings, kind)
		if len(findings) == 0 {
			continue
		}

		sb.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("=== %s (%d) ===", kind, len(findings))))
		sb.WriteString("\n")

		rows := make([][]string, 0, len(findings))
		for _, f := range findings {
			detail := ""
			switch kind {
			case audit.KindMismatch:
				detail = fmt.Sprintf("code %s, config %s", f.CodeType, f.ConfigType)
			case audit.KindMissing:
				if len(f.References) > 0 {
					detail = fmt.Sprintf("%s:%d", f.References[0].File, f.References[0].Line)
				}
			}
			if len(detail) > 50 {
				detail = detail[:47] + "..."
			}
			rows = append(rows, []string{f.Key, detail})
		}

		kindStyle := missingStyle
		switch kind {
		case audit.KindUnused:
			kindStyle = unusedStyle
		case audit.KindMismatch:
			kindStyle = mismatchStyle
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(tuiBorderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tuiHeaderStyle
				}
				if col == 0 {
					return kindStyle
				}
				return lipgloss.NewStyle()
			}).
			Headers("FLAG", "DETAIL").
			Rows(rows...)

		sb.WriteString(t.String())
		sb.WriteString("\n\n")
	}

	return sb.String()
}

func filterFindings(findings []audit.Finding, kind audit.Kind) []audit.Finding {
	var out []audit.Finding
	for _, f := range findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func (m auditModel) Init() tea.Cmd {
	return nil
}

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m auditModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveAudit launches the Bubble Tea TUI for browsing audit
// findings.
func runInteractiveAudit(rpt *audit.Report) error {
	model := newAuditModel(rpt)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
