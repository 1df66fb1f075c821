package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Warning    lipgloss.Color
	Badge      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color

	// plain disables styling, for pipes and files.
	plain bool
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Warning:    lipgloss.Color("#FFAF00"), // amber
	Badge:      lipgloss.Color("#D7AF00"), // gold
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// themeFor returns the default theme, unstyled unless w is a terminal.
func themeFor(w io.Writer) Theme {
	t := defaultTheme
	t.plain = !isTerminal(w)
	return t
}

func (t Theme) render(style lipgloss.Style, s string) string {
	if t.plain {
		return s
	}
	return style.Render(s)
}

func (t Theme) status(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Status), s)
}

func (t Theme) success(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Success).Bold(true), s)
}

func (t Theme) failure(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Error).Bold(true), s)
}

func (t Theme) warning(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Warning).Bold(true), s)
}

func (t Theme) badge(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Badge).Bold(true), s)
}

func (t Theme) hint(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Hint).Italic(true), s)
}

// userDoneMsg reports one finished user.
type userDoneMsg struct {
	user    string
	entries int
	err     error
}

// rebuildDoneMsg reports that the whole rebuild finished.
type rebuildDoneMsg struct {
	entries int
	err     error
}

// rebuildModel is the bubbletea model for a multi-user rebuild.
type rebuildModel struct {
	total    int
	done     int
	entries  int
	last     string
	failed   []string
	progress progress.Model
	theme    Theme
	finished bool
	quitting bool
	err      error
}

// newRebuildModel creates a progress model for total users.
func newRebuildModel(total int) rebuildModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return rebuildModel{
		total:    total,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m rebuildModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m rebuildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case userDoneMsg:
		m.done++
		m.last = msg.user
		if msg.err != nil {
			m.failed = append(m.failed, fmt.Sprintf("%s: %v", msg.user, msg.err))
		} else {
			m.entries += msg.entries
		}
		return m, nil

	case rebuildDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m rebuildModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m rebuildModel) renderContent() string {
	if m.finished || m.quitting {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	status := m.theme.status("[rebuilding]")
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d users", m.done, m.total)
	current := ""
	if m.last != "" {
		current = m.theme.hint("last: " + m.last)
	}
	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, current)
}

func (m rebuildModel) finalView() string {
	if m.quitting {
		return m.theme.hint(fmt.Sprintf("\nRebuild cancelled after %d/%d users.\n", m.done, m.total))
	}

	var b strings.Builder
	if m.err != nil {
		b.WriteString(m.theme.failure("✗ Rebuild failed") + "\n")
	} else {
		b.WriteString(m.theme.success("✓ Rebuild complete") + "\n")
	}
	fmt.Fprintf(&b, "\n  Users rebuilt:   %d/%d\n", m.done-len(m.failed), m.total)
	fmt.Fprintf(&b, "  Entries indexed: %d\n", m.entries)
	for _, f := range m.failed {
		fmt.Fprintf(&b, "  • %s\n", f)
	}
	return b.String()
}

// runRebuildProgress runs rebuild under the interactive progress UI.
// rebuild must report each user through onDone and return when finished.
// Pressing q or Ctrl+C cancels the remaining users.
func runRebuildProgress(ctx context.Context, total int, rebuild func(ctx context.Context, onDone func(user string, n int, err error)) (int, error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRebuildModel(total))
	go func() {
		n, err := rebuild(ctx, func(user string, entries int, err error) {
			p.Send(userDoneMsg{user: user, entries: entries, err: err})
		})
		p.Send(rebuildDoneMsg{entries: n, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(rebuildModel); ok {
		if m.quitting {
			return context.Canceled
		}
		return m.err
	}
	return nil
}
