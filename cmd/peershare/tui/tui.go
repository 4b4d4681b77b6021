// Package tui holds the styles, key bindings and commands shared by the
// peershare terminal interfaces.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SpatiumPortae/peershare/internal/semver"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	MARGIN          = 2
	MAX_WIDTH       = 80
	PRIMARY_COLOR   = "#B8BABA"
	SECONDARY_COLOR = "#626262"
	ELEMENT_COLOR   = "#EE9F40"
	ERROR_COLOR     = "#CC0000"
	WARNING_COLOR   = "#FF7900"
	SUCCESS_COLOR   = "#34B233"
	SHUTDOWN_PERIOD = 500 * time.Millisecond
)

var PadText = strings.Repeat(" ", MARGIN)

var InfoColor = lipgloss.Color(PRIMARY_COLOR)

var BaseStyle = lipgloss.NewStyle()
var InfoStyle = BaseStyle.Copy().Foreground(lipgloss.Color(PRIMARY_COLOR)).Render
var HelpStyle = BaseStyle.Copy().Foreground(lipgloss.Color(SECONDARY_COLOR)).Render
var BoldText = BaseStyle.Copy().Bold(true).Render
var ErrorText = BaseStyle.Copy().Foreground(lipgloss.Color(ERROR_COLOR)).Render
var WarningText = BaseStyle.Copy().Foreground(lipgloss.Color(WARNING_COLOR)).Render
var SuccessText = BaseStyle.Copy().Foreground(lipgloss.Color(SUCCESS_COLOR)).Render

var DownloadSpinner = spinner.Spinner{
	Frames: []string{"   ", "  «", " ««", "«««"},
	FPS:    time.Second / 2,
}

var SearchSpinner = spinner.Spinner{
	Frames: []string{"⠋ ", "⠙ ", "⠹ ", "⠸ ", "⠼ ", "⠴ ", "⠦ ", "⠧ ", "⠇ ", "⠏ "},
	FPS:    time.Second / 12,
}

// ------------------------------------------------------ Keys ---------------------------------------------------------

type KeyMap struct {
	Quit key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

var Keys = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("(q)", "quit"),
	),
}

// ------------------------------------------------------ Messages -----------------------------------------------------

type ErrorMsg error

type VersionMsg struct {
	ServerVersion semver.Version
}

// ------------------------------------------------------ Commands -----------------------------------------------------

// TaskCmd prints the message as a completed task above the interface, then runs cmd.
func TaskCmd(message string, cmd tea.Cmd) tea.Cmd {
	if message == "" {
		return cmd
	}
	return tea.Sequence(tea.Println(PadText+"• "+message), cmd)
}

func ErrorCmd(err error) tea.Cmd {
	return tea.Sequence(
		tea.Println(PadText+ErrorText("👎 "+err.Error())),
		QuitCmd(),
	)
}

// QuitCmd quits after a short delay, leaving the last frame rendered.
func QuitCmd() tea.Cmd {
	return tea.Tick(SHUTDOWN_PERIOD, func(time.Time) tea.Msg {
		return tea.Quit()
	})
}

// VersionCmd fetches the version of the index server.
func VersionCmd(ctx context.Context, addr string) tea.Cmd {
	return func() tea.Msg {
		ver, err := semver.GetIndexVersion(ctx, addr)
		if err != nil {
			return ErrorMsg(err)
		}
		return VersionMsg{ServerVersion: ver}
	}
}

// ------------------------------------------------------ Helpers ------------------------------------------------------

func LogSeparator(width int) string {
	paddedWidth := width - 2*MARGIN
	if paddedWidth > MAX_WIDTH {
		paddedWidth = MAX_WIDTH
	}
	if paddedWidth < 0 {
		paddedWidth = 0
	}
	return HelpStyle(strings.Repeat("─", paddedWidth)) + "\n\n"
}

// ByteCountSI formats a byte count with decimal units.
func ByteCountSI(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "kMGTPE"[exp])
}
