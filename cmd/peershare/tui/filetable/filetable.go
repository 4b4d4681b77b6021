// Package filetable renders downloaded files and their sizes as a table.
package filetable

import (
	"math"
	"os"

	"github.com/SpatiumPortae/peershare/cmd/peershare/tui"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	maxTableHeight                = 4
	nameColumnWidthFactor float64 = 0.8
	sizeColumnWidthFactor float64 = 1 - nameColumnWidthFactor
)

var fileTableStyle = tui.BaseStyle.Copy().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color(tui.SECONDARY_COLOR)).
	MarginLeft(tui.MARGIN)

type fileRow struct {
	path          string
	formattedSize string
}

type Model struct {
	Width int
	rows  []fileRow
	table table.Model
}

func New() Model {
	m := Model{
		Width: tui.MAX_WIDTH,
		table: table.New(
			table.WithHeight(1),
		),
	}
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	m.table.SetStyles(s)
	m.updateColumns()
	return m
}

// SetFiles replaces the rows with the provided files, stat'ing them for their size.
func (m *Model) SetFiles(paths []string) {
	m.rows = m.rows[:0]
	for _, p := range paths {
		formattedSize := "N/A"
		if info, err := os.Stat(p); err == nil {
			formattedSize = tui.ByteCountSI(info.Size())
		}
		m.rows = append(m.rows, fileRow{path: p, formattedSize: formattedSize})
	}
	m.table.SetHeight(int(math.Max(1, math.Min(maxTableHeight, float64(len(paths))))))
	m.updateRows()
}

// Rows returns the rendered rows, paths truncated to fit the table.
func (m Model) Rows() []table.Row {
	return m.table.Rows()
}

func (m *Model) getMaxWidth() int {
	return int(math.Min(tui.MAX_WIDTH-2*tui.MARGIN, float64(m.Width)))
}

func (m *Model) updateColumns() {
	w := m.getMaxWidth()
	m.table.SetColumns([]table.Column{
		{Title: "File", Width: int(float64(w) * nameColumnWidthFactor)},
		{Title: "Size", Width: int(float64(w) * sizeColumnWidthFactor)},
	})
}

func (m *Model) updateRows() {
	var tableRows []table.Row
	maxFilePathWidth := int(float64(m.getMaxWidth()) * nameColumnWidthFactor)
	for _, row := range m.rows {
		path := row.path
		// truncate overflowing file paths from the left
		if w := runewidth.StringWidth(path); w > maxFilePathWidth {
			path = runewidth.TruncateLeft(path, w-maxFilePathWidth+1, "…")
		}
		tableRows = append(tableRows, table.Row{path, row.formattedSize})
	}
	m.table.SetRows(tableRows)
}

func (Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width - 2*tui.MARGIN - 4
		if m.Width > tui.MAX_WIDTH {
			m.Width = tui.MAX_WIDTH
		}
		m.updateColumns()
		m.updateRows()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return fileTableStyle.Render(m.table.View()) + "\n\n"
}
