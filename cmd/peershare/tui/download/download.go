// Package download is the rich terminal interface of the get command.
package download

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/SpatiumPortae/peershare/cmd/peershare/tui"
	"github.com/SpatiumPortae/peershare/cmd/peershare/tui/filetable"
	"github.com/SpatiumPortae/peershare/internal/peer"
	"github.com/SpatiumPortae/peershare/internal/receiver"
	"github.com/SpatiumPortae/peershare/internal/semver"
	"github.com/SpatiumPortae/peershare/internal/status"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

const refreshInterval = 100 * time.Millisecond

// ------------------------------------------------------ tui State -----------------------------------------------------
type tuiState int

// Flows from the top down.
const (
	showSearching tuiState = iota
	showDownloading
	showFinished
)

// ------------------------------------------------------ Messages -----------------------------------------------------

type foundMsg struct {
	addr string
}

type startedMsg struct {
	status *status.Status
}

type doneMsg struct{}

type tickMsg struct{}

// ------------------------------------------------------- Model -------------------------------------------------------

// counter counts the bytes written to it.
type counter struct {
	n atomic.Int64
}

func (c *counter) Write(b []byte) (int, error) {
	c.n.Add(int64(len(b)))
	return len(b), nil
}

type Option func(m *model)

func WithVersion(version semver.Version) Option {
	return func(m *model) {
		m.version = &version
	}
}

// WithPeerAddress downloads from the provided peer instead of searching the index.
func WithPeerAddress(addr string) Option {
	return func(m *model) {
		m.addr = addr
	}
}

func WithContext(ctx context.Context) Option {
	return func(m *model) {
		m.ctx = ctx
	}
}

type model struct {
	state     tuiState
	ctx       context.Context
	peer      *peer.Peer
	indexAddr string
	addr      string
	fileName  string
	version   *semver.Version

	status   *status.Status
	received *counter
	start    time.Time
	err      error

	width     int
	spinner   spinner.Model
	fileTable filetable.Model
	help      help.Model
	keys      tui.KeyMap
}

// New creates a new download program fetching fileName through p.
func New(p *peer.Peer, indexAddr, fileName string, opts ...Option) *tea.Program {
	return tea.NewProgram(newModel(p, indexAddr, fileName, opts...))
}

// Run runs the download interface and returns the error that ended the download, if any.
func Run(p *peer.Peer, indexAddr, fileName string, opts ...Option) error {
	final, err := New(p, indexAddr, fileName, opts...).Run()
	if err != nil {
		return errors.Wrap(err, "running download tui")
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}

func newModel(p *peer.Peer, indexAddr, fileName string, opts ...Option) model {
	m := model{
		ctx:       context.Background(),
		peer:      p,
		indexAddr: indexAddr,
		fileName:  fileName,
		received:  &counter{},
		fileTable: filetable.New(),
		help:      help.New(),
		keys:      tui.Keys,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.resetSpinner()
	return m
}

func (m model) Init() tea.Cmd {
	var versionCmd tea.Cmd
	if m.version != nil && m.addr == "" {
		versionCmd = tui.VersionCmd(m.ctx, m.indexAddr)
	}
	var next tea.Cmd
	if m.addr != "" {
		next = func() tea.Msg { return foundMsg{addr: m.addr} }
	} else {
		next = searchCmd(m.ctx, m.peer, m.fileName)
	}
	return tea.Sequence(versionCmd, tea.Batch(m.spinner.Tick, next))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tui.VersionMsg:
		var message string
		switch m.version.Compare(msg.ServerVersion) {
		case semver.CompareNewMajor,
			semver.CompareOldMajor:
			//lint:ignore ST1005 error string displayed in tui
			return m.fail(fmt.Errorf("peershare version (%s) incompatible with index version (%s)", m.version, msg.ServerVersion))
		case semver.CompareNewMinor,
			semver.CompareNewPatch:
			message = tui.WarningText(fmt.Sprintf("peershare version (%s) newer than index version (%s)", m.version, msg.ServerVersion))
		case semver.CompareOldMinor,
			semver.CompareOldPatch:
			message = tui.WarningText(fmt.Sprintf("Index version (%s) newer than peershare version (%s)", msg.ServerVersion, m.version))
		case semver.CompareEqual:
			message = tui.SuccessText(fmt.Sprintf("peershare version (%s) compatible with index version (%s)", m.version, msg.ServerVersion))
		}
		return m, tui.TaskCmd(message, nil)

	case foundMsg:
		m.addr = msg.addr
		message := fmt.Sprintf("Found %s shared by peer at %s", m.fileName, msg.addr)
		return m, tui.TaskCmd(message, m.downloadCmd())

	case startedMsg:
		m.state = showDownloading
		m.status = msg.status
		m.start = time.Now()
		m.resetSpinner()
		return m, tea.Batch(m.spinner.Tick, waitCmd(msg.status), tickCmd())

	case tickMsg:
		if m.state != showDownloading {
			return m, nil
		}
		return m, tickCmd()

	case doneMsg:
		if err := m.status.Err(); err != nil {
			return m.fail(errors.Wrap(err, m.status.Message()))
		}
		m.state = showFinished
		m.fileTable.SetFiles([]string{filepath.Join(m.peer.ReceiveDir(), m.fileName)})
		message := fmt.Sprintf("Downloaded %s in %s with average speed %s/s",
			tui.ByteCountSI(m.received.n.Load()),
			time.Since(m.start).Round(time.Millisecond),
			tui.ByteCountSI(m.speed()),
		)
		return m, tui.TaskCmd(message, tui.QuitCmd())

	case tui.ErrorMsg:
		return m.fail(msg)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		fileTableModel, fileTableCmd := m.fileTable.Update(msg)
		m.fileTable = fileTableModel.(filetable.Model)
		return m, fileTableCmd

	default:
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		return m, spinnerCmd
	}
}

func (m model) View() string {
	switch m.state {
	case showSearching:
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(fmt.Sprintf("%s Searching for a peer sharing %s", m.spinner.View(), m.fileName)) + "\n\n" +
			tui.PadText + m.help.View(m.keys) + "\n\n"

	case showDownloading:
		received := tui.BoldText(tui.ByteCountSI(m.received.n.Load()))
		text := fmt.Sprintf("%s %s (%s received, %s/s)", m.spinner.View(), m.status.Message(), received, tui.ByteCountSI(m.speed()))
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(text) + "\n\n" +
			tui.PadText + m.help.View(m.keys) + "\n\n"

	case showFinished:
		return tui.PadText + tui.LogSeparator(m.width) +
			tui.PadText + tui.InfoStyle(m.status.Message()) + "\n\n" +
			m.fileTable.View()

	default:
		return ""
	}
}

// fail records the error and quits.
func (m model) fail(err error) (tea.Model, tea.Cmd) {
	m.err = err
	return m, tui.ErrorCmd(err)
}

func (m *model) speed() int64 {
	secs := time.Since(m.start).Seconds()
	if m.start.IsZero() || secs <= 0 {
		return 0
	}
	return int64(float64(m.received.n.Load()) / secs)
}

func (m *model) resetSpinner() {
	m.spinner = spinner.New()
	m.spinner.Style = tui.BaseStyle.Copy().Foreground(tui.InfoColor)
	if m.state == showDownloading {
		m.spinner.Spinner = tui.DownloadSpinner
	} else {
		m.spinner.Spinner = tui.SearchSpinner
	}
}

// ------------------------------------------------------ Commands -----------------------------------------------------

func searchCmd(ctx context.Context, p *peer.Peer, fileName string) tea.Cmd {
	return func() tea.Msg {
		addr, err := p.Search(ctx, fileName)
		if err != nil {
			return tui.ErrorMsg(errors.Wrapf(err, "searching for %s", fileName))
		}
		return foundMsg{addr: addr}
	}
}

func (m model) downloadCmd() tea.Cmd {
	return func() tea.Msg {
		st := m.peer.DownloadFrom(m.ctx, m.addr, m.fileName, receiver.WithWriters(m.received))
		return startedMsg{status: st}
	}
}

func waitCmd(st *status.Status) tea.Cmd {
	return func() tea.Msg {
		st.Wait()
		return doneMsg{}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
