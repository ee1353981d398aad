// Package viewer is a terminal pager that highlights a document lazily:
// only the lines on screen (and the lines before them) are ever scanned.
package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/lumen/internal/highlight"
	"github.com/zjrosen/lumen/internal/keys"
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/pubsub"
	"github.com/zjrosen/lumen/internal/syntaxset"
	"github.com/zjrosen/lumen/internal/watcher"
)

const gutterWidth = 6 // "%5d "

// LoadFunc returns the parser and highlighter to display with.
type LoadFunc func(ctx context.Context) (*parser.Parser, *highlight.Highlighter, error)

// Options configure a Model.
type Options struct {
	// Path is shown in the status bar. When it appears in a watcher Change
	// the file is re-read and diffed into the buffer.
	Path string
	Text string

	Parser      *parser.Parser
	Highlighter *highlight.Highlighter
	Render      highlight.RenderOptions

	// Load is called after definitions were reloaded. Optional.
	Load LoadFunc
	// Reload re-reads grammars and theme after a watched definition file
	// changed. Optional.
	Reload func(ctx context.Context) error

	// Changes delivers watcher notifications. Optional.
	Changes <-chan watcher.Change
	// Events delivers syntax set reloads. Optional.
	Events <-chan pubsub.Event[syntaxset.Event]
	// Logs tails the debug log; every entry it delivers replaces the status
	// message. Optional.
	Logs *log.LogListener
}

type (
	loadedMsg struct {
		parser *parser.Parser
		hl     *highlight.Highlighter
		err    error
	}
	fileMsg struct {
		text string
		err  error
	}
	changeMsg watcher.Change
)

// Model is the pager state.
type Model struct {
	ctx      context.Context
	opts     Options
	path     string
	buf      *highlight.Buffer
	renderer *highlight.Renderer

	viewport viewport.Model
	keys     keys.ViewerKeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int
	ready    bool
	status   string
}

// New returns a pager over opts.Text.
func New(ctx context.Context, opts Options) Model {
	path := opts.Path
	if abs, err := filepath.Abs(path); err == nil && path != "" {
		path = abs
	}
	h := help.New()
	h.ShowAll = true
	m := Model{
		ctx:  ctx,
		opts: opts,
		path: path,
		buf:  highlight.NewBuffer(opts.Parser, opts.Highlighter, opts.Text),
		keys: keys.DefaultViewerKeyMap(),
		help: h,
	}
	m.renderer = highlight.NewRenderer(opts.Parser, opts.Highlighter, m.renderOptions())
	return m
}

// Run opens the pager in the alternate screen until the user quits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Buffer returns the highlighted document.
func (m Model) Buffer() *highlight.Buffer { return m.buf }

// Status returns the current status message.
func (m Model) Status() string { return m.status }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitChange(), m.waitEvent(), m.waitLog())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.layout()
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.LineNumbers):
			m.opts.Render.LineNumbers = !m.opts.Render.LineNumbers
			m.renderer = highlight.NewRenderer(m.buf.Parser(), m.opts.Highlighter, m.renderOptions())
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Wrap):
			m.opts.Render.Wrap = !m.opts.Render.Wrap
			m.renderer = highlight.NewRenderer(m.buf.Parser(), m.opts.Highlighter, m.renderOptions())
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Reload):
			m.status = "reloading…"
			return m, m.reloadCmd()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, 1)
			m.viewport.KeyMap.Up = m.keys.Up
			m.viewport.KeyMap.Down = m.keys.Down
			m.viewport.KeyMap.PageUp = m.keys.PageUp
			m.viewport.KeyMap.PageDown = m.keys.PageDown
			m.ready = true
		}
		m.help.Width = msg.Width
		m.layout()
		m.renderer = highlight.NewRenderer(m.buf.Parser(), m.opts.Highlighter, m.renderOptions())
		m.refresh()
		return m, nil

	case changeMsg:
		return m, tea.Batch(m.handleChange(watcher.Change(msg)), m.waitChange())

	case fileMsg:
		if msg.err != nil {
			m.status = "read failed: " + msg.err.Error()
			log.ErrorErr(log.CatViewer, "re-reading file", msg.err, "path", m.path)
			return m, nil
		}
		m.buf.SetText(m.ctx, msg.text)
		m.status = ""
		m.refresh()
		return m, nil

	case pubsub.Event[syntaxset.Event]:
		cmds := []tea.Cmd{m.waitEvent()}
		if msg.Type == pubsub.FailedEvent && msg.Payload.Err != nil {
			m.status = "grammar reload: " + firstLine(msg.Payload.Err.Error())
		}
		cmds = append(cmds, m.loadCmd())
		return m, tea.Batch(cmds...)

	case log.LogEvent:
		e := msg.Payload
		m.status = fmt.Sprintf("[%s] [%s] %s", e.Level, e.Category, e.Message)
		return m, m.waitLog()

	case loadedMsg:
		if msg.err != nil {
			m.status = "reload failed: " + firstLine(msg.err.Error())
			log.ErrorErr(log.CatViewer, "reloading definitions", msg.err)
			return m, nil
		}
		if m.status == "reloading…" {
			m.status = ""
		}
		m.opts.Highlighter = msg.hl
		m.buf.Reset(msg.parser, msg.hl)
		m.renderer = highlight.NewRenderer(msg.parser, msg.hl, m.renderOptions())
		m.refresh()
		log.Debug(log.CatViewer, "definitions reloaded", "scope", msg.parser.ScopeName())
		return m, nil
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.refresh()
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}
	return m.viewport.View() + "\n" + m.footer()
}

func (m Model) footer() string {
	if !m.showHelp {
		return m.statusBar()
	}
	return m.help.View(m.keys) + "\n" + m.statusBar()
}

// layout gives the viewport every row the footer does not use.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-lipgloss.Height(m.footer()), 1)
}

func (m Model) renderOptions() highlight.RenderOptions {
	o := m.opts.Render
	o.LineNumbers = false // the gutter is drawn here so it survives wrapping
	if m.width > 0 {
		o.Width = m.width
		if m.opts.Render.LineNumbers {
			o.Width = max(m.width-gutterWidth, 1)
		}
	}
	return o
}

// refresh renders the lines in view and hands the viewport a document of
// the right length. Lines outside the window stay empty until scrolled to.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	n := m.buf.Len()
	lines := make([]string, n)
	top := min(m.viewport.YOffset, max(n-1, 0))
	bottom := min(top+m.viewport.Height, n)
	for i := top; i < bottom; i++ {
		text, runs := m.buf.Line(i)
		out := m.renderer.RenderRuns(text, runs)
		if m.opts.Render.LineNumbers {
			out = lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("%5d ", i+1)) + out
		}
		lines[i] = out
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func (m Model) statusBar() string {
	name := "[no name]"
	if m.opts.Path != "" {
		name = m.opts.Path
	}
	left := fmt.Sprintf(" %s  %s", name, m.buf.Parser().ScopeName())
	if m.status != "" {
		left += "  " + m.status
	}
	right := fmt.Sprintf("%d/%d %3.0f%% ", min(m.viewport.YOffset+1, m.buf.Len()), m.buf.Len(), m.viewport.ScrollPercent()*100)

	gap := m.width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		left = ansi.Truncate(left, max(m.width-ansi.StringWidth(right)-1, 0), "…")
		gap = max(m.width-ansi.StringWidth(left)-ansi.StringWidth(right), 0)
	}
	return lipgloss.NewStyle().Reverse(true).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) handleChange(c watcher.Change) tea.Cmd {
	var cmds []tea.Cmd
	definitions := false
	for _, p := range c.Paths {
		if m.path != "" && p == m.path {
			cmds = append(cmds, m.readFileCmd())
			continue
		}
		definitions = true
	}
	if definitions {
		cmds = append(cmds, m.reloadCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) readFileCmd() tea.Cmd {
	path := m.path
	return func() tea.Msg {
		data, err := os.ReadFile(path) //nolint:gosec // G304: the file being viewed
		return fileMsg{text: string(data), err: err}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	ctx, reload, load := m.ctx, m.opts.Reload, m.opts.Load
	if reload == nil && load == nil {
		return nil
	}
	return func() tea.Msg {
		if reload != nil {
			if err := reload(ctx); err != nil {
				log.Warn(log.CatViewer, "reload reported errors", "error", err)
			}
		}
		if load == nil {
			return nil
		}
		p, h, err := load(ctx)
		return loadedMsg{parser: p, hl: h, err: err}
	}
}

func (m Model) loadCmd() tea.Cmd {
	ctx, load := m.ctx, m.opts.Load
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		p, h, err := load(ctx)
		return loadedMsg{parser: p, hl: h, err: err}
	}
}

func (m Model) waitChange() tea.Cmd {
	ch, ctx := m.opts.Changes, m.ctx
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-ch:
			if !ok {
				return nil
			}
			return changeMsg(c)
		}
	}
}

func (m Model) waitEvent() tea.Cmd {
	if m.opts.Events == nil {
		return nil
	}
	return pubsub.ListenCmd(m.ctx, m.opts.Events)
}

func (m Model) waitLog() tea.Cmd {
	if m.opts.Logs == nil {
		return nil
	}
	return m.opts.Logs.Listen()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
