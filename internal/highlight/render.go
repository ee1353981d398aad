package highlight

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wrap"
	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/theme"
	"github.com/zjrosen/lumen/internal/tracing"
)

const tracerName = "github.com/zjrosen/lumen/internal/highlight"

// DefaultTabWidth is used when RenderOptions.TabWidth is unset.
const DefaultTabWidth = 4

// RenderOptions control how styled runs are turned into terminal text.
type RenderOptions struct {
	// Profile is the terminal color profile. The zero value (TrueColor)
	// keeps full RGB.
	Profile termenv.Profile
	// Background paints the theme background behind every run.
	Background bool
	// LineNumbers prefixes each line with a gutter.
	LineNumbers bool
	// TabWidth expands tabs to this many columns.
	TabWidth int
	// Width limits each line to this many columns. Zero means no limit.
	Width int
	// Wrap wraps long lines at Width instead of truncating them.
	Wrap bool
}

func (o RenderOptions) tabWidth() int {
	if o.TabWidth <= 0 {
		return DefaultTabWidth
	}
	return o.TabWidth
}

// lipglossStyle converts s for lg, or for the default renderer when lg is
// nil. Without a painted background the default foreground is left to the
// terminal.
func (o RenderOptions) lipglossStyle(lg *lipgloss.Renderer, s, def theme.Style) lipgloss.Style {
	st := lipgloss.NewStyle()
	if lg != nil {
		st = lg.NewStyle()
	}
	if o.Background || s.Foreground != def.Foreground {
		st = st.Foreground(lipgloss.Color(s.Foreground.Hex()))
	}
	if o.Background || s.Background != def.Background {
		st = st.Background(lipgloss.Color(s.Background.Hex()))
	}
	return st.
		Bold(s.FontStyle.Has(theme.Bold)).
		Italic(s.FontStyle.Has(theme.Italic)).
		Underline(s.FontStyle.Has(theme.Underline))
}

// Renderer draws highlighted lines as ANSI text.
type Renderer struct {
	parser *parser.Parser
	hl     *Highlighter
	opts   RenderOptions
	lg     *lipgloss.Renderer
}

// NewRenderer returns a Renderer writing styles for opts.Profile.
func NewRenderer(p *parser.Parser, h *Highlighter, opts RenderOptions) *Renderer {
	lg := lipgloss.NewRenderer(io.Discard)
	lg.SetColorProfile(opts.Profile)
	return &Renderer{parser: p, hl: h, opts: opts, lg: lg}
}

// RenderRuns draws one line's runs. Tabs are expanded, then the line is
// truncated or wrapped to the configured width.
func (r *Renderer) RenderRuns(line string, runs []StyledRun) string {
	def := r.hl.Default()
	var b strings.Builder
	col := 0
	for _, run := range runs {
		text := expandTabs(run.Text(line), col, r.opts.tabWidth())
		col += runewidth.StringWidth(text)
		b.WriteString(r.opts.lipglossStyle(r.lg, run.Style, def).Render(text))
	}
	out := b.String()

	if r.opts.Width > 0 && col > r.opts.Width {
		if r.opts.Wrap {
			out = wrap.String(out, r.opts.Width)
		} else {
			out = ansi.Truncate(out, r.opts.Width, "…")
		}
	}
	return out
}

// Render highlights every line of src into w. Cancellation is checked
// between lines.
func (r *Renderer) Render(ctx context.Context, w io.Writer, src io.Reader) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, tracing.SpanRender)
	defer span.End()

	out := NewWriter(w, r.opts.Profile)
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	gutter := r.gutterStyle()
	state := parser.NewState()
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		line := strings.TrimSuffix(sc.Text(), "\r")

		var runs []StyledRun
		state, runs = r.hl.HighlightLine(r.parser, state, line)

		if r.opts.LineNumbers {
			if _, err := io.WriteString(out, gutter.Render(fmt.Sprintf("%5d ", n))); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(out, r.RenderRuns(line, runs)+"\n"); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	span.SetAttributes(
		attribute.String(tracing.AttrGrammar, r.parser.ScopeName().String()),
		attribute.Int(tracing.AttrLines, n),
	)
	log.Debug(log.CatHighlight, "rendered", "grammar", r.parser.ScopeName(), "lines", n)
	return nil
}

func (r *Renderer) gutterStyle() lipgloss.Style {
	st := r.lg.NewStyle()
	set := r.hl.Theme().Settings
	if set.GutterFg != nil {
		st = st.Foreground(lipgloss.Color(set.GutterFg.Hex()))
	} else {
		st = st.Faint(true)
	}
	if r.opts.Background && set.Gutter != nil {
		st = st.Background(lipgloss.Color(set.Gutter.Hex()))
	}
	return st
}

// expandTabs replaces tabs with spaces up to the next tab stop, counting
// display columns from startCol.
func expandTabs(s string, startCol, width int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := startCol
	for _, r := range s {
		if r == '\t' {
			n := width - col%width
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col += runewidth.RuneWidth(r)
	}
	return b.String()
}

// Writer guards a terminal stream: once anything has been written, Close
// emits an attribute reset so a styled run cut short cannot leak into the
// rest of the terminal.
type Writer struct {
	out     *termenv.Output
	written bool
	closed  bool
}

// NewWriter wraps w.
func NewWriter(w io.Writer, profile termenv.Profile) *Writer {
	return &Writer{out: termenv.NewOutput(w, termenv.WithProfile(profile))}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) > 0 && w.out.Profile != termenv.Ascii {
		w.written = true
	}
	return w.out.Write(p)
}

// Close resets terminal attributes if needed. It does not close the
// underlying writer and is safe to call twice.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.written {
		_, err := io.WriteString(w.out, termenv.CSI+termenv.ResetSeq+"m")
		return err
	}
	return nil
}
