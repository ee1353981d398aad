package highlight

import (
	"context"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/tracing"
)

type lineState struct {
	exit    parser.ParserState
	runs    []StyledRun
	scanned bool
	// dirty means the text or the entering state changed since the scan.
	dirty bool
}

// Buffer keeps a document's lines highlighted as they are edited. Lines are
// scanned lazily and an edit only rescans forward until a line's exit state
// matches what it was before. A Buffer is not safe for concurrent use.
type Buffer struct {
	parser *parser.Parser
	hl     *Highlighter
	lines  []string
	states []lineState
	valid  int // lines [0, valid) are up to date
	scans  int
}

// NewBuffer returns a buffer holding text split on "\n".
func NewBuffer(p *parser.Parser, h *Highlighter, text string) *Buffer {
	b := &Buffer{parser: p, hl: h}
	b.lines = splitLines(text)
	b.states = make([]lineState, len(b.lines))
	return b
}

// Len returns the number of lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Text returns the document joined with "\n".
func (b *Buffer) Text() string { return strings.Join(b.lines, "\n") }

// Lines returns a copy of the document's lines.
func (b *Buffer) Lines() []string { return slices.Clone(b.lines) }

// ScanCount returns how many line scans the buffer has performed.
func (b *Buffer) ScanCount() int { return b.scans }

// Parser returns the parser in use.
func (b *Buffer) Parser() *parser.Parser { return b.parser }

// Line returns the text and styled runs of line i, scanning any stale lines
// before it first.
func (b *Buffer) Line(i int) (string, []StyledRun) {
	if i < 0 || i >= len(b.lines) {
		return "", nil
	}
	b.scanThrough(i)
	return b.lines[i], b.states[i].runs
}

// State returns the parser state at the end of line i.
func (b *Buffer) State(i int) parser.ParserState {
	if i < 0 || i >= len(b.lines) {
		return parser.NewState()
	}
	b.scanThrough(i)
	return b.states[i].exit.Clone()
}

func (b *Buffer) entering(i int) parser.ParserState {
	if i == 0 {
		return parser.NewState()
	}
	return b.states[i-1].exit
}

func (b *Buffer) scanThrough(i int) {
	for b.valid <= i {
		j := b.valid
		exit, runs := b.hl.HighlightLine(b.parser, b.entering(j), b.lines[j])
		b.scans++

		ls := &b.states[j]
		unchanged := ls.scanned && ls.exit.Equal(exit)
		*ls = lineState{exit: exit, runs: runs, scanned: true}
		b.valid++

		if !unchanged {
			if b.valid < len(b.states) {
				b.states[b.valid].dirty = true
			}
			continue
		}
		// The next line sees the same entering state as before, so every
		// following line that was scanned and untouched is still current.
		for b.valid < len(b.states) && b.states[b.valid].scanned && !b.states[b.valid].dirty {
			b.valid++
		}
	}
}

func (b *Buffer) touch(i int) {
	b.valid = min(b.valid, i)
	if i < len(b.states) {
		b.states[i].dirty = true
	}
}

// SetLine replaces line i.
func (b *Buffer) SetLine(i int, text string) {
	if i < 0 || i >= len(b.lines) || b.lines[i] == text {
		return
	}
	b.lines[i] = text
	b.touch(i)
}

// Insert inserts lines before line i. i == Len() appends.
func (b *Buffer) Insert(i int, lines ...string) {
	if i < 0 || i > len(b.lines) || len(lines) == 0 {
		return
	}
	b.lines = slices.Insert(b.lines, i, lines...)
	b.states = slices.Insert(b.states, i, make([]lineState, len(lines))...)
	b.touch(i)
}

// Delete removes n lines starting at line i.
func (b *Buffer) Delete(i, n int) {
	if i < 0 || n <= 0 || i >= len(b.lines) {
		return
	}
	end := min(i+n, len(b.lines))
	b.lines = slices.Delete(b.lines, i, end)
	b.states = slices.Delete(b.states, i, end)
	b.touch(i)
}

// SetText replaces the whole document, applying it as a line diff so that
// unchanged lines keep their scan results.
func (b *Buffer) SetText(ctx context.Context, text string) {
	_, span := otel.Tracer(tracerName).Start(ctx, tracing.SpanBufferUpdate)
	defer span.End()

	dmp := diffmatchpatch.New()
	oldRunes, newRunes, lineArray := dmp.DiffLinesToRunes(joinTerminated(b.lines), joinTerminated(splitLines(text)))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(oldRunes, newRunes, false), lineArray)

	idx, inserted, deleted := 0, 0, 0
	for _, d := range diffs {
		lines := splitChunk(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			idx += len(lines)
		case diffmatchpatch.DiffDelete:
			b.Delete(idx, len(lines))
			deleted += len(lines)
		case diffmatchpatch.DiffInsert:
			b.Insert(idx, lines...)
			idx += len(lines)
			inserted += len(lines)
		}
	}

	span.SetAttributes(attribute.Int(tracing.AttrInserted, inserted), attribute.Int(tracing.AttrDeleted, deleted))
	log.Debug(log.CatHighlight, "buffer updated", "inserted", inserted, "deleted", deleted, "lines", len(b.lines))
}

// Reset swaps the parser and highlighter and drops every scan result.
func (b *Buffer) Reset(p *parser.Parser, h *Highlighter) {
	b.parser, b.hl = p, h
	b.states = make([]lineState, len(b.lines))
	b.valid = 0
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// joinTerminated ends every line with "\n" so diff chunks hold whole lines.
func joinTerminated(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

func splitChunk(chunk string) []string {
	if chunk == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(chunk, "\n"), "\n")
}
