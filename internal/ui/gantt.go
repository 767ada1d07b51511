package ui

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/alfredjeanlab/schedview/internal/layout"
	"github.com/alfredjeanlab/schedview/internal/palette"
)

const (
	maxLabelWidth = 20
	minTrackWidth = 10

	barRune   = '█'
	bandRune  = '░'
	tickRune  = '┊'
	emptyRune = ' '
)

// GanttOptions controls RenderGantt.
type GanttOptions struct {
	// Width is the total width in columns; zero means TerminalWidth.
	Width int
	// Legend appends the color legend below the chart.
	Legend bool
}

type cellKind int

const (
	cellEmpty cellKind = iota
	cellTick
	cellBand
	cellBar
)

type cell struct {
	kind  cellKind
	color palette.Gradient
}

// track maps frame pixels onto a fixed number of character cells.
type track struct {
	cells []cell
	scale float64
}

func newTrack(f *layout.Frame, width int) *track {
	t := &track{cells: make([]cell, width), scale: pxScale(f, width)}
	for _, tick := range f.Ticks {
		if c := t.col(tick.Left); c > 0 {
			t.cells[c] = cell{kind: cellTick}
		}
	}
	return t
}

func pxScale(f *layout.Frame, width int) float64 {
	return float64(width) / max(f.Width, 1)
}

func (t *track) col(px float64) int {
	return min(len(t.cells)-1, max(0, int(px*t.scale)))
}

// fill paints [left, left+width) px, covering at least one cell. A cell
// keeps the highest kind painted onto it.
func (t *track) fill(left, width float64, c cell) {
	from := t.col(left)
	to := min(len(t.cells)-1, int(math.Ceil((left+width)*t.scale))-1)
	to = max(from, to)
	for i := from; i <= to; i++ {
		if c.kind >= t.cells[i].kind {
			t.cells[i] = c
		}
	}
}

func (t *track) String() string {
	var b strings.Builder
	for i := 0; i < len(t.cells); {
		j := i
		for j < len(t.cells) && t.cells[j] == t.cells[i] {
			j++
		}
		b.WriteString(renderRun(t.cells[i], j-i))
		i = j
	}
	return b.String()
}

func renderRun(c cell, n int) string {
	switch c.kind {
	case cellBar:
		r, g, b := c.color.RGB()
		return RenderRGB(r, g, b, strings.Repeat(string(barRune), n))
	case cellBand:
		return RenderMuted(strings.Repeat(string(bandRune), n))
	case cellTick:
		return RenderMuted(strings.Repeat(string(tickRune), n))
	default:
		return strings.Repeat(string(emptyRune), n)
	}
}

// RenderGantt draws f as text: a header of day labels, then one line per row
// with bars scaled to the available width. Employee rows show their shift
// bands behind the bars.
func RenderGantt(w io.Writer, f *layout.Frame, opts GanttOptions) error {
	if f.Empty() {
		_, err := fmt.Fprintln(w, RenderMuted("(no timeline)"))
		return err
	}

	width := opts.Width
	if width <= 0 {
		width = TerminalWidth()
	}
	labelW := 0
	for _, r := range f.Rows {
		labelW = max(labelW, runeLen(r.Label))
	}
	labelW = min(labelW, maxLabelWidth)
	trackW := max(minTrackWidth, width-labelW-3)

	var b strings.Builder
	b.WriteString(pad("", labelW))
	b.WriteString("   ")
	b.WriteString(header(f, trackW))
	b.WriteByte('\n')

	for _, r := range f.Rows {
		t := newTrack(f, trackW)
		for _, band := range r.Bands {
			t.fill(band.Left, band.Width, cell{kind: cellBand})
		}
		for _, bar := range r.Bars {
			t.fill(bar.Left, bar.Width, cell{kind: cellBar, color: bar.Color})
		}
		b.WriteString(pad(r.Label, labelW))
		b.WriteString(" " + RenderMuted("│") + " ")
		b.WriteString(t.String())
		b.WriteByte('\n')
	}

	if f.Omitted > 0 || f.Unplaced > 0 {
		b.WriteString(RenderMuted(fmt.Sprintf("%d unscheduled, %d without a row", f.Omitted, f.Unplaced)))
		b.WriteByte('\n')
	}
	if opts.Legend && len(f.Legend) > 0 {
		b.WriteString(legend(f.Legend, width))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// header places each day label at its tick column, skipping labels that
// would overlap the previous one.
func header(f *layout.Frame, width int) string {
	line := []rune(strings.Repeat(" ", width))
	scale := pxScale(f, width)
	next := 0
	for _, tick := range f.Ticks {
		c := max(0, int(tick.Left*scale))
		if c < next || c >= width {
			continue
		}
		label := []rune(tick.Label)
		n := copy(line[c:], label)
		next = c + n + 1
	}
	return RenderAccent(strings.TrimRight(string(line), " "))
}

func legend(entries []layout.LegendEntry, width int) string {
	var b strings.Builder
	col := 0
	for _, e := range entries {
		item := runeLen(e.Key) + 3
		if col > 0 && col+item+2 > width {
			b.WriteByte('\n')
			col = 0
		}
		if col > 0 {
			b.WriteString("  ")
			col += 2
		}
		r, g, bl := e.Color.RGB()
		b.WriteString(RenderRGB(r, g, bl, string([]rune{barRune, barRune})))
		b.WriteString(" " + e.Key)
		col += item
	}
	b.WriteByte('\n')
	return b.String()
}

func runeLen(s string) int {
	return len([]rune(s))
}

// pad truncates or right-pads s to exactly n runes.
func pad(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		if n <= 1 {
			return string(r[:n])
		}
		return string(r[:n-1]) + "…"
	}
	return s + strings.Repeat(" ", n-len(r))
}
