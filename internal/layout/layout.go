// Package layout turns a schedule snapshot into a Gantt render frame. Build
// is a pure function of the snapshot and options: no hidden state, safe to
// call again on every stable render or zoom change.
package layout

import (
	"math"
	"time"

	"github.com/alfredjeanlab/schedview/internal/model"
	"github.com/alfredjeanlab/schedview/internal/palette"
)

const (
	minutesPerDay = 24 * 60

	minPxPerDay  = 160
	maxPxPerDay  = 600
	pxPerSpanDay = 120

	// DefaultWorkMinutes is the bar length for orders without work time.
	DefaultWorkMinutes = 15
	minBandWidth       = 2
	unnamed            = "<unnamed>"
)

// Options are the view parameters of a render.
type Options struct {
	ViewMode ViewMode
	Zoom     float64
	// Location is the zone date-times are interpreted in; nil means
	// time.Local.
	Location *time.Location
}

// Build lays out snap. A snapshot without a usable timeline range yields an
// empty frame.
func Build(snap *model.Snapshot, opts Options) *Frame {
	mode := opts.ViewMode
	if mode != ViewEmployee {
		mode = ViewLine
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	zoom := ClampZoom(opts.Zoom)
	f := &Frame{ViewMode: mode, Zoom: zoom, Ticks: []Tick{}, Legend: []LegendEntry{}, Rows: []Row{}}
	if snap == nil || len(snap.DateTimes) == 0 {
		return f
	}
	t0, err := model.ParseLocal(snap.DateTimes[0], loc)
	if err != nil {
		return f
	}
	t1, err := model.ParseLocal(snap.DateTimes[len(snap.DateTimes)-1], loc)
	if err != nil {
		return f
	}

	f.Start, f.End = t0, t1
	span := t1.Sub(t0)
	f.DaysSpan = max(1, int(math.Round(float64(span)/float64(24*time.Hour))))
	f.PxPerDay = math.Max(minPxPerDay, math.Min(maxPxPerDay, float64(pxPerSpanDay*f.DaysSpan)))
	f.PxPerMinute = f.PxPerDay / minutesPerDay
	scale := f.PxPerMinute * zoom
	f.Width = math.Max(1, math.Round(span.Minutes())) * scale

	rows := rowKeys(snap, mode)
	byKey := make(map[string][]*model.Order)
	for i := range snap.Orders {
		o := &snap.Orders[i]
		if !o.Scheduled() {
			f.Omitted++
			continue
		}
		k := groupKey(o, mode)
		byKey[k] = append(byKey[k], o)
	}

	pal := palette.New(legendKeys(snap, mode, rows))
	for _, k := range pal.Keys() {
		g, _ := pal.Lookup(k)
		f.Legend = append(f.Legend, LegendEntry{Key: k, Color: g, CSS: g.CSS()})
	}

	tickWidth := int(math.Round(f.PxPerDay * zoom))
	for day := midnight(t0); !day.After(midnight(t1)); day = nextDay(day) {
		f.Ticks = append(f.Ticks, Tick{
			Date:  day,
			Label: day.Format("2006-01-02"),
			Left:  day.Sub(t0).Minutes() * scale,
			Width: tickWidth,
		})
	}

	placed := 0
	for _, r := range rows {
		row := Row{Key: r.key, Label: r.key, Bars: []Bar{}}
		if mode == ViewEmployee && r.employee != nil && r.employee.Shift != nil {
			row.Bands = shiftBands(r.employee.Shift, t0, t1, scale)
		}
		for _, o := range byKey[r.key] {
			bar, ok := orderBar(o, mode, t0, scale, pal, loc)
			if !ok {
				continue
			}
			row.Bars = append(row.Bars, bar)
			placed++
		}
		f.Rows = append(f.Rows, row)
	}
	scheduled := len(snap.Orders) - f.Omitted
	// Rows may share a key, in which case an order is drawn more than once.
	f.Unplaced = max(0, scheduled-placed)
	return f
}

type rowSource struct {
	key      string
	employee *model.Employee
}

func rowKeys(snap *model.Snapshot, mode ViewMode) []rowSource {
	var rows []rowSource
	if mode == ViewEmployee {
		for i := range snap.Employees {
			e := &snap.Employees[i]
			rows = append(rows, rowSource{key: orUnnamed(e.Name), employee: e})
		}
		return rows
	}
	for _, l := range snap.Lines {
		rows = append(rows, rowSource{key: orUnnamed(l.Name)})
	}
	return rows
}

func orUnnamed(name string) string {
	if name == "" {
		return unnamed
	}
	return name
}

func groupKey(o *model.Order, mode ViewMode) string {
	if mode == ViewEmployee {
		return o.EmployeeName()
	}
	return o.LineName()
}

// legendKeys returns the distinct names of the dimension that is not used
// for rows, in order of first appearance across all orders. When no order
// references that dimension the row keys are used instead.
func legendKeys(snap *model.Snapshot, mode ViewMode, rows []rowSource) []string {
	var keys []string
	referenced := false
	seen := make(map[string]bool)
	for i := range snap.Orders {
		o := &snap.Orders[i]
		var k string
		if mode == ViewEmployee {
			referenced = referenced || (o.Line != nil && o.Line.Name != "")
			k = o.LineName()
		} else {
			referenced = referenced || (o.Employee != nil && o.Employee.Name != "")
			k = o.EmployeeName()
		}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if referenced {
		return keys
	}
	keys = keys[:0]
	seen = make(map[string]bool)
	for _, r := range rows {
		if !seen[r.key] {
			seen[r.key] = true
			keys = append(keys, r.key)
		}
	}
	return keys
}

// colorKey picks the complementary dimension's name, then the product name,
// then the order id.
func colorKey(o *model.Order, mode ViewMode) string {
	var name string
	if mode == ViewEmployee {
		if o.Line != nil {
			name = o.Line.Name
		}
	} else if o.Employee != nil {
		name = o.Employee.Name
	}
	for _, k := range []string{name, o.ProductName, o.ID.String()} {
		if k != "" {
			return k
		}
	}
	return model.Unassigned
}

func orderBar(o *model.Order, mode ViewMode, t0 time.Time, scale float64, pal *palette.Palette, loc *time.Location) (Bar, bool) {
	start, err := model.ParseLocal(o.ScheduledAt(), loc)
	if err != nil {
		return Bar{}, false
	}
	leftMin := math.Round(start.Sub(t0).Minutes())
	work := o.WorkHours
	if work == 0 {
		work = DefaultWorkMinutes
	}
	widthMin := math.Max(1, math.Round(work))

	key := colorKey(o, mode)
	color := pal.ColorFor(key)
	return Bar{
		Left:     leftMin * scale,
		Width:    widthMin * scale,
		Label:    o.ProductName,
		ColorKey: key,
		Color:    color,
		CSS:      color.CSS(),
		Detail: BarDetail{
			ID:                o.ID.String(),
			ProductName:       o.ProductName,
			Quantity:          o.Quantity,
			WorkMinutes:       o.WorkHours,
			ScheduledDateTime: o.ScheduledAt(),
			Employee:          o.EmployeeName(),
			Line:              o.LineName(),
			RequiredSkill:     o.RequiredSkill,
			EarliestDate:      o.EarliestDate,
			LatestDate:        o.LatestDate,
		},
	}, true
}

// shiftBands emits the visible part of every occurrence of the shift that
// overlaps [t0, t1]. Anchors start one day before t0 so that an overnight
// shift begun the previous evening is included.
func shiftBands(s *model.Shift, t0, t1 time.Time, scale float64) []Band {
	start, err := model.ParseClock(s.Start)
	if err != nil {
		return nil
	}
	end, err := model.ParseClock(s.End)
	if err != nil {
		return nil
	}
	dur := int(end) - int(start)
	if dur <= 0 {
		dur += minutesPerDay
	}

	var bands []Band
	first := midnight(t0).AddDate(0, 0, -1)
	last := midnight(t1)
	for day := first; !day.After(last); day = nextDay(day) {
		from := time.Date(day.Year(), day.Month(), day.Day(), int(start)/60, int(start)%60, 0, 0, day.Location())
		to := from.Add(time.Duration(dur) * time.Minute)
		if !to.After(t0) || !from.Before(t1) {
			continue
		}
		vs, ve := from, to
		if vs.Before(t0) {
			vs = t0
		}
		if ve.After(t1) {
			ve = t1
		}
		if !ve.After(vs) {
			continue
		}
		bands = append(bands, Band{
			Start: vs,
			End:   ve,
			Left:  vs.Sub(t0).Minutes() * scale,
			Width: math.Max(minBandWidth, ve.Sub(vs).Minutes()*scale),
		})
	}
	return bands
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}
