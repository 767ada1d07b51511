package layout

import (
	"time"

	"github.com/alfredjeanlab/schedview/internal/palette"
)

// Frame is the geometric description of one render. Frames are built from
// scratch for every render and never mutated afterwards. All horizontal
// positions are pixels from the timeline start (Start) at the frame's zoom.
type Frame struct {
	ViewMode    ViewMode  `json:"view_mode"`
	Zoom        float64   `json:"zoom"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DaysSpan    int       `json:"days_span"`
	PxPerDay    float64   `json:"px_per_day"`
	PxPerMinute float64   `json:"px_per_minute"`
	Width       float64   `json:"width"`

	Ticks  []Tick        `json:"ticks"`
	Legend []LegendEntry `json:"legend"`
	Rows   []Row         `json:"rows"`

	// Omitted counts orders without a scheduled time.
	Omitted int `json:"omitted"`
	// Unplaced counts scheduled orders that have no row in this view or
	// whose scheduled time could not be parsed.
	Unplaced int `json:"unplaced"`
}

// Empty reports whether the frame has nothing to draw.
func (f *Frame) Empty() bool {
	return f == nil || f.Start.IsZero()
}

// BarCount returns the number of bars across all rows.
func (f *Frame) BarCount() int {
	if f == nil {
		return 0
	}
	n := 0
	for _, r := range f.Rows {
		n += len(r.Bars)
	}
	return n
}

// Tick is one calendar day in the header.
type Tick struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
	Left  float64   `json:"left"`
	Width int       `json:"width"`
}

// LegendEntry maps a legend key to its color.
type LegendEntry struct {
	Key   string           `json:"key"`
	Color palette.Gradient `json:"color"`
	CSS   string           `json:"css"`
}

// Row is one employee or line.
type Row struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Bands []Band `json:"bands,omitempty"`
	Bars  []Bar  `json:"bars"`
}

// Band is the visible part of one occurrence of an employee's shift.
type Band struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Left  float64   `json:"left"`
	Width float64   `json:"width"`
}

// Bar is one scheduled order.
type Bar struct {
	Left     float64          `json:"left"`
	Width    float64          `json:"width"`
	Label    string           `json:"label"`
	ColorKey string           `json:"color_key"`
	Color    palette.Gradient `json:"color"`
	CSS      string           `json:"css"`
	Detail   BarDetail        `json:"detail"`
}

// BarDetail is the hover payload for a bar.
type BarDetail struct {
	ID                string  `json:"id,omitempty"`
	ProductName       string  `json:"product_name"`
	Quantity          int     `json:"quantity"`
	WorkMinutes       float64 `json:"work_minutes"`
	ScheduledDateTime string  `json:"scheduled_date_time"`
	Employee          string  `json:"employee"`
	Line              string  `json:"line"`
	RequiredSkill     string  `json:"required_skill,omitempty"`
	EarliestDate      string  `json:"earliest_date,omitempty"`
	LatestDate        string  `json:"latest_date,omitempty"`
}
