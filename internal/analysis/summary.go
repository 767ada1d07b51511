// Package analysis builds the statistics panel for a schedule snapshot: local
// order counts and overtime, plus the backend's constraint breakdown.
package analysis

import (
	"math"
	"time"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// Count is the number of orders grouped under one name.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary holds the local statistics over a snapshot's orders.
type Summary struct {
	Total              int     `json:"total"`
	Assigned           int     `json:"assigned"`
	Unassigned         int     `json:"unassigned"`
	TotalWorkMinutes   float64 `json:"total_work_minutes"`
	AverageWorkMinutes int     `json:"average_work_minutes"`
	PerEmployee        []Count `json:"per_employee"`
	PerLine            []Count `json:"per_line"`
	Overtime           int     `json:"overtime"`
}

// Summarize computes the local statistics for orders. Per-employee and
// per-line counts keep the order in which names first appear; orders without
// a reference are counted under model.Unassigned.
func Summarize(orders []model.Order, loc *time.Location) Summary {
	s := Summary{PerEmployee: []Count{}, PerLine: []Count{}}
	empIdx := make(map[string]int)
	lineIdx := make(map[string]int)
	for i := range orders {
		o := &orders[i]
		s.Total++
		if o.Assigned() {
			s.Assigned++
		}
		s.TotalWorkMinutes += o.WorkHours
		s.PerEmployee = bump(s.PerEmployee, empIdx, o.EmployeeName())
		s.PerLine = bump(s.PerLine, lineIdx, o.LineName())
		if IsOvertime(o, loc) {
			s.Overtime++
		}
	}
	s.Unassigned = s.Total - s.Assigned
	if s.Total > 0 {
		s.AverageWorkMinutes = int(math.Round(s.TotalWorkMinutes / float64(s.Total)))
	}
	return s
}

func bump(counts []Count, idx map[string]int, name string) []Count {
	if i, ok := idx[name]; ok {
		counts[i].Count++
		return counts
	}
	idx[name] = len(counts)
	return append(counts, Count{Name: name, Count: 1})
}

// IsOvertime reports whether o is scheduled outside its employee's shift.
// Orders without an employee, a shift or a scheduled time are never
// overtime, and neither is any order on a shift whose start equals its end.
// Times are compared at minute resolution; an overnight shift (start after
// end) covers both sides of midnight.
func IsOvertime(o *model.Order, loc *time.Location) bool {
	if o.Employee == nil || o.Employee.Shift == nil || !o.Scheduled() {
		return false
	}
	at, err := model.ParseLocal(o.ScheduledAt(), loc)
	if err != nil {
		return false
	}
	start, err := model.ParseClock(o.Employee.Shift.Start)
	if err != nil {
		return false
	}
	end, err := model.ParseClock(o.Employee.Shift.End)
	if err != nil {
		return false
	}
	t := model.ClockOf(at)
	switch {
	case start == end:
		return false
	case start < end:
		return t < start || t > end
	default:
		return !(t >= start || t <= end)
	}
}
