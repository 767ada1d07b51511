package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/schedview/internal/client"
	"github.com/alfredjeanlab/schedview/internal/model"
)

func shiftOrder(start, end, at string) *model.Order {
	o := &model.Order{
		Employee: &model.Employee{Name: "Ann", Shift: &model.Shift{Start: start, End: end}},
	}
	if at != "" {
		o.ScheduledDateTime = &at
	}
	return o
}

func TestIsOvertime(t *testing.T) {
	for _, tc := range []struct {
		name       string
		start, end string
		at         string
		want       bool
	}{
		{"day before start", "09:00", "17:00", "2030-04-01T08:59:00", true},
		{"day at start", "09:00", "17:00", "2030-04-01T09:00:00", false},
		{"day at end", "09:00", "17:00", "2030-04-01T17:00:00", false},
		{"day after end", "09:00", "17:00", "2030-04-01T17:01:00", true},
		{"night late", "22:00", "06:00", "2030-04-01T23:00:00", false},
		{"night at end", "22:00", "06:00", "2030-04-02T06:00:00", false},
		{"night midday", "22:00", "06:00", "2030-04-01T12:00:00", true},
		{"degenerate", "08:00", "08:00", "2030-04-01T03:00:00", false},
		{"degenerate at start", "08:00", "08:00", "2030-04-01T08:00:00", false},
		{"full date-time shift", "2030-04-01T09:00:00", "2030-04-01T17:00:00", "2030-04-01T18:30:00", true},
		{"bad shift", "later", "17:00", "2030-04-01T18:30:00", false},
		{"unscheduled", "09:00", "17:00", "", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := IsOvertime(shiftOrder(tc.start, tc.end, tc.at), time.UTC)
			if got != tc.want {
				t.Errorf("IsOvertime(%s-%s @ %s) = %v, want %v", tc.start, tc.end, tc.at, got, tc.want)
			}
		})
	}

	at := "2030-04-01T03:00:00"
	if IsOvertime(&model.Order{Employee: &model.Employee{Name: "Bob"}, ScheduledDateTime: &at}, time.UTC) {
		t.Error("employee without shift reported overtime")
	}
	if IsOvertime(&model.Order{ScheduledDateTime: &at}, time.UTC) {
		t.Error("order without employee reported overtime")
	}
}

func sampleOrders() []model.Order {
	at1, at2 := "2030-04-01T08:00:00", "2030-04-01T20:00:00"
	ann := &model.Employee{Name: "Ann", Shift: &model.Shift{Start: "09:00", End: "17:00"}}
	l1 := &model.Line{Name: "L1"}
	return []model.Order{
		{ProductName: "A", WorkHours: 30, Employee: ann, Line: l1, ScheduledDateTime: &at1},
		{ProductName: "B", WorkHours: 45, Employee: ann, ScheduledDateTime: &at2},
		{ProductName: "C", WorkHours: 20, Line: l1},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleOrders(), time.UTC)
	if s.Total != 3 || s.Assigned != 1 || s.Unassigned != 2 {
		t.Errorf("counts = %d/%d/%d, want 3/1/2", s.Total, s.Assigned, s.Unassigned)
	}
	if s.TotalWorkMinutes != 95 {
		t.Errorf("TotalWorkMinutes = %v, want 95", s.TotalWorkMinutes)
	}
	if s.AverageWorkMinutes != 32 {
		t.Errorf("AverageWorkMinutes = %d, want 32", s.AverageWorkMinutes)
	}
	if s.Overtime != 2 {
		t.Errorf("Overtime = %d, want 2", s.Overtime)
	}
	wantEmp := []Count{{"Ann", 2}, {model.Unassigned, 1}}
	if fmt.Sprint(s.PerEmployee) != fmt.Sprint(wantEmp) {
		t.Errorf("PerEmployee = %v, want %v", s.PerEmployee, wantEmp)
	}
	wantLine := []Count{{"L1", 2}, {model.Unassigned, 1}}
	if fmt.Sprint(s.PerLine) != fmt.Sprint(wantLine) {
		t.Errorf("PerLine = %v, want %v", s.PerLine, wantLine)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)
	if s.Total != 0 || s.AverageWorkMinutes != 0 || len(s.PerEmployee) != 0 {
		t.Errorf("Summarize(nil) = %+v", s)
	}
}

type fakeAnalyzer struct {
	result *model.ScoreAnalysis
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ *model.Snapshot) (*model.ScoreAnalysis, error) {
	f.calls++
	return f.result, f.err
}

func matches(n int) []model.MatchAnalysis {
	var ms []model.MatchAnalysis
	for i := 0; i < n; i++ {
		ms = append(ms, model.MatchAnalysis{
			Score:         model.FlexString("-1soft"),
			Justification: json.RawMessage(fmt.Sprintf(`"order %d late"`, i)),
		})
	}
	return ms
}

func TestAggregator_Analyze(t *testing.T) {
	seven := 7
	fa := &fakeAnalyzer{result: &model.ScoreAnalysis{
		Score:       "0hard/-12soft",
		Initialized: true,
		Constraints: []model.ConstraintAnalysis{
			{Name: "late", Weight: "1soft", Score: "-12soft", Matches: matches(12)},
			{Name: "skill", Weight: "1hard", Score: "0hard", MatchCount: &seven},
		},
	}}
	a := &Aggregator{Analyzer: fa, Location: time.UTC}
	snap := &model.Snapshot{Orders: sampleOrders()}
	r := a.Analyze(context.Background(), snap)

	if fa.calls != 1 {
		t.Errorf("calls = %d, want 1", fa.calls)
	}
	if !r.Remote || r.Advisory != "" {
		t.Errorf("Remote = %v, Advisory = %q", r.Remote, r.Advisory)
	}
	if r.Score != "0hard/-12soft" || !r.Initialized {
		t.Errorf("Score = %q, Initialized = %v", r.Score, r.Initialized)
	}
	if r.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", r.Summary.Total)
	}
	if r.Digest == "" {
		t.Error("Digest is empty")
	}

	late := r.Constraints[0]
	if late.MatchCount != 12 || len(late.Shown) != MaxShownMatches || late.Remaining != 2 || len(late.Matches) != 12 {
		t.Errorf("late = count %d, shown %d, remaining %d, matches %d", late.MatchCount, len(late.Shown), late.Remaining, len(late.Matches))
	}
	if late.Shown[3].Justification != "order 3 late" || late.Shown[3].Score != "-1soft" {
		t.Errorf("Shown[3] = %+v", late.Shown[3])
	}

	skill := r.Constraints[1]
	if skill.MatchCount != 7 || len(skill.Shown) != 0 || skill.Remaining != 0 {
		t.Errorf("skill = %+v", skill)
	}
}

func TestAggregator_Advisory(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want string
	}{
		{"http status", &client.APIError{StatusCode: 503, Message: "busy"}, "Score analysis unavailable: 503"},
		{"wrapped status", fmt.Errorf("analyze: %w", &client.APIError{StatusCode: 400}), "Score analysis unavailable: 400"},
		{"transport", errors.New("connection refused"), "Analyze call failed: connection refused"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := &Aggregator{Analyzer: &fakeAnalyzer{err: tc.err}}
			r := a.Analyze(context.Background(), &model.Snapshot{Orders: sampleOrders()})
			if r.Advisory != tc.want {
				t.Errorf("Advisory = %q, want %q", r.Advisory, tc.want)
			}
			if r.Remote || len(r.Constraints) != 0 {
				t.Errorf("unexpected remote data: %+v", r)
			}
			if r.Summary.Total != 3 {
				t.Errorf("Summary.Total = %d, want 3", r.Summary.Total)
			}
		})
	}
}

func TestJustificationText(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want string
	}{
		{``, ""},
		{`null`, ""},
		{`"plain text"`, "plain text"},
		{`{"order": "A",  "late": 3}`, `{"order":"A","late":3}`},
		{`[1, 2]`, `[1,2]`},
		{`42`, `42`},
	} {
		if got := JustificationText(json.RawMessage(tc.raw)); got != tc.want {
			t.Errorf("JustificationText(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := Truncate(long, MaxJustificationLen)
	if want := strings.Repeat("é", 200) + "..."; got != want {
		t.Errorf("Truncate(250 runes) has %d runes", len([]rune(got)))
	}
	if got := Truncate("short", MaxJustificationLen); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
}
