package model

import (
	"encoding/json"
	"fmt"
)

// Unassigned is the grouping and color key used for orders that lack an
// employee or line reference.
const Unassigned = "<unassigned>"

// Snapshot is one polled view of the solver-managed schedule. It is treated
// as immutable once decoded.
type Snapshot struct {
	ID           FlexString `json:"id,omitempty"`
	Score        FlexString `json:"score,omitempty"`
	SolverStatus FlexString `json:"solverStatus,omitempty"`
	DateTimes    []string   `json:"dateTimes,omitempty"`
	Employees    []Employee `json:"employees,omitempty"`
	Lines        []Line     `json:"lines,omitempty"`
	Orders       []Order    `json:"orders,omitempty"`

	// Raw is the exact document received from the backend. Hashing and
	// remote analysis use it so that unknown fields survive the round trip.
	Raw json.RawMessage `json:"-"`
}

// ParseSnapshot decodes a snapshot document and keeps the raw bytes.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	s.Raw = append(json.RawMessage(nil), data...)
	return &s, nil
}

// Document returns the bytes that represent the snapshot on the wire:
// Raw when present, otherwise the marshaled model.
func (s *Snapshot) Document() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(s)
}

// Employee is a worker who can be assigned orders.
type Employee struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills,omitempty"`
	Shift  *Shift   `json:"shift,omitempty"`
}

// Shift is an employee's recurring working window. Start and End are either
// clock strings ("22:00") or full local date-times whose time-of-day is used.
type Shift struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Line is a production line.
type Line struct {
	Name      string   `json:"name"`
	Functions []string `json:"functions,omitempty"`
}

// Order is a unit of work. The employee, line and scheduled time are planning
// variables and may each be absent.
type Order struct {
	ID                   FlexString `json:"id,omitempty"`
	ProductName          string     `json:"productName,omitempty"`
	Quantity             int        `json:"quantity,omitempty"`
	WorkHours            float64    `json:"workHours,omitempty"` // minutes
	EarliestDate         string     `json:"earliestDate,omitempty"`
	LatestDate           string     `json:"latestDate,omitempty"`
	RequiredSkill        string     `json:"requiredSkill,omitempty"`
	RequiredLineFunction string     `json:"requiredLineFunction,omitempty"`
	Employee             *Employee  `json:"employee,omitempty"`
	Line                 *Line      `json:"line,omitempty"`
	ScheduledDateTime    *string    `json:"scheduledDateTime,omitempty"`
	Pinned               bool       `json:"pinned,omitempty"`
}

// Scheduled reports whether the order has a scheduled start.
func (o *Order) Scheduled() bool {
	return o.ScheduledDateTime != nil && *o.ScheduledDateTime != ""
}

// Assigned reports whether the order has an employee, a line and a
// scheduled time. All three are required.
func (o *Order) Assigned() bool {
	return o.Employee != nil && o.Line != nil && o.Scheduled()
}

// EmployeeName returns the assigned employee's name or Unassigned.
func (o *Order) EmployeeName() string {
	if o.Employee == nil || o.Employee.Name == "" {
		return Unassigned
	}
	return o.Employee.Name
}

// LineName returns the assigned line's name or Unassigned.
func (o *Order) LineName() string {
	if o.Line == nil || o.Line.Name == "" {
		return Unassigned
	}
	return o.Line.Name
}

// ScheduledAt returns the raw scheduled date-time or "".
func (o *Order) ScheduledAt() string {
	if o.ScheduledDateTime == nil {
		return ""
	}
	return *o.ScheduledDateTime
}
