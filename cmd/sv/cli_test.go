package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/schedview/internal/events"
	"github.com/alfredjeanlab/schedview/internal/layout"
	"github.com/alfredjeanlab/schedview/internal/model"
)

const testSchedule = `{
	"score": "0hard/-2soft",
	"solverStatus": "SOLVING_ACTIVE",
	"dateTimes": ["2030-04-01T00:00:00", "2030-04-01T23:00:00"],
	"lines": [{"name": "L1"}, {"name": "L2"}],
	"employees": [{"name": "Ann"}],
	"orders": [
		{"id": 1, "productName": "Bolt", "workHours": 30, "line": {"name": "L1"}, "employee": {"name": "Ann"}, "scheduledDateTime": "2030-04-01T08:00:00"},
		{"id": 2, "productName": "Nut", "workHours": 60}
	]
}`

const testAnalysis = `{
	"score": "0hard/-2soft",
	"initialized": true,
	"constraints": [
		{"name": "Minimize idle time", "weight": "0hard/1soft", "score": "0hard/-2soft",
		 "matches": [{"score": "0hard/-2soft", "justification": "order 1"}]}
	]
}`

// newBackend serves the solver backend routes for job "job-1".
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /schedules/solve", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `"job-2"`)
	})
	mux.HandleFunc("GET /schedules/list", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `["job-1","job-2"]`)
	})
	mux.HandleFunc("GET /schedules/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job-1" {
			http.Error(w, "no such job", http.StatusNotFound)
			return
		}
		io.WriteString(w, testSchedule)
	})
	mux.HandleFunc("GET /schedules/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job-1" {
			http.Error(w, "no such job", http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"score":"0hard/-2soft","solverStatus":"SOLVING_ACTIVE"}`)
	})
	mux.HandleFunc("DELETE /schedules/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /schedules/analyze", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, testAnalysis)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command with args against the test backend and
// returns everything written to stdout and stderr.
func runCLI(t *testing.T, backendURL string, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--server", backendURL, "--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCLI_Jobs(t *testing.T) {
	srv := newBackend(t)

	for _, tc := range []struct {
		name string
		args []string
		want []string
	}{
		{"list", []string{"list"}, []string{"job-1\njob-2\n", "2 jobs"}},
		{"solve", []string{"solve"}, []string{"job-2\n"}},
		{"stop", []string{"stop", "job-1"}, []string{"stopped job-1"}},
		{"status", []string{"status", "job-1"}, []string{"Job:", "job-1", "SOLVING_ACTIVE", "0hard/-2soft"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runCLI(t, srv.URL, tc.args...)
			if err != nil {
				t.Fatalf("run %v: %v", tc.args, err)
			}
			for _, want := range tc.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestCLI_SolveJSON(t *testing.T) {
	srv := newBackend(t)
	out, err := runCLI(t, srv.URL, "--json", "solve")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["job_id"] != "job-2" {
		t.Errorf("job_id = %q, want job-2", got["job_id"])
	}
}

func TestCLI_Show(t *testing.T) {
	srv := newBackend(t)
	out, err := runCLI(t, srv.URL, "show", "job-1", "--tz", "UTC", "--width", "80")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"SOLVING_ACTIVE", "L1", "L2", "█", "1 unscheduled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_ShowJSON(t *testing.T) {
	srv := newBackend(t)
	out, err := runCLI(t, srv.URL, "--json", "show", "job-1", "--tz", "UTC", "--view", "employee")
	if err != nil {
		t.Fatal(err)
	}
	var f layout.Frame
	if err := json.Unmarshal([]byte(out), &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if f.ViewMode != layout.ViewEmployee {
		t.Errorf("ViewMode = %q, want employee", f.ViewMode)
	}
	if len(f.Rows) != 1 || f.Rows[0].Label != "Ann" {
		t.Errorf("rows = %+v, want one row for Ann", f.Rows)
	}
	if f.BarCount() != 1 {
		t.Errorf("BarCount() = %d, want 1", f.BarCount())
	}
}

func TestCLI_Analyze(t *testing.T) {
	srv := newBackend(t)
	out, err := runCLI(t, srv.URL, "analyze", "job-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Orders: 2 total, 1 assigned, 1 unassigned", "Minimize idle time", "Score: 0hard/-2soft"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_Export(t *testing.T) {
	srv := newBackend(t)
	path := filepath.Join(t.TempDir(), "job-1.jsonl")
	if _, err := runCLI(t, srv.URL, "export", "job-1", "--tz", "UTC", "-o", path); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var types []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec struct {
			Type  string `json:"type"`
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if len(types) == 0 && rec.JobID != "job-1" {
			t.Errorf("header job_id = %q, want job-1", rec.JobID)
		}
		types = append(types, rec.Type)
	}
	// header, timeline, two line rows, report
	if len(types) != 5 {
		t.Fatalf("got %d records %v, want 5", len(types), types)
	}
	if types[len(types)-1] != "report" {
		t.Errorf("last record = %q, want report", types[len(types)-1])
	}
}

func TestCLI_BackendError(t *testing.T) {
	srv := newBackend(t)
	if _, err := runCLI(t, srv.URL, "status", "ghost"); err == nil {
		t.Fatal("expected error for an unknown job")
	}
	if _, err := runCLI(t, srv.URL, "show", "job-1", "--view", "machine"); err == nil {
		t.Fatal("expected error for an invalid view")
	}
}

func TestPrintEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	data, _ := json.Marshal(events.FrameRendered{JobID: "job-1", Reason: "stable", SolverStatus: "NOT_SOLVING", Bars: 1234, Score: "0hard/0soft"})

	var buf bytes.Buffer
	jsonOutput = false
	printEvent(&buf, events.Message{Topic: events.TopicFrameRendered, Data: data}, logger)
	out := buf.String()
	for _, want := range []string{events.TopicFrameRendered, "job job-1", "(stable)", "1,234 bars"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}

	buf.Reset()
	printEvent(&buf, events.Message{Topic: events.TopicPollStopped, Data: []byte(`not json`)}, logger)
	if !strings.Contains(buf.String(), "not json") {
		t.Errorf("undecodable payload not printed raw: %s", buf.String())
	}
}

func TestPrintRenders(t *testing.T) {
	var buf bytes.Buffer
	printRenders(&buf, nil)
	if !strings.Contains(buf.String(), "no renders recorded") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	printRenders(&buf, []*model.RenderRecord{{
		JobID: "job-1", Reason: "first", Digest: "0123456789abcdef", Bars: 3,
		RenderedAt: time.Now().Add(-2 * time.Hour),
	}})
	out := buf.String()
	for _, want := range []string{"job-1", "first", "0123456789ab", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Error("digest not shortened")
	}
}
