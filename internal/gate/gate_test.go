package gate

import (
	"testing"

	"github.com/alfredjeanlab/schedview/internal/fingerprint"
)

// renders feeds seq through a fresh gate and returns the indexes that rendered.
func renders(g *Gate, seq ...fingerprint.Fingerprint) []int {
	var out []int
	for i, f := range seq {
		if g.Observe(f).Render {
			out = append(out, i)
		}
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGate(t *testing.T) {
	for _, tc := range []struct {
		name string
		seq  []fingerprint.Fingerprint
		want []int
	}{
		{"first always renders", []fingerprint.Fingerprint{"X"}, []int{0}},
		{"first renders even when empty", []fingerprint.Fingerprint{""}, []int{0}},
		{"repeat is a no-op", []fingerprint.Fingerprint{"A", "A", "A"}, []int{0}},
		{"stable change renders on second sighting", []fingerprint.Fingerprint{"A", "B", "B"}, []int{0, 2}},
		{"unstable changes never render", []fingerprint.Fingerprint{"A", "B", "C"}, []int{0}},
		{"return to known good clears pending", []fingerprint.Fingerprint{"A", "B", "A", "B"}, []int{0}},
		{"interleaved transient resets pending", []fingerprint.Fingerprint{"A", "B", "C", "B", "B"}, []int{0, 4}},
		{"stable after stable", []fingerprint.Fingerprint{"A", "B", "B", "B", "C", "C"}, []int{0, 2, 5}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := renders(New(RequiredStability), tc.seq...); !equalInts(got, tc.want) {
				t.Errorf("renders = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGate_Reasons(t *testing.T) {
	g := New(RequiredStability)
	for i, tc := range []struct {
		f     fingerprint.Fingerprint
		want  Reason
		count int
	}{
		{"A", ReasonFirst, 0},
		{"A", ReasonUnchanged, 0},
		{"B", ReasonPending, 1},
		{"B", ReasonStable, 0},
		{"B", ReasonUnchanged, 0},
	} {
		d := g.Observe(tc.f)
		if d.Reason != tc.want || d.Count != tc.count {
			t.Errorf("step %d: Observe(%s) = %+v, want reason %s count %d", i, tc.f, d, tc.want, tc.count)
		}
	}
	if last, ok := g.LastRendered(); !ok || last != "B" {
		t.Errorf("LastRendered() = %q, %v, want B, true", last, ok)
	}
}

func TestGate_Reset(t *testing.T) {
	g := New(RequiredStability)
	g.Observe("A")
	g.Observe("B")
	g.Reset()
	if _, ok := g.LastRendered(); ok {
		t.Error("LastRendered() ok after Reset")
	}
	if d := g.Observe("C"); !d.Render || d.Reason != ReasonFirst {
		t.Errorf("Observe after Reset = %+v, want first render", d)
	}
}

func TestNew_MinimumOne(t *testing.T) {
	g := New(0)
	if got := renders(g, "A", "B", "C"); !equalInts(got, []int{0, 1, 2}) {
		t.Errorf("renders = %v, want every change to render", got)
	}
}
