// Package gate decides when a freshly polled snapshot is stable enough to
// render.
//
// A live solver can publish a schedule halfway through a mutation. The gate
// renders the first snapshot it ever sees, then only commits a changed
// fingerprint once the same value has been observed on RequiredStability
// consecutive polls. This is a heuristic debounce: it filters single-poll
// transients but makes no promise of eventual consistency against a solver
// that never repeats itself.
package gate

import (
	"sync"

	"github.com/alfredjeanlab/schedview/internal/fingerprint"
)

// RequiredStability is the default number of consecutive identical changed
// observations needed to commit a render.
const RequiredStability = 2

// Reason explains a Decision.
type Reason string

const (
	ReasonFirst     Reason = "first"     // nothing rendered yet
	ReasonUnchanged Reason = "unchanged" // same as the last render
	ReasonPending   Reason = "pending"   // changed, not yet stable
	ReasonStable    Reason = "stable"    // changed and stable
)

// Decision is the outcome of one observation.
type Decision struct {
	Render bool
	Reason Reason
	// Count is the pending observation count after this call.
	Count int
}

// Gate holds the last-rendered fingerprint and the pending-change buffer.
type Gate struct {
	required int

	mu           sync.Mutex
	rendered     bool
	lastRendered fingerprint.Fingerprint
	pending      fingerprint.Fingerprint
	count        int
}

// New returns a gate requiring n consecutive observations (n < 1 means 1).
func New(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{required: n}
}

// Observe feeds one fingerprint through the gate.
func (g *Gate) Observe(f fingerprint.Fingerprint) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.rendered {
		g.commit(f)
		return Decision{Render: true, Reason: ReasonFirst}
	}
	if f == g.lastRendered {
		g.clearPending()
		return Decision{Reason: ReasonUnchanged}
	}
	if g.count > 0 && g.pending == f {
		g.count++
	} else {
		g.pending, g.count = f, 1
	}
	if g.count >= g.required {
		g.commit(f)
		return Decision{Render: true, Reason: ReasonStable}
	}
	return Decision{Reason: ReasonPending, Count: g.count}
}

// LastRendered returns the committed fingerprint, if any.
func (g *Gate) LastRendered() (fingerprint.Fingerprint, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRendered, g.rendered
}

// Reset forgets all history so the next observation renders immediately.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rendered = false
	g.lastRendered = ""
	g.clearPending()
}

func (g *Gate) commit(f fingerprint.Fingerprint) {
	g.rendered = true
	g.lastRendered = f
	g.clearPending()
}

func (g *Gate) clearPending() {
	g.pending = ""
	g.count = 0
}
