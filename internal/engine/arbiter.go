package engine

import (
	"log"
	"math"

	"github.com/padverb/vizor/internal/param"
)

// Source identifies who asked for a parameter change. Higher values win
// arbitration over lower ones.
type Source int

const (
	SourcePattern Source = iota
	SourceAutomation
	SourceUI
	SourceMIDI
)

func (s Source) String() string {
	switch s {
	case SourcePattern:
		return "pattern"
	case SourceAutomation:
		return "automation"
	case SourceUI:
		return "ui"
	case SourceMIDI:
		return "midi"
	default:
		return "unknown"
	}
}

// Request asks the arbiter to move one parameter to a new value over a number
// of sequencer steps. From == nil means "start from the resolved value".
// Steps <= 0 applies immediately.
type Request struct {
	Param  string
	From   *param.Value
	To     param.Value
	Steps  float64
	Source Source
}

// activeAnimation is one in-flight ramp. At most one exists per parameter.
type activeAnimation struct {
	req   Request
	start param.Value
	frame uint32
	total uint32
}

// Arbiter resolves conflicting change requests and advances in-flight
// animations once per display frame. It is not safe for concurrent use; the
// engine serializes access.
type Arbiter struct {
	store  *param.Store
	active map[string]*activeAnimation
	logger *log.Logger
}

// Sixteenth-note resolution and the display rate animations are budgeted for.
const (
	stepsPerBeat    = 4
	targetFrameRate = 60
)

// FramesPerStep converts the current tempo into display frames per sequencer
// step, never less than one whole frame.
func FramesPerStep(bpm float64) float64 {
	secondsPerStep := 60.0 / (bpm * stepsPerBeat)
	return math.Max(1, math.Round(secondsPerStep*targetFrameRate))
}

// NewArbiter creates an arbiter writing resolved values into store.
func NewArbiter(store *param.Store, logger *log.Logger) *Arbiter {
	return &Arbiter{
		store:  store,
		active: make(map[string]*activeAnimation),
		logger: logger,
	}
}

// Request applies arbitration for one change request. The duration is frozen
// against bpm at submission time; later tempo changes do not retroactively
// alter dispatched animations. Unknown parameters and lost arbitrations are
// silently dropped.
func (a *Arbiter) Request(req Request, bpm float64) {
	if _, ok := a.store.Schema().Lookup(req.Param); !ok {
		a.logf("drop %s: unknown parameter %q", req.Source, req.Param)
		return
	}

	if existing, ok := a.active[req.Param]; ok && req.Source < existing.req.Source {
		a.logf("drop %s request for %q: %s animation in flight", req.Source, req.Param, existing.req.Source)
		return
	}

	// Negative step counts are malformed input, treated as immediate.
	if req.Steps <= 0 {
		delete(a.active, req.Param)
		a.store.Set(req.Param, req.To)
		return
	}

	start := req.From
	if start == nil {
		if cur, ok := a.store.Get(req.Param); ok {
			start = &cur
		} else {
			start = &req.To
		}
	}

	total := uint32(math.Max(1, math.Round(req.Steps*FramesPerStep(bpm))))
	a.active[req.Param] = &activeAnimation{
		req:   req,
		start: *start,
		total: total,
	}
}

// Advance moves every in-flight animation forward one display frame, writing
// interpolated values into resolved state and retiring completed ramps.
func (a *Arbiter) Advance() {
	// Snapshot keys so completing animations can remove themselves without
	// invalidating the iteration.
	names := make([]string, 0, len(a.active))
	for name := range a.active {
		names = append(names, name)
	}

	for _, name := range names {
		anim, ok := a.active[name]
		if !ok {
			continue
		}
		anim.frame++
		progress := math.Min(float64(anim.frame)/float64(anim.total), 1)
		a.store.Set(name, param.Lerp(anim.start, anim.req.To, progress))
		if anim.frame >= anim.total {
			delete(a.active, name)
		}
	}
}

// CancelFor drops the in-flight animation for one parameter. Resolved state
// keeps its last written value.
func (a *Arbiter) CancelFor(name string) {
	delete(a.active, name)
}

// CancelAll drops every in-flight animation.
func (a *Arbiter) CancelAll() {
	a.active = make(map[string]*activeAnimation)
}

// ActiveSource reports the source of the in-flight animation for name.
func (a *Arbiter) ActiveSource(name string) (Source, bool) {
	anim, ok := a.active[name]
	if !ok {
		return 0, false
	}
	return anim.req.Source, true
}

// ActiveCount returns the number of in-flight animations.
func (a *Arbiter) ActiveCount() int {
	return len(a.active)
}

func (a *Arbiter) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
