// Package engine decides, frame by frame and tick by tick, what value every
// control parameter currently holds. Change requests from the pattern
// sequencer, keyframe automation, the UI and MIDI hardware are arbitrated by
// priority; the renderer only ever reads resolved state.
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/padverb/vizor/internal/param"
)

// Options configures an Engine.
type Options struct {
	Schema    param.Schema
	Scheduler Scheduler
	Logger    *log.Logger

	// SubStepAutomation evaluates keyframe tracks at fractional step
	// positions on every display frame instead of only on ticks.
	SubStepAutomation bool
}

// Engine owns the resolved-value store, the animation arbiter and the step
// sequencer. There is no ambient global; the host application creates one
// Engine and hands it to every producer. A single mutex serializes the frame
// callback, the tick timer and producer goroutines.
type Engine struct {
	mu      sync.Mutex
	store   *param.Store
	arb     *Arbiter
	seq     *Sequencer
	sched   Scheduler
	subStep bool

	// Updates pulses after every sequencer tick so UIs can refresh without
	// polling. Notifications are dropped, never blocked on.
	Updates chan struct{}
}

// New constructs an engine. A nil scheduler gets the wall clock; a nil
// schema gets the default visual parameter set.
func New(opts Options) *Engine {
	if opts.Schema == nil {
		opts.Schema = param.DefaultSchema()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewWallScheduler()
	}

	store := param.NewStore(opts.Schema)
	e := &Engine{
		store:   store,
		arb:     NewArbiter(store, opts.Logger),
		sched:   opts.Scheduler,
		subStep: opts.SubStepAutomation,
		Updates: make(chan struct{}, 1),
	}
	e.seq = newSequencer(e.arb, opts.Scheduler, opts.Logger)
	e.seq.schedule = func(d time.Duration, fn func()) Handle {
		return e.sched.ScheduleAfter(d, func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			fn()
		})
	}
	e.seq.onStep = func(int) { e.notify() }
	return e
}

func (e *Engine) notify() {
	select {
	case e.Updates <- struct{}{}:
	default:
	}
}

// Schema returns the parameter schema.
func (e *Engine) Schema() param.Schema {
	return e.store.Schema()
}

// RequestChange submits a change request for arbitration. from == nil starts
// from the resolved value; steps <= 0 applies immediately. Invalid requests
// degrade silently.
func (e *Engine) RequestChange(name string, from *param.Value, to param.Value, steps float64, src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.arb.Request(Request{Param: name, From: from, To: to, Steps: steps, Source: src}, e.seq.bpm)
}

// Advance must be called once per display frame. It moves in-flight
// animations forward and, when sub-step automation is enabled, re-evaluates
// tracks at the current fractional step.
func (e *Engine) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subStep && e.seq.running {
		e.seq.automate(e.seq.fractionalStep(e.sched.Now()))
	}
	e.arb.Advance()
}

// CancelAll drops every in-flight animation; resolved state is untouched.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.arb.CancelAll()
}

// CancelFor drops the in-flight animation for one parameter.
func (e *Engine) CancelFor(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.arb.CancelFor(name)
}

// Snapshot copies resolved state for the renderer.
func (e *Engine) Snapshot() param.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Resolved returns the resolved value of one parameter.
func (e *Engine) Resolved(name string) (param.Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(name)
}

// Transport

// Play starts the sequencer from the pre-roll step and ticks immediately.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq.play()
}

// Stop halts the sequencer, freezing resolved values in place.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq.stop()
}

// Playing reports whether the sequencer is running.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.running
}

// CurrentStep returns the last ticked step, -1 before the first tick.
func (e *Engine) CurrentStep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.currentStep
}

// LoopCount returns how many times the step timeline has wrapped.
func (e *Engine) LoopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.loopCount
}

// SetBPM changes the tempo. Takes effect on the next tick; the in-flight
// scheduled delay is not recomputed.
func (e *Engine) SetBPM(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm must be positive, got %v", bpm)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq.bpm = bpm
	e.seq.reanchor()
	return nil
}

// BPM returns the current tempo.
func (e *Engine) BPM() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.bpm
}

// SetStepCount changes the timeline length. Takes effect on the next tick.
func (e *Engine) SetStepCount(count int) error {
	if count <= 0 {
		return fmt.Errorf("step count must be positive, got %d", count)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq.stepCount = count
	e.seq.resizeAssignments(count)
	e.seq.reanchor()
	return nil
}

// StepCount returns the timeline length in steps.
func (e *Engine) StepCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq.stepCount
}

// SetRampSteps sets how many steps pattern-diff animations span.
func (e *Engine) SetRampSteps(steps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if steps < 0 {
		steps = 0
	}
	e.seq.rampSteps = steps
}

// Patterns

// SetPattern stores or replaces a named parameter snapshot.
func (e *Engine) SetPattern(id string, p Pattern) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(Pattern, len(p))
	for name, v := range p {
		cp[name] = v
	}
	e.seq.patterns[id] = cp
}

// RemovePattern deletes a pattern and any step assignments pointing at it.
func (e *Engine) RemovePattern(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seq.patterns, id)
	for i, a := range e.seq.assignments {
		if a == id {
			e.seq.assignments[i] = ""
		}
	}
	if e.seq.loaded == id {
		e.seq.loaded = ""
	}
}

// AssignPattern binds a pattern to a step on the timeline; id "" clears.
func (e *Engine) AssignPattern(step int, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if step < 0 || step >= e.seq.stepCount {
		return fmt.Errorf("step %d out of range [0,%d)", step, e.seq.stepCount)
	}
	if id != "" {
		if _, ok := e.seq.patterns[id]; !ok {
			return fmt.Errorf("unknown pattern %q", id)
		}
	}
	e.seq.assignments[step] = id
	return nil
}

// LoadPattern loads a pattern right now, ramping only the changed subset.
// Used by MIDI note triggers and keyboard keys.
func (e *Engine) LoadPattern(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq.loadPattern(id)
	e.notify()
}

// PatternIDs lists stored pattern names.
func (e *Engine) PatternIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.seq.patterns))
	for id := range e.seq.patterns {
		ids = append(ids, id)
	}
	return ids
}

// CapturePattern snapshots current resolved state as a named pattern.
func (e *Engine) CapturePattern(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := make(Pattern)
	for name, v := range e.store.Snapshot() {
		p[name] = v
	}
	e.seq.patterns[id] = p
}

// Automation tracks

// AddTrack creates an empty keyframe track for a schema parameter.
func (e *Engine) AddTrack(id, parameter string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	spec, ok := e.store.Schema().Lookup(parameter)
	if !ok {
		return fmt.Errorf("unknown parameter %q", parameter)
	}
	if spec.Kind != param.KindNumber {
		return fmt.Errorf("parameter %q is not numeric", parameter)
	}
	if _, exists := e.seq.tracks[id]; exists {
		return fmt.Errorf("track %q already exists", id)
	}
	e.seq.tracks[id] = NewTrack(id, parameter)
	return nil
}

// RemoveTrack deletes a track.
func (e *Engine) RemoveTrack(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seq.tracks, id)
}

// AddKeyframe inserts a keyframe at step with the parameter's schema-derived
// midpoint default. No-op on an occupied step.
func (e *Engine) AddKeyframe(trackID string, step float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	tr, ok := e.seq.tracks[trackID]
	if !ok {
		return false
	}
	spec, _ := e.store.Schema().Lookup(tr.Param)
	return tr.AddKeyframe(step, spec.Midpoint())
}

// UpdateKeyframe sets the value of an existing keyframe.
func (e *Engine) UpdateKeyframe(trackID string, step, value float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	tr, ok := e.seq.tracks[trackID]
	if !ok {
		return false
	}
	return tr.UpdateKeyframe(step, value)
}

// RemoveKeyframe deletes a keyframe.
func (e *Engine) RemoveKeyframe(trackID string, step float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	tr, ok := e.seq.tracks[trackID]
	if !ok {
		return false
	}
	return tr.RemoveKeyframe(step)
}

// Tracks returns deep copies of every automation track.
func (e *Engine) Tracks() []Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Track, 0, len(e.seq.tracks))
	for _, id := range sortedTrackIDs(e.seq.tracks) {
		tr := e.seq.tracks[id]
		cp := Track{ID: tr.ID, Param: tr.Param, Keys: append([]Keyframe(nil), tr.Keys...)}
		out = append(out, cp)
	}
	return out
}

// Persistence

// ProjectState is the serializable slice of engine state. In-flight
// animations are ephemeral and never persisted.
type ProjectState struct {
	BPM         float64            `json:"bpm"`
	StepCount   int                `json:"stepCount"`
	RampSteps   float64            `json:"rampSteps"`
	Patterns    map[string]Pattern `json:"patterns"`
	Assignments []string           `json:"assignments"`
	Tracks      []Track            `json:"tracks"`
}

// ExportProject copies persistent state out of the engine.
func (e *Engine) ExportProject() ProjectState {
	e.mu.Lock()
	defer e.mu.Unlock()

	patterns := make(map[string]Pattern, len(e.seq.patterns))
	for id, p := range e.seq.patterns {
		cp := make(Pattern, len(p))
		for name, v := range p {
			cp[name] = v
		}
		patterns[id] = cp
	}

	tracks := make([]Track, 0, len(e.seq.tracks))
	for _, id := range sortedTrackIDs(e.seq.tracks) {
		tr := e.seq.tracks[id]
		tracks = append(tracks, Track{ID: tr.ID, Param: tr.Param, Keys: append([]Keyframe(nil), tr.Keys...)})
	}

	return ProjectState{
		BPM:         e.seq.bpm,
		StepCount:   e.seq.stepCount,
		RampSteps:   e.seq.rampSteps,
		Patterns:    patterns,
		Assignments: append([]string(nil), e.seq.assignments...),
		Tracks:      tracks,
	}
}

// ImportProject replaces persistent state. The sequencer must be stopped.
func (e *Engine) ImportProject(ps ProjectState) error {
	if ps.BPM <= 0 {
		return fmt.Errorf("bpm must be positive, got %v", ps.BPM)
	}
	if ps.StepCount <= 0 {
		return fmt.Errorf("step count must be positive, got %d", ps.StepCount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq.running {
		return fmt.Errorf("cannot load a project while playing")
	}

	e.seq.bpm = ps.BPM
	e.seq.stepCount = ps.StepCount
	e.seq.rampSteps = ps.RampSteps
	e.seq.loaded = ""
	e.seq.currentStep = -1
	e.seq.loopCount = 0

	e.seq.patterns = make(map[string]Pattern, len(ps.Patterns))
	for id, p := range ps.Patterns {
		cp := make(Pattern, len(p))
		for name, v := range p {
			cp[name] = v
		}
		e.seq.patterns[id] = cp
	}

	e.seq.assignments = make([]string, ps.StepCount)
	copy(e.seq.assignments, ps.Assignments)

	e.seq.tracks = make(map[string]*Track, len(ps.Tracks))
	for _, tr := range ps.Tracks {
		cp := Track{ID: tr.ID, Param: tr.Param, Keys: append([]Keyframe(nil), tr.Keys...)}
		e.seq.tracks[tr.ID] = &cp
	}
	return nil
}
