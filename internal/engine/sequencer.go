package engine

import (
	"log"
	"sort"
	"time"

	"github.com/padverb/vizor/internal/param"
)

// Pattern is a named complete snapshot of parameter values.
type Pattern map[string]param.Value

// Sequencer steps through pattern assignments on a BPM clock and evaluates
// keyframe tracks each tick. It reschedules itself against an absolute anchor
// so timing error never accumulates across ticks. Not safe for concurrent
// use; the engine serializes access.
type Sequencer struct {
	arb    *Arbiter
	sched  Scheduler
	logger *log.Logger

	// schedule wraps Scheduler.ScheduleAfter so the tick callback re-enters
	// engine state under its lock.
	schedule func(d time.Duration, fn func()) Handle

	bpm       float64
	stepCount int
	rampSteps float64 // pattern-diff ramp length, in steps

	patterns    map[string]Pattern
	assignments []string // pattern id per step, "" keeps the loaded pattern
	loaded      string
	tracks      map[string]*Track

	running     bool
	currentStep int // -1 before the first tick
	loopCount   int
	startTime   time.Time
	handle      Handle

	onStep func(step int)
}

const (
	defaultBPM       = 120
	defaultStepCount = 16
	defaultRampSteps = 2
)

func newSequencer(arb *Arbiter, sched Scheduler, logger *log.Logger) *Sequencer {
	return &Sequencer{
		arb:         arb,
		sched:       sched,
		logger:      logger,
		bpm:         defaultBPM,
		stepCount:   defaultStepCount,
		rampSteps:   defaultRampSteps,
		patterns:    make(map[string]Pattern),
		assignments: make([]string, defaultStepCount),
		tracks:      make(map[string]*Track),
		currentStep: -1,
	}
}

// stepDuration is the wall time of one sixteenth step at the current tempo.
func (s *Sequencer) stepDuration() time.Duration {
	ms := 60.0 / s.bpm * 1000.0 / stepsPerBeat
	return time.Duration(ms * float64(time.Millisecond))
}

// play resets the clock and fires the first tick immediately.
func (s *Sequencer) play() {
	if s.running {
		return
	}
	s.running = true
	s.currentStep = -1
	s.loopCount = 0
	s.startTime = s.sched.Now()
	s.tick()
}

// stop cancels the pending tick and freezes resolved state in place.
func (s *Sequencer) stop() {
	if !s.running {
		return
	}
	s.running = false
	s.sched.Cancel(s.handle)
}

// tick advances one step: load the assigned pattern (changed subset only),
// evaluate automation tracks, then reschedule against the ideal timeline.
func (s *Sequencer) tick() {
	if !s.running {
		return
	}

	next := (s.currentStep + 1) % s.stepCount
	if next == 0 && s.currentStep != -1 {
		s.loopCount++
	}
	s.currentStep = next

	if id := s.assignments[next]; id != "" && id != s.loaded {
		s.loadPattern(id)
	}

	s.automate(float64(next))

	stepDur := s.stepDuration()
	ideal := s.startTime.Add(time.Duration(s.loopCount*s.stepCount+next+1) * stepDur)
	delay := ideal.Sub(s.sched.Now())
	if delay < 0 {
		delay = 0
	}
	s.handle = s.schedule(delay, s.tick)

	if s.onStep != nil {
		s.onStep(next)
	}
}

// loadPattern diffs the incoming pattern against the loaded one and submits
// ramped requests for the changed subset only.
func (s *Sequencer) loadPattern(id string) {
	target, ok := s.patterns[id]
	if !ok {
		s.logf("load: unknown pattern %q", id)
		return
	}
	current := s.patterns[s.loaded]

	for _, name := range sortedKeys(target) {
		to := target[name]
		if from, ok := current[name]; ok {
			if from.Equal(to) {
				continue
			}
			fromCopy := from
			s.arb.Request(Request{Param: name, From: &fromCopy, To: to, Steps: s.rampSteps, Source: SourcePattern}, s.bpm)
			continue
		}
		s.arb.Request(Request{Param: name, To: to, Steps: s.rampSteps, Source: SourcePattern}, s.bpm)
	}
	s.loaded = id
}

// automate evaluates every track at step position pos and submits immediate
// requests; smoothness comes from tick frequency, not ramping.
func (s *Sequencer) automate(pos float64) {
	for _, id := range sortedTrackIDs(s.tracks) {
		tr := s.tracks[id]
		v, ok := tr.ValueAt(pos, s.stepCount)
		if !ok {
			continue
		}
		s.arb.Request(Request{Param: tr.Param, To: param.Number(v), Source: SourceAutomation}, s.bpm)
	}
}

// fractionalStep maps wall time into a position on the circular step axis,
// used for sub-step automation between ticks.
func (s *Sequencer) fractionalStep(now time.Time) float64 {
	stepDur := s.stepDuration()
	if stepDur <= 0 {
		return 0
	}
	elapsed := now.Sub(s.startTime)
	pos := float64(elapsed) / float64(stepDur)
	count := float64(s.stepCount)
	pos -= float64(int(pos/count)) * count
	if pos < 0 {
		pos += count
	}
	return pos
}

// reanchor restarts the absolute timeline at the current musical position so
// ideal tick times derive from the new tempo/step-count alone. The in-flight
// scheduled delay is not recomputed; the tick after a change absorbs the
// difference.
func (s *Sequencer) reanchor() {
	if !s.running {
		return
	}
	if s.currentStep >= s.stepCount {
		s.currentStep = s.stepCount - 1
	}
	position := s.loopCount*s.stepCount + s.currentStep + 1
	s.startTime = s.sched.Now().Add(-time.Duration(position) * s.stepDuration())
}

func (s *Sequencer) resizeAssignments(count int) {
	next := make([]string, count)
	copy(next, s.assignments)
	s.assignments = next
}

func (s *Sequencer) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func sortedKeys(p Pattern) []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTrackIDs(tracks map[string]*Track) []string {
	ids := make([]string, 0, len(tracks))
	for id := range tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
