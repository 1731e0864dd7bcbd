package engine

import (
	"math"
	"testing"
	"time"

	"github.com/padverb/vizor/internal/param"
)

// fakeScheduler drives the sequencer clock without real waits. fire advances
// virtual time to the earliest pending task (plus optional jitter, standing
// in for callback scheduling delay) and runs it.
type fakeScheduler struct {
	now   time.Time
	next  Handle
	tasks map[Handle]fakeTask
}

type fakeTask struct {
	due time.Time
	fn  func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		now:   time.Unix(0, 0),
		tasks: make(map[Handle]fakeTask),
	}
}

func (f *fakeScheduler) Now() time.Time { return f.now }

func (f *fakeScheduler) ScheduleAfter(d time.Duration, fn func()) Handle {
	f.next++
	f.tasks[f.next] = fakeTask{due: f.now.Add(d), fn: fn}
	return f.next
}

func (f *fakeScheduler) Cancel(h Handle) {
	delete(f.tasks, h)
}

func (f *fakeScheduler) earliest() (Handle, fakeTask, bool) {
	var best Handle
	var bestTask fakeTask
	found := false
	for h, task := range f.tasks {
		if !found || task.due.Before(bestTask.due) {
			best, bestTask, found = h, task, true
		}
	}
	return best, bestTask, found
}

// pendingDue returns the absolute due time of the next scheduled tick.
func (f *fakeScheduler) pendingDue(t *testing.T) time.Time {
	t.Helper()
	_, task, ok := f.earliest()
	if !ok {
		t.Fatalf("no pending scheduled task")
	}
	return task.due
}

// fire runs the earliest task with the given callback jitter.
func (f *fakeScheduler) fire(t *testing.T, jitter time.Duration) {
	t.Helper()
	h, task, ok := f.earliest()
	if !ok {
		t.Fatalf("no pending scheduled task to fire")
	}
	delete(f.tasks, h)
	f.now = task.due.Add(jitter)
	task.fn()
}

func newTestEngine(subStep bool) (*Engine, *fakeScheduler) {
	sched := newFakeScheduler()
	return New(Options{Scheduler: sched, SubStepAutomation: subStep}), sched
}

func TestStepDurationAt120BPM(t *testing.T) {
	e, _ := newTestEngine(false)
	if got := e.seq.stepDuration(); got != 125*time.Millisecond {
		t.Fatalf("step duration at 120 BPM: got %v want 125ms", got)
	}
}

func TestPlayTicksImmediatelyFromPreRoll(t *testing.T) {
	e, sched := newTestEngine(false)

	if e.CurrentStep() != -1 {
		t.Fatalf("pre-roll step should be -1, got %d", e.CurrentStep())
	}
	e.Play()
	if e.CurrentStep() != 0 {
		t.Fatalf("play must perform one tick immediately, step=%d", e.CurrentStep())
	}
	if due := sched.pendingDue(t); !due.Equal(sched.now.Add(125 * time.Millisecond)) {
		t.Fatalf("tick 1 scheduled at %v, want t0+125ms", due)
	}
}

func TestTickTimesAnchorToIdealTimeline(t *testing.T) {
	e, sched := newTestEngine(false)
	t0 := sched.now
	e.Play()

	// Every callback lands 5ms late, yet each reschedule re-anchors to the
	// absolute timeline: error never accumulates.
	const jitter = 5 * time.Millisecond
	for n := 1; n <= 33; n++ {
		ideal := t0.Add(time.Duration(n) * 125 * time.Millisecond)
		if due := sched.pendingDue(t); !due.Equal(ideal) {
			t.Fatalf("tick %d scheduled at %v, want %v", n, due, ideal)
		}
		sched.fire(t, jitter)
	}

	// Tick 16 wrapped the 16-step timeline: tick index 32 means two loops.
	if e.LoopCount() != 2 {
		t.Fatalf("loop count after 33 ticks: got %d want 2", e.LoopCount())
	}
	if e.CurrentStep() != 1 {
		t.Fatalf("current step after 33 ticks: got %d want 1", e.CurrentStep())
	}
}

func TestLoopWrapLandsAtTwoSecondsFor120BPM16Steps(t *testing.T) {
	e, sched := newTestEngine(false)
	t0 := sched.now
	e.Play()

	for n := 1; n < 16; n++ {
		sched.fire(t, 0)
	}
	// The next pending tick is tick 16, the loop wrap.
	if due := sched.pendingDue(t); !due.Equal(t0.Add(2 * time.Second)) {
		t.Fatalf("loop wrap scheduled at %v, want t0+2s", due)
	}
	sched.fire(t, 0)
	if e.CurrentStep() != 0 || e.LoopCount() != 1 {
		t.Fatalf("after wrap: step=%d loops=%d", e.CurrentStep(), e.LoopCount())
	}
}

func TestStopCancelsPendingTickAndFreezesState(t *testing.T) {
	e, sched := newTestEngine(false)
	e.RequestChange("brightness", nil, param.Number(1.8), 0, SourceUI)
	e.Play()
	sched.fire(t, 0)

	e.Stop()
	if _, _, ok := sched.earliest(); ok {
		t.Fatalf("stop must cancel the pending scheduled tick")
	}
	if v, _ := e.Resolved("brightness"); v.Num != 1.8 {
		t.Fatalf("stop must leave resolved state untouched, got %v", v.Num)
	}
	if e.Playing() {
		t.Fatalf("engine still playing after stop")
	}
}

func TestPatternDiffSubmitsOnlyChangedSubset(t *testing.T) {
	e, _ := newTestEngine(false)

	base := Pattern{
		"brightness": param.Number(1.0),
		"frequency":  param.Number(6.0),
		"scaleSize":  param.Number(1.0),
		"pattern":    param.Text("plasma"),
	}
	next := Pattern{
		"brightness": param.Number(1.0),
		"frequency":  param.Number(6.0),
		"scaleSize":  param.Number(2.5),
		"pattern":    param.Text("plasma"),
	}
	e.SetPattern("base", base)
	e.SetPattern("next", next)

	e.LoadPattern("base")
	// Let the initial ramps finish so only the diff remains observable.
	for i := 0; i < 64; i++ {
		e.Advance()
	}
	if e.arb.ActiveCount() != 0 {
		t.Fatalf("setup ramps still active: %d", e.arb.ActiveCount())
	}

	e.LoadPattern("next")
	if got := e.arb.ActiveCount(); got != 1 {
		t.Fatalf("diff must ramp only the changed subset: %d animations", got)
	}
	if src, ok := e.arb.ActiveSource("scaleSize"); !ok || src != SourcePattern {
		t.Fatalf("scaleSize animation missing or wrong source: %v ok=%v", src, ok)
	}
}

func TestAutomationPaintsOverPatternWithinOneTick(t *testing.T) {
	e, _ := newTestEngine(false)

	e.SetPattern("a", Pattern{"brightness": param.Number(2.0)})
	if err := e.AssignPattern(0, "a"); err != nil {
		t.Fatalf("AssignPattern: %v", err)
	}
	if err := e.AddTrack("t1", "brightness"); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	e.AddKeyframe("t1", 0)
	e.UpdateKeyframe("t1", 0, 0.5)
	e.AddKeyframe("t1", 8)
	e.UpdateKeyframe("t1", 8, 1.5)

	e.Play() // tick 0: pattern diff first, then automation

	if v, _ := e.Resolved("brightness"); v.Num != 0.5 {
		t.Fatalf("automation must win over the pattern for the same parameter: %v", v.Num)
	}
	if _, ok := e.arb.ActiveSource("brightness"); ok {
		t.Fatalf("immediate automation request must clear the pattern ramp")
	}
}

func TestAutomationTracksFollowTheStepClock(t *testing.T) {
	e, sched := newTestEngine(false)

	if err := e.AddTrack("t1", "frequency"); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	e.AddKeyframe("t1", 0)
	e.UpdateKeyframe("t1", 0, 0)
	e.AddKeyframe("t1", 8)
	e.UpdateKeyframe("t1", 8, 8)

	e.Play()
	for n := 1; n <= 4; n++ {
		sched.fire(t, 0)
		v, _ := e.Resolved("frequency")
		if math.Abs(v.Num-float64(n)) > 1e-12 {
			t.Fatalf("step %d: frequency=%v want %d", n, v.Num, n)
		}
	}
}

func TestSubStepAutomationEvaluatesFractionalPositions(t *testing.T) {
	e, sched := newTestEngine(true)

	if err := e.AddTrack("t1", "frequency"); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	e.AddKeyframe("t1", 0)
	e.UpdateKeyframe("t1", 0, 0)
	e.AddKeyframe("t1", 8)
	e.UpdateKeyframe("t1", 8, 8)

	e.Play()
	// Half a step later (62.5ms at 120 BPM) a frame advance resolves the
	// track at fractional position 0.5.
	sched.now = sched.now.Add(62500 * time.Microsecond)
	e.Advance()

	v, _ := e.Resolved("frequency")
	if math.Abs(v.Num-0.5) > 1e-9 {
		t.Fatalf("fractional automation: frequency=%v want 0.5", v.Num)
	}
}

func TestBPMChangeAppliesOnNextTickOnly(t *testing.T) {
	e, sched := newTestEngine(false)
	e.Play()
	inFlight := sched.pendingDue(t)

	if err := e.SetBPM(240); err != nil {
		t.Fatalf("SetBPM: %v", err)
	}
	// The already-scheduled delay is not recomputed.
	if due := sched.pendingDue(t); !due.Equal(inFlight) {
		t.Fatalf("in-flight tick rescheduled: %v -> %v", inFlight, due)
	}

	// After the timeline catches up, ticks pace at the new 62.5ms step.
	for i := 0; i < 4; i++ {
		sched.fire(t, 0)
	}
	before := sched.pendingDue(t)
	sched.fire(t, 0)
	after := sched.pendingDue(t)
	if gap := after.Sub(before); gap != 62500*time.Microsecond {
		t.Fatalf("post-change step gap %v, want 62.5ms", gap)
	}
}

func TestClockMisconfigurationIsRejected(t *testing.T) {
	e, _ := newTestEngine(false)
	if err := e.SetBPM(0); err == nil {
		t.Fatalf("bpm=0 must be rejected")
	}
	if err := e.SetBPM(-120); err == nil {
		t.Fatalf("negative bpm must be rejected")
	}
	if err := e.SetStepCount(0); err == nil {
		t.Fatalf("stepCount=0 must be rejected")
	}
	if e.BPM() != defaultBPM || e.StepCount() != defaultStepCount {
		t.Fatalf("rejected mutation must not change clock config")
	}
}

func TestStepCountChangeResizesAssignments(t *testing.T) {
	e, _ := newTestEngine(false)
	e.SetPattern("a", Pattern{"brightness": param.Number(1)})
	if err := e.AssignPattern(15, "a"); err != nil {
		t.Fatalf("AssignPattern: %v", err)
	}
	if err := e.SetStepCount(8); err != nil {
		t.Fatalf("SetStepCount: %v", err)
	}
	if err := e.AssignPattern(15, "a"); err == nil {
		t.Fatalf("assignment past the shortened timeline must fail")
	}
	if err := e.AssignPattern(7, "a"); err != nil {
		t.Fatalf("assignment within the new timeline failed: %v", err)
	}
}

func TestProjectStateRoundTrip(t *testing.T) {
	e, _ := newTestEngine(false)
	e.SetPattern("a", Pattern{"brightness": param.Number(1.25), "pattern": param.Text("waves")})
	if err := e.AssignPattern(0, "a"); err != nil {
		t.Fatalf("AssignPattern: %v", err)
	}
	if err := e.AddTrack("t1", "frequency"); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	e.AddKeyframe("t1", 2.5)
	if err := e.SetBPM(90); err != nil {
		t.Fatalf("SetBPM: %v", err)
	}

	state := e.ExportProject()

	restored, _ := newTestEngine(false)
	if err := restored.ImportProject(state); err != nil {
		t.Fatalf("ImportProject: %v", err)
	}
	if restored.BPM() != 90 {
		t.Fatalf("bpm not restored: %v", restored.BPM())
	}
	tracks := restored.Tracks()
	if len(tracks) != 1 || len(tracks[0].Keys) != 1 || tracks[0].Keys[0].Step != 2.5 {
		t.Fatalf("tracks not restored: %+v", tracks)
	}

	state.BPM = 0
	if err := restored.ImportProject(state); err == nil {
		t.Fatalf("invalid clock config must be rejected on import")
	}
}
