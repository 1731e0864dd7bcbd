package engine

import (
	"sort"

	"github.com/padverb/vizor/internal/param"
)

// Keyframe pins a scalar value to a (possibly fractional) step on the
// circular sequencer timeline.
type Keyframe struct {
	Step  float64 `json:"step"`
	Value float64 `json:"value"`
}

// Track automates one numeric parameter from a set of keyframes. Step values
// within a track are unique; keys stay sorted by step.
type Track struct {
	ID    string     `json:"id"`
	Param string     `json:"param"`
	Keys  []Keyframe `json:"keys"`
}

// NewTrack creates an empty track for a parameter.
func NewTrack(id, parameter string) *Track {
	return &Track{ID: id, Param: parameter}
}

// AddKeyframe inserts a keyframe at step with the given value. Inserting at
// an occupied step is a no-op; returns whether the keyframe was added.
func (t *Track) AddKeyframe(step, value float64) bool {
	for _, k := range t.Keys {
		if k.Step == step {
			return false
		}
	}
	t.Keys = append(t.Keys, Keyframe{Step: step, Value: value})
	sort.SliceStable(t.Keys, func(i, j int) bool { return t.Keys[i].Step < t.Keys[j].Step })
	return true
}

// UpdateKeyframe sets the value of the keyframe at step, if present.
func (t *Track) UpdateKeyframe(step, value float64) bool {
	for i := range t.Keys {
		if t.Keys[i].Step == step {
			t.Keys[i].Value = value
			return true
		}
	}
	return false
}

// RemoveKeyframe deletes the keyframe at step, if present.
func (t *Track) RemoveKeyframe(step float64) bool {
	for i := range t.Keys {
		if t.Keys[i].Step == step {
			t.Keys = append(t.Keys[:i], t.Keys[i+1:]...)
			return true
		}
	}
	return false
}

// ValueAt interpolates the track at step s on a circular timeline of
// stepCount steps. A segment that spans the loop boundary (last keyframe to
// first) interpolates through the wrap, not across the straight numeric
// difference. Returns false when the track has no keyframes.
func (t *Track) ValueAt(s float64, stepCount int) (float64, bool) {
	switch len(t.Keys) {
	case 0:
		return 0, false
	case 1:
		return t.Keys[0].Value, true
	}

	// First keyframe strictly after s; wraps to the first key when s sits at
	// or past the last one.
	next := 0
	found := false
	for i, k := range t.Keys {
		if k.Step > s {
			next = i
			found = true
			break
		}
	}
	prev := next - 1
	if !found {
		next = 0
		prev = len(t.Keys) - 1
	}
	if prev < 0 {
		prev = len(t.Keys) - 1
	}

	span := t.Keys[next].Step - t.Keys[prev].Step
	if span < 0 {
		span += float64(stepCount)
	}
	progress := s - t.Keys[prev].Step
	if progress < 0 {
		progress += float64(stepCount)
	}
	if span == 0 {
		return t.Keys[next].Value, true
	}

	u := param.Clamp(progress/span, 0, 1)
	return t.Keys[prev].Value + (t.Keys[next].Value-t.Keys[prev].Value)*u, true
}
