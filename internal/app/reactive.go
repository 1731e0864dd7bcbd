package app

import (
	"github.com/padverb/vizor/internal/analyzer"
	"github.com/padverb/vizor/internal/engine"
	"github.com/padverb/vizor/internal/param"
)

// reactiveMapper turns audio features into immediate UI-level parameter
// requests. Smoothing happens here so a noisy analyzer frame does not
// make the visuals jitter.
type reactiveMapper struct {
	eng       *engine.Engine
	zoomLevel float64
	noiseBase float64
}

func newReactiveMapper(eng *engine.Engine) *reactiveMapper {
	return &reactiveMapper{eng: eng}
}

func (m *reactiveMapper) Apply(feat analyzer.Features) {
	// beat drives the zoom pulse, with a slow release
	target := feat.BeatStrength * 1.2
	if target > m.zoomLevel {
		m.zoomLevel = m.zoomLevel*0.4 + target*0.6
	} else {
		m.zoomLevel *= 0.9
	}
	m.eng.RequestChange("zoomPulse", nil, param.Number(m.zoomLevel), 0, engine.SourceUI)

	// treble feeds texture detail
	noise := 0.05 + feat.Treble*0.6
	m.noiseBase = m.noiseBase*0.8 + noise*0.2
	m.eng.RequestChange("noiseStrength", nil, param.Number(m.noiseBase), 0, engine.SourceUI)

	if feat.IsDrop {
		m.eng.RequestChange("colorShift", nil, param.Number(randomShift()), 4, engine.SourceUI)
	}
}
