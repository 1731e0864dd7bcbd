package analyzer

// Features describes spectral energy distribution and rhythmic cues
// extracted from audio. All values except IsDrop are normalized to [0,1].
type Features struct {
	Bass         float64 `json:"bass"`
	Mid          float64 `json:"mid"`
	Treble       float64 `json:"treble"`
	Overall      float64 `json:"overall"`
	BeatStrength float64 `json:"beatStrength"`
	IsDrop       bool    `json:"isDrop"`
}

// Gate applies a noise floor so weak signals read as silence.
func (f Features) Gate(floor float64) Features {
	if floor <= 0 {
		return f
	}
	gate := func(v float64) float64 {
		if v <= floor {
			return 0
		}
		return clamp((v-floor)/(1.0-floor), 0, 1)
	}

	f.Bass = gate(f.Bass)
	f.Mid = gate(f.Mid)
	f.Treble = gate(f.Treble)
	f.Overall = gate(f.Overall)
	f.BeatStrength = gate(f.BeatStrength)
	if f.Overall == 0 && f.Bass == 0 && f.Mid == 0 && f.Treble == 0 {
		f.IsDrop = false
	}
	return f
}
