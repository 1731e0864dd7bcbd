package param

// Kind discriminates the closed set of value variants a control parameter may
// hold. Only numbers are interpolated; color lists and text snap when an
// animation completes.
type Kind int

const (
	KindNumber Kind = iota
	KindColorList
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindColorList:
		return "colorList"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// ColorStop is a position on a color gradient.
type ColorStop struct {
	Pos float64  `json:"pos"`
	RGB [3]uint8 `json:"rgb"`
}

// Value is a tagged variant: number, color-stop list, or opaque text.
// The zero Value is the number 0.
type Value struct {
	Kind   Kind        `json:"kind"`
	Num    float64     `json:"num,omitempty"`
	Colors []ColorStop `json:"colors,omitempty"`
	Text   string      `json:"text,omitempty"`
}

// Number wraps a scalar.
func Number(v float64) Value {
	return Value{Kind: KindNumber, Num: v}
}

// Colors wraps a color-stop list.
func Colors(stops ...ColorStop) Value {
	return Value{Kind: KindColorList, Colors: stops}
}

// Text wraps an opaque string.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Equal reports structural equality; color lists compare element-wise,
// never by reference.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindText:
		return v.Text == o.Text
	case KindColorList:
		if len(v.Colors) != len(o.Colors) {
			return false
		}
		for i := range v.Colors {
			if v.Colors[i] != o.Colors[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Lerp interpolates between two values at progress t in [0,1]. Numbers
// interpolate linearly and land exactly on the target at t >= 1; any other
// kind holds the start value until t >= 1, then snaps to the target.
func Lerp(from, to Value, t float64) Value {
	if t >= 1 {
		return to
	}
	if t <= 0 {
		return from
	}
	if from.Kind == KindNumber && to.Kind == KindNumber {
		return Number(from.Num + (to.Num-from.Num)*t)
	}
	return from
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
