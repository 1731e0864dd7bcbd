package render

import "sort"

var palettes = map[string][]rune{
	"default": []rune("  .,:-;+=*%#@▓▒░█▚▞▛▜▙▟▘▝▗▖▞▚╱╲╳╋╬═║╔╗╚╝▤▥▧▨▩▦"),
	"box":     []rune(" ░▒▓█▚▞▛▜▙▟"),
	"lines":   []rune(" `.-=+*/\\|╱╲╳╔╗╚╝═║╬"),
	"spark":   []rune("  ´`^\"~:;*+×•¤°oO@#█"),
	"dots":    []rune(" ⡀⡄⡆⡇⣇⣧⣷⣿"),
}

// Palette returns the glyph ramp used for brightness mapping. Unknown
// names fall back to the default ramp.
func Palette(name string) []rune {
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes["default"]
}

// PaletteNames returns all palette identifiers, sorted.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
