package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type dimension string

const (
	dimLength dimension = "length"
	dimMass   dimension = "mass"
	dimTime   dimension = "time"
	dimVolume dimension = "volume"
	dimArea   dimension = "area"
	dimSpeed  dimension = "speed"
	dimData   dimension = "data"
	dimEnergy dimension = "energy"
)

type unitDef struct {
	dim    dimension
	factor float64 // in the dimension's base unit
}

// unitTable uses m, kg, s, L, m2, m/s, B and J as base units.
var unitTable = map[string]unitDef{
	"m": {dimLength, 1}, "km": {dimLength, 1000}, "cm": {dimLength, 0.01}, "mm": {dimLength, 0.001},
	"um": {dimLength, 1e-6}, "μm": {dimLength, 1e-6}, "nm": {dimLength, 1e-9},
	"mi": {dimLength, 1609.344}, "yd": {dimLength, 0.9144}, "ft": {dimLength, 0.3048},
	"in": {dimLength, 0.0254}, "nmi": {dimLength, 1852},

	"kg": {dimMass, 1}, "g": {dimMass, 0.001}, "mg": {dimMass, 1e-6}, "t": {dimMass, 1000},
	"lbs": {dimMass, 0.45359237}, "lb": {dimMass, 0.45359237}, "oz": {dimMass, 0.028349523125},
	"st": {dimMass, 6.35029318},

	"s": {dimTime, 1}, "ms": {dimTime, 0.001}, "min": {dimTime, 60}, "h": {dimTime, 3600},
	"day": {dimTime, 86400}, "week": {dimTime, 604800},

	"L": {dimVolume, 1}, "mL": {dimVolume, 0.001}, "cL": {dimVolume, 0.01}, "dL": {dimVolume, 0.1},
	"gal": {dimVolume, 3.785411784}, "qt": {dimVolume, 0.946352946}, "pt": {dimVolume, 0.473176473},
	"cup": {dimVolume, 0.2365882365}, "floz": {dimVolume, 0.0295735295625}, "m3": {dimVolume, 1000},

	"m2": {dimArea, 1}, "km2": {dimArea, 1e6}, "cm2": {dimArea, 1e-4}, "ha": {dimArea, 1e4},
	"acre": {dimArea, 4046.8564224}, "ft2": {dimArea, 0.09290304},

	"m/s": {dimSpeed, 1}, "km/h": {dimSpeed, 1 / 3.6}, "mph": {dimSpeed, 0.44704}, "kn": {dimSpeed, 0.514444},

	"B": {dimData, 1}, "kB": {dimData, 1e3}, "MB": {dimData, 1e6}, "GB": {dimData, 1e9}, "TB": {dimData, 1e12},
	"KiB": {dimData, 1024}, "MiB": {dimData, 1 << 20}, "GiB": {dimData, 1 << 30},

	"J": {dimEnergy, 1}, "kJ": {dimEnergy, 1000}, "cal": {dimEnergy, 4.184}, "kcal": {dimEnergy, 4184},
	"Wh": {dimEnergy, 3600}, "kWh": {dimEnergy, 3.6e6},
}

// unitAliases maps long and plural forms to symbols. Keys are lowercase.
var unitAliases = map[string]string{
	"meter": "m", "meters": "m", "metre": "m", "metres": "m",
	"kilometer": "km", "kilometers": "km", "centimeter": "cm", "centimeters": "cm",
	"millimeter": "mm", "millimeters": "mm", "micrometer": "um", "micrometers": "um",
	"nanometer": "nm", "nanometers": "nm",
	"mile": "mi", "miles": "mi", "yard": "yd", "yards": "yd",
	"foot": "ft", "feet": "ft", "inch": "in", "inches": "in",
	"pound": "lbs", "pounds": "lbs", "ounce": "oz", "ounces": "oz", "stone": "st",
	"kilogram": "kg", "kilograms": "kg", "gram": "g", "grams": "g",
	"milligram": "mg", "milligrams": "mg", "tonne": "t", "tonnes": "t", "ton": "t", "tons": "t",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
	"millisecond": "ms", "milliseconds": "ms",
	"minute": "min", "minutes": "min", "mins": "min",
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
	"days": "day", "d": "day", "weeks": "week", "wk": "week",
	"liter": "L", "liters": "L", "litre": "L", "litres": "L", "l": "L",
	"milliliter": "mL", "milliliters": "mL", "ml": "mL",
	"gallon": "gal", "gallons": "gal", "quart": "qt", "quarts": "qt",
	"pint": "pt", "pints": "pt", "cups": "cup",
	"hectare": "ha", "hectares": "ha", "acres": "acre",
	"kmh": "km/h", "kph": "km/h", "knot": "kn", "knots": "kn",
	"byte": "B", "bytes": "B", "kb": "kB", "mb": "MB", "gb": "GB", "tb": "TB",
	"joule": "J", "joules": "J", "calorie": "cal", "calories": "cal", "kcals": "kcal",
}

var siPrefixes = map[string]int{
	"y": -24, "z": -21, "a": -18, "f": -15, "p": -12, "n": -9,
	"μ": -6, "u": -6, "m": -3, "c": -2, "d": -1,
	"": 0,
	"da": 1, "h": 2, "k": 3, "M": 6, "G": 9, "T": 12, "P": 15,
	"E": 18, "Z": 21, "Y": 24,
}

// siNotationPrefixes is the formatting side of siPrefixes.
var siNotationPrefixes = []struct {
	exp    int
	prefix string
}{
	{24, "Y"}, {21, "Z"}, {18, "E"}, {15, "P"}, {12, "T"}, {9, "G"}, {6, "M"},
	{3, "k"}, {2, "h"}, {1, "da"}, {0, ""},
	{-1, "d"}, {-2, "c"}, {-3, "m"}, {-6, "μ"}, {-9, "n"},
	{-12, "p"}, {-15, "f"}, {-18, "a"}, {-21, "z"}, {-24, "y"},
}

var (
	temperatureRe = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*°?\s*(c|f|k|celsius|fahrenheit|kelvin)\s+(?:to|in|into)\s+°?(c|f|k|celsius|fahrenheit|kelvin)\b`)
	conversionRe  = regexp.MustCompile(`(?i)(?:convert\s+)?(-?\d+(?:\.\d+)?)\s*([a-zA-Zμ°/²³][a-zA-Zμ°/²³0-9]*)\s+(?:to|in|into)\s+([a-zA-Zμ°/²³][a-zA-Zμ°/²³0-9]*)`)
	siNotationRe  = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?[eE][-+]?\d+)\s*([a-zA-Zμ]*)\s*$`)
	siSplitRe     = regexp.MustCompile(`^(da|[yzafpnμumcdhkMGTPEZY])?([a-zA-Z]+)$`)
)

// UnitParser converts temperatures and dimensional units and reformats
// scientific notation with SI prefixes.
type UnitParser struct{}

func (UnitParser) Parse(input string) *Result {
	if m := temperatureRe.FindStringSubmatch(input); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return convertTemperature(v, tempSymbol(m[2]), tempSymbol(m[3]))
	}
	if m := conversionRe.FindStringSubmatch(input); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		if r := convertUnit(v, m[2], m[3]); r != nil {
			return r
		}
	}
	if m := siNotationRe.FindStringSubmatch(input); m != nil {
		return formatSI(m[1], m[2])
	}
	return nil
}

func tempSymbol(s string) string {
	return strings.ToUpper(s[:1])
}

func convertTemperature(v float64, from, to string) *Result {
	var celsius float64
	switch from {
	case "C":
		celsius = v
	case "F":
		celsius = (v - 32) * 5 / 9
	case "K":
		celsius = v - 273.15
	}

	var out float64
	switch to {
	case "C":
		out = celsius
	case "F":
		out = celsius*9/5 + 32
	case "K":
		out = celsius + 273.15
	}
	if from == to {
		out = v
	}
	r := numberResult(out)
	r.Unit = to
	r.Value = fmt.Sprintf("%.2f°%s", out, to)
	return r
}

func normalizeUnit(u string) string {
	if _, ok := unitTable[u]; ok {
		return u
	}
	if a, ok := unitAliases[strings.ToLower(u)]; ok {
		return a
	}
	for sym := range unitTable {
		if strings.EqualFold(sym, u) {
			return sym
		}
	}
	return u
}

func convertUnit(v float64, from, to string) *Result {
	nf, nt := normalizeUnit(from), normalizeUnit(to)
	fd, okF := unitTable[nf]
	td, okT := unitTable[nt]
	if okF && okT && fd.dim == td.dim {
		out := v * fd.factor / td.factor
		r := numberResult(out)
		r.Unit = nt
		r.Value = fmt.Sprintf("%.4f %s", out, nt)
		return r
	}
	return convertSIPrefix(v, from, to)
}

// convertSIPrefix handles units the table does not know when both sides
// share a base unit and differ only by metric prefix, e.g. kHz to MHz.
func convertSIPrefix(v float64, from, to string) *Result {
	fm := siSplitRe.FindStringSubmatch(from)
	tm := siSplitRe.FindStringSubmatch(to)
	if fm == nil || tm == nil || fm[2] != tm[2] {
		return nil
	}
	scale := siPrefixes[fm[1]] - siPrefixes[tm[1]]
	out := v * math.Pow10(scale)
	r := numberResult(out)
	r.Unit = to
	r.Value = fmt.Sprintf("%.4f %s", out, to)
	return r
}

func formatSI(literal, unit string) *Result {
	v, err := strconv.ParseFloat(literal, 64)
	if err != nil || v == 0 {
		return nil
	}
	exp := int(math.Floor(math.Log10(math.Abs(v))))

	best := siNotationPrefixes[0]
	for _, p := range siNotationPrefixes[1:] {
		if abs(p.exp-exp) < abs(best.exp-exp) {
			best = p
		}
	}
	adjusted := v / math.Pow10(best.exp)

	r := numberResult(v)
	r.Unit = best.prefix + unit
	r.Value = strings.TrimSpace(fmt.Sprintf("%.2f %s", adjusted, r.Unit))
	return r
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
