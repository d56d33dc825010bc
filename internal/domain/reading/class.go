package reading

import (
	"fmt"
	"strconv"
	"time"
)

// TimeLayout renders sink timestamps as HH:MM:SS.
const TimeLayout = "15:04:05"

// NormalRange is the interval a value should stay in. Both bounds alert.
type NormalRange struct {
	Low  float64
	High float64
}

// Alerts reports whether v is at or beyond either bound.
func (r NormalRange) Alerts(v float64) bool {
	return v >= r.High || v <= r.Low
}

func (r NormalRange) String() string {
	return fmt.Sprintf("(%g, %g)", r.Low, r.High)
}

// ParseFunc converts a queued token back into its numeric value.
type ParseFunc func(token string) (float64, error)

// Class groups what differs between the pH and temperature pipelines.
type Class struct {
	Name  string
	Range NormalRange
	Parse ParseFunc
}

const (
	PHName          = "ph"
	TemperatureName = "temperature"
)

// Default normal ranges.
var (
	DefaultPHRange          = NormalRange{Low: 6.0, High: 8.0}
	DefaultTemperatureRange = NormalRange{Low: 20, High: 31.6}
)

// PH returns the pH class: float tokens parsed as floats.
func PH(r NormalRange) Class {
	return Class{Name: PHName, Range: r, Parse: ParseFloat}
}

// Temperature returns the temperature class: integer tokens parsed as integers.
func Temperature(r NormalRange) Class {
	return Class{Name: TemperatureName, Range: r, Parse: ParseInteger}
}

// ClassName returns the name of the class readings of kind k are routed to.
// Invalid readings belong to no class.
func ClassName(k Kind) (string, bool) {
	switch k {
	case Float:
		return PHName, true
	case Integer:
		return TemperatureName, true
	default:
		return "", false
	}
}

// ParseFloat parses a pH token.
func ParseFloat(token string) (float64, error) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a float", ErrInvalid, token)
	}
	return v, nil
}

// ParseInteger parses a temperature token.
func ParseInteger(token string) (float64, error) {
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalid, token)
	}
	return float64(v), nil
}

// FormatLine renders one sink line: "<token> <HH:MM:SS>".
func FormatLine(token string, at time.Time) string {
	return token + " " + at.Format(TimeLayout)
}
