package reading

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalid  = errors.New("invalid reading")
	ErrNegative = errors.New("negative reading")
)

// Mode pins how permissive float parsing is.
type Mode int

const (
	// Lenient accepts any Go float literal, exponents included.
	Lenient Mode = iota
	// Strict accepts plain decimal notation only.
	Strict
)

// String returns the string representation of the mode
func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

var plainDecimal = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// Classify maps a raw token to a Reading. Integers win over floats, so "5"
// is an Integer reading.
func Classify(token string, mode Mode) Reading {
	token = strings.TrimSpace(token)
	r := Reading{Token: token}
	if token == "" {
		return r
	}

	if v, err := strconv.ParseInt(token, 10, 64); err == nil {
		r.Kind = Integer
		r.Value = float64(v)
		return r
	}

	if mode == Strict && !plainDecimal.MatchString(token) {
		return r
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return r
	}
	r.Kind = Float
	r.Value = v
	return r
}

// Routable reports why a reading must not be enqueued, or nil.
func Routable(r Reading) error {
	switch {
	case r.Kind == Invalid:
		return ErrInvalid
	case r.Value < 0:
		return ErrNegative
	default:
		return nil
	}
}
