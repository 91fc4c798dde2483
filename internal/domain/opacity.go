package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const DefaultOpacity Opacity = 0.8

var ErrInvalidOpacity = errors.New("invalid opacity")

// Opacity is the weight applied to the frame's alpha channel, in [0,1].
type Opacity float64

// ParseOpacity parses a decimal opacity. Finite values outside [0,1] are
// clamped and reported through clamped; non-numeric, NaN and infinite input
// is rejected.
func ParseOpacity(raw string) (o Opacity, clamped bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, fmt.Errorf("%w: empty value", ErrInvalidOpacity)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q is not a number", ErrInvalidOpacity, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%w: %q is not finite", ErrInvalidOpacity, raw)
	}

	o, clamped = Opacity(v).Clamp()
	return o, clamped, nil
}

func (o Opacity) Clamp() (Opacity, bool) {
	switch {
	case o < 0:
		return 0, true
	case o > 1:
		return 1, true
	default:
		return o, false
	}
}

func (o Opacity) String() string {
	return strconv.FormatFloat(float64(o), 'f', -1, 64)
}
