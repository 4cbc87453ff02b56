// Package proximity turns a distance into a proximity band and drives the
// red/yellow/green indicator bank that shows it.
package proximity

import (
	"errors"
	"fmt"

	"github.com/banshee-data/parking.assist/internal/sensor"
)

// Band is a discrete proximity category.
type Band int

const (
	// Invalid means there is no valid distance.
	Invalid Band = iota
	Near
	Mid
	Far
	Clear
)

var bandNames = map[Band]string{
	Invalid: "INVALID",
	Near:    "NEAR",
	Mid:     "MID",
	Far:     "FAR",
	Clear:   "CLEAR",
}

var bandLabels = map[Band]string{
	Invalid: "NO SIGNAL",
	Near:    "STOP - Too close!",
	Mid:     "SLOW - Careful approach",
	Far:     "GO - Safe distance",
	Clear:   "CLEAR - Optimal spacing",
}

func (b Band) String() string {
	if s, ok := bandNames[b]; ok {
		return s
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// Label is the driver-facing message for the band.
func (b Band) Label() string {
	return bandLabels[b]
}

func (b Band) MarshalText() ([]byte, error) {
	if _, ok := bandNames[b]; !ok {
		return nil, fmt.Errorf("unknown band %d", int(b))
	}
	return []byte(b.String()), nil
}

func (b *Band) UnmarshalText(text []byte) error {
	for band, name := range bandNames {
		if name == string(text) {
			*b = band
			return nil
		}
	}
	return fmt.Errorf("unknown band %q", text)
}

// Thresholds are the inclusive upper bounds, in centimetres, of the Near,
// Mid and Far bands.
type Thresholds struct {
	NearCM float64 `json:"near_cm"`
	MidCM  float64 `json:"mid_cm"`
	FarCM  float64 `json:"far_cm"`
}

// DefaultThresholds returns the 15/25/45 cm bands.
func DefaultThresholds() Thresholds {
	return Thresholds{NearCM: 15, MidCM: 25, FarCM: 45}
}

var ErrThresholds = errors.New("thresholds must be positive and strictly increasing")

// Validate checks 0 < NearCM < MidCM < FarCM.
func (t Thresholds) Validate() error {
	if t.NearCM <= 0 || t.MidCM <= t.NearCM || t.FarCM <= t.MidCM {
		return fmt.Errorf("%w: near=%v mid=%v far=%v", ErrThresholds, t.NearCM, t.MidCM, t.FarCM)
	}
	return nil
}

// Classify maps d to exactly one band. Band boundaries are inclusive on the
// near side: a distance equal to NearCM is Near.
func (t Thresholds) Classify(d sensor.Distance) Band {
	cm := float64(d)
	switch {
	case !d.Valid():
		return Invalid
	case cm <= t.NearCM:
		return Near
	case cm <= t.MidCM:
		return Mid
	case cm <= t.FarCM:
		return Far
	default:
		return Clear
	}
}

// Colour names one indicator of the bank.
type Colour int

const (
	Red Colour = iota
	Yellow
	Green
)

func (c Colour) String() string {
	switch c {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	case Green:
		return "green"
	}
	return "unknown"
}

// IndicatorFor returns the indicator lit for b. ok is false for bands that
// light nothing.
func IndicatorFor(b Band) (c Colour, ok bool) {
	switch b {
	case Near:
		return Red, true
	case Mid:
		return Yellow, true
	case Far:
		return Green, true
	}
	return 0, false
}
