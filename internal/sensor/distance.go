package sensor

import (
	"strconv"
	"time"
)

// HalfSpeedOfSound is the speed of sound in cm/s divided by two, since the
// echo covers the distance twice.
const HalfSpeedOfSound = 17150

// InvalidDistance is the sentinel for "no valid measurement".
const InvalidDistance Distance = -1

// Distance is a range in centimetres. Negative values are invalid.
type Distance float64

// Valid reports whether d is a real measurement.
func (d Distance) Valid() bool {
	return d >= 0
}

func (d Distance) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return strconv.FormatFloat(float64(d), 'f', 1, 64) + "cm"
}

// ToDistance converts a measurement to centimetres rounded to one decimal
// place. Timeouts map to InvalidDistance.
func ToDistance(m Measurement) Distance {
	if m.TimedOut || m.Echo < 0 {
		return InvalidDistance
	}
	return EchoToDistance(m.Echo)
}

// EchoToDistance converts an echo width to centimetres rounded half-up to one
// decimal place. The arithmetic is done in integer nanoseconds:
//
//	tenths = ns * 17150 * 10 / 1e9 = ns * 1715 / 1e7
func EchoToDistance(echo time.Duration) Distance {
	const scale = 10_000_000
	tenths := (int64(echo)*(HalfSpeedOfSound/10) + scale/2) / scale
	return Distance(float64(tenths) / 10)
}
