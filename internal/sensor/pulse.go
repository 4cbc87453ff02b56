// Package sensor talks to an HC-SR04 style ultrasonic ranging module: it
// fires the trigger pulse, times the echo pulse and converts the echo width
// into a distance.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
package sensor

import (
	"fmt"
	"time"

	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/timeutil"
)

const (
	// DefaultSettleTime holds the trigger low before each pulse so the
	// module sees a clean rising edge.
	DefaultSettleTime = 10 * time.Microsecond
	// DefaultPulseWidth is the trigger pulse that starts a ranging cycle.
	DefaultPulseWidth = 10 * time.Microsecond
	// DefaultEchoTimeout bounds each echo polling phase. A ranging cycle with
	// nothing in range never raises the echo; this keeps the loop live.
	DefaultEchoTimeout = 100 * time.Millisecond
)

// Stage names the echo polling phase a timeout happened in.
type Stage int

const (
	StageNone Stage = iota
	// StageRise: the echo never went high (nothing in range or no sensor).
	StageRise
	// StageFall: the echo never went low again (saturated or corrupt).
	StageFall
)

func (s Stage) String() string {
	switch s {
	case StageRise:
		return "rise"
	case StageFall:
		return "fall"
	default:
		return "none"
	}
}

// Measurement is the outcome of one ranging cycle.
type Measurement struct {
	// Echo is the width of the echo pulse. Zero when TimedOut.
	Echo     time.Duration
	TimedOut bool
	Stage    Stage
}

// Measured returns a successful Measurement.
func Measured(echo time.Duration) Measurement {
	return Measurement{Echo: echo}
}

// Timeout returns a timed-out Measurement for the given stage.
func Timeout(stage Stage) Measurement {
	return Measurement{TimedOut: true, Stage: stage}
}

// PulseTimer drives the trigger line and times the echo line. It busy-waits
// on the echo with a deadline rather than using edge interrupts; sub
// millisecond jitter from scheduling is tolerated.
type PulseTimer struct {
	Trigger gpio.OutputLine
	Echo    gpio.InputLine
	Clock   timeutil.Clock

	SettleTime time.Duration
	PulseWidth time.Duration
	Timeout    time.Duration
}

// NewPulseTimer returns a PulseTimer with the default timings.
func NewPulseTimer(trigger gpio.OutputLine, echo gpio.InputLine, clock timeutil.Clock) *PulseTimer {
	return &PulseTimer{
		Trigger:    trigger,
		Echo:       echo,
		Clock:      clock,
		SettleTime: DefaultSettleTime,
		PulseWidth: DefaultPulseWidth,
		Timeout:    DefaultEchoTimeout,
	}
}

// Measure runs one ranging cycle. A missing or stuck echo is reported as a
// timed-out Measurement, not an error; errors are line I/O failures only.
func (p *PulseTimer) Measure() (Measurement, error) {
	if err := p.Trigger.Set(gpio.Low); err != nil {
		return Measurement{}, fmt.Errorf("trigger low: %w", err)
	}
	p.Clock.Sleep(p.SettleTime)
	if err := p.Trigger.Set(gpio.High); err != nil {
		return Measurement{}, fmt.Errorf("trigger high: %w", err)
	}
	p.Clock.Sleep(p.PulseWidth)
	if err := p.Trigger.Set(gpio.Low); err != nil {
		return Measurement{}, fmt.Errorf("trigger low: %w", err)
	}

	start, ok, err := p.waitFor(gpio.High)
	if err != nil {
		return Measurement{}, err
	}
	if !ok {
		return Timeout(StageRise), nil
	}

	end, ok, err := p.waitFor(gpio.Low)
	if err != nil {
		return Measurement{}, err
	}
	if !ok {
		return Timeout(StageFall), nil
	}

	return Measured(end.Sub(start)), nil
}

// waitFor polls the echo until it reads want and returns the instant it was
// first seen. ok is false if the phase exceeded the timeout.
func (p *PulseTimer) waitFor(want gpio.Level) (at time.Time, ok bool, err error) {
	began := p.Clock.Now()
	for {
		v, err := p.Echo.Get()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("echo read: %w", err)
		}
		now := p.Clock.Now()
		if v == want {
			return now, true, nil
		}
		if now.Sub(began) > p.Timeout {
			return time.Time{}, false, nil
		}
	}
}
