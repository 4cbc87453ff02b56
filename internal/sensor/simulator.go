package sensor

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/timeutil"
)

// DefaultEchoDelay approximates the time the module spends sending its
// sonic burst between the trigger falling and the echo rising.
const DefaultEchoDelay = 200 * time.Microsecond

var errSimulatorClosed = errors.New("simulated sensor line closed")

// EchoProfile scripts the echo of one simulated ranging cycle.
type EchoProfile struct {
	Width time.Duration
	// NoRise keeps the echo low: nothing in range.
	NoRise bool
	// NoFall raises the echo and never lowers it.
	NoFall bool
}

// EchoFor returns the profile an obstacle at d produces.
func EchoFor(d Distance) EchoProfile {
	if !d.Valid() {
		return EchoProfile{NoRise: true}
	}
	return EchoProfile{Width: time.Duration(float64(d) / HalfSpeedOfSound * float64(time.Second))}
}

// Script returns a profile source that yields profiles in order and then
// repeats the last one.
func Script(profiles ...EchoProfile) func() EchoProfile {
	var mu sync.Mutex
	i := 0
	return func() EchoProfile {
		mu.Lock()
		defer mu.Unlock()
		if len(profiles) == 0 {
			return EchoProfile{NoRise: true}
		}
		p := profiles[i]
		if i < len(profiles)-1 {
			i++
		}
		return p
	}
}

// Sweep returns a profile source for dev mode: an obstacle that approaches
// from far to 5 cm and backs away again over period, with every dropEvery-th
// cycle losing its echo. dropEvery <= 0 never drops.
func Sweep(clock timeutil.Clock, period time.Duration, dropEvery int) func() EchoProfile {
	const nearest, farthest = 5.0, 80.0
	start := clock.Now()
	var mu sync.Mutex
	n := 0
	return func() EchoProfile {
		mu.Lock()
		n++
		drop := dropEvery > 0 && n%dropEvery == 0
		mu.Unlock()
		if drop {
			return EchoProfile{NoRise: true}
		}
		phase := math.Mod(float64(clock.Since(start))/float64(period), 1)
		// triangle wave: far -> near -> far
		tri := math.Abs(2*phase - 1)
		return EchoFor(Distance(nearest + tri*(farthest-nearest)))
	}
}

// Simulator stands in for the ranging module. Its trigger and echo lines
// behave like the real ones: each falling edge on the trigger starts a cycle
// whose echo follows the next profile from the source.
type Simulator struct {
	clock  timeutil.Clock
	source func() EchoProfile

	// Delay between the trigger falling and the echo rising.
	Delay time.Duration
	// PollCost is charged to the clock on every echo read when the clock
	// implements timeutil.Advancer, so busy-waits progress on a mock clock.
	PollCost time.Duration

	mu        sync.Mutex
	trigger   gpio.Level
	raisedAt  time.Time
	fired     bool
	firedAt   time.Time
	current   EchoProfile
	pulses    int
	lastWidth time.Duration
	closed    bool
}

// NewSimulator builds a Simulator reading time from clock.
func NewSimulator(clock timeutil.Clock, source func() EchoProfile) *Simulator {
	return &Simulator{
		clock:    clock,
		source:   source,
		Delay:    DefaultEchoDelay,
		PollCost: time.Microsecond,
	}
}

// TriggerLine returns the simulated trigger input of the module.
func (s *Simulator) TriggerLine() gpio.OutputLine { return simTrigger{s} }

// EchoLine returns the simulated echo output of the module.
func (s *Simulator) EchoLine() gpio.InputLine { return simEcho{s} }

// Pulses returns how many trigger pulses have been seen.
func (s *Simulator) Pulses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulses
}

// LastPulseWidth returns how long the trigger was held high last time.
func (s *Simulator) LastPulseWidth() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWidth
}

func (s *Simulator) setTrigger(v gpio.Level) error {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSimulatorClosed
	}
	switch {
	case s.trigger == gpio.Low && v == gpio.High:
		s.raisedAt = now
	case s.trigger == gpio.High && v == gpio.Low:
		s.lastWidth = now.Sub(s.raisedAt)
		s.fired = true
		s.firedAt = now
		s.current = s.source()
		s.pulses++
	}
	s.trigger = v
	return nil
}

func (s *Simulator) echo() (gpio.Level, error) {
	if a, ok := s.clock.(timeutil.Advancer); ok && s.PollCost > 0 {
		a.Advance(s.PollCost)
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return gpio.Low, errSimulatorClosed
	}
	if !s.fired || s.current.NoRise {
		return gpio.Low, nil
	}
	rise := s.firedAt.Add(s.Delay)
	if now.Before(rise) {
		return gpio.Low, nil
	}
	if s.current.NoFall || now.Before(rise.Add(s.current.Width)) {
		return gpio.High, nil
	}
	return gpio.Low, nil
}

func (s *Simulator) close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type simTrigger struct{ s *Simulator }

func (t simTrigger) Set(v gpio.Level) error { return t.s.setTrigger(v) }
func (t simTrigger) Close() error           { return t.s.close() }

type simEcho struct{ s *Simulator }

func (e simEcho) Get() (gpio.Level, error) { return e.s.echo() }
func (e simEcho) Close() error             { return e.s.close() }
