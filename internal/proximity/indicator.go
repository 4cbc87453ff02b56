package proximity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/parking.assist/internal/gpio"
)

// IndicatorBank drives the red, yellow and green lines so that at most one
// is lit. It is used by a single writer; Shutdown may be called from any
// goroutine.
type IndicatorBank struct {
	lines [3]gpio.OutputLine

	mu           sync.Mutex
	shown        Band
	known        bool
	stopped      bool
	shutdownOnce sync.Once
	offErr       error
}

// NewIndicatorBank wraps the three indicator lines.
func NewIndicatorBank(red, yellow, green gpio.OutputLine) *IndicatorBank {
	return &IndicatorBank{lines: [3]gpio.OutputLine{Red: red, Yellow: yellow, Green: green}}
}

// Show lights the indicator for b. Lines that must go dark are switched off
// before the target is switched on, so two lights are never on together.
// Showing the band already shown writes nothing, and so does every call
// after Shutdown.
func (ib *IndicatorBank) Show(b Band) error {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.stopped || (ib.known && ib.shown == b) {
		return nil
	}
	target, lit := IndicatorFor(b)
	for c, line := range ib.lines {
		if lit && Colour(c) == target {
			continue
		}
		if err := line.Set(gpio.Low); err != nil {
			ib.known = false
			return fmt.Errorf("%s off: %w", Colour(c), err)
		}
	}
	if lit {
		if err := ib.lines[target].Set(gpio.High); err != nil {
			ib.known = false
			return fmt.Errorf("%s on: %w", target, err)
		}
	}
	ib.shown, ib.known = b, true
	return nil
}

// Shown returns the band last shown successfully.
func (ib *IndicatorBank) Shown() (Band, bool) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.shown, ib.known
}

// AllOff switches every indicator off.
func (ib *IndicatorBank) AllOff() error {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.allOffLocked()
}

func (ib *IndicatorBank) allOffLocked() error {
	var errs []error
	for c, line := range ib.lines {
		if err := line.Set(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("%s off: %w", Colour(c), err))
		}
	}
	ib.known = false
	return errors.Join(errs...)
}

// Shutdown switches every indicator off and keeps them off: later calls to
// Show are ignored. Only the first call writes to the lines; every call
// returns the first result.
func (ib *IndicatorBank) Shutdown() error {
	ib.shutdownOnce.Do(func() {
		ib.mu.Lock()
		defer ib.mu.Unlock()
		ib.stopped = true
		ib.offErr = ib.allOffLocked()
	})
	return ib.offErr
}
