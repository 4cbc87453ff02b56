package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// Pins holds the line offsets of every line the appliance uses.
type Pins struct {
	Trigger int `json:"trigger"`
	Echo    int `json:"echo"`
	Red     int `json:"red"`
	Yellow  int `json:"yellow"`
	Green   int `json:"green"`
}

// DefaultPins matches the Ox64 wiring.
func DefaultPins() Pins {
	return Pins{Trigger: 30, Echo: 31, Red: 15, Yellow: 12, Green: 13}
}

// Validate rejects pin maps that reuse an offset.
func (p Pins) Validate() error {
	seen := make(map[int]string, 5)
	for _, l := range []struct {
		name   string
		offset int
	}{
		{"trigger", p.Trigger}, {"echo", p.Echo},
		{"red", p.Red}, {"yellow", p.Yellow}, {"green", p.Green},
	} {
		if l.offset < 0 {
			return fmt.Errorf("%s line offset must be non-negative, got %d", l.name, l.offset)
		}
		if other, ok := seen[l.offset]; ok {
			return fmt.Errorf("%s and %s share line offset %d", other, l.name, l.offset)
		}
		seen[l.offset] = l.name
	}
	return nil
}

// Board owns every requested line plus the chip they came from. It is the
// single place lines are released.
type Board struct {
	Trigger OutputLine
	Echo    InputLine
	Red     OutputLine
	Yellow  OutputLine
	Green   OutputLine

	chip      Chip
	closeOnce sync.Once
	closeErr  error
}

// OpenBoard requests all lines in pins from chip and takes ownership of chip.
// If any line cannot be requested the lines acquired so far are released,
// the chip is closed, and the error is returned: the caller must not start
// sensing without every line.
func OpenBoard(chip Chip, pins Pins) (*Board, error) {
	if err := pins.Validate(); err != nil {
		chip.Close()
		return nil, err
	}

	b := &Board{chip: chip}
	var err error
	if b.Trigger, err = chip.Output(pins.Trigger, "trig"); err != nil {
		return nil, b.abort(err)
	}
	if b.Echo, err = chip.Input(pins.Echo, "echo"); err != nil {
		return nil, b.abort(err)
	}
	if b.Red, err = chip.Output(pins.Red, "red"); err != nil {
		return nil, b.abort(err)
	}
	if b.Yellow, err = chip.Output(pins.Yellow, "yellow"); err != nil {
		return nil, b.abort(err)
	}
	if b.Green, err = chip.Output(pins.Green, "green"); err != nil {
		return nil, b.abort(err)
	}
	return b, nil
}

func (b *Board) abort(err error) error {
	if cerr := b.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Indicators returns the red, yellow and green lines in that order.
func (b *Board) Indicators() (red, yellow, green OutputLine) {
	return b.Red, b.Yellow, b.Green
}

// Close drives the trigger low and releases every line and the chip. Only
// the first call does any work; later calls return the first result.
func (b *Board) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if b.Trigger != nil {
			errs = append(errs, b.Trigger.Set(Low))
		}
		for _, c := range []interface{ Close() error }{b.Trigger, b.Echo, b.Red, b.Yellow, b.Green} {
			if c == nil {
				continue
			}
			errs = append(errs, c.Close())
		}
		errs = append(errs, b.chip.Close())
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}
