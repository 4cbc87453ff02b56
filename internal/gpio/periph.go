package gpio

import (
	"fmt"
	"strconv"
	"sync"

	pgpio "periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// PeriphChip resolves lines through the periph.io pin registry. Offsets are
// added to base and looked up as "GPIO<n>", which is how the sysfs driver
// names pins on boards without a character device.
type PeriphChip struct {
	base   int
	lookup func(name string) pgpio.PinIO

	mu   sync.Mutex
	held map[string]bool
}

// OpenPeriphChip initialises the periph host drivers.
func OpenPeriphChip(base int) (*PeriphChip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return newPeriphChip(base, gpioreg.ByName), nil
}

func newPeriphChip(base int, lookup func(string) pgpio.PinIO) *PeriphChip {
	return &PeriphChip{base: base, lookup: lookup, held: make(map[string]bool)}
}

func (c *PeriphChip) pin(offset int, consumer string) (pgpio.PinIO, string, error) {
	name := "GPIO" + strconv.Itoa(c.base+offset)
	p := c.lookup(name)
	if p == nil {
		return nil, "", fmt.Errorf("%w: no pin named %s (%s)", ErrLineUnavailable, name, consumer)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[name] {
		return nil, "", fmt.Errorf("%w: %s already requested (%s)", ErrLineUnavailable, name, consumer)
	}
	c.held[name] = true
	return p, name, nil
}

func (c *PeriphChip) release(name string) {
	c.mu.Lock()
	delete(c.held, name)
	c.mu.Unlock()
}

// Output configures the pin as an output driven low.
func (c *PeriphChip) Output(offset int, consumer string) (OutputLine, error) {
	p, name, err := c.pin(offset, consumer)
	if err != nil {
		return nil, err
	}
	if err := p.Out(pgpio.Low); err != nil {
		c.release(name)
		return nil, fmt.Errorf("%w: %s as output: %v", ErrLineUnavailable, name, err)
	}
	return &periphLine{chip: c, name: name, pin: p}, nil
}

// Input configures the pin as an input. Pull is left alone: the sysfs driver
// rejects any other setting.
func (c *PeriphChip) Input(offset int, consumer string) (InputLine, error) {
	p, name, err := c.pin(offset, consumer)
	if err != nil {
		return nil, err
	}
	if err := p.In(pgpio.PullNoChange, pgpio.NoEdge); err != nil {
		c.release(name)
		return nil, fmt.Errorf("%w: %s as input: %v", ErrLineUnavailable, name, err)
	}
	return &periphLine{chip: c, name: name, pin: p}, nil
}

// Close is a no-op; periph has no chip handle to release.
func (c *PeriphChip) Close() error { return nil }

type periphLine struct {
	chip *PeriphChip
	name string
	pin  pgpio.PinIO
}

func (l *periphLine) Set(v Level) error {
	return l.pin.Out(pgpio.Level(v == High))
}

func (l *periphLine) Get() (Level, error) {
	if l.pin.Read() == pgpio.High {
		return High, nil
	}
	return Low, nil
}

func (l *periphLine) Close() error {
	defer l.chip.release(l.name)
	return l.pin.Halt()
}
