package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevChip requests lines through the Linux GPIO character device
// (/dev/gpiochipN).
type CdevChip struct {
	chip *gpiocdev.Chip
}

// OpenCdevChip opens the named chip, e.g. "gpiochip0".
func OpenCdevChip(name string) (*CdevChip, error) {
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &CdevChip{chip: c}, nil
}

// Output requests offset as an output, initially low.
func (c *CdevChip) Output(offset int, consumer string) (OutputLine, error) {
	l, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("%w: %s line %d (%s): %v", ErrLineUnavailable, c.chip.Name, offset, consumer, err)
	}
	return &cdevLine{line: l}, nil
}

// Input requests offset as an input.
func (c *CdevChip) Input(offset int, consumer string) (InputLine, error) {
	l, err := c.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("%w: %s line %d (%s): %v", ErrLineUnavailable, c.chip.Name, offset, consumer, err)
	}
	return &cdevLine{line: l}, nil
}

func (c *CdevChip) Close() error {
	return c.chip.Close()
}

type cdevLine struct {
	line *gpiocdev.Line
}

func (l *cdevLine) Set(v Level) error {
	return l.line.SetValue(int(v))
}

func (l *cdevLine) Get() (Level, error) {
	v, err := l.line.Value()
	if err != nil {
		return Low, err
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

func (l *cdevLine) Close() error {
	return l.line.Close()
}
