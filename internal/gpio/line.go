// Package gpio abstracts the digital lines the appliance drives: one trigger
// output, one echo input and three indicator outputs. Lines are addressed by
// chip and line offset, the way libgpiod addresses them. The abstraction
// enables unit testing without real hardware.
package gpio

import (
	"errors"
	"io"
)

// ErrLineUnavailable is returned when a line cannot be requested, typically
// because another consumer holds it or the offset does not exist.
var ErrLineUnavailable = errors.New("gpio line unavailable")

// Level is the logical value of a line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// OutputLine is a requested line configured as an output.
type OutputLine interface {
	Set(Level) error
	io.Closer
}

// InputLine is a requested line configured as an input.
type InputLine interface {
	Get() (Level, error)
	io.Closer
}

// Chip hands out lines by offset. consumer is the label other processes see
// for a held line.
type Chip interface {
	Output(offset int, consumer string) (OutputLine, error)
	Input(offset int, consumer string) (InputLine, error)
	io.Closer
}
