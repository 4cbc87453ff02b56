package gpio

import (
	"errors"
	"fmt"
	"sync"
)

var errLineClosed = errors.New("gpio line closed")

// MockLine is an in-memory line usable as either an input or an output. It
// records every value written so tests can assert on indicator sequences.
type MockLine struct {
	mu      sync.Mutex
	level   Level
	history []Level
	closed  bool

	// SetError is returned by Set if non-nil.
	SetError error
	// GetError is returned by Get if non-nil.
	GetError error
}

// Set records v as the line level.
func (l *MockLine) Set(v Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errLineClosed
	}
	if l.SetError != nil {
		return l.SetError
	}
	l.level = v
	l.history = append(l.history, v)
	return nil
}

// Get returns the current level.
func (l *MockLine) Get() (Level, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Low, errLineClosed
	}
	if l.GetError != nil {
		return Low, l.GetError
	}
	return l.level, nil
}

// Level returns the current level without the closed check.
func (l *MockLine) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// History returns every level passed to Set, oldest first.
func (l *MockLine) History() []Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Level, len(l.history))
	copy(out, l.history)
	return out
}

func (l *MockLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (l *MockLine) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// MockChip implements Chip for tests and dev mode. Offsets without an
// attached line get a fresh MockLine on first request.
type MockChip struct {
	mu          sync.Mutex
	lines       map[int]*MockLine
	outputs     map[int]OutputLine
	inputs      map[int]InputLine
	held        map[int]bool
	unavailable map[int]bool
	closed      bool
}

// NewMockChip creates an empty MockChip.
func NewMockChip() *MockChip {
	return &MockChip{
		lines:       make(map[int]*MockLine),
		outputs:     make(map[int]OutputLine),
		inputs:      make(map[int]InputLine),
		held:        make(map[int]bool),
		unavailable: make(map[int]bool),
	}
}

// AttachOutput makes Output(offset) return line.
func (c *MockChip) AttachOutput(offset int, line OutputLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[offset] = line
}

// AttachInput makes Input(offset) return line.
func (c *MockChip) AttachInput(offset int, line InputLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs[offset] = line
}

// SetUnavailable makes requests for offset fail with ErrLineUnavailable.
func (c *MockChip) SetUnavailable(offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unavailable[offset] = true
}

// Line returns the MockLine behind offset, creating it if needed.
func (c *MockChip) Line(offset int) *MockLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lineLocked(offset)
}

func (c *MockChip) lineLocked(offset int) *MockLine {
	l, ok := c.lines[offset]
	if !ok {
		l = &MockLine{}
		c.lines[offset] = l
	}
	return l
}

func (c *MockChip) request(offset int, consumer string) error {
	if c.unavailable[offset] || c.held[offset] {
		return fmt.Errorf("%w: mock line %d (%s)", ErrLineUnavailable, offset, consumer)
	}
	c.held[offset] = true
	return nil
}

func (c *MockChip) Output(offset int, consumer string) (OutputLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.request(offset, consumer); err != nil {
		return nil, err
	}
	if l, ok := c.outputs[offset]; ok {
		return l, nil
	}
	return c.lineLocked(offset), nil
}

func (c *MockChip) Input(offset int, consumer string) (InputLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.request(offset, consumer); err != nil {
		return nil, err
	}
	if l, ok := c.inputs[offset]; ok {
		return l, nil
	}
	return c.lineLocked(offset), nil
}

func (c *MockChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *MockChip) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
