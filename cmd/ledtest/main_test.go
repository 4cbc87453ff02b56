package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/timeutil"
)

var epoch = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func mockLEDs() ([]led, []*gpio.MockLine) {
	chip := gpio.NewMockChip()
	leds, err := acquire(chip, []int{15, 12, 13})
	if err != nil {
		panic(err)
	}
	return leds, []*gpio.MockLine{chip.Line(15), chip.Line(12), chip.Line(13)}
}

func TestRun_BlinkSequence(t *testing.T) {
	leds, lines := mockLEDs()
	clock := timeutil.NewMockClock(epoch)
	var out bytes.Buffer

	if err := run(context.Background(), &out, leds, clock, 5, 500*time.Millisecond); err != nil {
		t.Fatalf("run: %v", err)
	}

	// 5 solo blinks + 5 group blinks + final off
	for i, l := range lines {
		h := l.History()
		if len(h) != 21 {
			t.Errorf("line %d: %d writes, want 21", i, len(h))
		}
		if l.Level() != gpio.Low {
			t.Errorf("line %d left on", i)
		}
	}
	// 3 LEDs x 5 blinks x 2 waits + 5 group blinks x 2 waits
	if got := len(clock.Waits()); got != 40 {
		t.Errorf("waits = %d, want 40", got)
	}
	if got := clock.Since(epoch); got != 20*time.Second {
		t.Errorf("elapsed = %v, want 20s", got)
	}
	if !strings.Contains(out.String(), "GPIO 12 ON") || !strings.Contains(out.String(), "Blinking all LEDs together") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRun_CancelledTurnsEverythingOff(t *testing.T) {
	leds, lines := mockLEDs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, &bytes.Buffer{}, leds, timeutil.NewMockClock(epoch), 5, 500*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	for i, l := range lines {
		if l.Level() != gpio.Low {
			t.Errorf("line %d left on after cancel", i)
		}
	}
}

func TestRun_LineError(t *testing.T) {
	leds, lines := mockLEDs()
	lines[1].SetError = errors.New("EBUSY")

	err := run(context.Background(), &bytes.Buffer{}, leds, timeutil.NewMockClock(epoch), 1, time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "gpio 12") {
		t.Fatalf("err = %v, want gpio 12 failure", err)
	}
	if lines[0].Level() != gpio.Low {
		t.Error("red left on")
	}
}

func TestAcquire_ReleasesOnFailure(t *testing.T) {
	chip := gpio.NewMockChip()
	chip.SetUnavailable(13)

	if _, err := acquire(chip, []int{15, 12, 13}); !errors.Is(err, gpio.ErrLineUnavailable) {
		t.Fatalf("err = %v, want ErrLineUnavailable", err)
	}
	if !chip.Line(15).Closed() || !chip.Line(12).Closed() {
		t.Error("acquired lines not released")
	}
}
