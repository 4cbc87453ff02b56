// Command ledtest blinks each indicator LED in turn and then all of them
// together, to check the wiring before running parkassist.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/timeutil"
)

var (
	backend    = flag.String("backend", "cdev", "GPIO backend: cdev or periph")
	chipName   = flag.String("chip", "gpiochip0", "GPIO chip (cdev backend)")
	periphBase = flag.Int("periph-base", 0, "Added to line offsets to form periph pin names")
	blinks     = flag.Int("blinks", 5, "Blinks per step")
	halfPeriod = flag.Duration("half-period", 500*time.Millisecond, "On time and off time of each blink")
)

type led struct {
	offset int
	line   gpio.OutputLine
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, clock timeutil.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

func setAll(leds []led, v gpio.Level) error {
	var errs []error
	for _, l := range leds {
		if err := l.line.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("gpio %d: %w", l.offset, err))
		}
	}
	return errors.Join(errs...)
}

// run blinks every LED n times on its own, then all together n times. All
// LEDs are off when it returns, including after ctx is cancelled.
func run(ctx context.Context, w io.Writer, leds []led, clock timeutil.Clock, n int, half time.Duration) (err error) {
	defer func() {
		if offErr := setAll(leds, gpio.Low); offErr != nil {
			err = errors.Join(err, offErr)
		}
	}()

	for _, l := range leds {
		fmt.Fprintf(w, "Testing GPIO %d\n", l.offset)
		for i := 0; i < n; i++ {
			if err := l.line.Set(gpio.High); err != nil {
				return fmt.Errorf("gpio %d: %w", l.offset, err)
			}
			fmt.Fprintf(w, "  GPIO %d ON\n", l.offset)
			if err := wait(ctx, clock, half); err != nil {
				return err
			}
			if err := l.line.Set(gpio.Low); err != nil {
				return fmt.Errorf("gpio %d: %w", l.offset, err)
			}
			fmt.Fprintf(w, "  GPIO %d OFF\n", l.offset)
			if err := wait(ctx, clock, half); err != nil {
				return err
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Blinking all LEDs together...\n\n")
	for i := 0; i < n; i++ {
		if err := setAll(leds, gpio.High); err != nil {
			return err
		}
		if err := wait(ctx, clock, half); err != nil {
			return err
		}
		if err := setAll(leds, gpio.Low); err != nil {
			return err
		}
		if err := wait(ctx, clock, half); err != nil {
			return err
		}
	}
	return nil
}

func openChip() (gpio.Chip, error) {
	switch *backend {
	case "cdev":
		return gpio.OpenCdevChip(*chipName)
	case "periph":
		return gpio.OpenPeriphChip(*periphBase)
	default:
		return nil, fmt.Errorf("unknown backend %q", *backend)
	}
}

// acquire requests the indicator lines. On failure every line already
// requested is closed.
func acquire(chip gpio.Chip, offsets []int) ([]led, error) {
	var leds []led
	for _, off := range offsets {
		line, err := chip.Output(off, "led-test")
		if err != nil {
			release(leds)
			return nil, err
		}
		leds = append(leds, led{offset: off, line: line})
	}
	return leds, nil
}

func release(leds []led) {
	for _, l := range leds {
		l.line.Close()
	}
}

func main() {
	flag.Parse()

	chip, err := openChip()
	if err != nil {
		log.Fatalf("failed to open gpio chip: %v", err)
	}
	defer chip.Close()

	pins := gpio.DefaultPins()
	offsets := []int{pins.Red, pins.Yellow, pins.Green}
	leds, err := acquire(chip, offsets)
	if err != nil {
		chip.Close()
		log.Fatalf("failed to request led lines: %v", err)
	}
	defer release(leds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nTesting LEDs on GPIO lines %v\n", offsets)
	fmt.Printf("Press Ctrl+C to stop.\n\n")

	err = run(ctx, os.Stdout, leds, timeutil.RealClock{}, *blinks, *halfPeriod)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("\nLED test stopped by user.")
	case err != nil:
		log.Printf("LED test failed: %v", err)
	}
	fmt.Println("\nGPIO cleanup done. All LEDs off.")
}
