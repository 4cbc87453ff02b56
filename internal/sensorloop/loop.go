// Package sensorloop runs the measure, classify, publish and display cycle.
// The Loop is the only writer of the shared reading and the only user of the
// sensor and indicator lines.
package sensorloop

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/parking.assist/internal/monitoring"
	"github.com/banshee-data/parking.assist/internal/proximity"
	"github.com/banshee-data/parking.assist/internal/reading"
	"github.com/banshee-data/parking.assist/internal/sensor"
	"github.com/banshee-data/parking.assist/internal/timeutil"
)

// DefaultInterval is the pause between ranging cycles.
const DefaultInterval = 200 * time.Millisecond

// Pulser runs one ranging cycle. *sensor.PulseTimer implements it.
type Pulser interface {
	Measure() (sensor.Measurement, error)
}

// Indicator shows a band. *proximity.IndicatorBank implements it.
type Indicator interface {
	Show(proximity.Band) error
	Shutdown() error
}

// Observer is told about every cycle. *metrics.Metrics implements it.
type Observer interface {
	Measured(m sensor.Measurement, d sensor.Distance)
	Failed(err error)
	BandChanged(from, to proximity.Band)
}

type nopObserver struct{}

func (nopObserver) Measured(sensor.Measurement, sensor.Distance) {}
func (nopObserver) Failed(error)                                 {}
func (nopObserver) BandChanged(proximity.Band, proximity.Band)   {}

// Loop ties a Pulser to a Store and an Indicator.
type Loop struct {
	Pulser     Pulser
	Thresholds proximity.Thresholds
	Store      *reading.Store
	Indicators Indicator
	Clock      timeutil.Clock
	Interval   time.Duration
	Observer   Observer

	band proximity.Band

	shutdownOnce sync.Once
	shutdownErr  error
}

// New returns a Loop with the default interval and no observer.
func New(p Pulser, th proximity.Thresholds, store *reading.Store, ind Indicator, clock timeutil.Clock) *Loop {
	return &Loop{
		Pulser:     p,
		Thresholds: th,
		Store:      store,
		Indicators: ind,
		Clock:      clock,
		Interval:   DefaultInterval,
		Observer:   nopObserver{},
		band:       proximity.Invalid,
	}
}

// Step runs one cycle. A valid distance is classified, published and shown;
// a timeout or line error publishes nothing and leaves the indicators as
// they were. published reports whether r was stored.
func (l *Loop) Step() (r reading.Reading, published bool) {
	m, err := l.Pulser.Measure()
	if err != nil {
		monitoring.Warnf("ranging cycle failed: %v", err)
		l.Observer.Failed(err)
		return reading.Reading{}, false
	}

	d := sensor.ToDistance(m)
	l.Observer.Measured(m, d)
	if !d.Valid() {
		monitoring.Debugf("no echo (%s timeout), keeping %s", m.Stage, l.band)
		return reading.Reading{}, false
	}

	band := l.Thresholds.Classify(d)
	r = reading.Reading{Distance: d, Band: band, Timestamp: l.Clock.Now()}
	l.Store.Publish(r)

	if err := l.Indicators.Show(band); err != nil {
		monitoring.Warnf("indicator update to %s failed: %v", band, err)
	}
	if band != l.band {
		monitoring.Infof("%s: %s (%s)", band, d, band.Label())
		l.Observer.BandChanged(l.band, band)
		l.band = band
	}
	return r, true
}

// Run cycles until ctx is cancelled, then switches the indicators off.
// Cancellation is checked before every trigger pulse; a cycle already in
// flight finishes or times out on its own. Run returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	defer l.Shutdown()
	monitoring.Infof("sensor loop started, interval %v", l.Interval)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Step()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.Clock.After(l.Interval):
		}
	}
}

// Shutdown switches every indicator off. It is safe to call from any
// goroutine any number of times; only the first call has an effect. A cycle
// still in flight may publish its reading but cannot light an indicator.
func (l *Loop) Shutdown() error {
	l.shutdownOnce.Do(func() {
		monitoring.Infof("sensor loop stopping, indicators off")
		l.shutdownErr = l.Indicators.Shutdown()
		if l.shutdownErr != nil {
			monitoring.Errorf("indicator shutdown: %v", l.shutdownErr)
		}
	})
	return l.shutdownErr
}
