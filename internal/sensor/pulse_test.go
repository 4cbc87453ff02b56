package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/parking.assist/internal/gpio"
	"github.com/banshee-data/parking.assist/internal/timeutil"
)

var epoch = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func newSimulatedTimer(profiles ...EchoProfile) (*PulseTimer, *Simulator, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(epoch)
	sim := NewSimulator(clock, Script(profiles...))
	return NewPulseTimer(sim.TriggerLine(), sim.EchoLine(), clock), sim, clock
}

func TestMeasure_TimesEchoWidth(t *testing.T) {
	for _, width := range []time.Duration{
		500 * time.Microsecond,
		1300 * time.Microsecond,
		3 * time.Millisecond,
		58 * time.Microsecond,
	} {
		t.Run(width.String(), func(t *testing.T) {
			timer, sim, _ := newSimulatedTimer(EchoProfile{Width: width})

			m, err := timer.Measure()
			require.NoError(t, err)
			assert.False(t, m.TimedOut)
			assert.Equal(t, StageNone, m.Stage)
			assert.Equal(t, width, m.Echo)
			assert.Equal(t, 1, sim.Pulses())
		})
	}
}

func TestMeasure_TriggerProtocol(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	trigger := &gpio.MockLine{}
	// the echo never rises; the simulator still charges each read to the clock
	sim := NewSimulator(clock, Script(EchoProfile{NoRise: true}))
	timer := NewPulseTimer(trigger, sim.EchoLine(), clock)
	timer.Timeout = time.Millisecond

	_, err := timer.Measure()
	require.NoError(t, err)

	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High, gpio.Low}, trigger.History())
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2)
	assert.GreaterOrEqual(t, sleeps[0], 10*time.Microsecond, "settle time")
	assert.Equal(t, 10*time.Microsecond, sleeps[1], "pulse width")
}

func TestMeasure_PulseWidthSeenBySensor(t *testing.T) {
	timer, sim, _ := newSimulatedTimer(EchoProfile{Width: time.Millisecond})

	_, err := timer.Measure()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Microsecond, sim.LastPulseWidth())
}

func TestMeasure_TimeoutWaitingForRise(t *testing.T) {
	timer, _, clock := newSimulatedTimer(EchoProfile{NoRise: true})
	before := clock.Now()

	m, err := timer.Measure()
	require.NoError(t, err)
	assert.True(t, m.TimedOut)
	assert.Equal(t, StageRise, m.Stage)
	assert.Zero(t, m.Echo)

	// bounded: gave up shortly after the 100ms window
	elapsed := clock.Since(before)
	assert.Greater(t, elapsed, DefaultEchoTimeout)
	assert.Less(t, elapsed, DefaultEchoTimeout+time.Millisecond)
}

func TestMeasure_TimeoutWaitingForFall(t *testing.T) {
	timer, _, _ := newSimulatedTimer(EchoProfile{NoFall: true})

	m, err := timer.Measure()
	require.NoError(t, err)
	assert.True(t, m.TimedOut)
	assert.Equal(t, StageFall, m.Stage)
}

func TestMeasure_EchoJustInsideTimeout(t *testing.T) {
	timer, _, _ := newSimulatedTimer(EchoProfile{Width: 90 * time.Millisecond})

	m, err := timer.Measure()
	require.NoError(t, err)
	assert.False(t, m.TimedOut)
	assert.Equal(t, 90*time.Millisecond, m.Echo)
}

func TestMeasure_ConsecutiveCycles(t *testing.T) {
	timer, sim, _ := newSimulatedTimer(
		EchoProfile{Width: 500 * time.Microsecond},
		EchoProfile{NoRise: true},
		EchoProfile{Width: 1300 * time.Microsecond},
	)

	m, err := timer.Measure()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Microsecond, m.Echo)

	m, err = timer.Measure()
	require.NoError(t, err)
	assert.True(t, m.TimedOut)

	m, err = timer.Measure()
	require.NoError(t, err)
	assert.Equal(t, 1300*time.Microsecond, m.Echo)
	assert.Equal(t, 3, sim.Pulses())
}

func TestMeasure_LineErrors(t *testing.T) {
	boom := errors.New("EIO")

	t.Run("trigger", func(t *testing.T) {
		trigger := &gpio.MockLine{SetError: boom}
		timer := NewPulseTimer(trigger, &gpio.MockLine{}, timeutil.NewMockClock(epoch))

		_, err := timer.Measure()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("echo", func(t *testing.T) {
		echo := &gpio.MockLine{GetError: boom}
		timer := NewPulseTimer(&gpio.MockLine{}, echo, timeutil.NewMockClock(epoch))

		_, err := timer.Measure()
		assert.ErrorIs(t, err, boom)
	})
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "none", StageNone.String())
	assert.Equal(t, "rise", StageRise.String())
	assert.Equal(t, "fall", StageFall.String())
}
