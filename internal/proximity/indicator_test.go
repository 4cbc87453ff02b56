package proximity

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/parking.assist/internal/gpio"
)

// orderedLine records writes from every line into one shared log.
type orderedLine struct {
	name string
	log  *[]string
	mu   *sync.Mutex
}

func (l orderedLine) Set(v gpio.Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.log = append(*l.log, l.name+"="+v.String())
	return nil
}

func (l orderedLine) Close() error { return nil }

func newOrderedBank() (*IndicatorBank, *[]string) {
	var log []string
	var mu sync.Mutex
	bank := NewIndicatorBank(
		orderedLine{"red", &log, &mu},
		orderedLine{"yellow", &log, &mu},
		orderedLine{"green", &log, &mu},
	)
	return bank, &log
}

func newMockBank() (*IndicatorBank, *gpio.MockLine, *gpio.MockLine, *gpio.MockLine) {
	r, y, g := &gpio.MockLine{}, &gpio.MockLine{}, &gpio.MockLine{}
	return NewIndicatorBank(r, y, g), r, y, g
}

func TestShow_AtMostOneLit(t *testing.T) {
	bank, r, y, g := newMockBank()
	for _, tc := range []struct {
		band    Band
		r, y, g gpio.Level
	}{
		{Near, gpio.High, gpio.Low, gpio.Low},
		{Mid, gpio.Low, gpio.High, gpio.Low},
		{Far, gpio.Low, gpio.Low, gpio.High},
		{Clear, gpio.Low, gpio.Low, gpio.Low},
		{Near, gpio.High, gpio.Low, gpio.Low},
		{Invalid, gpio.Low, gpio.Low, gpio.Low},
	} {
		require.NoError(t, bank.Show(tc.band))
		assert.Equal(t, tc.r, r.Level(), "red after %s", tc.band)
		assert.Equal(t, tc.y, y.Level(), "yellow after %s", tc.band)
		assert.Equal(t, tc.g, g.Level(), "green after %s", tc.band)
	}
}

func TestShow_OffBeforeOn(t *testing.T) {
	bank, log := newOrderedBank()
	require.NoError(t, bank.Show(Near))
	*log = nil

	require.NoError(t, bank.Show(Far))
	assert.Equal(t, []string{"red=low", "yellow=low", "green=high"}, *log)
}

func TestShow_UnchangedBandWritesNothing(t *testing.T) {
	bank, r, y, g := newMockBank()
	require.NoError(t, bank.Show(Mid))
	before := len(r.History()) + len(y.History()) + len(g.History())

	require.NoError(t, bank.Show(Mid))
	require.NoError(t, bank.Show(Mid))
	after := len(r.History()) + len(y.History()) + len(g.History())
	assert.Equal(t, before, after)

	shown, ok := bank.Shown()
	assert.True(t, ok)
	assert.Equal(t, Mid, shown)
}

func TestShow_LineErrorForcesRewrite(t *testing.T) {
	bank, r, y, _ := newMockBank()
	y.SetError = errors.New("EBUSY")
	assert.Error(t, bank.Show(Mid))

	_, ok := bank.Shown()
	assert.False(t, ok)

	y.SetError = nil
	require.NoError(t, bank.Show(Mid))
	assert.Equal(t, gpio.High, y.Level())
	assert.Equal(t, gpio.Low, r.Level())
}

func TestAllOff(t *testing.T) {
	bank, r, _, _ := newMockBank()
	require.NoError(t, bank.Show(Near))
	require.NoError(t, bank.AllOff())
	assert.Equal(t, gpio.Low, r.Level())

	// the next Show writes again
	require.NoError(t, bank.Show(Near))
	assert.Equal(t, gpio.High, r.Level())
}

func TestShutdown_Once(t *testing.T) {
	bank, r, y, g := newMockBank()
	require.NoError(t, bank.Show(Far))
	writes := len(r.History())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, bank.Shutdown())
		}()
	}
	wg.Wait()

	assert.Equal(t, writes+1, len(r.History()), "one off write per line")
	assert.Equal(t, gpio.Low, g.Level())
	assert.Equal(t, gpio.Low, y.Level())
}

func TestShow_AfterShutdownStaysDark(t *testing.T) {
	bank, r, y, g := newMockBank()
	require.NoError(t, bank.Shutdown())
	writes := len(r.History()) + len(y.History()) + len(g.History())

	for _, b := range []Band{Near, Mid, Far} {
		require.NoError(t, bank.Show(b))
	}
	assert.Equal(t, gpio.Low, r.Level())
	assert.Equal(t, gpio.Low, y.Level())
	assert.Equal(t, gpio.Low, g.Level())
	assert.Equal(t, writes, len(r.History())+len(y.History())+len(g.History()))
}
