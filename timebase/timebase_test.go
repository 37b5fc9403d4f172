package timebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-embedded/softhal/hw/sim"
)

const testFreq = 100_000_000 // 100 MHz, 10ns per tick

func newUp(t *testing.T, step uint32) (*Timebase, *sim.Counter) {
	t.Helper()
	c := sim.NewCounter(testFreq, step, false)
	return New(c, CountUp), c
}

func TestNewRejectsSlowSource(t *testing.T) {
	c := sim.NewCounter(999_999, 1, false)
	assert.Panics(t, func() { New(c, CountUp) })
}

func TestConvertUsecToCount(t *testing.T) {
	tb, _ := newUp(t, 1)

	// 100 ticks per microsecond at 100 MHz.
	assert.Equal(t, uint32(100), tb.ConvertUsecToCount(1))
	assert.Equal(t, uint32(100_000), tb.ConvertUsecToCount(1000))
	assert.Equal(t, uint32(0), tb.ConvertUsecToCount(0))

	assert.Panics(t, func() { tb.ConvertUsecToCount(0xFFFFFFFF) })
}

func TestConvertMsecToCount(t *testing.T) {
	tb, _ := newUp(t, 1)

	assert.Equal(t, uint32(100_000), tb.ConvertMsecToCount(1))
	assert.Panics(t, func() { tb.ConvertMsecToCount(0xFFFFFFFF) })
}

func TestConvertNsecToCountRoundsUp(t *testing.T) {
	tb, _ := newUp(t, 1)

	// The 1024ns fixed-point unit always rounds a nonzero request up to at
	// least one tick.
	assert.Equal(t, uint32(1), tb.ConvertNsecToCount(1))
	assert.Equal(t, uint32(2), tb.ConvertNsecToCount(10))
	// 1000ns at ~10ns per tick: 103 ticks/1024ns unit gives ceil(103000/1024).
	assert.Equal(t, uint32((103*1000+1023)>>10), tb.ConvertNsecToCount(1000))

	assert.Panics(t, func() { tb.ConvertNsecToCount(0xFFFFFFFF) })
}

func TestTimeoutCountUp(t *testing.T) {
	tb, c := newUp(t, 0)

	c.Set(1000)
	base := tb.Now()
	assert.False(t, tb.Timeout(base, 50))

	c.Set(1049)
	assert.False(t, tb.Timeout(base, 50))
	c.Set(1050)
	assert.True(t, tb.Timeout(base, 50))
}

func TestTimeoutCountUpWraparound(t *testing.T) {
	tb, c := newUp(t, 0)

	c.Set(0xFFFFFFF0)
	base := tb.Now()

	c.Set(0x00000010) // wrapped: 0x20 ticks elapsed
	assert.True(t, tb.Timeout(base, 0x20))
	assert.False(t, tb.Timeout(base, 0x21))
}

func TestTimeoutCountDown(t *testing.T) {
	c := sim.NewCounter(testFreq, 0, true)
	tb := New(c, CountDown)

	c.Set(0x00000008)
	base := tb.Now()

	c.Set(0xFFFFFFF8) // wrapped through zero: 0x10 ticks elapsed
	assert.True(t, tb.Timeout(base, 0x10))
	assert.False(t, tb.Timeout(base, 0x11))
}

func TestWaitUsecAdvances(t *testing.T) {
	tb, c := newUp(t, 10)

	start := c.ReadCounter()
	tb.WaitUsec(5) // 500 ticks at 100 MHz
	end := c.ReadCounter()
	assert.GreaterOrEqual(t, end-start, uint32(500))
}

func TestMeasureDurationUsec(t *testing.T) {
	tb, _ := newUp(t, 0)

	assert.Equal(t, uint32(1), tb.MeasureDurationUsec(0, 100))
	assert.Equal(t, uint32(1), tb.MeasureDurationUsec(0, 1), "partial unit rounds up")
	assert.Equal(t, uint32(1000), tb.MeasureDurationUsec(0, 100_000))
	// Across wraparound.
	assert.Equal(t, uint32(1), tb.MeasureDurationUsec(0xFFFFFFFa, 0x5E))
}

func TestMeasureDurationMsec(t *testing.T) {
	tb, _ := newUp(t, 0)

	assert.Equal(t, uint32(1), tb.MeasureDurationMsec(0, 100_000))
	assert.Equal(t, uint32(25), tb.MeasureDurationMsec(0, 2_500_000))
}

func TestMeasureDurationNsecRoundTrips(t *testing.T) {
	tb, _ := newUp(t, 0)

	// Converting a duration to ticks and measuring it back must not report
	// less than was asked.
	for _, nsec := range []uint32{100, 1000, 1_000_000, 40_000_000} {
		ticks := tb.ConvertNsecToCount(nsec)
		got := tb.MeasureDurationNsec(0, ticks)
		assert.GreaterOrEqual(t, got, nsec, "nsec=%d", nsec)
	}
}

func TestMeasureDurationNsecLongDelta(t *testing.T) {
	tb, _ := newUp(t, 0)

	// A delta with the top ten bits in play takes the divide-then-scale
	// branch. 0x40000000 ticks at ~97.66 ticks per unit.
	d := uint32(0x40000000)
	want := ((d + tb.unit1024Nsec - 1) / tb.unit1024Nsec) << 10
	assert.Equal(t, want, tb.MeasureDurationNsec(0, d))
}

func TestInitInstance(t *testing.T) {
	assert.Panics(t, func() { Instance() }, "Instance before Init is a contract error")

	c := sim.NewCounter(testFreq, 1, false)
	Init(c, CountUp)
	require.NotNil(t, Instance())
	assert.Panics(t, func() { Init(c, CountUp) }, "second Init is a contract error")
}
