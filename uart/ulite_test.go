package uart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-embedded/softhal/hw/sim"
	"github.com/kestrel-embedded/softhal/timebase"
)

func newTestTimebase() *timebase.Timebase {
	// 100 MHz, 50 ticks per read: busy-wait loops make fast deterministic
	// progress without real time passing.
	return timebase.New(sim.NewCounter(100_000_000, 50, false), timebase.CountUp)
}

func newULitePort(t *testing.T, cfg Config) (*ULite, *sim.ULiteUART, *sim.Intc) {
	t.Helper()
	intc := sim.NewIntc()
	dev := sim.NewULiteUART(intc, 1)
	u, err := NewULite(dev, intc, 1, cfg, newTestTimebase())
	require.NoError(t, err)
	return u, dev, intc
}

func TestULiteSetupRejections(t *testing.T) {
	u, _, _ := newULitePort(t, Config{})

	cases := []struct {
		name string
		mod  func(*Params)
	}{
		{"bitrate off list", func(p *Params) { p.Bitrate = 14400 }},
		{"data bits too few", func(p *Params) { p.DataBits = 4 }},
		{"data bits too many", func(p *Params) { p.DataBits = 9 }},
		{"stop bits", func(p *Params) { p.StopBits = 3 }},
		{"hardware flow", func(p *Params) { p.Flow = FlowHardware }},
		{"xon/xoff flow", func(p *Params) { p.Flow = FlowXonXoff }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mod(&p)
			assert.ErrorIs(t, u.Setup(p), ErrInvalidConfig)
		})
	}

	// 230400 is on this backend's list.
	p := DefaultParams()
	p.Bitrate = 230400
	assert.NoError(t, u.Setup(p))
}

func TestULiteFramePeriod(t *testing.T) {
	u, _, _ := newULitePort(t, Config{})

	// 115200 8N1: 10 bits per frame.
	assert.Equal(t, uint32(87), u.FramePeriodUsec())

	p := Params{Bitrate: 9600, DataBits: 7, Parity: ParityEven, StopBits: 2}
	require.NoError(t, u.Setup(p))
	// 11 bits per frame at 9600 bps, rounded up.
	assert.Equal(t, uint32(1146), u.FramePeriodUsec())
}

func TestULiteReceive(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{})

	_, err := u.Get()
	assert.ErrorIs(t, err, ErrWouldBlock)

	dev.FeedRx('a', 'b', 'c')

	b, err := u.Get()
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)

	buf := make([]byte, 2)
	require.NoError(t, u.Read(buf))
	assert.Equal(t, []byte("bc"), buf)

	_, err = u.Get()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestULiteReadAllOrNothing(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{})

	dev.FeedRx('x', 'y')
	buf := make([]byte, 3)
	assert.ErrorIs(t, u.Read(buf), ErrWouldBlock)

	// The short read left the two bytes buffered.
	require.NoError(t, u.Read(buf[:2]))
	assert.Equal(t, []byte("xy"), buf[:2])
}

func TestULitePutWritesThrough(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{})

	require.NoError(t, u.Put('q'))
	assert.Equal(t, []byte("q"), dev.Transmitted())
}

func TestULitePutBufferFull(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{TxBufSize: 8})
	dev.StickTx(true)

	// First 16 land in the hardware FIFO, the next 8 in the queue.
	for i := 0; i < sim.ULiteFIFODepth+8; i++ {
		require.NoError(t, u.Put(byte('A'+i)))
	}
	assert.ErrorIs(t, u.Put('z'), ErrBufferFull)
}

func TestULiteWriteAllOrNothing(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{TxBufSize: 64})

	big := make([]byte, 65)
	assert.ErrorIs(t, u.Write(big), ErrBufferFull)
	assert.Empty(t, dev.Transmitted(), "a refused write transmits nothing")

	require.NoError(t, u.Write([]byte("hello")))
	assert.Equal(t, []byte("hello"), dev.Transmitted())
}

func TestULiteWriteFlushLoopback(t *testing.T) {
	intc := sim.NewIntc()
	devA := sim.NewULiteUART(intc, 1)
	devB := sim.NewULiteUART(intc, 2)
	devA.SetPeer(devB)

	tb := newTestTimebase()
	a, err := NewULite(devA, intc, 1, Config{}, tb)
	require.NoError(t, err)
	b, err := NewULite(devB, intc, 2, Config{}, tb)
	require.NoError(t, err)

	require.NoError(t, a.Write([]byte("hello")))
	require.NoError(t, a.Flush())

	buf := make([]byte, 5)
	require.NoError(t, b.Read(buf))
	assert.Equal(t, []byte("hello"), buf)
}

func TestULiteFlushTimeout(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{})
	dev.StickTx(true)

	payload := make([]byte, sim.ULiteFIFODepth+4)
	require.NoError(t, u.Write(payload))
	assert.ErrorIs(t, u.Flush(), ErrTimeout)
}

func TestULiteOverrunDropsNewest(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{RxBufSize: 4})

	dev.FeedRx('1', '2', '3', '4', '5', '6')

	assert.True(t, u.OverrunErrorOccurred())
	buf := make([]byte, 4)
	require.NoError(t, u.Read(buf))
	assert.Equal(t, []byte("1234"), buf, "oldest data survives an overrun")
	_, err := u.Get()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestULiteErrorsLatchUntilClear(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{})

	assert.False(t, u.FramingErrorOccurred())
	dev.InjectError(ulStatFraming)

	assert.True(t, u.FramingErrorOccurred())
	assert.False(t, u.ParityErrorOccurred())
	assert.True(t, u.FramingErrorOccurred(), "reading the predicate does not clear it")

	u.Clear()
	assert.False(t, u.FramingErrorOccurred())
}

func TestULiteSetupResetsState(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{})

	dev.FeedRx('a')
	dev.InjectError(ulStatOverrun)

	require.NoError(t, u.Setup(DefaultParams()))
	_, err := u.Get()
	assert.ErrorIs(t, err, ErrWouldBlock)
	assert.False(t, u.OverrunErrorOccurred())
}

func TestULiteClose(t *testing.T) {
	u, dev, _ := newULitePort(t, Config{})
	require.NoError(t, u.Close())

	// Interrupts are detached: fed data stays in the device.
	dev.FeedRx('a')
	_, err := u.Get()
	assert.ErrorIs(t, err, ErrWouldBlock)
}
