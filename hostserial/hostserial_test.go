package hostserial

import (
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openPair opens a pty and a Port on its slave end. The master end plays the
// remote device.
func openPair(t *testing.T, cfg Config) (master *os.File, port *Port) {
	t.Helper()
	master, tty, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close() })

	cfg.Device = tty.Name()
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	port, err = Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	tty.Close() // the Port holds its own fd

	return master, port
}

func TestOpenRejectsBadBaud(t *testing.T) {
	_, err := Open(Config{Device: "/dev/null", BaudRate: 12345})
	assert.Error(t, err)
}

func TestOpenRejectsMissingDevice(t *testing.T) {
	_, err := Open(Config{Device: "/nonexistent/ttyXYZ", BaudRate: 115200})
	assert.Error(t, err)
}

func TestReadWriteRoundTrip(t *testing.T) {
	master, port := openPair(t, Config{})

	_, err := master.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf[:n])

	_, err = port.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, port.Drain())

	n, err = master.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), buf[:n])
}

func TestReadTimeout(t *testing.T) {
	_, port := openPair(t, Config{ReadTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := port.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestCloseUnblocksRead(t *testing.T) {
	_, port := openPair(t, Config{})

	errc := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 1))
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond) // let the reader reach poll
	require.NoError(t, port.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not unblock on Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	_, port := openPair(t, Config{})
	require.NoError(t, port.Close())
	assert.NoError(t, port.Close())

	_, err := port.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = port.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
}
