// Package hostserial opens real Linux serial devices in raw mode, bridging
// the buffered driver API of this repository to the host OS for the command
// line tools. Reads are killable: Close wakes any blocked Read through a
// self-pipe, so a reader goroutine never wedges on a silent device.
package hostserial

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("hostserial: port closed")

// ErrTimeout is returned by Read when ReadTimeout elapses with no data.
var ErrTimeout = errors.New("hostserial: read timeout")

// Config describes the device to open. A zero ReadTimeout means Read blocks
// until data or Close.
type Config struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

// Port is an open raw-mode serial device. Safe for one concurrent reader and
// one concurrent writer.
type Port struct {
	fd   int
	file *os.File
	cfg  Config

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	pipeR int // self-pipe: Close writes pipeW to wake a blocked poll
	pipeW int
}

// Open opens and configures the device: raw mode (no echo, no canonical
// processing, no software flow control), 8 data bits, the whitelisted baud
// rate, VMIN=1/VTIME=0.
func Open(cfg Config) (*Port, error) {
	baud, err := baudToUnix(cfg.BaudRate)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("hostserial: open %s: %w", cfg.Device, err)
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("hostserial: get termios: %w", err)
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | baud
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0
	tio.Ispeed = baud
	tio.Ospeed = baud

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("hostserial: set termios: %w", err)
	}
	unix.SetNonblock(fd, false)

	var pipeFds [2]int
	if err := unix.Pipe(pipeFds[:]); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("hostserial: pipe: %w", err)
	}

	glog.V(1).Infof("hostserial: opened %s at %d baud", cfg.Device, cfg.BaudRate)

	return &Port{
		fd:    fd,
		file:  os.NewFile(uintptr(fd), cfg.Device),
		cfg:   cfg,
		done:  make(chan struct{}),
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}, nil
}

// Read fills p with up to len(p) bytes, blocking until at least one byte
// arrives, the configured ReadTimeout elapses (ErrTimeout), or the port is
// closed (ErrClosed).
func (s *Port) Read(p []byte) (int, error) {
	timeout := -1
	if s.cfg.ReadTimeout > 0 {
		timeout = int(s.cfg.ReadTimeout.Milliseconds())
		if timeout == 0 {
			timeout = 1
		}
	}

	for {
		select {
		case <-s.done:
			return 0, ErrClosed
		default:
		}

		pfd := []unix.PollFd{
			{Fd: int32(s.fd), Events: unix.POLLIN},
			{Fd: int32(s.pipeR), Events: unix.POLLIN},
		}
		n, err := unix.Poll(pfd, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("hostserial: poll: %w", err)
		}
		if n == 0 {
			return 0, ErrTimeout
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			var b [1]byte
			unix.Read(s.pipeR, b[:])
			return 0, ErrClosed
		}
		if pfd[0].Revents&unix.POLLIN != 0 {
			return s.file.Read(p)
		}
	}
}

// Write sends all of p.
func (s *Port) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrClosed
	default:
	}
	return s.file.Write(p)
}

// Drain blocks until the kernel has handed every written byte to the device.
func (s *Port) Drain() error {
	// TCSBRK with nonzero arg is tcdrain(3).
	return unix.IoctlSetInt(s.fd, unix.TCSBRK, 1)
}

// Device returns the device path this port was opened with.
func (s *Port) Device() string {
	return s.cfg.Device
}

// Close closes the device and wakes any blocked Read. Safe to call more than
// once.
func (s *Port) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		unix.Write(s.pipeW, []byte{0}) // wake poll
		s.closeErr = s.file.Close()
		unix.Close(s.pipeR)
		unix.Close(s.pipeW)
		glog.V(1).Infof("hostserial: closed %s", s.cfg.Device)
	})
	return s.closeErr
}

// baudToUnix maps a numeric rate to its termios constant. Only the rates the
// driver backends accept are allowed; anything else is refused rather than
// silently substituted.
func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	}
	return 0, fmt.Errorf("hostserial: unsupported baud rate %d", baud)
}
