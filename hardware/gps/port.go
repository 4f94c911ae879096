package gps

import (
	"io"
	"os"
	"syscall"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const (
	cNCCS     = 19
	cTCSETSF2 = 0x402c542d
)

type cc_t byte
type speed_t uint32
type tcflag_t uint32
type termios2 struct {
	c_iflag  tcflag_t    // input mode flags
	c_oflag  tcflag_t    // output mode flags
	c_cflag  tcflag_t    // control mode flags
	c_lflag  tcflag_t    // local mode flags
	c_line   cc_t        // line discipline
	c_cc     [cNCCS]cc_t // control characters
	c_ispeed speed_t     // input speed
	c_ospeed speed_t     // output speed
}

var baudSpeed = map[int]speed_t{
	4800:   speed_t(unix.B4800),
	9600:   speed_t(unix.B9600),
	19200:  speed_t(unix.B19200),
	38400:  speed_t(unix.B38400),
	57600:  speed_t(unix.B57600),
	115200: speed_t(unix.B115200),
}

// Port is a raw 8N1 serial byte source for the NMEA stream. Reads use
// a 100ms in-kernel byte timeout (VMIN=0 VTIME=1), surfaced to the
// caller as ErrReadTimeout.
type Port struct {
	f  *os.File
	t2 termios2
}

func OpenPort(path string, baud int) (*Port, error) {
	speed, ok := baudSpeed[baud]
	if !ok {
		return nil, errors.Errorf("gps: unsupported baud rate %d", baud)
	}

	f, err := os.OpenFile(path, syscall.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return nil, errors.Annotatef(err, "gps OpenPort path=%s", path)
	}

	p := &Port{f: f}
	p.t2 = termios2{
		c_iflag:  unix.IGNBRK | unix.IGNPAR,
		c_cflag:  syscall.CLOCAL | syscall.CREAD | syscall.CS8,
		c_ispeed: speed,
		c_ospeed: speed,
	}
	p.t2.c_cc[syscall.VMIN] = 0
	p.t2.c_cc[syscall.VTIME] = 1 // deciseconds
	if err = p.ioctl(uintptr(cTCSETSF2), uintptr(unsafe.Pointer(&p.t2))); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "gps OpenPort path=%s termios", path)
	}
	return p, nil
}

func (p *Port) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if n == 0 && (err == nil || err == io.EOF) {
		// VTIME expired with no byte pending; os.File reports the
		// zero-byte read as io.EOF
		return 0, ErrReadTimeout
	}
	return n, err
}

func (p *Port) Close() error {
	return p.f.Close()
}

func (p *Port) ioctl(op, arg uintptr) (err error) {
	r, _, errno := syscall.Syscall(syscall.SYS_IOCTL, p.f.Fd(), op, arg)
	if errno != 0 {
		err = os.NewSyscallError("SYS_IOCTL", errno)
	} else if r != 0 {
		err = errors.New("unknown error from SYS_IOCTL")
	}
	return err
}
