// Package i2c is the register-addressed transaction layer over a shared
// two-wire bus. The bus holds no per-device state: device address is
// supplied per call and concurrent callers are serialized by the bus lock.
//
// Thanks to
// https://github.com/kidoman/embd and https://bitbucket.org/gmcbay/i2c
package i2c

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/juju/errors"

	"github.com/trackguard/trackguard/helpers"
)

const (
	// as defined in /usr/include/linux/i2c-dev.h
	I2C_RETRIES = 0x0701 /* number of times a device address should be polled when not acknowledging */
	I2C_TIMEOUT = 0x0702 /* set timeout in units of 10 ms */
	I2C_RDWR    = 0x0707 /* Combined R/W transfer (one STOP only) */

	// i2c_msg flags, /usr/include/linux/i2c.h
	I2C_M_RD = 0x0001 /* read data, from slave to master */
)

const DefaultTimeout = 100 * time.Millisecond

var ErrInvalidArgument = errors.New("i2c: nothing to transfer")

// BusError is a failed transaction: timeout or negative-acknowledge.
// Carries the 7-bit device address the transaction was directed at.
type BusError struct {
	Addr  byte
	Cause error
}

func (e BusError) Error() string {
	return fmt.Sprintf("i2c device=0x%02x: %v", e.Addr, e.Cause)
}

func IsBusError(e error) bool {
	_, ok := errors.Cause(e).(BusError)
	return ok
}

type i2c_msg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type i2c_rdwr_ioctl_data struct {
	msgs uintptr
	nmsg uint32
}

// Bus is the transaction contract used by all device drivers.
type Bus interface {
	Init() error
	Close() error
	// Write issues start, address+W, register, payload, stop.
	Write(devAddr, reg byte, data []byte) error
	// Read issues the register as a write phase, then repeated start,
	// address+R and count bytes (NAK on the final byte).
	Read(devAddr, reg byte, buf []byte) error
}

type i2cBus struct {
	busNo       byte
	timeout     time.Duration
	file        *os.File
	lk          sync.Mutex
	initialized bool
}

func NewBus(busNo byte, timeout time.Duration) Bus {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &i2cBus{busNo: busNo, timeout: timeout}
}

func (b *i2cBus) Init() error {
	return helpers.WithLockError(&b.lk, b.init)
}

func (b *i2cBus) init() error {
	if b.initialized {
		return nil
	}

	var err error
	if b.file, err = os.OpenFile(fmt.Sprintf("/dev/i2c-%d", b.busNo), os.O_RDWR, os.ModeExclusive); err != nil {
		return errors.Annotatef(err, "i2c bus=%d open", b.busNo)
	}
	if err = b.ioctl(I2C_TIMEOUT, uintptr(b.timeout/(10*time.Millisecond))); err != nil {
		b.file.Close()
		return errors.Annotatef(err, "i2c bus=%d set timeout", b.busNo)
	}
	if err = b.ioctl(I2C_RETRIES, 1); err != nil {
		b.file.Close()
		return errors.Annotatef(err, "i2c bus=%d set retries", b.busNo)
	}
	b.initialized = true

	return nil
}

func (b *i2cBus) Write(devAddr, reg byte, data []byte) error {
	bw := make([]byte, 1+len(data))
	bw[0] = reg
	copy(bw[1:], data)
	return b.tx(devAddr, bw, nil)
}

func (b *i2cBus) Read(devAddr, reg byte, buf []byte) error {
	if len(buf) == 0 {
		return ErrInvalidArgument
	}
	return b.tx(devAddr, []byte{reg}, buf)
}

func (b *i2cBus) tx(addr byte, bw []byte, br []byte) error {
	b.lk.Lock()
	defer b.lk.Unlock()

	if err := b.init(); err != nil {
		return err
	}

	nmsg := uint32(0)
	msgs := [2]i2c_msg{}
	if bw != nil {
		msgs[nmsg] = i2c_msg{
			addr: uint16(addr), flags: 0,
			buf: uintptr(unsafe.Pointer(&bw[0])), len: uint16(len(bw)),
		}
		nmsg++
	}
	if br != nil {
		msgs[nmsg] = i2c_msg{
			addr: uint16(addr), flags: I2C_M_RD,
			buf: uintptr(unsafe.Pointer(&br[0])), len: uint16(len(br)),
		}
		nmsg++
	}
	if nmsg == 0 {
		return ErrInvalidArgument
	}

	rdwr_data := i2c_rdwr_ioctl_data{
		msgs: uintptr(unsafe.Pointer(&msgs[0])),
		nmsg: nmsg,
	}
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL,
		uintptr(b.file.Fd()), uintptr(I2C_RDWR), uintptr(unsafe.Pointer(&rdwr_data)))
	if errno != 0 {
		// kernel reports both bus timeout and slave NAK through errno
		return BusError{Addr: addr, Cause: syscall.Errno(errno)}
	}
	return nil
}

func (b *i2cBus) ioctl(op, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(b.file.Fd()), op, arg)
	if errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

func (b *i2cBus) Close() error {
	return helpers.WithLockError(&b.lk, func() error {
		if !b.initialized {
			return nil
		}
		b.initialized = false
		return b.file.Close()
	})
}
