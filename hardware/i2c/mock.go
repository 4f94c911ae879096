package i2c

// Public API to easily stub the bus in driver tests.

import (
	"sync"
	"syscall"
)

type MockTx struct {
	Addr  byte
	Reg   byte
	Write []byte
	Read  int
}

// MockBus is a register-map bus double. Reads walk consecutive register
// cells from the starting address, same as a burst read on real silicon.
type MockBus struct {
	lk      sync.Mutex
	cells   map[uint16]byte
	failN   int
	failReg map[uint16]struct{}

	Txs []MockTx
}

func NewMockBus() *MockBus {
	return &MockBus{
		cells:   make(map[uint16]byte),
		failReg: make(map[uint16]struct{}),
	}
}

func cellKey(addr, reg byte) uint16 { return uint16(addr)<<8 | uint16(reg) }

// SetRegisters fills consecutive cells starting at reg.
func (m *MockBus) SetRegisters(addr, reg byte, data []byte) {
	m.lk.Lock()
	defer m.lk.Unlock()
	for i, b := range data {
		m.cells[cellKey(addr, reg+byte(i))] = b
	}
}

func (m *MockBus) Register(addr, reg byte) byte {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.cells[cellKey(addr, reg)]
}

// FailNext makes the next n transactions fail with BusError.
func (m *MockBus) FailNext(n int) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.failN = n
}

// FailRegister makes every transaction touching (addr, reg) fail.
func (m *MockBus) FailRegister(addr, reg byte) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.failReg[cellKey(addr, reg)] = struct{}{}
}

func (m *MockBus) Init() error  { return nil }
func (m *MockBus) Close() error { return nil }

func (m *MockBus) failed(addr, reg byte) bool {
	if m.failN > 0 {
		m.failN--
		return true
	}
	_, ok := m.failReg[cellKey(addr, reg)]
	return ok
}

func (m *MockBus) Write(addr, reg byte, data []byte) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Txs = append(m.Txs, MockTx{Addr: addr, Reg: reg, Write: append([]byte(nil), data...)})
	if m.failed(addr, reg) {
		return BusError{Addr: addr, Cause: syscall.ETIMEDOUT}
	}
	for i, b := range data {
		m.cells[cellKey(addr, reg+byte(i))] = b
	}
	return nil
}

func (m *MockBus) Read(addr, reg byte, buf []byte) error {
	if len(buf) == 0 {
		return ErrInvalidArgument
	}
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Txs = append(m.Txs, MockTx{Addr: addr, Reg: reg, Read: len(buf)})
	if m.failed(addr, reg) {
		return BusError{Addr: addr, Cause: syscall.ETIMEDOUT}
	}
	for i := range buf {
		buf[i] = m.cells[cellKey(addr, reg+byte(i))]
	}
	return nil
}
