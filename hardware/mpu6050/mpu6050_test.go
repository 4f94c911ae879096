package mpu6050

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackguard/trackguard/hardware"
	"github.com/trackguard/trackguard/hardware/i2c"
	"github.com/trackguard/trackguard/log2"
)

func testSensor(t testing.TB, mock *i2c.MockBus) *Sensor {
	s := NewSensor(mock, DefaultAddr, log2.NewTest(t, log2.LDebug))
	s.WakeDelay = time.Millisecond
	return s
}

func putS16(b []byte, i int, v int16) {
	b[i] = byte(uint16(v) >> 8)
	b[i+1] = byte(uint16(v))
}

func TestInitWakesAndVerifies(t *testing.T) {
	mock := i2c.NewMockBus()
	mock.SetRegisters(DefaultAddr, regWhoAmI, []byte{whoAmIExpect})
	s := testSensor(t, mock)

	require.NoError(t, s.Init())
	// sleep bit cleared
	assert.Equal(t, byte(0x00), mock.Register(DefaultAddr, regPwrMgmt1))
}

func TestInitAcceptsWrongIdentity(t *testing.T) {
	mock := i2c.NewMockBus()
	mock.SetRegisters(DefaultAddr, regWhoAmI, []byte{0x71})
	s := testSensor(t, mock)

	require.NoError(t, s.Init())

	r, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, hardware.QualityNominal, r.Quality)
}

func TestInitBusFailure(t *testing.T) {
	mock := i2c.NewMockBus()
	mock.FailRegister(DefaultAddr, regPwrMgmt1)
	s := testSensor(t, mock)

	err := s.Init()
	require.Error(t, err)
	assert.True(t, i2c.IsBusError(err))

	_, err = s.Read()
	assert.Equal(t, hardware.ErrNotInitialized, err)
}

func TestReadConversion(t *testing.T) {
	mock := i2c.NewMockBus()
	mock.SetRegisters(DefaultAddr, regWhoAmI, []byte{whoAmIExpect})
	s := testSensor(t, mock)
	require.NoError(t, s.Init())

	raw := make([]byte, 14)
	putS16(raw, 0, 16384)  // 1.0 g
	putS16(raw, 2, -8192)  // -0.5 g
	putS16(raw, 4, 4096)   // 0.25 g
	putS16(raw, 6, 521)    // ~38.06 °C
	putS16(raw, 8, 131)    // 1 deg/s
	putS16(raw, 10, -262)  // -2 deg/s
	putS16(raw, 12, 13100) // 100 deg/s
	mock.SetRegisters(DefaultAddr, regAccelXOut, raw)

	r, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, hardware.QualityNominal, r.Quality)
	assert.InDelta(t, 1.0, r.AccelX, 1e-9)
	assert.InDelta(t, -0.5, r.AccelY, 1e-9)
	assert.InDelta(t, 0.25, r.AccelZ, 1e-9)
	assert.InDelta(t, 521.0/340.0+36.53, r.Temperature, 1e-9)
	assert.InDelta(t, 1.0, r.GyroX, 1e-9)
	assert.InDelta(t, -2.0, r.GyroY, 1e-9)
	assert.InDelta(t, 100.0, r.GyroZ, 1e-9)
}

func TestReadBusFaultPlaceholder(t *testing.T) {
	mock := i2c.NewMockBus()
	mock.SetRegisters(DefaultAddr, regWhoAmI, []byte{whoAmIExpect})
	s := testSensor(t, mock)
	require.NoError(t, s.Init())

	mock.FailRegister(DefaultAddr, regAccelXOut)
	r, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, Placeholder, r)
	assert.Equal(t, hardware.QualityDegraded, r.Quality)
	assert.Equal(t, 1.0, r.AccelZ)
	assert.Equal(t, 0.0, r.GyroX)
}
