// Package mpu6050 drives the InvenSense MPU6050 IMU: wake from sleep,
// identity check, one 14-byte burst per sample covering accel,
// temperature and gyro in register order.
package mpu6050

import (
	"time"

	"github.com/juju/errors"

	"github.com/trackguard/trackguard/hardware"
	"github.com/trackguard/trackguard/hardware/i2c"
	"github.com/trackguard/trackguard/log2"
)

const DefaultAddr = 0x68

const (
	regPwrMgmt1  = 0x6B
	regWhoAmI    = 0x75
	regAccelXOut = 0x3B // start of the accel..gyro burst block

	whoAmIExpect = 0x68

	// full-scale defaults: accel ±2g, gyro ±250 deg/s
	accelLSBPerG   = 16384.0
	gyroLSBPerDps  = 131.0
	tempLSBPerDeg  = 340.0
	tempOffsetDegC = 36.53
)

const defaultWakeDelay = 100 * time.Millisecond

type Reading struct {
	AccelX, AccelY, AccelZ float64 // g
	GyroX, GyroY, GyroZ    float64 // deg/s
	Temperature            float64 // °C
	Quality                hardware.Quality
}

// Placeholder is the fixed substitute after a mid-cycle bus fault:
// near-zero tilt, ~1g on the vertical axis, no rotation.
var Placeholder = Reading{
	AccelX: 0.05, AccelY: 0.02, AccelZ: 1.0,
	Temperature: 25.0,
	Quality:     hardware.QualityDegraded,
}

type Sensor struct {
	bus         i2c.Bus
	addr        byte
	log         *log2.Log
	initialized bool

	WakeDelay time.Duration // zero means default
}

func NewSensor(bus i2c.Bus, addr byte, log *log2.Log) *Sensor {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Sensor{bus: bus, addr: addr, log: log}
}

// Init wakes the device and verifies identity. A wrong identity byte is
// logged and accepted; a bus failure is not.
func (s *Sensor) Init() error {
	if err := s.bus.Write(s.addr, regPwrMgmt1, []byte{0x00}); err != nil {
		return errors.Annotatef(err, "mpu6050 addr=0x%02x wake", s.addr)
	}

	wakeDelay := s.WakeDelay
	if wakeDelay == 0 {
		wakeDelay = defaultWakeDelay
	}
	time.Sleep(wakeDelay)

	var who [1]byte
	if err := s.bus.Read(s.addr, regWhoAmI, who[:]); err != nil {
		return errors.Annotatef(err, "mpu6050 addr=0x%02x who_am_i", s.addr)
	}
	if who[0] != whoAmIExpect {
		s.log.Errorf("mpu6050 addr=0x%02x unexpected who_am_i=0x%02x expected=0x%02x", s.addr, who[0], whoAmIExpect)
		// best-effort acceptance, device may still sample
	} else {
		s.log.Debugf("mpu6050 addr=0x%02x who_am_i verified", s.addr)
	}

	s.initialized = true
	return nil
}

// Read samples all axes in one burst. Bus faults yield Placeholder with
// success so the telemetry cycle keeps going.
func (s *Sensor) Read() (Reading, error) {
	if !s.initialized {
		return Placeholder, hardware.ErrNotInitialized
	}

	// 6 accel + 2 temp + 6 gyro, big-endian int16 each
	var raw [14]byte
	if err := s.bus.Read(s.addr, regAccelXOut, raw[:]); err != nil {
		s.log.Errorf("mpu6050 addr=0x%02x burst read: %v", s.addr, err)
		return Placeholder, nil
	}

	s16 := func(i int) int16 { return int16(uint16(raw[i])<<8 | uint16(raw[i+1])) }

	return Reading{
		AccelX:      float64(s16(0)) / accelLSBPerG,
		AccelY:      float64(s16(2)) / accelLSBPerG,
		AccelZ:      float64(s16(4)) / accelLSBPerG,
		Temperature: float64(s16(6))/tempLSBPerDeg + tempOffsetDegC,
		GyroX:       float64(s16(8)) / gyroLSBPerDps,
		GyroY:       float64(s16(10)) / gyroLSBPerDps,
		GyroZ:       float64(s16(12)) / gyroLSBPerDps,
		Quality:     hardware.QualityNominal,
	}, nil
}
