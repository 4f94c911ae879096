// Package bme680 drives the Bosch BME680/BME280/BMP280 family of
// environmental sensors in forced mode over the shared I2C bus.
// The variant is detected from the identity register, calibration is
// decoded once, and readings are compensated with the manufacturer's
// integer reference algorithm.
package bme680

import (
	"time"

	"github.com/juju/errors"

	"github.com/trackguard/trackguard/hardware"
	"github.com/trackguard/trackguard/hardware/i2c"
	"github.com/trackguard/trackguard/log2"
)

const DefaultAddr = 0x76

const (
	regChipID   = 0xD0
	regCtrlHum  = 0x72
	regCtrlMeas = 0x74
	regCalibTP  = 0x88 // 26 bytes, T/P words + H1
	regCalibHum = 0xE1 // 7 bytes, humidity set
	regPressMSB = 0xF7 // 8 bytes: press, temp, hum ADC codes

	// osrs_h=001
	ctrlHumOversample1 = 0x01
	// osrs_t=001 osrs_p=001 mode=01 forced
	ctrlMeasForced = 0x25

	detectAttempts = 3
)

const (
	defaultDetectDelay = 50 * time.Millisecond
	defaultSettleDelay = 50 * time.Millisecond
)

// Reading in display units. Humidity and GasResistance are zero when the
// detected variant lacks the capability. Quality=Degraded marks the fixed
// substitute returned after a bus fault mid-cycle.
type Reading struct {
	Temperature   float64 // °C
	Pressure      float64 // hPa
	Humidity      float64 // %RH
	GasResistance float64 // Ω
	Quality       hardware.Quality
}

type Sensor struct {
	bus     i2c.Bus
	addr    byte
	log     *log2.Log
	state   State
	variant ChipVariant
	calib   *Calibration

	// delays are overridable for tests, zero means default
	DetectDelay time.Duration
	SettleDelay time.Duration
}

func NewSensor(bus i2c.Bus, addr byte, log *log2.Log) *Sensor {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Sensor{bus: bus, addr: addr, log: log}
}

func (s *Sensor) State() State         { return s.state }
func (s *Sensor) Variant() ChipVariant { return s.variant }

// Init detects the chip variant, loads calibration and configures forced
// mode. On any failure the sensor stays Uninitialized.
func (s *Sensor) Init() error {
	s.state = StateDetecting

	var chipID [1]byte
	var err error
	for attempt := 1; attempt <= detectAttempts; attempt++ {
		err = s.bus.Read(s.addr, regChipID, chipID[:])
		s.log.Debugf("bme680 addr=0x%02x detect attempt=%d id=0x%02x err=%v", s.addr, attempt, chipID[0], err)
		if err == nil {
			break
		}
		time.Sleep(s.detectDelay())
	}
	if err != nil {
		s.state = StateUninitialized
		return errors.Annotatef(err, "bme680 addr=0x%02x chip id", s.addr)
	}

	s.variant = classifyChip(chipID[0])
	if s.variant == VariantUnknown {
		s.log.Errorf("bme680 addr=0x%02x unknown chip id=0x%02x, continuing without humidity", s.addr, chipID[0])
	} else {
		s.log.Infof("bme680 addr=0x%02x detected %s", s.addr, s.variant)
	}

	if err = s.loadCalibration(); err != nil {
		s.state = StateUninitialized
		return err
	}
	s.state = StateCalibrationLoaded

	if s.variant.Humidity() {
		if err = s.bus.Write(s.addr, regCtrlHum, []byte{ctrlHumOversample1}); err != nil {
			s.state = StateUninitialized
			return errors.Annotatef(err, "bme680 addr=0x%02x ctrl_hum", s.addr)
		}
	}
	if err = s.bus.Write(s.addr, regCtrlMeas, []byte{ctrlMeasForced}); err != nil {
		s.state = StateUninitialized
		return errors.Annotatef(err, "bme680 addr=0x%02x ctrl_meas", s.addr)
	}

	s.state = StateReady
	return nil
}

func (s *Sensor) loadCalibration() error {
	var tp [26]byte
	if err := s.bus.Read(s.addr, regCalibTP, tp[:]); err != nil {
		return errors.Annotatef(err, "bme680 addr=0x%02x calibration t/p", s.addr)
	}
	c := decodeTP(tp[:])

	if s.variant.Humidity() {
		var hum [7]byte
		if err := s.bus.Read(s.addr, regCalibHum, hum[:]); err != nil {
			return errors.Annotatef(err, "bme680 addr=0x%02x calibration hum", s.addr)
		}
		c.decodeHum(hum[:])
	}

	s.calib = &c
	s.log.Debugf("bme680 addr=0x%02x calibration loaded", s.addr)
	return nil
}

// Read triggers one forced measurement and compensates the result.
// Per-cycle bus faults do not propagate: the sensor answers with a fixed
// degraded reading so the telemetry cycle keeps going.
func (s *Sensor) Read() (Reading, error) {
	if s.state != StateReady {
		return s.placeholder(), hardware.ErrNotInitialized
	}
	// fail closed without a loaded profile
	if s.calib == nil {
		return s.placeholder(), nil
	}

	if err := s.bus.Write(s.addr, regCtrlMeas, []byte{ctrlMeasForced}); err != nil {
		s.log.Errorf("bme680 addr=0x%02x trigger: %v", s.addr, err)
		return s.placeholder(), nil
	}

	time.Sleep(s.settleDelay())

	var raw [8]byte
	if err := s.bus.Read(s.addr, regPressMSB, raw[:]); err != nil {
		s.log.Errorf("bme680 addr=0x%02x data read: %v", s.addr, err)
		return s.placeholder(), nil
	}

	// 20-bit codes, big-endian, low nibble in the high bits of byte 3
	adcP := int32(raw[0])<<12 | int32(raw[1])<<4 | int32(raw[2])>>4
	adcT := int32(raw[3])<<12 | int32(raw[4])<<4 | int32(raw[5])>>4
	adcH := int32(raw[6])<<8 | int32(raw[7])

	// temperature first: pressure and humidity consume tFine
	r := Reading{Quality: hardware.QualityNominal}
	r.Temperature = s.calib.CompensateTemperature(adcT)
	r.Pressure = s.calib.CompensatePressure(adcP)
	if s.variant.Humidity() {
		r.Humidity = s.calib.CompensateHumidity(adcH)
	}
	return r, nil
}

func (s *Sensor) placeholder() Reading {
	r := Reading{
		Temperature: 25.0,
		Pressure:    1013.25,
		Quality:     hardware.QualityDegraded,
	}
	if s.variant.Humidity() {
		r.Humidity = 50.0
	}
	return r
}

func (s *Sensor) detectDelay() time.Duration {
	if s.DetectDelay != 0 {
		return s.DetectDelay
	}
	return defaultDetectDelay
}

func (s *Sensor) settleDelay() time.Duration {
	if s.SettleDelay != 0 {
		return s.SettleDelay
	}
	return defaultSettleDelay
}
