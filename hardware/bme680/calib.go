package bme680

// Calibration holds the per-die compensation coefficients. Loaded once
// during init, immutable afterwards except for tFine which is the
// temperature-derived intermediate consumed by pressure and humidity.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16
	H5 int16
	H6 int8

	tFine int32
}

// decodeTP unpacks the contiguous low calibration block 0x88..0xA1.
// Little-endian 16-bit words, H1 trailing at 0xA1.
func decodeTP(calib []byte) Calibration {
	u16 := func(i int) uint16 { return uint16(calib[i+1])<<8 | uint16(calib[i]) }
	s16 := func(i int) int16 { return int16(u16(i)) }

	return Calibration{
		T1: u16(0),
		T2: s16(2),
		T3: s16(4),

		P1: u16(6),
		P2: s16(8),
		P3: s16(10),
		P4: s16(12),
		P5: s16(14),
		P6: s16(16),
		P7: s16(18),
		P8: s16(20),
		P9: s16(22),

		H1: calib[25],
	}
}

// decodeHum unpacks the humidity block 0xE1..0xE7. H4 and H5 are 12-bit
// values split across the shared nibble in byte 4.
func (c *Calibration) decodeHum(hum []byte) {
	c.H2 = int16(uint16(hum[1])<<8 | uint16(hum[0]))
	c.H3 = hum[2]
	c.H4 = int16(hum[3])<<4 | int16(hum[4]&0x0F)
	c.H5 = int16(hum[5])<<4 | int16(hum[4]>>4)
	c.H6 = int8(hum[6])
}

// CompensateTemperature converts a 20-bit temperature ADC code to °C and
// stores tFine for the pressure/humidity formulas. Fixed-point per the
// manufacturer reference algorithm.
func (c *Calibration) CompensateTemperature(adcT int32) float64 {
	var1 := (((adcT >> 3) - (int32(c.T1) << 1)) * int32(c.T2)) >> 11
	var2 := (((((adcT >> 4) - int32(c.T1)) * ((adcT >> 4) - int32(c.T1))) >> 12) * int32(c.T3)) >> 14

	c.tFine = var1 + var2

	t := (c.tFine*5 + 128) >> 8
	return float64(t) / 100
}

// CompensatePressure converts a 20-bit pressure ADC code to hPa.
// Requires CompensateTemperature to have run first (tFine).
func (c *Calibration) CompensatePressure(adcP int32) float64 {
	var1 := int64(c.tFine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 = var2 + ((var1 * int64(c.P5)) << 17)
	var2 = var2 + (int64(c.P4) << 35)
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1)<<47 + var1) * int64(c.P1)) >> 33

	if var1 == 0 {
		return 0 // avoid division by zero
	}

	p := int64(1048576) - int64(adcP)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)

	return float64(p) / 256 / 100 // Pa/256 to hPa
}

// CompensateHumidity converts a 16-bit humidity ADC code to %RH.
// Requires CompensateTemperature to have run first (tFine).
func (c *Calibration) CompensateHumidity(adcH int32) float64 {
	v := c.tFine - 76800
	v = ((((adcH << 14) - (int32(c.H4) << 20) - (int32(c.H5) * v)) + 16384) >> 15) *
		(((((((v*int32(c.H6))>>10)*(((v*int32(c.H3))>>11)+32768))>>10)+2097152)*int32(c.H2) + 8192) >> 14)
	v = v - (((((v >> 15) * (v >> 15)) >> 7) * int32(c.H1)) >> 4)
	if v < 0 {
		v = 0
	}
	if v > 419430400 {
		v = 419430400
	}

	return float64(v>>12) / 1024
}
