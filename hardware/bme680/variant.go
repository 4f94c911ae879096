package bme680

// Chip identity values from the read-only id register 0xD0.
const (
	chipIDBME680 = 0x61
	chipIDBME280 = 0x60
	chipIDBMP280 = 0x58
)

// ChipVariant is resolved once from the identity register at init and
// never re-evaluated. Unknown variants stay usable for temperature and
// pressure.
type ChipVariant uint8

const (
	VariantUnknown ChipVariant = iota
	VariantBME680
	VariantBME280
	VariantBMP280
)

func classifyChip(id byte) ChipVariant {
	switch id {
	case chipIDBME680:
		return VariantBME680
	case chipIDBME280:
		return VariantBME280
	case chipIDBMP280:
		return VariantBMP280
	}
	return VariantUnknown
}

// Humidity reports whether the variant carries a humidity sensing element.
func (v ChipVariant) Humidity() bool {
	return v == VariantBME680 || v == VariantBME280
}

func (v ChipVariant) String() string {
	switch v {
	case VariantBME680:
		return "BME680"
	case VariantBME280:
		return "BME280"
	case VariantBMP280:
		return "BMP280"
	}
	return "unknown"
}

// State follows the init sequence. Ready is the only state from which
// reads succeed normally.
type State uint32

const (
	StateUninitialized State = iota
	StateDetecting           // probing the identity register
	StateCalibrationLoaded   // coefficients decoded, mode not yet set
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDetecting:
		return "detecting"
	case StateCalibrationLoaded:
		return "calibration-loaded"
	case StateReady:
		return "ready"
	}
	return "invalid"
}
