// Package hardware holds types shared by the device drivers.
package hardware

// Quality marks whether a reading carries measured data or a fixed
// substitute that kept the sampling cycle going after a bus fault.
type Quality uint8

const (
	QualityNominal Quality = iota
	QualityDegraded
)

func (q Quality) String() string {
	if q == QualityDegraded {
		return "degraded"
	}
	return "nominal"
}

func (q Quality) Degraded() bool { return q == QualityDegraded }
