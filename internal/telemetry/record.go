// Package telemetry assembles one JSON record per cycle from the
// environmental, inertial and location readings and hands it to the
// uplink.
package telemetry

import (
	"fmt"
	"math"
	"strings"
)

// Record is one telemetry cycle worth of sensor data. Serialize emits
// fields in a fixed order with fixed decimal precision so consumers
// can rely on a stable payload shape.
type Record struct {
	DeviceId      string
	Temperature   float64 // °C
	Humidity      float64 // %RH
	Pressure      float64 // hPa
	GasResistance float64 // Ω
	Latitude      float64
	Longitude     float64
	SpeedKmh      float64
	Vibration     float64 // g
	AccelX        float64 // g
	AccelY        float64
	AccelZ        float64
	Degraded      []string // subsystems that substituted placeholder data
}

func (r *Record) Serialize() []byte {
	b := &strings.Builder{}
	b.Grow(512)
	fmt.Fprintf(b, `{"deviceId":%q,`, r.DeviceId)
	fmt.Fprintf(b, `"temp":%.2f,`, r.Temperature)
	fmt.Fprintf(b, `"hum":%.2f,`, r.Humidity)
	fmt.Fprintf(b, `"pressure":%.2f,`, r.Pressure)
	fmt.Fprintf(b, `"gas":%.0f,`, r.GasResistance)
	fmt.Fprintf(b, `"lat":%.6f,`, r.Latitude)
	fmt.Fprintf(b, `"lng":%.6f,`, r.Longitude)
	fmt.Fprintf(b, `"speed":%.2f,`, r.SpeedKmh)
	fmt.Fprintf(b, `"vibration":%.3f,`, r.Vibration)
	fmt.Fprintf(b, `"accel_x":%.3f,`, r.AccelX)
	fmt.Fprintf(b, `"accel_y":%.3f,`, r.AccelY)
	fmt.Fprintf(b, `"accel_z":%.3f`, r.AccelZ)
	if len(r.Degraded) > 0 {
		b.WriteString(`,"degraded":[`)
		for i, name := range r.Degraded {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%q", name)
		}
		b.WriteByte(']')
	}
	b.WriteByte('}')
	return []byte(b.String())
}

// Vibration is the acceleration magnitude with gravity removed,
// clamped at zero. A resting sensor reads (0,0,1g) so the magnitude
// baseline is 1.
func Vibration(ax, ay, az float64) float64 {
	v := math.Sqrt(ax*ax+ay*ay+az*az) - 1.0
	if v < 0 {
		return 0
	}
	return v
}
