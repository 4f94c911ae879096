package telemetry

import (
	"time"

	"github.com/temoto/alive/v2"

	"github.com/trackguard/trackguard/hardware"
	"github.com/trackguard/trackguard/hardware/bme680"
	"github.com/trackguard/trackguard/hardware/gps"
	"github.com/trackguard/trackguard/hardware/mpu6050"
	"github.com/trackguard/trackguard/internal/network"
	"github.com/trackguard/trackguard/log2"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultGpsTimeout = 1 * time.Second
)

type EnvSensor interface {
	Read() (bme680.Reading, error)
}

type MotionSensor interface {
	Read() (mpu6050.Reading, error)
}

type Locator interface {
	Read(timeout time.Duration) (gps.Fix, error)
}

// Uplink is the publish side of tele.Tele.
type Uplink interface {
	IsConnected() bool
	Publish(payload []byte) bool
}

// Netter reports uplink connectivity state.
type Netter interface {
	State() network.State
}

// Assembler runs the periodic cycle: read every sensor, fold the
// readings into one record, publish when both the network and the
// broker session are up. Sensor faults degrade the record, they never
// stop the cycle.
type Assembler struct {
	Interval   time.Duration
	GpsTimeout time.Duration

	log      *log2.Log
	alive    *alive.Alive
	deviceId string
	env      EnvSensor
	motion   MotionSensor
	loc      Locator
	net      Netter
	uplink   Uplink
}

func NewAssembler(deviceId string, env EnvSensor, motion MotionSensor, loc Locator, net Netter, uplink Uplink, log *log2.Log) *Assembler {
	return &Assembler{
		Interval:   DefaultInterval,
		GpsTimeout: DefaultGpsTimeout,
		log:        log,
		alive:      alive.NewAlive(),
		deviceId:   deviceId,
		env:        env,
		motion:     motion,
		loc:        loc,
		net:        net,
		uplink:     uplink,
	}
}

// Run blocks until Stop. The first cycle fires immediately, then on
// every interval tick.
func (a *Assembler) Run() {
	a.alive.Add(1)
	defer a.alive.Done()
	stopch := a.alive.StopChan()

	a.Cycle()
	tick := time.NewTicker(a.Interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			a.Cycle()
		case <-stopch:
			return
		}
	}
}

func (a *Assembler) Stop() {
	a.alive.Stop()
	a.alive.Wait()
}

// Cycle performs one read-assemble-publish pass and reports whether a
// record went out.
func (a *Assembler) Cycle() bool {
	rec := a.collect()
	payload := rec.Serialize()
	a.log.Debugf("telemetry record %s", payload)

	if a.net.State() != network.StateConnected {
		a.log.Infof("telemetry record not sent, network %s", a.net.State())
		return false
	}
	if !a.uplink.IsConnected() {
		a.log.Infof("telemetry record not sent, no broker session")
		return false
	}
	return a.uplink.Publish(payload)
}

func (a *Assembler) collect() Record {
	rec := Record{DeviceId: a.deviceId}

	envReading, err := a.env.Read()
	if err != nil {
		a.log.Debugf("telemetry env read: %v", err)
	}
	rec.Temperature = envReading.Temperature
	rec.Humidity = envReading.Humidity
	rec.Pressure = envReading.Pressure
	rec.GasResistance = envReading.GasResistance
	if envReading.Quality == hardware.QualityDegraded {
		rec.Degraded = append(rec.Degraded, "bme680")
	}

	motionReading, err := a.motion.Read()
	if err != nil {
		a.log.Debugf("telemetry motion read: %v", err)
	}
	rec.AccelX = motionReading.AccelX
	rec.AccelY = motionReading.AccelY
	rec.AccelZ = motionReading.AccelZ
	rec.Vibration = Vibration(motionReading.AccelX, motionReading.AccelY, motionReading.AccelZ)
	if motionReading.Quality == hardware.QualityDegraded {
		rec.Degraded = append(rec.Degraded, "mpu6050")
	}

	fix, err := a.loc.Read(a.GpsTimeout)
	if err != nil {
		a.log.Debugf("telemetry location read: %v", err)
	}
	rec.Latitude = fix.Latitude
	rec.Longitude = fix.Longitude
	rec.SpeedKmh = fix.SpeedKmh
	if fix.Quality == hardware.QualityDegraded {
		rec.Degraded = append(rec.Degraded, "gps")
	}

	return rec
}
