package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trackguard/trackguard/hardware"
	"github.com/trackguard/trackguard/hardware/bme680"
	"github.com/trackguard/trackguard/hardware/gps"
	"github.com/trackguard/trackguard/hardware/mpu6050"
	"github.com/trackguard/trackguard/internal/network"
	"github.com/trackguard/trackguard/log2"
)

type fakeEnv struct{ r bme680.Reading }
type fakeMotion struct{ r mpu6050.Reading }
type fakeLoc struct{ f gps.Fix }

func (f *fakeEnv) Read() (bme680.Reading, error)       { return f.r, nil }
func (f *fakeMotion) Read() (mpu6050.Reading, error)   { return f.r, nil }
func (f *fakeLoc) Read(time.Duration) (gps.Fix, error) { return f.f, nil }

type fakeNet struct{ s network.State }

func (f *fakeNet) State() network.State { return f.s }

type fakeUplink struct {
	connected bool
	published [][]byte
}

func (f *fakeUplink) IsConnected() bool { return f.connected }
func (f *fakeUplink) Publish(p []byte) bool {
	f.published = append(f.published, p)
	return true
}

func testAssembler(t testing.TB, env *fakeEnv, motion *fakeMotion, loc *fakeLoc, net *fakeNet, up *fakeUplink) *Assembler {
	return NewAssembler("train-001", env, motion, loc, net, up, log2.NewTest(t, log2.LDebug))
}

func TestVibration(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, Vibration(0, 0, 1), 1e-9)
	assert.InDelta(t, 0.5, Vibration(0, 0, 1.5), 1e-9)
	// magnitude below gravity clamps to zero
	assert.InDelta(t, 0.0, Vibration(0, 0, 0.5), 1e-9)
	assert.InDelta(t, 1.0, Vibration(2, 0, 0), 1e-9)
}

func TestSerializeFormat(t *testing.T) {
	t.Parallel()

	rec := Record{
		DeviceId:      "train-001",
		Temperature:   25.08,
		Humidity:      46.125,
		Pressure:      1006.54,
		GasResistance: 12345.6,
		Latitude:      21.028511,
		Longitude:     105.804817,
		SpeedKmh:      41.4848,
		Vibration:     0.0126,
		AccelX:        0.05,
		AccelY:        0.02,
		AccelZ:        1.0,
	}
	expect := `{"deviceId":"train-001","temp":25.08,"hum":46.12,"pressure":1006.54,` +
		`"gas":12346,"lat":21.028511,"lng":105.804817,"speed":41.48,` +
		`"vibration":0.013,"accel_x":0.050,"accel_y":0.020,"accel_z":1.000}`
	assert.Equal(t, expect, string(rec.Serialize()))
}

func TestSerializeDegraded(t *testing.T) {
	t.Parallel()

	rec := Record{DeviceId: "t", Degraded: []string{"bme680", "gps"}}
	s := string(rec.Serialize())
	assert.Contains(t, s, `"degraded":["bme680","gps"]`)
}

func TestCyclePublishesWhenOnline(t *testing.T) {
	t.Parallel()

	env := &fakeEnv{r: bme680.Reading{Temperature: 25.08, Pressure: 1006.54, Humidity: 46.0}}
	motion := &fakeMotion{r: mpu6050.Reading{AccelX: 0, AccelY: 0, AccelZ: 1.5}}
	loc := &fakeLoc{f: gps.Fix{Valid: true, Latitude: 21.0, Longitude: 105.8, SpeedKmh: 60}}
	net := &fakeNet{s: network.StateConnected}
	up := &fakeUplink{connected: true}

	a := testAssembler(t, env, motion, loc, net, up)
	assert.True(t, a.Cycle())
	assert.Len(t, up.published, 1)
	s := string(up.published[0])
	assert.Contains(t, s, `"temp":25.08`)
	assert.Contains(t, s, `"vibration":0.500`)
	assert.NotContains(t, s, "degraded")
}

func TestCycleSkipsWhenNetworkDown(t *testing.T) {
	t.Parallel()

	env := &fakeEnv{}
	motion := &fakeMotion{}
	loc := &fakeLoc{}
	net := &fakeNet{s: network.StateConnecting}
	up := &fakeUplink{connected: true}

	a := testAssembler(t, env, motion, loc, net, up)
	assert.False(t, a.Cycle())
	assert.Len(t, up.published, 0)
}

func TestCycleSkipsWithoutBrokerSession(t *testing.T) {
	t.Parallel()

	a := testAssembler(t, &fakeEnv{}, &fakeMotion{}, &fakeLoc{},
		&fakeNet{s: network.StateConnected}, &fakeUplink{connected: false})
	assert.False(t, a.Cycle())
}

func TestCycleMarksDegradedSubsystems(t *testing.T) {
	t.Parallel()

	env := &fakeEnv{r: bme680.Reading{Temperature: 25, Quality: hardware.QualityDegraded}}
	motion := &fakeMotion{r: mpu6050.Placeholder}
	loc := &fakeLoc{f: gps.Placeholder}
	net := &fakeNet{s: network.StateConnected}
	up := &fakeUplink{connected: true}

	a := testAssembler(t, env, motion, loc, net, up)
	assert.True(t, a.Cycle())
	s := string(up.published[0])
	assert.Contains(t, s, `"degraded":["bme680","mpu6050","gps"]`)
	assert.Contains(t, s, `"lat":21.028511`)
}

func TestRunLoopStops(t *testing.T) {
	t.Parallel()

	net := &fakeNet{s: network.StateConnected}
	up := &fakeUplink{connected: true}
	a := testAssembler(t, &fakeEnv{}, &fakeMotion{}, &fakeLoc{}, net, up)
	a.Interval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		a.Run()
		close(done)
	}()
	time.Sleep(35 * time.Millisecond)
	a.Stop()
	<-done
	// immediate first cycle plus at least two ticks
	assert.GreaterOrEqual(t, len(up.published), 3)
}
