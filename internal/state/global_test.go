package state

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackguard/trackguard/hardware/gps"
	"github.com/trackguard/trackguard/hardware/i2c"
	"github.com/trackguard/trackguard/log2"
)

func newTestGlobal(t testing.TB, confString string) (*Global, *i2c.MockBus) {
	fs := NewMockFullReader(map[string]string{"test-inline": confString})
	log := log2.NewTest(t, log2.LDebug)
	ctx, g := NewContext(log)
	assert.Same(t, g, GetGlobal(ctx))

	mock := i2c.NewMockBus()
	g.Hardware.Bus = mock
	g.Hardware.Gps = gps.NewReceiver(strings.NewReader(""), log)
	g.MustInit(ctx, MustReadConfig(log, fs, "test-inline"))
	return g, mock
}

func TestGlobalInit(t *testing.T) {
	t.Parallel()

	g, _ := newTestGlobal(t, `
telemetry { device_id = "train-001"
            interval_sec = 7 }
hardware { gps { read_timeout_ms = 250 } }
`)
	assert.NotNil(t, g.Hardware.Bme680)
	assert.NotNil(t, g.Hardware.Mpu6050)
	assert.Equal(t, 7*time.Second, g.TelemetryInterval())
	assert.Equal(t, 250*time.Millisecond, g.GpsReadTimeout())
	// tele carries the telemetry device id when its own is not set
	assert.Equal(t, "train-001", g.Config.Tele.DeviceId)
}

func TestGlobalInitDeviceIdRequired(t *testing.T) {
	t.Parallel()

	fs := NewMockFullReader(map[string]string{"test-inline": `telemetry {}`})
	log := log2.NewTest(t, log2.LDebug)
	ctx, g := NewContext(log)
	g.Hardware.Bus = i2c.NewMockBus()
	err := g.Init(ctx, MustReadConfig(log, fs, "test-inline"))
	require.Error(t, err)
}

func TestGlobalDefaults(t *testing.T) {
	t.Parallel()

	g, _ := newTestGlobal(t, `telemetry { device_id = "t" }`)
	assert.Equal(t, 5*time.Second, g.TelemetryInterval())
	assert.Equal(t, time.Second, g.GpsReadTimeout())
}
