package state

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/trackguard/trackguard/hardware/bme680"
	"github.com/trackguard/trackguard/hardware/gps"
	"github.com/trackguard/trackguard/hardware/i2c"
	"github.com/trackguard/trackguard/hardware/mpu6050"
	"github.com/trackguard/trackguard/helpers"
	"github.com/trackguard/trackguard/log2"
	"github.com/trackguard/trackguard/tele"
)

type Global struct {
	Alive    *alive.Alive
	Config   *Config
	Hardware struct {
		Bus     i2c.Bus
		Bme680  *bme680.Sensor
		Mpu6050 *mpu6050.Sensor
		Gps     *gps.Receiver
		GpsPort *gps.Port
	}
	Log  *log2.Log
	Tele *tele.Tele
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
		Tele:  &tele.Tele{},
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, ContextKey, g)

	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// Init brings up tele, the I2C bus and the sensors. Only the bus open
// is fatal; a sensor that fails to init serves placeholder data.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg

	if g.Config.Telemetry.DeviceId == "" {
		g.Config.Telemetry.DeviceId = g.Config.Tele.DeviceId
	}
	if g.Config.Tele.DeviceId == "" {
		g.Config.Tele.DeviceId = g.Config.Telemetry.DeviceId
	}
	if g.Config.Telemetry.DeviceId == "" {
		return errors.Errorf("config: telemetry.device_id=empty")
	}

	// tele is the remote reporting mechanism, init before anything else
	if err := g.Tele.Init(ctx, g.Log, g.Config.Tele); err != nil {
		return errors.Annotate(err, "tele init")
	}

	busTimeout := helpers.IntMillisecondDefault(g.Config.Hardware.I2C.TimeoutMs, i2c.DefaultTimeout)
	if g.Hardware.Bus == nil { // test code presets a mock bus
		g.Hardware.Bus = i2c.NewBus(byte(g.Config.Hardware.I2C.Dev), busTimeout)
	}
	if err := g.Hardware.Bus.Init(); err != nil {
		return errors.Annotatef(err, "i2c bus dev=%d", g.Config.Hardware.I2C.Dev)
	}

	bmeAddr := byte(g.Config.Hardware.Bme680.Addr)
	if bmeAddr == 0 {
		bmeAddr = bme680.DefaultAddr
	}
	g.Hardware.Bme680 = bme680.NewSensor(g.Hardware.Bus, bmeAddr, g.Log)
	if err := g.Hardware.Bme680.Init(); err != nil {
		g.Log.Errorf("bme680 init failed, serving placeholder data: %v", err)
	}

	mpuAddr := byte(g.Config.Hardware.Mpu6050.Addr)
	if mpuAddr == 0 {
		mpuAddr = mpu6050.DefaultAddr
	}
	g.Hardware.Mpu6050 = mpu6050.NewSensor(g.Hardware.Bus, mpuAddr, g.Log)
	if err := g.Hardware.Mpu6050.Init(); err != nil {
		g.Log.Errorf("mpu6050 init failed, serving placeholder data: %v", err)
	}

	g.initGps()
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) initGps() {
	if g.Hardware.Gps != nil { // test code presets a receiver
		return
	}
	device := g.Config.Hardware.Gps.Device
	if device == "" {
		device = "/dev/ttyS0"
	}
	baud := g.Config.Hardware.Gps.Baud
	if baud == 0 {
		baud = 9600
	}
	port, err := gps.OpenPort(device, baud)
	if err != nil {
		g.Log.Errorf("gps open device=%s failed, serving placeholder data: %v", device, err)
		// a drained receiver always answers with the placeholder fix
		g.Hardware.Gps = gps.NewReceiver(bytes.NewReader(nil), g.Log)
		return
	}
	g.Hardware.GpsPort = port
	g.Hardware.Gps = gps.NewReceiver(port, g.Log)
}

func (g *Global) GpsReadTimeout() time.Duration {
	return helpers.IntMillisecondDefault(g.Config.Hardware.Gps.ReadTimeoutMs, time.Second)
}

func (g *Global) TelemetryInterval() time.Duration {
	return helpers.IntSecondDefault(g.Config.Telemetry.IntervalSec, 5*time.Second)
}

func (g *Global) Stop() {
	g.Alive.Stop()
	g.Alive.Wait()
	g.Tele.Close()
	if g.Hardware.GpsPort != nil {
		g.Hardware.GpsPort.Close()
	}
	if g.Hardware.Bus != nil {
		g.Hardware.Bus.Close()
	}
}
