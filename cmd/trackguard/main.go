// trackguard is the onboard telemetry node: it samples the
// environmental, inertial and location sensors on a fixed interval and
// publishes one JSON record per cycle to the MQTT uplink.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"

	"github.com/trackguard/trackguard/helpers"
	"github.com/trackguard/trackguard/internal/network"
	"github.com/trackguard/trackguard/internal/state"
	"github.com/trackguard/trackguard/internal/telemetry"
	"github.com/trackguard/trackguard/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

const defaultWatchInterval = 10 * time.Second

func main() {
	flagConfig := flag.String("config", "trackguard.hcl", "")
	flagVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *flagVersion {
		fmt.Println(BuildVersion)
		return
	}

	log := log2.NewStderr(log2.LDebug)
	if sdnotify("STATUS=starting") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LStdFlags)
	}
	log.Infof("trackguard version=%s", BuildVersion)

	ctx, g := state.NewContext(log)
	cfg := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	g.MustInit(ctx, cfg)

	netman := startNetwork(g)

	asm := telemetry.NewAssembler(
		g.Config.Telemetry.DeviceId,
		g.Hardware.Bme680,
		g.Hardware.Mpu6050,
		g.Hardware.Gps,
		netman,
		g.Tele,
		log,
	)
	asm.Interval = g.TelemetryInterval()
	asm.GpsTimeout = g.GpsReadTimeout()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigch
		log.Infof("signal %v, stopping", sig)
		asm.Stop()
	}()

	sdnotify(daemon.SdNotifyReady)
	log.Infof("init complete, interval=%v device=%s", asm.Interval, g.Config.Telemetry.DeviceId)
	asm.Run()

	netman.Stop()
	g.Stop()
	log.Infof("goodbye")
}

// startNetwork brings up the uplink manager over broker reachability.
// Failures degrade to offline operation, the sampling loop runs anyway.
func startNetwork(g *state.Global) *network.Manager {
	log := g.Log
	link := &network.ProbeLink{Timeout: network.DefaultProbeTimeout}
	netman := network.NewManager(link, g.Config.Network.RetryMax, log)
	link.Notify = netman.Notify

	if !g.Config.Tele.Enabled || g.Config.Tele.MqttBroker == "" {
		log.Infof("uplink disabled, running offline")
		return netman
	}

	// with an uplink configured, link layer bring-up failures are fatal
	addr, err := network.BrokerAddr(g.Config.Tele.MqttBroker)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	link.Addr = addr

	if err := netman.Start(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	go link.Watch(defaultWatchInterval, g.Alive.StopChan())

	waitTimeout := helpers.IntSecondDefault(g.Config.Network.WaitSec, 30*time.Second)
	switch netman.WaitOnline(waitTimeout) {
	case network.OutcomeConnected:
		log.Infof("network online")
	case network.OutcomeFailed:
		log.Errorf("network failed, telemetry will be dropped until recovery")
	case network.OutcomeTimedOut:
		log.Errorf("network not ready after %v, continuing", waitTimeout)
	}
	return netman
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sdnotify: ", errors.ErrorStack(err))
		os.Exit(1)
	}
	return ok
}
