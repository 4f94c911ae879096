package tele

import (
	"context"
	"time"

	"github.com/juju/errors"

	"github.com/trackguard/trackguard/helpers"
	tele_config "github.com/trackguard/trackguard/tele/config"
	"github.com/trackguard/trackguard/log2"
)

const defaultNetworkTimeout = 30 * time.Second

// ErrSessionNotConnected explains dropped records in logs and stats.
var ErrSessionNotConnected = errors.New("tele: session not connected")

type Tele struct {
	enabled   bool
	log       *log2.Log
	transport Transporter
	stat      Stat
}

func (self *Tele) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	self.enabled = teleConfig.Enabled
	self.log = log.Clone(log2.LInfo)
	if teleConfig.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.enabled {
		return nil
	}
	self.stat.Locked_Reset()

	// test code sets .transport
	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, log, teleConfig); err != nil {
		return errors.Annotate(err, "tele transport")
	}
	return nil
}

func (self *Tele) Close() {
	if self.enabled && self.transport != nil {
		self.transport.Close()
	}
}

func (self *Tele) IsConnected() bool {
	return self.enabled && self.transport != nil && self.transport.IsConnected()
}

// Publish hands one serialized record to the transport. With no live
// session the record is dropped and counted; freshness beats backlog
// for periodic sensor data.
func (self *Tele) Publish(payload []byte) bool {
	if !self.enabled {
		return false
	}
	if !self.transport.IsConnected() {
		helpers.WithLock(&self.stat, func() { self.stat.Dropped++ })
		self.log.Debugf("tele publish dropped: %v", ErrSessionNotConnected)
		return false
	}
	ok := self.transport.SendTelemetry(payload)
	helpers.WithLock(&self.stat, func() {
		if ok {
			self.stat.Sent++
		} else {
			self.stat.Errors++
		}
	})
	return ok
}

func (self *Tele) Stat() Stat { return self.stat.Copy() }
