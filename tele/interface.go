// Package tele pushes telemetry records to the MQTT uplink. Contract:
// - Init() fails only on invalid config, broker problems are ignored
// - Publish() never blocks beyond the network timeout; with no live
//   session the record is dropped and counted, never queued
// - Close() disconnects the session
package tele

import (
	"context"

	tele_config "github.com/trackguard/trackguard/tele/config"
	"github.com/trackguard/trackguard/log2"
)

type Transporter interface {
	Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error
	SendTelemetry(payload []byte) bool
	IsConnected() bool
	Close()
}
