package tele

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tele_config "github.com/trackguard/trackguard/tele/config"
	"github.com/trackguard/trackguard/log2"
)

type transportMock struct {
	t              testing.TB
	connected      uint32
	sendOk         bool
	networkTimeout time.Duration
	outTelemetry   chan []byte
	outBuffer      int
}

func (self *transportMock) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	if self.networkTimeout == 0 {
		self.networkTimeout = defaultNetworkTimeout
	}
	self.outTelemetry = make(chan []byte, self.outBuffer)
	return nil
}

func (self *transportMock) Close() {}

func (self *transportMock) IsConnected() bool { return atomic.LoadUint32(&self.connected) == 1 }

func (self *transportMock) setConnected(b bool) {
	if b {
		atomic.StoreUint32(&self.connected, 1)
	} else {
		atomic.StoreUint32(&self.connected, 0)
	}
}

func (self *transportMock) SendTelemetry(payload []byte) bool {
	if !self.sendOk {
		self.t.Logf("mock send error payload=%s", payload)
		return false
	}
	select {
	case self.outTelemetry <- payload:
		self.t.Logf("mock delivered telemetry=%s", payload)
	case <-time.After(self.networkTimeout):
		self.t.Logf("mock network timeout")
		return false
	}
	return true
}

// NewTestTele returns a Tele over an in-memory transport plus the mock
// for scripting connectivity and observing deliveries.
func NewTestTele(t testing.TB) (*Tele, *TeleMock) {
	mock := &transportMock{t: t, sendOk: true, outBuffer: 32, networkTimeout: 5 * time.Second}
	tele := &Tele{transport: mock}
	return tele, &TeleMock{mock: mock}
}

type TeleMock struct {
	mock *transportMock
}

func (tm *TeleMock) SetConnected(b bool) { tm.mock.setConnected(b) }
func (tm *TeleMock) SetSendOk(b bool)    { tm.mock.sendOk = b }
func (tm *TeleMock) Out() <-chan []byte  { return tm.mock.outTelemetry }
