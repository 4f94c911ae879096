package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeLinkAssociate(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var events []Event
	link := &ProbeLink{
		Addr:    ln.Addr().String(),
		Timeout: time.Second,
		Notify:  func(e Event) { events = append(events, e) },
	}
	require.NoError(t, link.Associate())
	assert.Equal(t, []Event{EventLinkUp, EventAddrAcquired}, events)
}

func TestProbeLinkAssociateRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	link := &ProbeLink{Addr: addr, Timeout: 200 * time.Millisecond}
	assert.Error(t, link.Associate())
}

func TestProbeLinkWatchReportsLoss(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	lost := make(chan Event, 4)
	link := &ProbeLink{
		Addr:    addr,
		Timeout: 200 * time.Millisecond,
		Notify:  func(e Event) { lost <- e },
	}
	stopch := make(chan struct{})
	defer close(stopch)
	go link.Watch(10*time.Millisecond, stopch)

	time.Sleep(30 * time.Millisecond)
	ln.Close()

	select {
	case e := <-lost:
		assert.Equal(t, EventLinkLost, e)
	case <-time.After(2 * time.Second):
		t.Fatal("expected link-lost event")
	}
}

func TestBrokerAddr(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		expect string
		ok     bool
	}{
		{"tcp://192.168.0.102:1883", "192.168.0.102:1883", true},
		{"tcp://broker.example.com", "broker.example.com:1883", true},
		{"mqtt://10.0.0.1:1883", "10.0.0.1:1883", true},
		{"10.0.0.1:1883", "10.0.0.1:1883", true},
		{"garbage", "", false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			addr, err := BrokerAddr(c.in)
			if c.ok {
				require.NoError(t, err)
				assert.Equal(t, c.expect, addr)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
