package network

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
)

const DefaultProbeTimeout = 5 * time.Second

// ProbeLink treats reachability of the telemetry broker endpoint as
// the uplink. Associate dials the endpoint once and reports the
// up/addr events; Watch keeps probing and reports loss transitions.
type ProbeLink struct {
	Addr    string // host:port
	Timeout time.Duration

	// Notify is the manager event sink, set after NewManager.
	Notify func(Event)
}

func (l *ProbeLink) Associate() error {
	timeout := l.Timeout
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}
	conn, err := net.DialTimeout("tcp", l.Addr, timeout)
	if err != nil {
		return errors.Annotatef(err, "probe addr=%s", l.Addr)
	}
	conn.Close()
	if l.Notify != nil {
		l.Notify(EventLinkUp)
		l.Notify(EventAddrAcquired)
	}
	return nil
}

// Watch probes every interval until stopch closes. Only the
// success-to-failure transition is reported; recovery goes through the
// manager's Associate retry.
func (l *ProbeLink) Watch(interval time.Duration, stopch <-chan struct{}) {
	timeout := l.Timeout
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}
	up := true
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			conn, err := net.DialTimeout("tcp", l.Addr, timeout)
			if err == nil {
				conn.Close()
				up = true
				continue
			}
			if up {
				up = false
				if l.Notify != nil {
					l.Notify(EventLinkLost)
				}
			}
		case <-stopch:
			return
		}
	}
}

// BrokerAddr extracts host:port from an MQTT broker URL such as
// tcp://host:1883. A bare host:port passes through.
func BrokerAddr(broker string) (string, error) {
	if !strings.Contains(broker, "://") {
		if _, _, err := net.SplitHostPort(broker); err != nil {
			return "", errors.Annotatef(err, "broker=%s", broker)
		}
		return broker, nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", errors.Annotatef(err, "broker=%s", broker)
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		host = net.JoinHostPort(host, "1883")
	}
	return host, nil
}
