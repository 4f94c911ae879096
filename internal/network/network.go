// Package network owns the uplink lifecycle: one goroutine consumes
// link events, drives re-association with capped retries, and exposes
// the current state plus a blocking wait for connectivity.
package network

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/trackguard/trackguard/helpers"
	"github.com/trackguard/trackguard/log2"
)

const DefaultRetryMax = 10

// ErrLinkFailure marks a failed association attempt at startup.
var ErrLinkFailure = errors.New("network: link failure")

type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", uint32(s))
}

type Event uint8

const (
	EventLinkUp Event = iota
	EventLinkLost
	EventAddrAcquired
)

func (e Event) String() string {
	switch e {
	case EventLinkUp:
		return "link-up"
	case EventLinkLost:
		return "link-lost"
	case EventAddrAcquired:
		return "addr-acquired"
	}
	return fmt.Sprintf("unknown(%d)", uint8(e))
}

// Outcome is the answer to WaitOnline.
type Outcome uint8

const (
	OutcomeConnected Outcome = iota
	OutcomeFailed
	OutcomeTimedOut
)

// Link is the physical uplink. Associate starts one association
// attempt; progress comes back asynchronously through Manager.Notify.
type Link interface {
	Associate() error
}

type Manager struct {
	// Backoff paces re-association. Override before Start.
	Backoff helpers.Backoff

	log      *log2.Log
	alive    *alive.Alive
	link     Link
	events   chan Event
	state    uint32
	retryMax int

	lk      sync.Mutex
	waiters []*helpers.Future
}

func NewManager(link Link, retryMax int, log *log2.Log) *Manager {
	if retryMax <= 0 {
		retryMax = DefaultRetryMax
	}
	return &Manager{
		Backoff:  helpers.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, K: 2},
		log:      log,
		alive:    alive.NewAlive(),
		link:     link,
		events:   make(chan Event, 8),
		retryMax: retryMax,
	}
}

func (m *Manager) State() State { return State(atomic.LoadUint32(&m.state)) }

func (m *Manager) setState(s State) {
	old := State(atomic.SwapUint32(&m.state, uint32(s)))
	if old != s {
		m.log.Infof("network state %s -> %s", old, s)
	}
}

// Start kicks off the first association attempt and the event owner
// goroutine. An immediate Associate error is fatal to Start; losses
// after that go through the retry path.
func (m *Manager) Start() error {
	m.setState(StateConnecting)
	if err := m.link.Associate(); err != nil {
		m.setState(StateError)
		m.finishWaiters(OutcomeFailed)
		return errors.Wrap(err, ErrLinkFailure)
	}
	m.alive.Add(1)
	go m.run()
	return nil
}

func (m *Manager) Stop() {
	m.alive.Stop()
	m.alive.Wait()
}

// Notify feeds a link event into the owner goroutine. The link
// implementation calls this from its own callbacks.
func (m *Manager) Notify(e Event) {
	select {
	case m.events <- e:
	case <-m.alive.StopChan():
	}
}

// WaitOnline blocks until the manager reaches Connected, gives up
// (retry budget exhausted) or the timeout expires.
func (m *Manager) WaitOnline(timeout time.Duration) Outcome {
	switch m.State() {
	case StateConnected:
		return OutcomeConnected
	case StateError:
		return OutcomeFailed
	}

	f := helpers.NewFuture()
	m.lk.Lock()
	m.waiters = append(m.waiters, f)
	m.lk.Unlock()

	// the state may have settled between the check and registration
	switch m.State() {
	case StateConnected:
		m.dropWaiter(f)
		return OutcomeConnected
	case StateError:
		m.dropWaiter(f)
		return OutcomeFailed
	}

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()
	select {
	case <-f.Completed():
		return f.Result().(Outcome)
	case <-f.Cancelled():
		return f.Result().(Outcome)
	case <-tmr.C:
		m.dropWaiter(f)
		return OutcomeTimedOut
	}
}

func (m *Manager) run() {
	defer m.alive.Done()
	stopch := m.alive.StopChan()
	retries := 0

	for {
		select {
		case e := <-m.events:
			m.log.Debugf("network event %s", e)
			switch e {
			case EventLinkUp:
				// associated, address still pending

			case EventAddrAcquired:
				retries = 0
				m.Backoff.Update(true)
				m.setState(StateConnected)
				m.finishWaiters(OutcomeConnected)

			case EventLinkLost:
				retries++
				if retries > m.retryMax {
					m.setState(StateError)
					m.log.Errorf("network link lost, gave up after %d attempts", m.retryMax)
					m.finishWaiters(OutcomeFailed)
					continue
				}
				m.setState(StateConnecting)
				delay := m.Backoff.DelayBefore()
				m.log.Infof("network link lost, retry %d/%d delay=%v", retries, m.retryMax, delay)
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-stopch:
						m.setState(StateDisconnected)
						return
					}
				}
				m.Backoff.Update(false)
				if err := m.link.Associate(); err != nil {
					m.log.Errorf("network associate: %v", err)
					// count the failed attempt like a loss
					select {
					case m.events <- EventLinkLost:
					default:
					}
				}
			}

		case <-stopch:
			m.setState(StateDisconnected)
			m.finishWaiters(OutcomeFailed)
			return
		}
	}
}

func (m *Manager) finishWaiters(o Outcome) {
	m.lk.Lock()
	ws := m.waiters
	m.waiters = nil
	m.lk.Unlock()
	for _, f := range ws {
		if o == OutcomeConnected {
			f.Complete(o)
		} else {
			f.Cancel(o)
		}
	}
}

func (m *Manager) dropWaiter(f *helpers.Future) {
	m.lk.Lock()
	defer m.lk.Unlock()
	for i, w := range m.waiters {
		if w == f {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}
