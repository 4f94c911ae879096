package helpers

import (
	"sync"
)

// Future with separate completed/cancelled channels so a waiter can
// distinguish the two outcomes (or a timeout) in one select statement.
type Future struct {
	result    interface{}
	completed chan struct{}
	cancelled chan struct{}
	done      bool
	mutex     sync.Mutex
}

func NewFuture() *Future {
	return &Future{
		completed: make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

func (f *Future) Cancelled() <-chan struct{} { return f.cancelled }
func (f *Future) Completed() <-chan struct{} { return f.completed }

func (f *Future) Complete(result interface{}) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.done {
		return false
	}

	f.result = result
	close(f.completed)
	f.done = true
	return true
}

func (f *Future) Cancel(result interface{}) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.done {
		return false
	}

	f.result = result
	close(f.cancelled)
	f.done = true
	return true
}

func (f *Future) Result() interface{} {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.result
}
