package helpers

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))

	err := FoldErrors([]error{errors.New("first"), nil, errors.New("second")})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

func TestFutureComplete(t *testing.T) {
	t.Parallel()

	f := NewFuture()
	go f.Complete(42)
	select {
	case <-f.Completed():
		assert.Equal(t, 42, f.Result())
	case <-f.Cancelled():
		t.Fatal("unexpected cancel")
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	// settled future ignores further transitions
	assert.False(t, f.Cancel(13))
	assert.Equal(t, 42, f.Result())
}

func TestFutureCancel(t *testing.T) {
	t.Parallel()

	f := NewFuture()
	assert.True(t, f.Cancel("stop"))
	select {
	case <-f.Cancelled():
		assert.Equal(t, "stop", f.Result())
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestBackoffGrowsAndResets(t *testing.T) {
	t.Parallel()

	b := &Backoff{Min: 10 * time.Millisecond, Max: 80 * time.Millisecond, K: 2}
	assert.Equal(t, time.Duration(0), b.DelayBefore())

	b.Failure()
	d1 := b.DelayBefore()
	assert.True(t, d1 > 0 && d1 <= 20*time.Millisecond, "d1=%v", d1)

	b.Failure()
	b.Failure()
	b.Failure()
	b.Failure()
	d2 := b.DelayBefore()
	assert.True(t, d2 <= 80*time.Millisecond, "d2=%v", d2)

	b.Reset()
	d3 := b.DelayBefore()
	assert.True(t, d3 <= b.Min, "d3=%v", d3)
}
