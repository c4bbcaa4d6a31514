package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerManager_Fires(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	fired := make(chan struct{}, 1)
	m.AddTimer("ROOM01", 10*time.Millisecond, 0, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return m.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerManager_RemoveTimer(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var count int32
	id := m.AddTimer("ROOM01", 30*time.Millisecond, 0, func() { atomic.AddInt32(&count, 1) })
	m.RemoveTimer(id)

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&count))
}

func TestTimerManager_RemoveOwner(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var a, b int32
	m.AddTimer("A", 30*time.Millisecond, 0, func() { atomic.AddInt32(&a, 1) })
	m.AddTimer("A", 40*time.Millisecond, 0, func() { atomic.AddInt32(&a, 1) })
	m.AddTimer("B", 30*time.Millisecond, 0, func() { atomic.AddInt32(&b, 1) })

	require.Equal(t, 2, m.RemoveOwner("A"))
	assert.Equal(t, 1, m.Pending())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&b) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&a))
}

func TestTimerManager_Interval(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var count int32
	m.AddTimer("sweep", 0, 10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.Pending(), "repeating tasks stay queued")
}
