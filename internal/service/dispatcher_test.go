package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
)

func TestDispatcher_RunsEveryTask(t *testing.T) {
	d := NewDispatcher(config.DispatcherConfig{Workers: 4, QueueSize: 16}, logger.NoOp{})

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		ok := d.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		})
		assert.True(t, ok)
	}
	wg.Wait()
	d.Stop()
	assert.Equal(t, int64(50), atomic.LoadInt64(&counter))
}

func TestDispatcher_ConcurrencyBoundedByWorkers(t *testing.T) {
	d := NewDispatcher(config.DispatcherConfig{Workers: 3, QueueSize: 64}, logger.NoOp{})

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		d.Submit(func() {
			defer wg.Done()
			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		})
	}
	wg.Wait()
	d.Stop()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	d := NewDispatcher(config.DispatcherConfig{Workers: 1, QueueSize: 1}, logger.NoOp{})
	d.Stop()
	assert.False(t, d.Submit(func() {}))
}

func TestDispatcher_StopWaitsForInFlightTasks(t *testing.T) {
	d := NewDispatcher(config.DispatcherConfig{Workers: 2, QueueSize: 8}, logger.NoOp{})

	var done int64
	for i := 0; i < 8; i++ {
		d.Submit(func() {
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&done, 1)
		})
	}
	d.Stop()
	assert.Equal(t, int64(8), atomic.LoadInt64(&done))
}

func TestDispatcher_StopWhileSubmitterParkedOnFullQueue(t *testing.T) {
	d := NewDispatcher(config.DispatcherConfig{Workers: 1, QueueSize: 1}, logger.NoOp{})

	started := make(chan struct{})
	release := make(chan struct{})
	assert.True(t, d.Submit(func() { // occupies the only worker
		close(started)
		<-release
	}))
	<-started
	assert.True(t, d.Submit(func() {})) // fills the only queue slot

	result := make(chan bool)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Submit panicked during Stop: %v", r)
			}
		}()
		result <- d.Submit(func() {}) // parks on the full queue
	}()
	time.Sleep(10 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("parked Submit did not return after Stop")
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not finish after the worker was released")
	}
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	d := NewDispatcher(config.DispatcherConfig{Workers: 1, QueueSize: 4}, logger.NoOp{})

	d.Submit(func() { panic("boom") })

	ran := make(chan struct{})
	d.Submit(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
	d.Stop()
}
