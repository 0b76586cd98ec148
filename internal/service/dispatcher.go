package service

import (
	"sync"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
)

const (
	defaultWorkers   = 10
	defaultQueueSize = 256
)

// Dispatcher runs submitted tasks on a fixed pool of workers over a FIFO
// queue, so a burst of photo uploads cannot fan out into an unbounded
// number of concurrent external-API calls. The submitting path returns
// as soon as the task is queued.
type Dispatcher struct {
	queue chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	log   logger.Logger

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(cfg config.DispatcherConfig, log logger.Logger) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	d := &Dispatcher{
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case task := <-d.queue:
			d.run(task)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case task := <-d.queue:
			d.run(task)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("dispatcher: task panicked: %v", r)
		}
	}()
	task()
}

// Submit queues the task. It blocks while the queue is full (FIFO, no
// shedding) and reports false once the dispatcher has been stopped. The
// queue channel is never closed, so a submitter parked on a full queue
// during Stop unblocks through the done signal instead of panicking.
func (d *Dispatcher) Submit(task func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}

	select {
	case d.queue <- task:
		return true
	case <-d.done:
		return false
	}
}

// Stop drains the queue and waits for in-flight tasks to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.wg.Wait()
	// A submitter that won the send race against done may have slipped
	// one last task in after the workers drained.
	d.drain()
}
