package wsclient

import "sync"

// Scheduler decides which goroutine runs client event handlers.
// Do must not return before fn has finished, so frames stay strictly ordered.
type Scheduler interface {
	Do(fn func())
}

// InlineScheduler runs handlers on the client's connection goroutine.
type InlineScheduler struct{}

func (InlineScheduler) Do(fn func()) {
	fn()
}

// SerialScheduler runs every handler on one owning goroutine.
// Handlers it runs must not call Do themselves.
type SerialScheduler struct {
	tasks chan serialTask
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

type serialTask struct {
	fn   func()
	done chan struct{}
}

func NewSerialScheduler() *SerialScheduler {
	s := &SerialScheduler{
		tasks: make(chan serialTask),
		stop:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()

	return s
}

// Do hands fn to the owning goroutine and waits for it. After Close, fn is dropped.
func (s *SerialScheduler) Do(fn func()) {
	task := serialTask{fn: fn, done: make(chan struct{})}
	select {
	case s.tasks <- task:
	case <-s.stop:
		return
	}
	<-task.done
}

func (s *SerialScheduler) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *SerialScheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case task := <-s.tasks:
			task.fn()
			close(task.done)
		}
	}
}
