package shortcut

import (
	"runtime/debug"
	"sync"

	"voicekey/log"
)

// Pool runs side work (replays, restores) off the hook threads on a fixed set
// of workers. Submit never blocks.
type Pool struct {
	jobs chan func()
	quit chan struct{}
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines sharing a queue of the given depth.
func NewPool(workers, depth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < workers {
		depth = workers
	}
	p := &Pool{
		jobs: make(chan func(), depth),
		quit: make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case fn := <-p.jobs:
			p.run(fn)
		}
	}
}

func (p *Pool) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("pool job panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Submit queues fn and reports whether it was accepted. It fails when the
// queue is full or the pool has been shut down.
func (p *Pool) Submit(fn func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- fn:
		return true
	default:
		return false
	}
}

// Done is closed when the pool shuts down, so long-running jobs can bail out.
func (p *Pool) Done() <-chan struct{} {
	return p.quit
}

// Shutdown stops accepting work and tells the workers to exit. It does not
// wait for jobs already running; queued jobs may be dropped.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.quit)
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
