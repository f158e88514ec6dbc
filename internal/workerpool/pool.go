// Package workerpool offloads blocking database writes off an event loop
// onto a small, bounded pool of goroutines, per spec.md §5's "CPU-bound
// database writes are explicitly offloaded to a blocking worker pool".
// The pack declares no dedicated worker-pool dependency (the teacher's
// go.mod lists none, and ethereum-go-ethereum vendors a bounded
// channel-plus-goroutines pool of its own rather than importing one), so
// this is a small, self-contained pool shaped the same way: a fixed set of
// workers pulling closures off a buffered job channel.
package workerpool

import "sync"

// Pool runs submitted tasks across a fixed number of worker goroutines.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

// New starts a Pool with size workers. size must be at least 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{jobs: make(chan func(), size*4)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit enqueues task for execution by some worker. It blocks if every
// worker is busy and the job buffer is full.
func (p *Pool) Submit(task func()) {
	p.jobs <- task
}

// Stop closes the job channel and waits for every in-flight and queued task
// to finish. Submit must not be called after Stop.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
