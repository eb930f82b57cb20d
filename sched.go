// sched.go - work scheduler for directory tasks
//
// (c) 2025- Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package fsz

import (
	"errors"
	"sync"
	"sync/atomic"
)

// engine drives one operation: a coordinator goroutine, started lazily
// by the first submission, consumes tasks from a FIFO and
// opportunistically puts more workers on the queue whenever it sees a
// backlog (up to maxWorkers). Workers run the same loop minus the
// spawning.
//
// The queue is unbounded in effect: a send that would block is handed
// to a helper goroutine, so a worker can always enqueue children of
// the directory it is streaming. Termination is cooperative - every
// queued task bumps the pending count, and the count reaching zero
// closes the channel. There is no race between workers draining the
// channel and the count reaching zero: a child is only ever added
// while its parent task is still counted.
//
// T is the task payload; S is per-worker scratch state, built by
// mkstate as the first thing on each worker goroutine.
type engine[T any, S any] struct {
	mkstate func() S
	apply   func(S, T) error

	ch      chan T
	pending sync.WaitGroup

	wg       sync.WaitGroup
	nworkers atomic.Int32
	max      int32

	ech  chan error
	ewg  sync.WaitGroup
	errs []error

	startOnce sync.Once
	started   atomic.Bool
	stopped   atomic.Bool
}

func newEngine[T, S any](mkstate func() S, apply func(S, T) error) *engine[T, S] {
	nw := maxWorkers()
	if nw < 0 {
		nw = 0
	}

	return &engine[T, S]{
		mkstate: mkstate,
		apply:   apply,
		ch:      make(chan T, nw+1),
		ech:     make(chan error, nw+1),
		max:     int32(nw),
	}
}

// submit queues one task from outside the engine. The first submission
// starts the coordinator; an engine that never sees work never spawns
// anything.
func (e *engine[T, S]) submit(t T) error {
	if e.stopped.Load() {
		return ErrInternal
	}

	e.pending.Add(1)
	e.startOnce.Do(e.start)
	e.send(t)
	return nil
}

// enq queues the children a worker collected while streaming one
// directory. A single helper goroutine feeds them so the worker is
// never blocked on its own queue.
func (e *engine[T, S]) enq(ts []T) {
	if len(ts) == 0 {
		return
	}

	e.pending.Add(len(ts))
	go func(ts []T) {
		for _, t := range ts {
			e.ch <- t
		}
	}(ts)
}

func (e *engine[T, S]) send(t T) {
	select {
	case e.ch <- t:
	default:
		go func() { e.ch <- t }()
	}
}

// error forwards an error that has no caller to return to (the
// deferred directory-unlink chain). Only valid while the engine runs.
func (e *engine[T, S]) error(err error) {
	e.ech <- err
}

func (e *engine[T, S]) start() {
	e.started.Store(true)

	// the submitter's own reference: it keeps the queue open between
	// root submissions even if the tree drains in between; finish()
	// drops it
	e.pending.Add(1)

	// harvest errors
	e.ewg.Add(1)
	go func() {
		for err := range e.ech {
			e.errs = append(e.errs, err)
		}
		e.ewg.Done()
	}()

	e.wg.Add(1)
	go e.coordinator()

	// close the task channel when the tree is exhausted
	go func() {
		e.pending.Wait()
		close(e.ch)
	}()
}

func (e *engine[T, S]) coordinator() {
	defer e.wg.Done()

	st := e.mkstate()
	for t := range e.ch {
		// backlog and headroom: put another worker on it
		if len(e.ch) > 0 && e.nworkers.Load() < e.max {
			e.nworkers.Add(1)
			e.wg.Add(1)
			go e.worker()
		}
		e.run1(st, t)
	}
}

func (e *engine[T, S]) worker() {
	defer e.wg.Done()

	st := e.mkstate()
	for t := range e.ch {
		e.run1(st, t)
	}
}

// run1 applies one task. The pending count must drop even when apply
// blows up, so panics are converted to a reportable error here.
func (e *engine[T, S]) run1(st S, t T) {
	defer e.pending.Done()
	defer func() {
		if v := recover(); v != nil {
			e.ech <- &JoinError{Panic: v}
		}
	}()

	if err := e.apply(st, t); err != nil {
		e.ech <- err
	}
}

// finish waits for the walk to drain and returns the harvested errors
// joined, first failure first. It is an error to use the engine after
// this.
func (e *engine[T, S]) finish() error {
	if e.stopped.Swap(true) {
		return ErrInternal
	}
	if !e.started.Load() {
		return nil
	}

	e.pending.Done()
	e.wg.Wait()
	close(e.ech)
	e.ewg.Wait()
	return errors.Join(e.errs...)
}
