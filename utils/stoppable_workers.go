package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers runs goroutines sharing one context that is cancelled by Stop. Panics in a
// worker are captured and logged by go.viam.com/utils rather than crashing the control loop.
type StoppableWorkers struct {
	ctx    context.Context
	cancel func()

	mu      sync.Mutex
	running sync.WaitGroup
}

// NewStoppableWorkers starts one goroutine per function.
func NewStoppableWorkers(funcs ...func(context.Context)) *StoppableWorkers {
	return NewStoppableWorkersWithContext(context.Background(), funcs...)
}

// NewStoppableWorkersWithContext is like NewStoppableWorkers, but the workers are also stopped
// when the parent context is cancelled.
func NewStoppableWorkersWithContext(parent context.Context, funcs ...func(context.Context)) *StoppableWorkers {
	ctx, cancel := context.WithCancel(parent)
	sw := &StoppableWorkers{ctx: ctx, cancel: cancel}
	sw.AddWorkers(funcs...)
	return sw
}

// AddWorkers starts one more goroutine per function. Nothing is started once Stop was called.
func (sw *StoppableWorkers) AddWorkers(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.ctx.Err() != nil {
		return
	}
	sw.running.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.running.Done()
			f(sw.ctx)
		})
	}
}

// Stop cancels the workers' context and waits for every worker to return. It may be called more
// than once, but never from a worker.
func (sw *StoppableWorkers) Stop() {
	sw.mu.Lock()
	sw.cancel()
	sw.mu.Unlock()
	sw.running.Wait()
}

// Context is the context handed to every worker.
func (sw *StoppableWorkers) Context() context.Context {
	return sw.ctx
}
