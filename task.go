package modgen

import (
	"sync"

	"github.com/wasmforge/modgen/compiler"
	"github.com/wasmforge/modgen/object"
)

// WorkerPool submits a unit of work for execution, possibly on another
// goroutine. The Generator's own serial fallback never implements this
// interface; it runs tasks inline instead.
type WorkerPool interface {
	Submit(func())
}

// compileTask is the value object a batch of function bodies accumulates
// into before dispatch: inputs plus the eventual output (or error).
type compileTask struct {
	inputs  []compiler.Input
	byteLen int

	output object.CompiledCode
	err    error
}

func (t *compileTask) reset() {
	t.inputs = t.inputs[:0]
	t.byteLen = 0
	t.output = object.CompiledCode{}
	t.err = nil
}

// taskState is the single mutex-protected record through which every
// worker and the coordinator communicate, per spec.md §5. wakeCh is the
// idiomatic Go substitute for a condition variable: a non-blocking
// signal channel, the same pattern launix-de-memcp's scheduler uses for
// its own producer/consumer wakeups (wakeCh chan struct{}, signalLocked
// sends without blocking, the waiter selects on it under its own lock
// discipline).
type taskState struct {
	mu           sync.Mutex
	finished     []*compileTask
	numFailed    uint32
	errorMessage string
	wakeCh       chan struct{}
}

func newTaskState() *taskState {
	return &taskState{wakeCh: make(chan struct{}, 1)}
}

func (s *taskState) signal() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *taskState) reportFinished(t *compileTask) {
	s.mu.Lock()
	s.finished = append(s.finished, t)
	s.mu.Unlock()
	s.signal()
}

func (s *taskState) reportFailed(t *compileTask, err error) {
	s.mu.Lock()
	t.err = err
	s.numFailed++
	if s.errorMessage == "" {
		s.errorMessage = err.Error()
	}
	s.finished = append(s.finished, t)
	s.mu.Unlock()
	s.signal()
}

// takeFinished pops and returns one finished task, blocking on wakeCh
// until the worker side has reported at least one.
func (s *taskState) takeFinished() *compileTask {
	for {
		s.mu.Lock()
		if len(s.finished) > 0 {
			t := s.finished[0]
			s.finished = s.finished[1:]
			s.mu.Unlock()
			return t
		}
		s.mu.Unlock()
		<-s.wakeCh
	}
}

// taskPool is the fixed-size pool of compileTasks: a free list plus an
// in-flight set, sized 2*MaxCompilationThreads for parallel mode or 1
// for serial mode, per spec.md §4.1.
type taskPool struct {
	all      []*compileTask
	free     []*compileTask
	inFlight map[*compileTask]bool

	outstanding int
	state       *taskState
}

func newTaskPool(size int) *taskPool {
	tp := &taskPool{
		inFlight: make(map[*compileTask]bool),
		state:    newTaskState(),
	}
	for i := 0; i < size; i++ {
		t := &compileTask{}
		tp.all = append(tp.all, t)
		tp.free = append(tp.free, t)
	}
	return tp
}

// acquire pops a task off the free list, blocking via finishOutstanding
// if the pool is fully in flight. link is applied to every task that
// finishes while waiting, exactly as compileFuncDef's "block on
// finishOutstandingTask" does in the original.
func (tp *taskPool) acquire(link func(*compileTask) error) (*compileTask, error) {
	for len(tp.free) == 0 {
		if err := tp.finishOutstanding(link); err != nil {
			return nil, err
		}
	}
	t := tp.free[len(tp.free)-1]
	tp.free = tp.free[:len(tp.free)-1]
	return t, nil
}

// finishOutstanding waits for one in-flight task to complete, links it
// in via link, and returns it to the free list. It is the Go analogue of
// finishOutstandingTask's wait on the failedOrFinished condvar.
func (tp *taskPool) finishOutstanding(link func(*compileTask) error) error {
	if tp.outstanding == 0 {
		return nil
	}
	t := tp.state.takeFinished()
	delete(tp.inFlight, t)
	tp.outstanding--

	err := t.err
	if err == nil {
		err = link(t)
	}
	t.reset()
	tp.free = append(tp.free, t)
	return err
}

// drain waits for every in-flight task to finish, linking each one in,
// and returns the first error encountered (matching the destructor's
// drain-then-surface-error behavior).
func (tp *taskPool) drain(link func(*compileTask) error) error {
	var firstErr error
	for tp.outstanding > 0 {
		if err := tp.finishOutstanding(link); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// launchBatchCompile dispatches a filled task: inline in serial mode
// (pool == nil), or submitted to the external WorkerPool and tracked via
// taskState otherwise. compile runs the actual per-function compiler
// black box; its result is attached to the task and reported through
// taskState so the coordinator's acquire/finishOutstanding/drain loops
// see it.
func (tp *taskPool) launchBatchCompile(t *compileTask, pool WorkerPool, compile func(inputs []compiler.Input) (object.CompiledCode, error)) {
	tp.outstanding++
	tp.inFlight[t] = true

	run := func() {
		out, err := compile(t.inputs)
		if err != nil {
			tp.state.reportFailed(t, err)
			return
		}
		t.output = out
		tp.state.reportFinished(t)
	}

	if pool == nil {
		run()
	} else {
		pool.Submit(run)
	}
}
