package modgen

import (
	"log"
)

// Config carries the tunable knobs of a Generator. Zero values are
// replaced with effective defaults by setDefaults, the way the teacher's
// own Config is documented to behave.
type Config struct {
	// CodeSectionSizeHint is the estimated size in bytes of the
	// compiled module's code; the master buffer is reserved at ~1.2x
	// this size. Zero selects a small built-in default.
	CodeSectionSizeHint int

	// MaxCompilationThreads bounds the worker pool. A value of 0 or 1
	// selects serial compilation (task pool of size 1, no WorkerPool
	// required).
	MaxCompilationThreads int

	// JumpThreshold tightens the branch range used by the Call-Site
	// Patcher below the ISA's own limit. Zero selects
	// asm.JumpImmediateRange unmodified.
	JumpThreshold uint32

	// BaselineBatchThreshold and OptimizingBatchThreshold are the
	// summed-bytecode-length thresholds at which a partially filled
	// CompileTask is dispatched, one per tier.
	BaselineBatchThreshold   int
	OptimizingBatchThreshold int

	// TwoTier requests that FinishModule additionally build a jump
	// table indexed by function index.
	TwoTier bool

	// Logger receives progress and cancellation diagnostics. Nil
	// selects a discard logger; never written to on the
	// per-instruction hot path.
	Logger *log.Logger
}

const (
	defaultCodeSectionSizeHint      = 64 * 1024
	defaultBaselineBatchThreshold   = 4 * 1024
	defaultOptimizingBatchThreshold = 16 * 1024
)

func (c *Config) setDefaults() {
	if c.CodeSectionSizeHint == 0 {
		c.CodeSectionSizeHint = defaultCodeSectionSizeHint
	}
	if c.MaxCompilationThreads == 0 {
		c.MaxCompilationThreads = 1
	}
	if c.BaselineBatchThreshold == 0 {
		c.BaselineBatchThreshold = defaultBaselineBatchThreshold
	}
	if c.OptimizingBatchThreshold == 0 {
		c.OptimizingBatchThreshold = defaultOptimizingBatchThreshold
	}
	if c.Logger == nil {
		c.Logger = log.New(discardWriter{}, "", 0)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
