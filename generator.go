// Package modgen is the module generator: it batches function bodies
// across a worker pool, appends and relocates the resulting machine
// code into one master buffer, patches call sites (inserting far-jump
// islands where a direct branch would not reach), and finalizes a code
// image together with its metadata and link-data side-tables.
package modgen

import (
	"sort"
	"sync/atomic"

	"github.com/wasmforge/modgen/asm"
	"github.com/wasmforge/modgen/compiler"
	"github.com/wasmforge/modgen/env"
	moderrors "github.com/wasmforge/modgen/errors"
	"github.com/wasmforge/modgen/metadata"
	"github.com/wasmforge/modgen/object"
	"github.com/wasmforge/modgen/stub"
	"github.com/wasmforge/modgen/trap"
	"github.com/wasmforge/modgen/wa"
)

// noCodeRange is the ⊥ sentinel for funcToCodeRange: not yet compiled.
const noCodeRange = -1

// Generator owns the whole lifecycle described in spec.md §4.1: it is a
// single value passed through Init, StartFuncDefs, CompileFuncDef,
// FinishFuncDefs and FinishModule, with no process-wide state.
type Generator struct {
	config Config
	state  State

	mod      *env.Module
	compiler compiler.Func
	pool     WorkerPool

	master *asm.Assembler

	metadataTier *metadata.MetadataTier
	linkData     *metadata.LinkDataTier

	funcToCodeRange   []int
	entryOffsetByFunc map[uint32]uint32
	funcImports       []object.FuncImport

	trapCodeOffsets    [trap.NumTraps]uint32
	trapCodeOffsetsSet [trap.NumTraps]bool

	debugTrapCodeOffset    uint32
	debugTrapCodeOffsetSet bool

	callSiteTargets []object.CallSiteTarget
	callFarJumps    []object.CallFarJump
	trapFarJumps    []object.TrapFarJump

	debugTrapFarJumps       []object.FarJumpRequest
	debugTrapFarJumpOffsets []uint32

	lastPatchedCallSite       int
	startOfUnpatchedCallSites uint32

	pendingExports []object.FuncExport

	tasks       *taskPool
	currentTask *compileTask

	cancelled int32

	globalData globalDataAllocator
}

// New constructs a Generator in the Created state for the given module
// environment and compiler black box. pool may be nil, in which case
// compilation always runs serially regardless of Config.
func New(mod *env.Module, c compiler.Func, pool WorkerPool, config Config) *Generator {
	config.setDefaults()
	return &Generator{
		config:            config,
		mod:               mod,
		compiler:          c,
		pool:              pool,
		entryOffsetByFunc: make(map[uint32]uint32),
		metadataTier:      &metadata.MetadataTier{},
		linkData:          metadata.NewLinkDataTier(),
	}
}

// Cancel sets the cooperative cancellation flag, consulted at each batch
// launch and at FinishModule's entry, per spec.md §4.3/§5.
func (g *Generator) Cancel() {
	atomic.StoreInt32(&g.cancelled, 1)
	g.config.Logger.Printf("modgen: generation cancelled")
}

func (g *Generator) isCancelled() bool {
	return atomic.LoadInt32(&g.cancelled) != 0
}

// Init reserves the master buffer conservatively (~1.2x the size hint),
// pre-allocates global-data slots for function imports, tables,
// signatures and mutable globals, and seeds the exported-function set
// with explicit exports plus the start function, per spec.md §4.1/§4.2.
func (g *Generator) Init() error {
	g.requireState("Init", Created)
	return g.initCommon()
}

// legacyCodeRangesPerFunc and legacyCallSitesPerFunc are the fixed
// per-function maxima InitLegacy presizes metadataTier's side-tables to.
const (
	legacyCodeRangesPerFunc = 2
	legacyCallSitesPerFunc  = 4
)

// InitLegacy is the asm.js-style counterpart to Init: it mirrors
// ModuleGenerator::initAsmJS by pre-sizing metadataTier's side-tables to
// fixed maxima derived from the declared function count instead of
// letting append grow them on demand, trading a larger upfront
// allocation for fewer reallocations during compilation. FinishModule's
// shrink-to-fit step (finishMetadata) runs the same way regardless of
// which Init path was used, so the two paths' finished artifacts are
// identical; only peak capacity during compilation differs.
func (g *Generator) InitLegacy() error {
	g.requireState("InitLegacy", Created)
	if err := g.initCommon(); err != nil {
		return err
	}

	n := len(g.mod.Functions)
	g.metadataTier.CodeRanges = make([]object.CodeRange, 0, n*legacyCodeRangesPerFunc)
	g.metadataTier.CallSites = make([]object.CallSite, 0, n*legacyCallSitesPerFunc)
	g.callSiteTargets = make([]object.CallSiteTarget, 0, n*legacyCallSitesPerFunc)
	return nil
}

func (g *Generator) initCommon() error {
	sizeHint := g.config.CodeSectionSizeHint * 12 / 10
	g.master = asm.New(sizeHint, 0)

	g.funcToCodeRange = make([]int, len(g.mod.Functions))
	for i := range g.funcToCodeRange {
		g.funcToCodeRange[i] = noCodeRange
	}

	funcImportOffsets, err := g.globalData.allocateFuncImportTLS(len(g.mod.Imports))
	if err != nil {
		return moderrors.NewResourceLimit("modgen: global data overflow allocating func import TLS", err)
	}
	g.funcImports = make([]object.FuncImport, len(g.mod.Imports))
	for i, imp := range g.mod.Imports {
		g.funcImports[i] = object.FuncImport{
			Signature:        imp.Signature,
			GlobalDataOffset: funcImportOffsets[i],
		}
	}

	if _, err := g.globalData.allocateTableTLS(len(g.mod.Tables)); err != nil {
		return moderrors.NewResourceLimit("modgen: global data overflow allocating table TLS", err)
	}

	needsSlot := make([]bool, len(g.mod.Signatures))
	for i := range needsSlot {
		needsSlot[i] = true // Conservative: every signature gets a slot.
	}
	if _, err := g.globalData.allocateSignatureIDSlots(needsSlot); err != nil {
		return moderrors.NewResourceLimit("modgen: global data overflow allocating signature id slots", err)
	}

	globalTypes := make([]wa.GlobalType, len(g.mod.Globals))
	for i, gl := range g.mod.Globals {
		globalTypes[i] = gl.Type
	}
	if _, err := g.globalData.allocateMutableGlobals(globalTypes); err != nil {
		return moderrors.NewResourceLimit("modgen: global data overflow allocating mutable globals", err)
	}

	explicit := make([]object.FuncExport, 0, len(g.mod.Exports))
	for _, exp := range g.mod.Exports {
		explicit = append(explicit, object.FuncExport{FuncIndex: exp.FuncIndex})
	}
	if g.mod.HasStartFunc {
		explicit = append(explicit, object.FuncExport{FuncIndex: g.mod.StartFunc})
	}
	g.pendingExports = explicit

	g.state = Initialized
	return nil
}

// StartFuncDefs decides parallel vs serial mode and constructs the task
// pool: size 2*MaxCompilationThreads if a WorkerPool was supplied and
// configured with more than one thread, or size 1 (serial) otherwise,
// per spec.md §4.1.
func (g *Generator) StartFuncDefs() {
	g.requireState("StartFuncDefs", Initialized)

	size := 1
	if g.pool != nil && g.config.MaxCompilationThreads >= 2 {
		size = 2 * g.config.MaxCompilationThreads
	}
	g.tasks = newTaskPool(size)
	g.startOfUnpatchedCallSites = g.master.CurrentOffset()

	g.state = FuncDefsStarted
}

func (g *Generator) batchThreshold() int {
	if g.mod.Tier == env.Optimizing {
		return g.config.OptimizingBatchThreshold
	}
	return g.config.BaselineBatchThreshold
}

// CompileFuncDef appends one function body to the current task,
// acquiring a fresh task from the free list (blocking if none is free)
// if there is no current task, and dispatches the task once its summed
// bytecode length exceeds the tier's batch threshold, per spec.md §4.1.
func (g *Generator) CompileFuncDef(funcIndex uint32, sig wa.FuncType, body []byte) error {
	g.requireState("CompileFuncDef", FuncDefsStarted)

	if g.currentTask == nil {
		t, err := g.tasks.acquire(g.linkTask)
		if err != nil {
			return err
		}
		g.currentTask = t
	}

	g.currentTask.inputs = append(g.currentTask.inputs, compiler.Input{
		FuncIndex: funcIndex,
		Sig:       sig,
		Body:      body,
	})
	g.currentTask.byteLen += len(body)

	if g.currentTask.byteLen > g.batchThreshold() {
		return g.launchBatchCompile()
	}
	return nil
}

// launchBatchCompile dispatches the current task and consults the
// cancellation flag, per spec.md §4.3.
func (g *Generator) launchBatchCompile() error {
	if g.isCancelled() {
		g.config.Logger.Printf("modgen: batch compile skipped, generation cancelled")
		return moderrors.ErrCancelled
	}

	t := g.currentTask
	g.currentTask = nil

	g.config.Logger.Printf("modgen: launching batch compile of %d function(s), %d bytes", len(t.inputs), t.byteLen)

	mod := g.mod
	compile := g.compiler
	g.tasks.launchBatchCompile(t, g.pool, func(inputs []compiler.Input) (object.CompiledCode, error) {
		return compile.Compile(mod, inputs)
	})
	return nil
}

// linkTask is the callback finishOutstanding/drain apply to each task
// that completes: it feeds the task's output into the Linker.
func (g *Generator) linkTask(t *compileTask) error {
	return g.linkCompiledCode(t.output)
}

// FinishFuncDefs launches any partially filled task, then drains every
// outstanding task, per spec.md §4.1.
func (g *Generator) FinishFuncDefs() error {
	g.requireState("FinishFuncDefs", FuncDefsStarted)

	if g.currentTask != nil && len(g.currentTask.inputs) > 0 {
		if err := g.launchBatchCompile(); err != nil {
			return err
		}
	}

	if err := g.tasks.drain(g.linkTask); err != nil {
		return err
	}

	g.state = FuncDefsFinished
	return nil
}

// FinishModule generates the stub code (entry trampolines, import
// exits, trap exits, debug trap, guard-page sentinels), links it in,
// runs finishLinking/finishFuncExports/finishMetadata, and produces the
// final artifacts, per spec.md §4.1/§4.7.
func (g *Generator) FinishModule(bytecode []byte) (*metadata.Metadata, *metadata.LinkDataTier, *metadata.CodeSegment, metadata.JumpTable, error) {
	g.requireState("FinishModule", FuncDefsFinished)

	if g.isCancelled() {
		g.config.Logger.Printf("modgen: FinishModule observed cancellation")
		return nil, nil, nil, nil, moderrors.ErrCancelled
	}

	exportedFuncs := g.computeExportedFuncIndexes()
	stubExports := make([]object.FuncExport, len(exportedFuncs))
	for i, fi := range exportedFuncs {
		stubExports[i] = object.FuncExport{FuncIndex: fi}
	}

	stubCode, err := stub.Generate(g.mod, g.funcImports, stubExports)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := g.linkCompiledCode(stubCode); err != nil {
		return nil, nil, nil, nil, err
	}

	if err := g.finishLinking(); err != nil {
		return nil, nil, nil, nil, err
	}
	g.state = Linked

	g.finishFuncExports(exportedFuncs)

	meta, err := g.finishMetadata(bytecode)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	codeSeg, err := g.finishCodeSegment()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var jt metadata.JumpTable
	if g.config.TwoTier {
		jt = g.createJumpTable()
	}

	g.state = Finalized
	return meta, g.linkData, codeSeg, jt, nil
}

// computeExportedFuncIndexes is the "explicit exports ∪ start function ∪
// all functions reachable via element segments of an externally visible
// table" rule from spec.md §4.7 bullet 2, deduplicated and sorted.
func (g *Generator) computeExportedFuncIndexes() []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32
	add := func(fi uint32) {
		if !seen[fi] {
			seen[fi] = true
			out = append(out, fi)
		}
	}

	for _, exp := range g.mod.Exports {
		add(exp.FuncIndex)
	}
	if g.mod.HasStartFunc {
		add(g.mod.StartFunc)
	}
	for _, fi := range g.mod.ExternalTableFuncIndexes() {
		add(fi)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
