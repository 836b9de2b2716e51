// Package graph implements the processor table and RT-thread traversal at
// the heart of the engine: a fixed-capacity slab of processor records with
// an occupancy bitmap and per-record input/output routing masks, mutated
// from the control thread and walked depth-first by the RT thread every
// callback. It is the Go counterpart of the original engine's
// JamAudioProcessor array, processorMask, and the Traverse/CreateProcessor/
// RemoveProcessor/Route functions in its core engine source, generalised
// from a 256-slot single-word mask to the 4096-slot multi-word Mask in
// mask.go.
package graph

import (
	"fmt"

	"github.com/jamieb133/jamcore/internal/arena"
	"github.com/jamieb133/jamcore/internal/constants"
)

// ProcessFunc is the per-callback DSP entry point for a node. buffer is
// interleaved stereo float32 of length numFrames*constants.ChannelsPerFrame;
// the node reads and writes it in place.
type ProcessFunc func(sampleRate float64, numFrames int, buffer []float32, data any)

// OnCycleFunc runs once per RT callback after every Process call for that
// node has completed, in processor-ID order.
type OnCycleFunc func(data any)

// DestroyFunc runs exactly once per live slot during Deinit.
type DestroyFunc func(data any)

// FatalError marks a precondition violation in graph mutation or traversal
// that the engine's fault handler must treat as fatal: an invalid ID, a
// full table, routing a dead slot, or recursion past the depth cap.
type FatalError struct {
	Op  string
	Msg string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("graph: %s: %s", e.Op, e.Msg)
}

func fatalf(op, format string, args ...any) {
	panic(&FatalError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

type record struct {
	input, output Mask
	process       ProcessFunc
	onCycle       OnCycleFunc
	destroy       DestroyFunc
	data          any
}

// Table is the fixed-capacity processor slab. Occupancy and routing mutate
// only from the control thread; the RT thread only ever reads.
type Table struct {
	occupancy Mask
	sources   Mask
	records   [constants.MaxProcessors]record

	// Scratch buffers back every Mask.Bits() call made from the RT thread
	// (Sources, RunOnCycle, Traverse) so iterating a mask never allocates.
	// traverseScratch is indexed by recursion depth since Traverse's own
	// loop over a parent's children is still in progress, reading its
	// slice header, while a child's recursive call is filling in its own
	// depth's buffer.
	sourcesScratch  [constants.MaxProcessors]int
	onCycleScratch  [constants.MaxProcessors]int
	destroyScratch  [constants.MaxProcessors]int
	traverseScratch [constants.MaxTraversalDepth][constants.MaxProcessors]int
}

// NewTable returns an empty processor table.
func NewTable() *Table {
	return &Table{}
}

// CreateProcessor finds the lowest free slot, initialises it, and returns
// its ID. Fatal if the table is full.
func (t *Table) CreateProcessor(process ProcessFunc, destroy DestroyFunc, onCycle OnCycleFunc, data any) int {
	if process == nil {
		fatalf("CreateProcessor", "process callback must not be nil")
	}
	id := t.occupancy.FirstUnset()
	if id < 0 {
		fatalf("CreateProcessor", "processor table full (capacity %d)", constants.MaxProcessors)
	}

	rec := &t.records[id]
	rec.input = Mask{}
	rec.output = Mask{}
	rec.process = process
	rec.destroy = destroy
	rec.onCycle = onCycle
	rec.data = data

	t.occupancy.Set(id)
	return id
}

// RemoveProcessor clears the occupancy bit for id. Per the source design,
// stale peer edges referencing a removed ID are not automatically swept.
// Route on a removed slot is a fatal precondition; Traverse does not check
// liveness, so a stale output edge still dispatches to the slot's last
// registered Process.
func (t *Table) RemoveProcessor(id int) {
	t.assertLive("RemoveProcessor", id)
	t.occupancy.Clear(id)
	t.sources.Clear(id)
}

// Route sets or clears the directed edge src -> dst. Both slots must be
// live; self-loops are rejected.
func (t *Table) Route(src, dst int, enable bool) {
	t.assertLive("Route", src)
	t.assertLive("Route", dst)
	if src == dst {
		fatalf("Route", "self-loop on processor %d", src)
	}

	if enable {
		t.records[src].output.Set(dst)
		t.records[dst].input.Set(src)
	} else {
		t.records[src].output.Clear(dst)
		t.records[dst].input.Clear(src)
	}
}

// AddSource marks id as an additional traversal root.
func (t *Table) AddSource(id int) {
	t.assertLive("AddSource", id)
	t.sources.Set(id)
}

// SetSource clears all existing roots and marks id as the sole root.
func (t *Table) SetSource(id int) {
	t.assertLive("SetSource", id)
	t.sources = Mask{}
	t.sources.Set(id)
}

// Sources returns the current traversal roots in ascending ID order. The
// returned slice aliases Table-owned scratch storage and is only valid
// until the next call that reuses it.
func (t *Table) Sources() []int {
	return t.sources.Bits(t.sourcesScratch[:0])
}

func (t *Table) assertLive(op string, id int) {
	if id < 0 || id >= constants.MaxProcessors {
		fatalf(op, "invalid processor id %d", id)
	}
	if !t.occupancy.Has(id) {
		fatalf(op, "processor %d does not exist", id)
	}
}

// Destroy invokes Destroy on every live slot, in ID order, then clears
// occupancy entirely. Called once from Deinit.
func (t *Table) Destroy() {
	for _, id := range t.occupancy.Bits(t.destroyScratch[:0]) {
		rec := &t.records[id]
		if rec.destroy != nil {
			rec.destroy(rec.data)
		}
	}
	t.occupancy = Mask{}
	t.sources = Mask{}
}

// RunOnCycle invokes OnCycle on every live processor that defines one, in
// processor-ID order. Called once per RT callback after traversal.
func (t *Table) RunOnCycle() {
	for _, id := range t.occupancy.Bits(t.onCycleScratch[:0]) {
		rec := &t.records[id]
		if rec.onCycle != nil {
			rec.onCycle(rec.data)
		}
	}
}

// Traverse walks the graph depth-first from processorID, invoking Process
// on each visited node and copy-on-fanout for every output edge. Leaf nodes
// (empty output mask) sum their buffer into masterBuffer. depth starts at 0
// from each call site and is capped at constants.MaxTraversalDepth to catch
// accidental cycles.
func Traverse(t *Table, processorID int, sampleRate float64, numFrames int, inBuffer, masterBuffer []float32, depth int, a *arena.Arena) {
	if depth >= constants.MaxTraversalDepth {
		fatalf("Traverse", "recursion depth limit (%d) exceeded", constants.MaxTraversalDepth)
	}

	rec := &t.records[processorID]
	rec.process(sampleRate, numFrames, inBuffer, rec.data)

	if rec.output.IsZero() {
		sumInto(masterBuffer, inBuffer)
		return
	}

	for _, childID := range rec.output.Bits(t.traverseScratch[depth][:0]) {
		branch := a.Alloc(len(inBuffer))
		copy(branch, inBuffer)
		Traverse(t, childID, sampleRate, numFrames, branch, masterBuffer, depth+1, a)
	}
}

func sumInto(dst, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}
