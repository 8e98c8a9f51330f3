package measure

import (
	"fmt"
	"sync"
)

// CoreReservation enforces that a hardware-counter-measured core list is
// never shared between two concurrent trials, grounded on
// jakobeberhardt-container-bench/internal/cpuallocator's mutex-guarded
// Reserve/Release pattern — generalized here from "reserve N whole CPUs"
// to "reserve this exact core-list string", since LIKWID/perf core lists
// are caller-specified rather than pool-allocated.
type CoreReservation struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewCoreReservation returns an empty reservation tracker.
func NewCoreReservation() *CoreReservation {
	return &CoreReservation{locks: map[string]chan struct{}{}}
}

// Acquire blocks the caller from measuring on coreList concurrently with
// another in-flight trial on the same core list, then returns a release
// function. Since SCOuT's Orchestrator only ever runs as many concurrent
// trials as the Concurrency & Resource Model allows (one measurement slot
// per distinct core list), this is a per-key exclusive lock rather than a
// general interval-overlap check.
func (r *CoreReservation) Acquire(coreList string) func() {
	if coreList == "" {
		return func() {}
	}
	r.mu.Lock()
	ch, ok := r.locks[coreList]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[coreList] = ch
	}
	r.mu.Unlock()

	ch <- struct{}{}
	return func() { <-ch }
}

func (r *CoreReservation) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("CoreReservation{%d tracked core lists}", len(r.locks))
}
