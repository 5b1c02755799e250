// Package diskio implements the bounded-concurrency, bounded-memory file
// writer described in spec.md §4.5: a fixed worker pool draining a single
// priority-ordered ingress queue, back-pressured by a shared byte budget.
package diskio

import (
	"container/heap"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/rustup-go/rustup-go/pkg/rconfig"
	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

// Priority orders admission into the executor (spec.md §4.5 "Items carry
// a priority"). Chunks belonging to an already-admitted incremental file
// bypass priority comparison entirely.
type Priority int

const (
	Background Priority = iota
	Normal
	Critical
)

// Kind distinguishes the three item shapes the executor accepts.
type Kind int

const (
	CreateDirectory Kind = iota
	WriteFile
	IncrementalFile
)

// Item is one unit of filesystem work submitted to the executor.
type Item struct {
	Kind     Kind
	Path     string
	Mode     os.FileMode
	Priority Priority

	// WriteFile payload.
	Buffer []byte

	// IncrementalFile payload: chunks arrive on Chunks until a zero-length
	// chunk signals end-of-stream (spec.md §4.5).
	Chunks <-chan []byte
}

// Result is emitted on Completed() exactly once per submitted Item.
type Result struct {
	Path string
	Err  error
}

// DefaultWorkerCount returns min(2×CPU count, 16), overridden by
// RUSTUP_IO_THREADS if set to a valid non-negative integer (spec.md §4.5
// "size = min(2 × CPU count, 16), override via env").
func DefaultWorkerCount() int {
	if raw := os.Getenv(rconfig.EnvIOThreads); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	n := runtime.NumCPU() * 2
	if n > 16 {
		n = 16
	}
	return n
}

// defaultByteBudget is used when RUSTUP_RAM_BUDGET is unset. Go's standard
// library exposes no portable "total system RAM" query and the example
// pack carries no memory-introspection dependency, so the floor named in
// spec.md §4.5 ("floor 256 MiB") is used directly as the default rather
// than computed from 10% of RAM; RUSTUP_RAM_BUDGET is the real control
// knob operators use to raise it.
const defaultByteBudget = 256 * 1024 * 1024

// DefaultByteBudget returns the executor's byte budget, overridden by
// RUSTUP_RAM_BUDGET (bytes) if set.
func DefaultByteBudget() int64 {
	if raw := os.Getenv(rconfig.EnvRAMBudget); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultByteBudget
}

// Executor is the bounded worker pool. Construct with New; Submit items,
// drain Completed(), and call Join() to wait for the queue to empty.
type Executor struct {
	workers    int
	byteBudget int64

	mu       sync.Mutex
	cond     *sync.Cond
	pending  priorityQueue
	inFlight int
	used     int64
	closed   bool

	completed chan Result
	bufPool   sync.Pool

	wg sync.WaitGroup
}

// New constructs an Executor. workers <= 1 yields a single-threaded
// immediate executor (spec.md §4.5 "Single-threaded fallback"): Submit
// runs the item inline and priority is ignored.
func New(workers int, byteBudget int64) *Executor {
	e := &Executor{
		workers:    workers,
		byteBudget: byteBudget,
		completed:  make(chan Result, 64),
		bufPool:    sync.Pool{New: func() interface{} { return make([]byte, 0) }},
	}
	e.cond = sync.NewCond(&e.mu)
	if workers > 1 {
		for i := 0; i < workers; i++ {
			e.wg.Add(1)
			go e.workerLoop()
		}
	}
	return e
}

// priorityQueue orders by Priority descending, then Path ascending
// (spec.md §4.5 "sorts admission by priority first, then by path").
type priorityQueue []*Item

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].Path < q[j].Path
}
func (q priorityQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(*Item)) }
func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// GetBuffer returns a reusable buffer of length n from the shared pool,
// blocking the caller until enough of the byte budget is free (spec.md
// §4.5 "Back-pressure"). A request that could never fit even an
// otherwise-idle budget fails immediately with buffer-too-large rather
// than blocking forever.
func (e *Executor) GetBuffer(n int) ([]byte, error) {
	if int64(n) > e.byteBudget {
		return nil, rustuperr.New(rustuperr.KindBufferTooLarge,
			fmt.Sprintf("requested buffer of %d bytes exceeds byte budget of %d bytes", n, e.byteBudget))
	}
	e.mu.Lock()
	for e.used+int64(n) > e.byteBudget {
		e.cond.Wait()
	}
	e.used += int64(n)
	e.mu.Unlock()

	buf := e.bufPool.Get().([]byte)
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	return buf[:n:n], nil
}

// ReleaseBuffer returns a buffer obtained from GetBuffer, freeing its
// share of the byte budget and waking any blocked callers.
func (e *Executor) ReleaseBuffer(buf []byte) {
	n := cap(buf)
	e.bufPool.Put(buf[:0]) //nolint:staticcheck // pool wants zero-length, full-capacity slices
	e.mu.Lock()
	e.used -= int64(n)
	if e.used < 0 {
		e.used = 0
	}
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Submit admits an item. In the pooled mode it is enqueued for a worker;
// in the immediate (workers<=1) mode it runs inline before Submit returns.
func (e *Executor) Submit(item *Item) {
	if e.workers <= 1 {
		e.runItem(item)
		return
	}
	e.mu.Lock()
	heap.Push(&e.pending, item)
	e.inFlight++
	e.cond.Broadcast()
	e.mu.Unlock()
}

func (e *Executor) workerLoop() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.pending.Len() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.pending.Len() == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		item := heap.Pop(&e.pending).(*Item)
		e.mu.Unlock()

		e.runItem(item)

		e.mu.Lock()
		e.inFlight--
		e.cond.Broadcast()
		e.mu.Unlock()
	}
}

func (e *Executor) runItem(item *Item) {
	var err error
	switch item.Kind {
	case CreateDirectory:
		err = os.MkdirAll(item.Path, item.Mode)
	case WriteFile:
		err = writeFileAtomic(item.Path, item.Buffer, item.Mode)
	case IncrementalFile:
		err = e.writeIncremental(item.Path, item.Mode, item.Chunks)
	default:
		err = fmt.Errorf("diskio: unknown item kind %d", item.Kind)
	}
	e.completed <- Result{Path: item.Path, Err: err}
}

func writeFileAtomic(path string, buf []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buf)
	return err
}

// writeIncremental owns the destination handle itself and consumes chunks
// until a zero-length chunk or a closed channel ends the stream. Every
// chunk is assumed to have come from e.GetBuffer and is released back to
// the shared pool (and byte budget) once written, whether or not it came
// from the pool; ReleaseBuffer tolerates foreign slices.
func (e *Executor) writeIncremental(path string, mode os.FileMode, chunks <-chan []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	for chunk := range chunks {
		if len(chunk) == 0 {
			return nil
		}
		_, werr := f.Write(chunk)
		e.ReleaseBuffer(chunk)
		if werr != nil {
			return werr
		}
	}
	return nil
}

// Completed is the channel every submitted item's Result arrives on
// exactly once (spec.md §4.5 "completed() iterator").
func (e *Executor) Completed() <-chan Result {
	return e.completed
}

// Join drains the queue and blocks until every in-flight item completes
// (spec.md §4.5 "join()").
func (e *Executor) Join() {
	if e.workers <= 1 {
		return
	}
	e.mu.Lock()
	for e.pending.Len() > 0 || e.inFlight > 0 {
		e.cond.Wait()
	}
	e.mu.Unlock()
}

// Close stops the worker pool after the queue drains. It must be called
// after the last Submit and a final Join.
func (e *Executor) Close() {
	if e.workers <= 1 {
		close(e.completed)
		return
	}
	e.Join()
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
	close(e.completed)
}
