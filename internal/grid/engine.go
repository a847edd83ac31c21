package grid

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultItemsPerChunk matches the 22-slot default layout.
const DefaultItemsPerChunk = 22

// Options configure an Engine.
type Options struct {
	ChunkWidth    float64
	ChunkHeight   float64
	ItemsPerChunk int
	Margins       Margins
	// Strict panics on invariant violations instead of self-healing.
	Strict bool
}

func (o Options) validate() error {
	if o.ChunkWidth <= 0 || o.ChunkHeight <= 0 {
		return fmt.Errorf("chunk size must be positive, got %vx%v", o.ChunkWidth, o.ChunkHeight)
	}
	if o.ItemsPerChunk < 1 {
		return fmt.Errorf("items per chunk must be positive, got %d", o.ItemsPerChunk)
	}
	return o.Margins.Validate(o.ChunkWidth, o.ChunkHeight)
}

// OutcomeKind classifies what an engine operation did.
type OutcomeKind uint8

const (
	OutcomeIgnored   OutcomeKind = iota // transition with no lifecycle effect
	OutcomeCreated                      // neighbour created
	OutcomeDuplicate                    // create for a coordinate already live
	OutcomeEvicted                      // chunk removed
	OutcomePremature                    // eviction refused: chunk not settled
	OutcomeAbsent                       // event for a coordinate that is not live
	OutcomeStale                        // event from a previous generation
	OutcomeClosed                       // engine closed
	OutcomeSettled                      // placement-complete signal applied
)

var outcomeNames = [...]string{
	OutcomeIgnored:   "ignored",
	OutcomeCreated:   "created",
	OutcomeDuplicate: "duplicate",
	OutcomeEvicted:   "evicted",
	OutcomePremature: "premature",
	OutcomeAbsent:    "absent",
	OutcomeStale:     "stale",
	OutcomeClosed:    "closed",
	OutcomeSettled:   "settled",
}

func (k OutcomeKind) String() string {
	if int(k) < len(outcomeNames) {
		return outcomeNames[k]
	}
	return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
}

// Outcome describes the effect of one engine operation.
type Outcome struct {
	Kind  OutcomeKind
	Coord Coord // coordinate the operation targeted
	Chunk Chunk // chunk created or evicted
	// Reset is set when the eviction emptied the registry and the origin was
	// re-seeded; Origin holds the new origin chunk.
	Reset  bool
	Origin Chunk
}

// Engine owns the chunk registry and index allocator for one viewer and
// applies the visibility lifecycle protocol. All operations are serialised
// by a single mutex.
type Engine struct {
	mu      sync.Mutex
	opts    Options
	alloc   *Allocator
	reg     *Registry
	source  Source
	reqs    [5]WatchRequest
	nextGen uint64
	resets  int
	closed  bool
	log     *zap.Logger
}

// NewEngine validates opts and seeds the origin chunk (start index 0, pending).
// A nil source is replaced by one that observes nothing.
func NewEngine(opts Options, source Source, log *zap.Logger) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	if source == nil {
		source = nopSource{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		opts:   opts,
		alloc:  NewAllocator(opts.ItemsPerChunk),
		reg:    NewRegistry(),
		source: source,
		reqs:   opts.Margins.Requests(),
		log:    log,
	}
	e.mu.Lock()
	e.seedOriginLocked()
	e.mu.Unlock()
	return e, nil
}

// HandleEvent applies one visibility transition. Edge events create the
// neighbour they reveal; body events evict the chunk once it is settled.
func (e *Engine) HandleEvent(ev Event) (Outcome, error) {
	if !ev.Edge.Valid() {
		return Outcome{Coord: ev.Coord}, fmt.Errorf("%w: %d", ErrUnknownEdge, uint8(ev.Edge))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Outcome{Kind: OutcomeClosed, Coord: ev.Coord}, nil
	}
	self, ok := e.reg.Get(ev.Coord)
	if !ok {
		return Outcome{Kind: OutcomeAbsent, Coord: ev.Coord}, nil
	}
	if ev.Gen != 0 && ev.Gen != self.Gen {
		return Outcome{Kind: OutcomeStale, Coord: ev.Coord}, nil
	}

	if ev.Edge == EdgeBody {
		if ev.Intersecting {
			return Outcome{Kind: OutcomeIgnored, Coord: ev.Coord}, nil
		}
		return e.evictLocked(ev.Coord), nil
	}

	if !ev.Intersecting {
		return Outcome{Kind: OutcomeIgnored, Coord: ev.Coord}, nil
	}
	target, _ := ev.Edge.Neighbor(ev.Coord)
	return e.createLocked(target), nil
}

// Create inserts a chunk at c unless one is already live there.
func (e *Engine) Create(c Coord) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Outcome{Kind: OutcomeClosed, Coord: c}
	}
	return e.createLocked(c)
}

// Evict removes the chunk at c if it is settled, running the reset protocol
// when the registry empties.
func (e *Engine) Evict(c Coord) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Outcome{Kind: OutcomeClosed, Coord: c}
	}
	return e.evictLocked(c)
}

// Settle marks the chunk at c as placed. It reports whether the flag flipped;
// repeated or stale signals return false. gen zero skips the generation check.
func (e *Engine) Settle(c Coord, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	ch, ok := e.reg.Get(c)
	if !ok || (gen != 0 && gen != ch.Gen) {
		return false
	}
	if !e.reg.markSettled(c) {
		return false
	}
	e.log.Debug("chunk settled", zap.Stringer("coord", c), zap.Uint64("gen", ch.Gen))
	return true
}

func (e *Engine) createLocked(c Coord) Outcome {
	if e.reg.Has(c) {
		return Outcome{Kind: OutcomeDuplicate, Coord: c}
	}
	ch := e.insertLocked(c, e.alloc.Allocate())
	e.log.Debug("chunk created",
		zap.Stringer("coord", c),
		zap.Int("start", ch.StartIndex),
		zap.Uint64("gen", ch.Gen),
	)
	return Outcome{Kind: OutcomeCreated, Coord: c, Chunk: ch}
}

func (e *Engine) evictLocked(c Coord) Outcome {
	ch, ok := e.reg.Get(c)
	if !ok {
		return Outcome{Kind: OutcomeAbsent, Coord: c}
	}
	if !ch.Settled {
		return Outcome{Kind: OutcomePremature, Coord: c}
	}
	_, w, _ := e.reg.Remove(c)
	if w != nil {
		w.Detach()
	}
	e.log.Debug("chunk evicted",
		zap.Stringer("coord", c),
		zap.Int("start", ch.StartIndex),
		zap.Int("live", e.reg.Size()),
	)
	out := Outcome{Kind: OutcomeEvicted, Coord: c, Chunk: ch}
	if e.reg.Size() == 0 {
		out.Reset = true
		out.Origin = e.resetLocked()
	}
	return out
}

// insertLocked stamps a new chunk, registers it and attaches its watch.
func (e *Engine) insertLocked(c Coord, start int) Chunk {
	e.nextGen++
	ch := Chunk{Coord: c, StartIndex: start, Gen: e.nextGen}
	e.reg.Put(ch)
	rect := ChunkRect(c, e.opts.ChunkWidth, e.opts.ChunkHeight)
	e.reg.attach(c, e.source.Observe(ch, rect, e.reqs))
	return ch
}

func (e *Engine) seedOriginLocked() Chunk {
	return e.insertLocked(Origin, e.alloc.Allocate())
}

// resetLocked rewinds the allocator, re-seeds the origin and recenters the
// viewport. The registry must already be empty.
func (e *Engine) resetLocked() Chunk {
	e.alloc.Reset()
	origin := e.seedOriginLocked()
	e.source.Recenter()
	e.resets++
	e.log.Info("grid reset to origin", zap.Int("resets", e.resets))
	return origin
}

// forceResetLocked detaches every watch and resets. Used to self-heal.
func (e *Engine) forceResetLocked() Chunk {
	for _, w := range e.reg.drain() {
		w.Detach()
	}
	return e.resetLocked()
}

// Audit checks the registry invariants: at least one live chunk and pairwise
// disjoint index ranges below the allocator's next index. On violation it
// logs, forces a reset (or panics in strict mode) and returns an error
// wrapping ErrInvariantViolation.
func (e *Engine) Audit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	problem := e.checkLocked()
	if problem == "" {
		return nil
	}
	err := fmt.Errorf("%w: %s", ErrInvariantViolation, problem)
	e.log.Error("grid invariant violated", zap.Error(err), zap.Int("live", e.reg.Size()))
	if e.opts.Strict {
		panic(err)
	}
	e.forceResetLocked()
	return err
}

func (e *Engine) checkLocked() string {
	if e.reg.Size() == 0 {
		return "registry is empty"
	}
	entries := e.reg.Entries()
	stride := e.opts.ItemsPerChunk
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if prev.StartIndex+stride > cur.StartIndex {
			return fmt.Sprintf("index ranges of %s (%d) and %s (%d) overlap",
				prev.Coord, prev.StartIndex, cur.Coord, cur.StartIndex)
		}
	}
	last := entries[len(entries)-1]
	if last.StartIndex+stride > e.alloc.Next() {
		return fmt.Sprintf("chunk %s owns index %d beyond allocator next %d",
			last.Coord, last.StartIndex, e.alloc.Next())
	}
	return ""
}

// Close detaches every watch. Later operations report OutcomeClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, w := range e.reg.drain() {
		w.Detach()
	}
}

func (e *Engine) Chunk(c Coord) (Chunk, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Get(c)
}

func (e *Engine) Has(c Coord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Has(c)
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Size()
}

// Snapshot returns the live chunks in creation order.
func (e *Engine) Snapshot() []Chunk {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Entries()
}

// NextIndex returns the allocator's next start index.
func (e *Engine) NextIndex() int {
	return e.alloc.Next()
}

// Resets returns how many times the reset protocol has run.
func (e *Engine) Resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resets
}

func (e *Engine) Options() Options {
	return e.opts
}
