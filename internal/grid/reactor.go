package grid

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type envelope struct {
	ev     Event
	settle bool
}

// Reactor feeds visibility events and settle signals through one channel to
// a single consumer, so watchers never touch the engine directly.
type Reactor struct {
	engine    *Engine
	in        chan envelope
	onOutcome func(Outcome)
	log       *zap.Logger
}

// NewReactor creates a reactor with a bounded queue. onOutcome, if non-nil,
// receives every outcome that changed the registry.
func NewReactor(engine *Engine, queueSize int, onOutcome func(Outcome), log *zap.Logger) *Reactor {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reactor{
		engine:    engine,
		in:        make(chan envelope, queueSize),
		onOutcome: onOutcome,
		log:       log,
	}
}

func (r *Reactor) offer(env envelope) bool {
	select {
	case r.in <- env:
		return true
	default:
		return false
	}
}

// Submit queues a visibility event without blocking. It reports false when
// the queue is full; visibility is re-derived by the source, so a dropped
// transition is recovered on the next change.
func (r *Reactor) Submit(ev Event) bool {
	if r.offer(envelope{ev: ev}) {
		return true
	}
	r.log.Warn("reactor queue full, dropping event",
		zap.Stringer("coord", ev.Coord),
		zap.Stringer("edge", ev.Edge),
	)
	return false
}

// SubmitSettle queues a placement-complete signal without blocking.
func (r *Reactor) SubmitSettle(c Coord, gen uint64) bool {
	if r.offer(envelope{ev: Event{Coord: c, Gen: gen}, settle: true}) {
		return true
	}
	r.log.Warn("reactor queue full, dropping settle", zap.Stringer("coord", c))
	return false
}

// Enqueue queues ev and never drops it: when the queue is full the backlog
// and then ev are applied on the caller's goroutine, preserving order. Only
// the goroutine that drains the reactor may call it.
func (r *Reactor) Enqueue(ev Event) {
	r.enqueue(envelope{ev: ev})
}

// EnqueueSettle is Enqueue for a placement-complete signal.
func (r *Reactor) EnqueueSettle(c Coord, gen uint64) {
	r.enqueue(envelope{ev: Event{Coord: c, Gen: gen}, settle: true})
}

func (r *Reactor) enqueue(env envelope) {
	if r.offer(env) {
		return
	}
	r.Drain()
	r.apply(env)
}

// Run consumes the queue on its own goroutine until ctx is done. It is the
// option for embedders whose watchers fire from other goroutines; the game
// loop drains synchronously instead. Producers must then use Submit, since
// Enqueue would race Run for the engine order.
func (r *Reactor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-r.in:
			r.apply(env)
		}
	}
}

// Drain applies everything currently queued on the caller's goroutine and
// returns the number of messages processed.
func (r *Reactor) Drain() int {
	n := 0
	for {
		select {
		case env := <-r.in:
			r.apply(env)
			n++
		default:
			return n
		}
	}
}

func (r *Reactor) apply(env envelope) {
	if env.settle {
		if r.engine.Settle(env.ev.Coord, env.ev.Gen) && r.onOutcome != nil {
			ch, _ := r.engine.Chunk(env.ev.Coord)
			r.onOutcome(Outcome{Kind: OutcomeSettled, Coord: env.ev.Coord, Chunk: ch})
		}
		return
	}
	out, err := r.engine.HandleEvent(env.ev)
	if err != nil {
		if errors.Is(err, ErrUnknownEdge) {
			r.log.Debug("visibility event rejected", zap.Error(err))
			return
		}
		r.log.Error("visibility event failed", zap.Error(err))
		return
	}
	switch out.Kind {
	case OutcomeCreated, OutcomeEvicted:
		if r.onOutcome != nil {
			r.onOutcome(out)
		}
	}
}
