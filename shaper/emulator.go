package shaper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Emulator runs one traffic-shaper emulation. The zero value is not
// usable; construct with New.
type Emulator struct {
	cfg Config

	mu sync.Mutex
	cv *sync.Cond

	remaining int64 // packets not yet produced
	nextID    int64

	tokens     int64
	tokenID    int64
	tokenDrops int64

	q1, q2, output []*packet

	interArrival, serviceTime, tokenInterval time.Duration

	start       time.Time
	prevArrival time.Time
}

// New returns an Emulator configured per cfg, deriving per-event
// intervals from Lambda/Mu/R exactly as warmup2.c's init() does. When
// cfg.Packets supplies an explicit trace, Lambda and Mu are ignored;
// R still sets the token interval.
func New(cfg Config) *Emulator {
	e := &Emulator{
		cfg:           cfg,
		remaining:     cfg.NumPackets,
		interArrival:  durationFromRate(cfg.Lambda),
		serviceTime:   durationFromRate(cfg.Mu),
		tokenInterval: durationFromRate(cfg.R),
	}
	if len(cfg.Packets) > 0 {
		e.remaining = int64(len(cfg.Packets))
	}
	e.cv = sync.NewCond(&e.mu)
	return e
}

// Stats summarizes one completed run, the emulator's analogue of
// warmup2.c's printStatics.
type Stats struct {
	PacketsServed  int64
	PacketsDropped int64 // exceeded bucket depth on arrival
	TokensDropped  int64
	TokensGenerated int64

	AvgInterArrival time.Duration
	AvgServiceTime  time.Duration
	AvgSystemTime   time.Duration
	StdevSystemTime time.Duration

	TotalEmulationTime time.Duration
}

// Run drives the producer, token generator, and two servers to
// completion (every configured packet either served or dropped), or
// until ctx is cancelled — which triggers the same drain-and-stop
// behavior warmup2.c's SIGINT handler performs. It returns statistics
// over whatever packets reached the output log.
func (e *Emulator) Run(ctx context.Context) (*Stats, error) {
	e.start = time.Now()
	e.prevArrival = e.start

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.producer(gctx) })
	g.Go(func() error { return e.tokenGenerator(gctx) })
	g.Go(func() error { return e.server(gctx, 1) })
	g.Go(func() error { return e.server(gctx, 2) })
	stop := make(chan struct{})
	watched := make(chan struct{})
	go func() { defer close(watched); e.watchCancel(ctx, stop) }()

	err := g.Wait()
	close(stop)
	<-watched
	if err != nil {
		return nil, err
	}
	return e.stats(time.Now()), nil
}

// nextSpec returns the i'th packet's synthesized or trace-supplied
// timing, i 0-based.
func (e *Emulator) nextSpec(i int64) PacketSpec {
	if len(e.cfg.Packets) > 0 {
		return e.cfg.Packets[i]
	}
	return PacketSpec{InterArrival: e.interArrival, TokenNeed: e.cfg.TokenCost, ServiceTime: e.serviceTime}
}

// sleepOrDone waits for d (skipped if non-positive) or ctx
// cancellation, reporting which happened — usleep's cancellable
// analogue.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// producer implements packetFunc: waits out each packet's
// inter-arrival gap, then (holding the lock) enqueues it to Q1 or
// drops it immediately if it needs more tokens than the bucket could
// ever hold.
func (e *Emulator) producer(ctx context.Context) error {
	for {
		e.mu.Lock()
		remaining := e.remaining
		produced := e.nextID
		e.mu.Unlock()
		if remaining <= 0 {
			return nil
		}
		spec := e.nextSpec(produced)
		if !sleepOrDone(ctx, spec.InterArrival) {
			return nil
		}

		e.mu.Lock()
		if e.remaining <= 0 {
			e.mu.Unlock()
			continue
		}
		e.remaining--
		e.nextID++
		now := time.Now()
		p := &packet{
			id:                   e.nextID,
			tokenNeed:            spec.TokenNeed,
			serviceTime:          spec.ServiceTime,
			arrive:               now,
			realInterArrivalTime: now.Sub(e.prevArrival),
		}
		e.prevArrival = now

		if p.tokenNeed > e.cfg.BucketDepth {
			p.kind = PacketBucketOverflow
			e.output = append(e.output, p)
			e.cv.Broadcast()
		} else {
			p.enterQ1 = now
			e.q1 = append(e.q1, p)
			e.tryAdvanceQ1Locked()
		}
		e.mu.Unlock()
	}
}

// tokenGenerator implements tokenFunc: on each tick, mints a token
// (or counts a drop if the bucket is full), then tries to advance Q1
// with the fresh token supply.
func (e *Emulator) tokenGenerator(ctx context.Context) error {
	for {
		e.mu.Lock()
		active := e.remaining > 0 || len(e.q1) > 0
		e.mu.Unlock()
		if !active {
			return nil
		}
		if !sleepOrDone(ctx, e.tokenInterval) {
			return nil
		}

		e.mu.Lock()
		if e.remaining <= 0 && len(e.q1) == 0 {
			e.mu.Unlock()
			continue
		}
		e.tokenID++
		if e.tokens >= e.cfg.BucketDepth {
			e.tokenDrops++
		} else {
			e.tokens++
		}
		e.tryAdvanceQ1Locked()
		e.mu.Unlock()
	}
}

// tryAdvanceQ1Locked moves Q1's head into Q2 if the bucket now holds
// enough tokens for it, waking any server waiting on Q2. Caller holds
// e.mu.
func (e *Emulator) tryAdvanceQ1Locked() {
	if len(e.q1) == 0 {
		return
	}
	head := e.q1[0]
	if e.tokens < head.tokenNeed {
		return
	}
	e.q1 = e.q1[1:]
	e.tokens -= head.tokenNeed
	head.leaveQ1 = time.Now()
	head.enterQ2 = head.leaveQ1
	e.q2 = append(e.q2, head)
	e.cv.Broadcast()
}

// server implements serverFunc for server id (1 == S1, 2 == S2):
// waits for Q2 to produce work, serves one packet at a time, and logs
// it to the output.
func (e *Emulator) server(ctx context.Context, id int) error {
	for {
		e.mu.Lock()
		for len(e.q2) == 0 && (e.remaining > 0 || len(e.q1) > 0) && ctx.Err() == nil {
			e.cv.Wait()
		}
		if ctx.Err() != nil {
			e.mu.Unlock()
			return nil
		}
		var p *packet
		if len(e.q2) > 0 {
			p = e.q2[0]
			e.q2 = e.q2[1:]
			now := time.Now()
			p.leaveQ2 = now
			p.serviceType = id
			p.beginService = now
			e.output = append(e.output, p)
			e.cv.Broadcast()
		}
		active := e.remaining > 0 || len(e.q1) > 0 || len(e.q2) > 0
		e.mu.Unlock()

		if p != nil {
			if !sleepOrDone(ctx, p.serviceTime) {
				return nil
			}
			e.mu.Lock()
			p.endService = time.Now()
			p.kind = PacketServed
			e.mu.Unlock()
		}
		if p == nil && !active {
			return nil
		}
	}
}

// watchCancel implements signalFunc: once ctx is cancelled, it stops
// new arrivals and drains whatever is still sitting in Q1/Q2 into the
// output log as interrupted, then wakes every sleeping server so they
// can observe the drained queues and exit. It returns without draining
// once stop is closed (Run closes it after every worker has finished).
func (e *Emulator) watchCancel(ctx context.Context, stop <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-stop:
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remaining = 0
	for _, p := range e.q1 {
		p.kind = PacketInterrupted
		e.output = append(e.output, p)
	}
	for _, p := range e.q2 {
		p.kind = PacketInterrupted
		e.output = append(e.output, p)
	}
	e.q1 = nil
	e.q2 = nil
	e.cv.Broadcast()
}
