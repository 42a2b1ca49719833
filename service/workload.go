package service

import (
	"context"
	"encoding/binary"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"lfcore/infra/memory"
	"lfcore/infra/sequence"
	"lfcore/log"
)

// Scenario describes one run.
type Scenario struct {
	Structure   string
	Producers   int
	Consumers   int
	PerProducer int
	// Sequential starts consumers only after every producer finished, so
	// the stack's per-producer LIFO order can be checked too.
	Sequential bool
}

func (sc Scenario) validate() error {
	if sc.Producers <= 0 || sc.Consumers <= 0 || sc.PerProducer <= 0 {
		return errors.Newf("service: scenario needs positive producers, consumers and per-producer count, got %d/%d/%d",
			sc.Producers, sc.Consumers, sc.PerProducer)
	}
	if sc.Producers > 1<<16 || uint64(sc.PerProducer) > sequence.MaxPerProducer {
		return errors.New("service: scenario exceeds tag space")
	}
	return nil
}

// ReportStore persists finished reports for later publication.
type ReportStore interface {
	PutNew(runID uint64, payload []byte) error
	LastID() (uint64, error)
}

// Workload runs scenarios and records their reports.
type Workload struct {
	opts    CoreOptions
	metrics *Metrics
	store   ReportStore
	ids     *sequence.Global
}

// NewWorkload wires a workload runner. store may be nil, in which case
// reports are only returned. Run ids continue after the last stored one.
func NewWorkload(opts CoreOptions, m *Metrics, store ReportStore) (*Workload, error) {
	w := &Workload{opts: opts, metrics: m, store: store, ids: sequence.NewGlobal(0)}
	if store != nil {
		last, err := store.LastID()
		if err != nil {
			return nil, errors.Wrap(err, "service: load last run id")
		}
		w.ids.Reset(last)
	}
	return w, nil
}

// Run builds a fresh structure for sc, drives it and verifies the
// result. ctx bounds the whole run; a run cut short by ctx returns the
// context error and no report.
func (w *Workload) Run(ctx context.Context, sc Scenario) (*Report, error) {
	if err := sc.validate(); err != nil {
		return nil, err
	}
	rec, err := w.opts.NewReclaimer()
	if err != nil {
		return nil, err
	}
	col, err := NewCollection(sc.Structure, w.opts, rec)
	if err != nil {
		return nil, err
	}

	rep, err := Drive(ctx, sc, col, rec)
	if err != nil {
		return nil, err
	}
	rep.RunID = w.ids.Next()
	rep.Reclaimer = w.opts.Reclaimer
	if rep.Reclaimer == "" {
		rep.Reclaimer = "hazard"
	}
	w.observe(rep)

	log.InfoLog.Printf("[workload] run=%d structure=%s producers=%d consumers=%d popped=%d passed=%v in %s",
		rep.RunID, rep.Structure, rep.Producers, rep.Consumers, rep.Popped, rep.Passed, rep.Duration)
	if !rep.Passed {
		log.WarningLog.Printf("[workload] run=%d failed: duplicates=%d missing=%d order=%d fingerprint=%v",
			rep.RunID, rep.Duplicates, rep.Missing, rep.OrderViolations, rep.FingerprintMatch)
	}

	if w.store != nil {
		payload, err := rep.Encode()
		if err != nil {
			return nil, err
		}
		if err := w.store.PutNew(rep.RunID, payload); err != nil {
			return nil, errors.Wrapf(err, "service: store run %d", rep.RunID)
		}
	}
	return rep, nil
}

func (w *Workload) observe(rep *Report) {
	if w.metrics == nil {
		return
	}
	m := w.metrics
	m.Ops.WithLabelValues(rep.Structure, "put").Add(float64(rep.Pushed))
	m.Ops.WithLabelValues(rep.Structure, "take").Add(float64(rep.Popped))
	m.EmptyPolls.WithLabelValues(rep.Structure).Add(float64(rep.EmptyPolls))
	m.RunDuration.WithLabelValues(rep.Structure).Observe(rep.Duration.Seconds())
	m.Pending.WithLabelValues(rep.Structure).Set(float64(rep.Reclaim.Pending))
	result := "pass"
	if !rep.Passed {
		result = "fail"
	}
	m.Runs.WithLabelValues(rep.Structure, result).Inc()
}

func fingerprint(t sequence.Tag) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(t))
	return xxhash.Sum64(b[:])
}

// Drive runs sc against col and verifies what came out. rec is flushed at
// the end so Reclaim reflects the quiescent state.
func Drive(ctx context.Context, sc Scenario, col Collection, rec memory.Reclaimer) (*Report, error) {
	if err := sc.validate(); err != nil {
		return nil, err
	}
	rep := &Report{
		V:           ReportVersion,
		Structure:   sc.Structure,
		Producers:   sc.Producers,
		Consumers:   sc.Consumers,
		PerProducer: sc.PerProducer,
		Sequential:  sc.Sequential,
		Started:     time.Now(),
	}

	var (
		active     atomic.Int32
		pushed     atomic.Uint64
		emptyPolls atomic.Uint64
		putSum     atomic.Uint64
		takeSum    atomic.Uint64
	)
	active.Store(int32(sc.Producers))
	taken := make([][]sequence.Tag, sc.Consumers)

	produce := func(ctx context.Context, p int) error {
		defer active.Add(-1)
		seq := sequence.New(uint16(p), 0)
		var sum uint64
		for i := 0; i < sc.PerProducer; i++ {
			if i&1023 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			tag := seq.Next()
			if err := col.Put(tag); err != nil {
				return errors.Wrapf(err, "producer %d", p)
			}
			sum += fingerprint(tag)
		}
		pushed.Add(uint64(sc.PerProducer))
		putSum.Add(sum)
		return nil
	}

	consume := func(ctx context.Context, c int) error {
		var out []sequence.Tag
		var empty, sum uint64
		defer func() {
			taken[c] = out
			emptyPolls.Add(empty)
			takeSum.Add(sum)
		}()
		for {
			if tag, ok := col.Take(); ok {
				out = append(out, tag)
				sum += fingerprint(tag)
				continue
			}
			empty++
			if active.Load() == 0 && col.IsEmpty() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			runtime.Gosched()
		}
	}

	start := time.Now()
	if sc.Sequential {
		g, gctx := errgroup.WithContext(ctx)
		for p := 0; p < sc.Producers; p++ {
			g.Go(func() error { return produce(gctx, p) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		g, gctx = errgroup.WithContext(ctx)
		for c := 0; c < sc.Consumers; c++ {
			g.Go(func() error { return consume(gctx, c) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for p := 0; p < sc.Producers; p++ {
			g.Go(func() error { return produce(gctx, p) })
		}
		for c := 0; c < sc.Consumers; c++ {
			g.Go(func() error { return consume(gctx, c) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	rep.Duration = time.Since(start)

	rec.Flush()
	rep.Reclaim = rec.Stats()
	rep.Pushed = pushed.Load()
	rep.EmptyPolls = emptyPolls.Load()
	rep.FingerprintMatch = putSum.Load() == takeSum.Load()
	verify(rep, sc, col.Ordering(), taken)
	return rep, nil
}

// verify fills the conservation and order fields of rep.
func verify(rep *Report, sc Scenario, ord Ordering, taken [][]sequence.Tag) {
	seen := make(map[sequence.Tag]int, sc.Producers*sc.PerProducer)
	for _, out := range taken {
		rep.Popped += uint64(len(out))
		last := make(map[uint16]uint64, sc.Producers)
		for _, tag := range out {
			seen[tag]++
			if seen[tag] > 1 {
				rep.Duplicates++
			}
			p, s := tag.Producer(), tag.Seq()
			prev, ok := last[p]
			last[p] = s
			if !ok {
				continue
			}
			switch {
			case ord == FIFO && s <= prev:
				rep.OrderViolations++
			case ord == LIFO && sc.Sequential && s >= prev:
				rep.OrderViolations++
			}
		}
	}
	for p := 0; p < sc.Producers; p++ {
		for i := 1; i <= sc.PerProducer; i++ {
			if seen[sequence.NewTag(uint16(p), uint64(i))] == 0 {
				rep.Missing++
			}
		}
	}
	rep.Passed = rep.Duplicates == 0 && rep.Missing == 0 && rep.OrderViolations == 0 &&
		rep.FingerprintMatch && rep.Pushed == rep.Popped
}
