// Package publisher drains the report outbox into a sink. Delivery is at
// least once: a report is marked SENT before the send and ACKED after it,
// so a crash in between resends it on the next pass.
package publisher

import (
	"context"
	"strconv"
	"time"

	"lfcore/infra/kafka"
	"lfcore/infra/store"
	"lfcore/log"
)

// Outbox is the part of store.Outbox the publisher needs.
type Outbox interface {
	ScanByState(state store.State, fn func(store.Record) error) error
	UpdateState(runID uint64, state store.State, retries uint32) error
}

type Publisher struct {
	outbox   Outbox
	sink     kafka.Sink
	interval time.Duration
	maxRetry uint32
	failLog  *log.Every
}

func New(outbox Outbox, sink kafka.Sink, interval time.Duration, maxRetry int) *Publisher {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if maxRetry <= 0 {
		maxRetry = 1
	}
	return &Publisher{
		outbox:   outbox,
		sink:     sink,
		interval: interval,
		maxRetry: uint32(maxRetry),
		failLog:  log.NewEvery(10 * time.Second),
	}
}

// Run publishes on every tick until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	log.InfoLog.Printf("[publisher] started, interval %s", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.InfoLog.Printf("[publisher] stopped")
			return
		case <-ticker.C:
			if _, err := p.Once(ctx); err != nil && ctx.Err() == nil {
				log.ErrorLog.Printf("[publisher] pass failed: %v", err)
			}
		}
	}
}

// Once makes a single pass over SENT (interrupted) and NEW reports and
// returns how many were acknowledged.
func (p *Publisher) Once(ctx context.Context) (int, error) {
	acked := 0
	for _, st := range []store.State{store.StateSent, store.StateNew} {
		err := p.outbox.ScanByState(st, func(rec store.Record) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := p.deliver(ctx, rec)
			if ok {
				acked++
			}
			return err
		})
		if err != nil {
			return acked, err
		}
	}
	return acked, nil
}

func (p *Publisher) deliver(ctx context.Context, rec store.Record) (bool, error) {
	// 1. Mark SENT
	if err := p.outbox.UpdateState(rec.RunID, store.StateSent, rec.Retries); err != nil {
		return false, err
	}

	// 2. Publish
	key := []byte(strconv.FormatUint(rec.RunID, 10))
	if err := p.sink.Send(ctx, key, rec.Payload); err != nil {
		retries := rec.Retries + 1
		next := store.StateNew
		if retries >= p.maxRetry {
			next = store.StateFailed
			log.WarningLog.Printf("[publisher] run %d failed after %d attempts: %v", rec.RunID, retries, err)
		} else if p.failLog.ShouldLog() {
			log.WarningLog.Printf("[publisher] run %d send failed, will retry: %v", rec.RunID, err)
		}
		return false, p.outbox.UpdateState(rec.RunID, next, retries)
	}

	// 3. Mark ACKED
	if err := p.outbox.UpdateState(rec.RunID, store.StateAcked, rec.Retries); err != nil {
		return false, err
	}
	log.DebugLog.Printf("[publisher] run %d acked", rec.RunID)
	return true, nil
}

// Close closes the sink.
func (p *Publisher) Close() error {
	return p.sink.Close()
}
