// Package store is the durable outbox of workload reports. A report is
// written NEW when its run finishes and moves to SENT, ACKED or FAILED as
// the publisher works through it.
package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseState is the inverse of String.
func ParseState(s string) (State, error) {
	for st := StateNew; st <= StateFailed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, errors.Newf("store: unknown state %q", s)
}

// ErrNotFound is returned for run ids with no record.
var ErrNotFound = errors.New("store: run not found")

// -------------------- Record --------------------

type Record struct {
	RunID       uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const headerLen = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, headerLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[headerLen:], r.Payload)
	return buf
}

// decodeRecord copies b; pebble owns the value buffer.
func decodeRecord(id uint64, b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, errors.Newf("store: record %d too short (%d bytes)", id, len(b))
	}
	return Record{
		RunID:       id,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(b[headerLen:]),
	}, nil
}

// -------------------- Outbox --------------------

type Outbox struct {
	db *pebble.DB
}

// Open opens the outbox under dir. fs may be nil for the OS filesystem.
func Open(dir string, fs vfs.FS) (*Outbox, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", dir)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// PutNew inserts a report in state NEW.
func (o *Outbox) PutNew(runID uint64, payload []byte) error {
	rec := Record{State: StateNew, Payload: payload}
	return errors.Wrap(o.db.Set(keyFor(runID), encodeRecord(rec), pebble.Sync), "store: put")
}

// UpdateState records a delivery attempt. The payload is kept.
func (o *Outbox) UpdateState(runID uint64, state State, retries uint32) error {
	rec, err := o.Get(runID)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return errors.Wrap(o.db.Set(keyFor(runID), encodeRecord(rec), pebble.Sync), "store: update")
}

// Delete removes a record.
func (o *Outbox) Delete(runID uint64) error {
	return errors.Wrap(o.db.Delete(keyFor(runID), pebble.Sync), "store: delete")
}

// Get returns the record for runID.
func (o *Outbox) Get(runID uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(runID))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, errors.Wrapf(ErrNotFound, "run %d", runID)
	}
	if err != nil {
		return Record{}, errors.Wrap(err, "store: get")
	}
	defer closer.Close()

	return decodeRecord(runID, val)
}

// -------------------- Scan --------------------

// Scan visits every record in run id order.
func (o *Outbox) Scan(fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return errors.Wrap(err, "store: iterate")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(id, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ScanByState visits the records in state. Used by the publisher.
func (o *Outbox) ScanByState(state State, fn func(Record) error) error {
	return o.Scan(func(r Record) error {
		if r.State != state {
			return nil
		}
		return fn(r)
	})
}

// LastID returns the highest stored run id, or 0 when empty.
func (o *Outbox) LastID() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, errors.Wrap(err, "store: iterate")
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Helpers --------------------

const (
	keyPrefix = "run/"
	keyUpper  = "run/~"
)

func keyFor(runID uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", runID))
}

func parseKey(b []byte) (uint64, error) {
	id, err := strconv.ParseUint(string(bytes.TrimPrefix(b, []byte(keyPrefix))), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "store: bad key %q", b)
	}
	return id, nil
}
