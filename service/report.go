package service

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sugawarayuuta/sonnet"

	"lfcore/infra/memory"
)

// ReportVersion is bumped when Report's encoding changes incompatibly.
const ReportVersion = 1

// Report is the outcome of one workload run.
type Report struct {
	V           int    `json:"v"`
	RunID       uint64 `json:"run_id"`
	Structure   string `json:"structure"`
	Reclaimer   string `json:"reclaimer"`
	Producers   int    `json:"producers"`
	Consumers   int    `json:"consumers"`
	PerProducer int    `json:"per_producer"`
	Sequential  bool   `json:"sequential"`

	Pushed          uint64 `json:"pushed"`
	Popped          uint64 `json:"popped"`
	EmptyPolls      uint64 `json:"empty_polls"`
	Duplicates      int    `json:"duplicates"`
	Missing         int    `json:"missing"`
	OrderViolations int    `json:"order_violations"`
	// FingerprintMatch compares order-independent hashes of the produced
	// and consumed multisets.
	FingerprintMatch bool `json:"fingerprint_match"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Reclaim  memory.Stats  `json:"reclaim"`
	Passed   bool          `json:"passed"`
}

// Encode marshals r as JSON.
func (r *Report) Encode() ([]byte, error) {
	b, err := sonnet.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "encode report")
	}
	return b, nil
}

// DecodeReport is the inverse of Encode.
func DecodeReport(b []byte) (*Report, error) {
	var r Report
	if err := sonnet.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}
	if r.V != ReportVersion {
		return nil, errors.Newf("decode report: unsupported version %d", r.V)
	}
	return &r, nil
}
