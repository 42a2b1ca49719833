package main

import (
	"lfcore/config"
	"lfcore/infra/backoff"
	"lfcore/infra/kafka"
	"lfcore/service"
)

func coreOptions(c config.Core) service.CoreOptions {
	return service.CoreOptions{
		Reclaimer:       c.Reclaimer,
		RetireThreshold: c.RetireThreshold,
		Capacity:        c.Capacity,
		Backoff:         backoff.Config{MinSpins: c.BackoffMin, MaxSpins: c.BackoffMax},
	}
}

// sinkConfig returns false when publishing is disabled.
func sinkConfig(p config.Publish) (kafka.Config, bool) {
	if p.Sink == "none" {
		return kafka.Config{}, false
	}
	return kafka.Config{
		Kind:     p.Sink,
		Brokers:  p.Brokers,
		Topic:    p.Topic,
		MaxRetry: int(p.MaxRetry),
	}, true
}
