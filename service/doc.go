// Package service drives the lock-free core on behalf of outer layers.
//
// Collections is the single entry point the gRPC surface uses to reach
// the shared stack and queue. Workload runs producer/consumer scenarios
// against a fresh structure, checks conservation, uniqueness and order,
// and produces a Report that can be persisted and published.
package service
