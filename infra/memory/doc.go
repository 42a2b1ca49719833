// Package memory provides safe memory reclamation for the lock-free
// structures: hazard pointers (HazardDomain), epoch-based reclamation
// (EpochDomain), the per-record RetireRing both of them drain, and the node
// allocators (Pool, Arena) whose Put is only ever called by a reclaimer.
//
// A goroutine Acquires a Guard for the duration of a single operation,
// publishes the nodes it is about to dereference, retires the nodes it
// unlinked, and Releases the guard on every exit path. Nothing in this
// package blocks and nothing fails; a guard that is held forever only
// delays reclamation.
package memory
