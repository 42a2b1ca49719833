// Package stack implements a Treiber lock-free LIFO stack.
//
// Push links a fresh node in front of the current head with one CAS. Pop
// protects the head with a hazard, re-validates it, and swings head to
// head.next. Popped nodes are retired to the reclaimer, which returns them
// to the node allocator only when no concurrent Pop can still read them;
// that is also what keeps a recycled node from fooling the head CAS.
package stack
