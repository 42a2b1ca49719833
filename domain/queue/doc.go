// Package queue implements the Michael-Scott lock-free FIFO queue.
//
// head always points at a dummy node; the first element lives in
// head.next. tail points at the last node or the one before it: an
// Enqueue that linked its node but has not swung tail yet leaves it one
// behind, and any other operation that notices finishes the swing for it.
// Dequeued dummies are retired through the reclaimer so a node is
// recycled only once no operation holds a hazard on it.
package queue
