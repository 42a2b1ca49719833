// Package cell provides the atomic memory words the lock-free structures
// are built on: typed and untyped pointer cells, a plain 64-bit word and a
// version-tagged word used to defeat ABA on index-addressed free lists.
//
// Every cell is sequentially consistent. A failed CompareAndSwap has no
// side effects and is never an error; callers loop on it.
package cell
