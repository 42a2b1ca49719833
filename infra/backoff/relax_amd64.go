//go:build amd64 && !noasm

package backoff

// cpuRelax executes the x86_64 PAUSE instruction. Implemented in
// relax_amd64.s.
//
//go:noescape
func cpuRelax()
