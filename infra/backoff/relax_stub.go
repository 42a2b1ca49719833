//go:build !amd64 || noasm

package backoff

// cpuRelax is a no-op where no spin hint is wired up.
func cpuRelax() {}
