//go:build linux
// +build linux

// File: core/concurrency/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux worker pinning via the scheduler-affinity syscall. The caller must
// have locked the goroutine to its OS thread.

package concurrency

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPU pins the calling thread to one logical CPU, chosen by worker id
// modulo the CPU count. Failures are ignored: pinning is an optimization,
// not a correctness requirement.
func pinToCPU(workerID int) {
	cpu := workerID % runtime.NumCPU()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set)
}
