//go:build !linux
// +build !linux

// File: core/concurrency/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// No-op pinning for platforms without scheduler-affinity support.

package concurrency

func pinToCPU(workerID int) {}
