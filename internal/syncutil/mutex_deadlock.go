//go:build deadlock

// Package syncutil provides the mutex used by pipes, loggers and progress
// trackers. This file is compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex reports lock-order inversions and long waits via go-deadlock.
type Mutex struct {
	deadlock.Mutex
}
