//go:build !deadlock

// Package syncutil provides the mutex used by pipes, loggers and progress
// trackers. Build with -tags=deadlock to swap in github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
type Mutex struct {
	sync.Mutex
}
