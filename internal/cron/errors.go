package cron

import "errors"

var (
	// ErrUnknownJob is returned by RunNow for an unregistered name.
	ErrUnknownJob = errors.New("cron: unknown job")

	// ErrJobRunning is returned by RunNow while the job is already in flight.
	ErrJobRunning = errors.New("cron: job already running")
)
