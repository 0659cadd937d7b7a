package numbering

import (
	"time"

	"docnum/internal/core/numerator"
)

// Options configures retry, timeout and formatting behaviour of the Service.
type Options struct {
	// MaxAttempts bounds store calls per operation when the store reports a conflict (default 5)
	MaxAttempts int

	// InitialBackoff is the first retry delay (default 10ms)
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay (default 200ms)
	MaxBackoff time.Duration

	// Timeout applies when the caller's context carries no deadline (default 5s)
	Timeout time.Duration

	// MaxBatch is the largest block AllocateN reserves (default 1000)
	MaxBatch int

	// Formats overrides display formatting per document type
	Formats map[numerator.DocumentType]numerator.FormatConfig

	// Clock returns the time used for formatting (default time.Now)
	Clock func() time.Time
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    5,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		Timeout:        5 * time.Second,
		MaxBatch:       1000,
		Clock:          time.Now,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = d.InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxBatch <= 0 {
		o.MaxBatch = d.MaxBatch
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}
