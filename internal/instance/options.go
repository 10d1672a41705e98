package instance

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies wall-clock time for lifecycle stamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator produces record identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. Panics if the system random
// source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type options struct {
	clock    Clock
	ids      IDGenerator
	location *time.Location
}

// Option configures the services in this package.
type Option func(*options)

// WithClock overrides the clock used for completedAt, skippedAt and the
// coverage timestamps.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator overrides the generator for instance, note and request ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLocation sets the household time zone. It decides which calendar day
// a deferral target falls on. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.location == nil {
		o.location = time.UTC
	}
	return o
}
