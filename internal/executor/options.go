package executor

import (
	"io"

	"github.com/sirupsen/logrus"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
)

// DefaultMaxDepth is the field depth limit used unless WithMaxDepth is given.
const DefaultMaxDepth = 64

type options struct {
	maxDepth    int
	parallelism int
	logger      logrus.FieldLogger
	bus         *eventbus.Bus
}

// Option configures an Executor.
type Option func(*options)

// WithMaxDepth sets the maximum field depth. Fields of the root selection
// are at depth 1 and fields of an object's sub-selection are one deeper than
// the object's field. A field deeper than n resolves to null with
// ErrMaxDepth, whether it is a leaf or not. n <= 0 disables the guard.
func WithMaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

// WithParallelism sets how many sibling fields or list elements are
// completed concurrently per level. 0 completes everything on the calling
// goroutine. Top-level mutation fields are always serial.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithLogger sets the logger used for recovered panics and schema errors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventBus publishes operation and field events on b.
func WithEventBus(b *eventbus.Bus) Option {
	return func(o *options) { o.bus = b }
}

func newOptions(opts []Option) options {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}
	return o
}
