package ionmetric

import (
	"context"
	"time"
)

// TimerSuffix is appended to the metric name for the duration timer.
const TimerSuffix = ".time"

// Registry is the metrics backend the interceptor emits to. Implementations
// must be safe for concurrent use and must not modify the tag set.
type Registry interface {
	// Counter returns the counter for name with the given tags.
	Counter(name string, tags TagSet) (Counter, error)

	// Timer returns the timer for name with the given tags.
	Timer(name string, tags TagSet) (Timer, error)
}

// Counter is a monotonically increasing count.
type Counter interface {
	Increment(ctx context.Context) error
}

// Timer records durations.
type Timer interface {
	Record(ctx context.Context, d time.Duration) error
}

// Kind distinguishes the two measurements of an invocation.
type Kind uint8

const (
	KindCounter Kind = iota + 1
	KindTimer
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Measurement is one emitted event. Counters carry a zero Value.
type Measurement struct {
	Name  string
	Tags  TagSet
	Kind  Kind
	Value time.Duration
}

// NopRegistry accepts and discards every measurement.
type NopRegistry struct{}

func (NopRegistry) Counter(string, TagSet) (Counter, error) { return nopInstrument{}, nil }
func (NopRegistry) Timer(string, TagSet) (Timer, error)     { return nopInstrument{}, nil }

type nopInstrument struct{}

func (nopInstrument) Increment(context.Context) error             { return nil }
func (nopInstrument) Record(context.Context, time.Duration) error { return nil }
