package ionmetric

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// StatsdRegistry emits to DogStatsD: counters through Incr and timers through
// Timing. Tags are sent as sorted key:value pairs.
type StatsdRegistry struct {
	client statsd.ClientInterface
	rate   float64
}

// NewStatsdRegistry returns a registry over client with sample rate 1.
func NewStatsdRegistry(client statsd.ClientInterface) *StatsdRegistry {
	return &StatsdRegistry{client: client, rate: 1}
}

func (r *StatsdRegistry) Counter(name string, tags TagSet) (Counter, error) {
	return statsdCounter{r: r, name: name, tags: tags.Strings()}, nil
}

func (r *StatsdRegistry) Timer(name string, tags TagSet) (Timer, error) {
	return statsdTimer{r: r, name: name, tags: tags.Strings()}, nil
}

type statsdCounter struct {
	r    *StatsdRegistry
	name string
	tags []string
}

func (c statsdCounter) Increment(context.Context) error {
	return c.r.client.Incr(c.name, c.tags, c.r.rate)
}

type statsdTimer struct {
	r    *StatsdRegistry
	name string
	tags []string
}

func (t statsdTimer) Record(_ context.Context, d time.Duration) error {
	return t.r.client.Timing(t.name, d, t.tags, t.r.rate)
}
