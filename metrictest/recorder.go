// Package metrictest provides an in-memory ionmetric.Registry for tests.
package metrictest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/JupiterMetaLabs/ionmetric"
)

// Recorder is an ionmetric.Registry that keeps every measurement in memory,
// in emission order. It is safe for concurrent use.
type Recorder struct {
	mu           sync.Mutex
	measurements []ionmetric.Measurement
	lookupErr    map[ionmetric.Kind]error
	emitErr      map[ionmetric.Kind]error
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{
		lookupErr: make(map[ionmetric.Kind]error),
		emitErr:   make(map[ionmetric.Kind]error),
	}
}

// FailLookup makes Counter or Timer (by kind) return err. A nil err clears it.
func (r *Recorder) FailLookup(kind ionmetric.Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookupErr[kind] = err
}

// FailEmit makes Increment or Record (by kind) return err without recording.
// A nil err clears it.
func (r *Recorder) FailEmit(kind ionmetric.Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitErr[kind] = err
}

func (r *Recorder) Counter(name string, tags ionmetric.TagSet) (ionmetric.Counter, error) {
	if err := r.lookup(ionmetric.KindCounter); err != nil {
		return nil, err
	}
	return counter{r: r, name: name, tags: tags.Clone()}, nil
}

func (r *Recorder) Timer(name string, tags ionmetric.TagSet) (ionmetric.Timer, error) {
	if err := r.lookup(ionmetric.KindTimer); err != nil {
		return nil, err
	}
	return timer{r: r, name: name, tags: tags.Clone()}, nil
}

// Measurements returns a copy of everything recorded so far.
func (r *Recorder) Measurements() []ionmetric.Measurement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.measurements)
}

// Find returns the measurements recorded under name.
func (r *Recorder) Find(name string) []ionmetric.Measurement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ionmetric.Measurement
	for _, m := range r.measurements {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Reset drops recorded measurements and injected failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.measurements = nil
	clear(r.lookupErr)
	clear(r.emitErr)
}

func (r *Recorder) lookup(kind ionmetric.Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupErr[kind]
}

func (r *Recorder) add(m ionmetric.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.emitErr[m.Kind]; err != nil {
		return err
	}
	r.measurements = append(r.measurements, m)
	return nil
}

type counter struct {
	r    *Recorder
	name string
	tags ionmetric.TagSet
}

func (c counter) Increment(context.Context) error {
	return c.r.add(ionmetric.Measurement{Name: c.name, Tags: c.tags, Kind: ionmetric.KindCounter})
}

type timer struct {
	r    *Recorder
	name string
	tags ionmetric.TagSet
}

func (t timer) Record(_ context.Context, d time.Duration) error {
	return t.r.add(ionmetric.Measurement{Name: t.name, Tags: t.tags, Kind: ionmetric.KindTimer, Value: d})
}
