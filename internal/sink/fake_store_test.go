package sink

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errRefused = errors.New("connection refused")

// fakeStore records written points and can be told to fail.
type fakeStore struct {
	mu        sync.Mutex
	healthErr error
	writeErr  error
	points    []Point
	closes    int
}

func (f *fakeStore) HealthCheck(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeStore) WritePoint(_ context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.points = append(f.points, Point{Measurement: measurement, Tags: tags, Fields: fields, Time: ts})
	return nil
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeStore) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeStore) written() []Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Point, len(f.points))
	copy(out, f.points)
	return out
}

func (f *fakeStore) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeBackend opens fakeStore handles. The first failOpens opens fail
// with errRefused; openErr, when set, fails every open.
type fakeBackend struct {
	mu        sync.Mutex
	store     *fakeStore
	failOpens int
	openErr   error
	opens     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{store: &fakeStore{}}
}

func (b *fakeBackend) open(context.Context) (Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	if b.openErr != nil {
		return nil, b.openErr
	}
	if b.failOpens > 0 {
		b.failOpens--
		return nil, errRefused
	}
	return b.store, nil
}

func (b *fakeBackend) setFailOpens(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOpens = n
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// fakeRecorder collects lifecycle events.
type fakeRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *fakeRecorder) Record(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *fakeRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
