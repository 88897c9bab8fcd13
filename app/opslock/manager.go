// Package opslock implements named cooldown windows over a shared store. A
// grant closes the window for the configured TTL; every caller racing on the
// same name observes one linear sequence of grants and denials because the
// store decides each attempt in a single conditional write.
package opslock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-autonomax/app/entity"
	"github.com/vibast-solutions/ms-go-autonomax/app/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/vibast-solutions/ms-go-autonomax/app/opslock")

var (
	ErrEmptyName        = errors.New("ops lock name is required")
	ErrInvalidTTL       = errors.New("ops lock ttl must be positive")
	ErrStoreUnavailable = errors.New("ops lock store unavailable")
)

// Store persists lock records. TryAcquire must write {name, until} atomically
// when no record exists or the stored window ends at or before now, and
// report whether it wrote.
type Store interface {
	TryAcquire(ctx context.Context, name string, now time.Time, until time.Time) (bool, error)
	Find(ctx context.Context, name string) (*entity.OpsLock, error)
	List(ctx context.Context) ([]entity.OpsLock, error)
}

// TTLSource supplies the cooldown window; it is read on every Acquire.
type TTLSource interface {
	LockTTL() time.Duration
}

// StaticTTL is a fixed TTLSource.
type StaticTTL time.Duration

// LockTTL returns the fixed duration.
func (t StaticTTL) LockTTL() time.Duration {
	return time.Duration(t)
}

// StoreError wraps a failed store call; it matches ErrStoreUnavailable.
type StoreError struct {
	Op   string
	Name string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ops lock %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Status is a lock record as seen at a point in time.
type Status struct {
	Name        string
	LockedUntil time.Time
	Active      bool
}

type Manager struct {
	store   Store
	ttl     TTLSource
	now     func() time.Time
	metrics *metrics.OpsLock
}

type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics records acquisition results into m.
func WithMetrics(om *metrics.OpsLock) Option {
	return func(m *Manager) { m.metrics = om }
}

// NewManager builds a Manager over store with the TTL read from ttl.
func NewManager(store Store, ttl TTLSource, opts ...Option) *Manager {
	m := &Manager{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire grants the named window if it is open, closing it for one TTL.
// A denial is (false, nil); store failures are returned as errors.
func (m *Manager) Acquire(ctx context.Context, name string) (granted bool, err error) {
	ctx, span := tracer.Start(ctx, "OpsLock.Acquire")
	span.SetAttributes(attribute.String("ops.lock.name", name))
	start := time.Now()
	defer func() {
		m.observe(granted, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Bool("ops.lock.granted", granted))
		}
		span.End()
	}()

	if name == "" {
		return false, ErrEmptyName
	}
	ttl := m.ttl.LockTTL()
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	now := m.now().UTC()
	granted, err = m.store.TryAcquire(ctx, name, now, now.Add(ttl))
	if err != nil {
		return false, &StoreError{Op: "acquire", Name: name, Err: err}
	}
	return granted, nil
}

// Status returns the current record for name, or nil if none was ever granted.
func (m *Manager) Status(ctx context.Context, name string) (*Status, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	l, err := m.store.Find(ctx, name)
	if err != nil {
		return nil, &StoreError{Op: "find", Name: name, Err: err}
	}
	if l == nil {
		return nil, nil
	}
	s := m.status(*l)
	return &s, nil
}

// List returns every known lock record.
func (m *Manager) List(ctx context.Context) ([]Status, error) {
	locks, err := m.store.List(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	out := make([]Status, 0, len(locks))
	for _, l := range locks {
		out = append(out, m.status(l))
	}
	return out, nil
}

func (m *Manager) status(l entity.OpsLock) Status {
	return Status{Name: l.Name, LockedUntil: l.LockedUntil, Active: l.ActiveAt(m.now().UTC())}
}

func (m *Manager) observe(granted bool, err error, elapsed time.Duration) {
	if m.metrics == nil {
		return
	}
	result := metrics.ResultDenied
	switch {
	case err != nil:
		result = metrics.ResultError
	case granted:
		result = metrics.ResultGranted
	}
	m.metrics.Acquisitions.WithLabelValues(result).Inc()
	m.metrics.Latency.Observe(elapsed.Seconds())
}
