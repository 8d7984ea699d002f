// Package pool manages a bounded set of expensive, stateful resources such
// as headless browser processes.
//
// Resources are created through a Factory, handed out as Leases, and every
// successful Borrow must be followed by exactly one Return or Invalidate:
//
//	lease, err := p.Borrow(ctx, 5*time.Second)
//	if err != nil {
//		return err
//	}
//	defer p.Return(lease)
package pool

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/puddle/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jetpreview/internal/metrics"
)

var (
	// ErrExhausted is returned by Borrow when no resource became available
	// within the wait bound.
	ErrExhausted = errors.New("pool exhausted")
	// ErrClosed is returned by Borrow after Close.
	ErrClosed = errors.New("pool closed")
	// ErrCreate wraps factory failures reported to the borrower.
	ErrCreate = errors.New("create resource")
)

// Factory creates, checks and destroys the resources held by a Pool.
type Factory[R any] interface {
	// Create starts a new resource.
	Create(ctx context.Context) (R, error)
	// Validate reports whether a previously used resource is still sound.
	Validate(ctx context.Context, r R) error
	// Destroy releases everything held by r.
	Destroy(r R) error
}

// Config bounds the pool.
type Config struct {
	// Name labels logs and metrics.
	Name string
	// MinIdle is the number of idle resources kept warm.
	MinIdle int
	// MaxTotal caps idle plus active resources.
	MaxTotal int
	// EvictionInterval is how often idle resources are scanned. Zero disables the scan.
	EvictionInterval time.Duration
	// IdleTimeout is how long a resource may stay idle before it is evicted.
	IdleTimeout time.Duration
	// ValidateTimeout bounds Factory.Validate on borrow.
	ValidateTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "renderer"
	}
	if c.ValidateTimeout <= 0 {
		c.ValidateTimeout = 5 * time.Second
	}
	return c
}

// Validate checks the pool bounds.
func (c Config) Validate() error {
	if c.MaxTotal < 1 {
		return fmt.Errorf("pool max total must be >= 1, got %d", c.MaxTotal)
	}
	if c.MinIdle < 0 || c.MinIdle > c.MaxTotal {
		return fmt.Errorf("pool min idle must be within [0, %d], got %d", c.MaxTotal, c.MinIdle)
	}
	if c.EvictionInterval < 0 || c.IdleTimeout < 0 {
		return errors.New("pool eviction interval and idle timeout must not be negative")
	}
	return nil
}

// State is the lifecycle state of a pooled resource as seen through a Lease.
type State int32

const (
	StateIdle State = iota
	StateActive
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type entry[R any] struct {
	id    uuid.UUID
	value R
	// uses is only touched by the current holder.
	uses int
}

// Lease is exclusive, temporary use of one pooled resource.
type Lease[R any] struct {
	pool       *Pool[R]
	res        *puddle.Resource[*entry[R]]
	entry      *entry[R]
	state      atomic.Int32
	borrowedAt time.Time
}

// Value returns the leased resource.
func (l *Lease[R]) Value() R {
	return l.entry.value
}

// ID identifies the underlying resource across leases.
func (l *Lease[R]) ID() string {
	return l.entry.id.String()
}

// State returns the lease state.
func (l *Lease[R]) State() State {
	return State(l.state.Load())
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Idle         int
	Active       int
	Total        int
	Constructing int
	Max          int

	Borrowed       int64
	Returned       int64
	Invalidated    int64
	Evicted        int64
	Exhausted      int64
	CreateErrors   int64
	DoubleReleases int64
}

// Pool is a bounded pool of resources of type R.
type Pool[R any] struct {
	cfg     Config
	factory Factory[R]
	inner   *puddle.Pool[*entry[R]]
	log     logrus.FieldLogger

	baseCtx context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool

	borrowed       atomic.Int64
	returned       atomic.Int64
	invalidated    atomic.Int64
	evicted        atomic.Int64
	exhausted      atomic.Int64
	createErrors   atomic.Int64
	doubleReleases atomic.Int64
}

// New creates a pool, pre-fills it to cfg.MinIdle and starts idle eviction.
// It fails if any of the initial resources cannot be created.
func New[R any](ctx context.Context, factory Factory[R], cfg Config, logger logrus.FieldLogger) (*Pool[R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	baseCtx, cancel := context.WithCancel(context.Background())
	p := &Pool[R]{
		cfg:     cfg,
		factory: factory,
		log: logger.WithFields(logrus.Fields{
			"component": "pool",
			"pool":      cfg.Name,
		}),
		baseCtx: baseCtx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}

	inner, err := puddle.NewPool(&puddle.Config[*entry[R]]{
		Constructor: p.construct,
		Destructor:  p.destruct,
		MaxSize:     int32(cfg.MaxTotal),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create pool: %w", err)
	}
	p.inner = inner

	p.log.WithFields(logrus.Fields{
		"min_idle":  cfg.MinIdle,
		"max_total": cfg.MaxTotal,
	}).Info("Pre-filling pool")

	if err := p.prefill(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("prefill pool: %w", err)
	}

	if cfg.EvictionInterval > 0 {
		p.wg.Add(1)
		go p.evictLoop()
	}

	p.observe()
	p.log.Info("Pool initialized")
	return p, nil
}

func (p *Pool[R]) construct(ctx context.Context) (*entry[R], error) {
	value, err := p.factory.Create(ctx)
	if err != nil {
		p.createErrors.Add(1)
		metrics.ObservePoolEvent(p.cfg.Name, "create_error")
		p.log.WithError(err).Error("Failed to create resource")
		return nil, err
	}
	e := &entry[R]{id: uuid.New(), value: value}
	p.log.WithField("resource_id", e.id.String()).Debug("Resource created")
	return e, nil
}

// destruct is called by puddle for resources it destroys itself (pool close).
func (p *Pool[R]) destruct(e *entry[R]) {
	p.destroy(e)
}

func (p *Pool[R]) destroy(e *entry[R]) {
	log := p.log.WithField("resource_id", e.id.String())
	if err := p.factory.Destroy(e.value); err != nil {
		log.WithError(err).Warn("Error destroying resource")
		return
	}
	log.Debug("Resource destroyed")
}

func (p *Pool[R]) prefill(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.MinIdle; i++ {
		g.Go(func() error {
			return p.inner.CreateResource(gctx)
		})
	}
	return g.Wait()
}

// Borrow waits up to timeout for an idle resource or for room to create a
// new one. It returns ErrExhausted when the wait bound passes, the caller's
// context error when ctx ends first, ErrClosed after Close and an ErrCreate
// wrapped error when the factory fails. Factory failures are not retried.
func (p *Pool[R]) Borrow(ctx context.Context, timeout time.Duration) (*Lease[R], error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		res, err := p.inner.Acquire(waitCtx)
		if err != nil {
			return nil, p.acquireError(ctx, err, timeout)
		}

		e := res.Value()
		if e.uses > 0 {
			if verr := p.validate(ctx, e); verr != nil {
				p.log.WithError(verr).WithField("resource_id", e.id.String()).Warn("Idle resource failed validation, destroying")
				res.Hijack()
				p.destroy(e)
				p.invalidated.Add(1)
				metrics.ObservePoolEvent(p.cfg.Name, "validation_failed")
				continue
			}
		}
		e.uses++

		lease := &Lease[R]{pool: p, res: res, entry: e, borrowedAt: time.Now()}
		lease.state.Store(int32(StateActive))
		p.borrowed.Add(1)
		metrics.ObservePoolEvent(p.cfg.Name, "borrow")
		p.observe()
		return lease, nil
	}
}

func (p *Pool[R]) validate(ctx context.Context, e *entry[R]) error {
	vctx, cancel := context.WithTimeout(ctx, p.cfg.ValidateTimeout)
	defer cancel()
	return p.factory.Validate(vctx, e.value)
}

func (p *Pool[R]) acquireError(ctx context.Context, err error, timeout time.Duration) error {
	switch {
	case errors.Is(err, puddle.ErrClosedPool):
		return ErrClosed
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		p.exhausted.Add(1)
		metrics.ObservePoolEvent(p.cfg.Name, "exhausted")
		return fmt.Errorf("%w: no resource available within %s", ErrExhausted, timeout)
	default:
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
}

// Return hands the leased resource back as idle. Returning a lease twice,
// after Invalidate, or a lease from another pool is logged and ignored.
func (p *Pool[R]) Return(l *Lease[R]) {
	if !p.owns(l, "return") {
		return
	}
	if !l.state.CompareAndSwap(int32(StateActive), int32(StateIdle)) {
		p.releasedTwice(l, "return")
		return
	}
	l.res.Release()
	p.returned.Add(1)
	metrics.ObservePoolEvent(p.cfg.Name, "return")
	p.observe()
}

// Invalidate marks the leased resource broken, removes it from the pool's
// capacity and destroys it before returning.
func (p *Pool[R]) Invalidate(l *Lease[R]) {
	if !p.owns(l, "invalidate") {
		return
	}
	if !l.state.CompareAndSwap(int32(StateActive), int32(StateBroken)) {
		p.releasedTwice(l, "invalidate")
		return
	}
	l.res.Hijack()
	p.destroy(l.entry)
	p.invalidated.Add(1)
	metrics.ObservePoolEvent(p.cfg.Name, "invalidate")
	p.log.WithFields(logrus.Fields{
		"resource_id": l.ID(),
		"held_for":    time.Since(l.borrowedAt).String(),
	}).Info("Resource invalidated")
	p.observe()
}

func (p *Pool[R]) owns(l *Lease[R], op string) bool {
	if l == nil || l.pool != p {
		p.doubleReleases.Add(1)
		metrics.ObservePoolEvent(p.cfg.Name, "unknown_release")
		p.log.WithField("op", op).Error("Release of a lease not owned by this pool ignored")
		return false
	}
	return true
}

func (p *Pool[R]) releasedTwice(l *Lease[R], op string) {
	p.doubleReleases.Add(1)
	metrics.ObservePoolEvent(p.cfg.Name, "double_release")
	p.log.WithFields(logrus.Fields{
		"op":          op,
		"resource_id": l.ID(),
		"state":       l.State().String(),
	}).Error("Lease already released, ignoring")
}

func (p *Pool[R]) evictLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.log.Debug("Eviction loop stopping")
			return
		case <-ticker.C:
			p.evictIdle()
			p.ensureMinIdle()
			p.observe()
		}
	}
}

// evictIdle destroys resources idle longer than IdleTimeout, oldest first,
// while more than MinIdle idle resources remain.
func (p *Pool[R]) evictIdle() {
	idle := p.inner.AcquireAllIdle()
	if len(idle) == 0 {
		return
	}
	slices.SortFunc(idle, func(a, b *puddle.Resource[*entry[R]]) int {
		return cmp.Compare(b.IdleDuration(), a.IdleDuration())
	})

	remaining := len(idle)
	for _, res := range idle {
		if remaining > p.cfg.MinIdle && res.IdleDuration() > p.cfg.IdleTimeout {
			res.Hijack()
			p.destroy(res.Value())
			p.evicted.Add(1)
			metrics.ObservePoolEvent(p.cfg.Name, "evict")
			remaining--
			continue
		}
		res.ReleaseUnused()
	}
}

func (p *Pool[R]) ensureMinIdle() {
	stat := p.inner.Stat()
	missing := p.cfg.MinIdle - int(stat.IdleResources()+stat.ConstructingResources())
	room := int(stat.MaxResources() - stat.TotalResources())
	for i := 0; i < min(missing, room); i++ {
		if err := p.inner.CreateResource(p.baseCtx); err != nil {
			p.log.WithError(err).Warn("Failed to top up idle resources")
			return
		}
	}
}

func (p *Pool[R]) observe() {
	stat := p.inner.Stat()
	metrics.ObservePool(p.cfg.Name, int(stat.IdleResources()), int(stat.AcquiredResources()))
}

// Stats returns a snapshot of the pool.
func (p *Pool[R]) Stats() Stats {
	stat := p.inner.Stat()
	return Stats{
		Idle:           int(stat.IdleResources()),
		Active:         int(stat.AcquiredResources()),
		Total:          int(stat.TotalResources()),
		Constructing:   int(stat.ConstructingResources()),
		Max:            int(stat.MaxResources()),
		Borrowed:       p.borrowed.Load(),
		Returned:       p.returned.Load(),
		Invalidated:    p.invalidated.Load(),
		Evicted:        p.evicted.Load(),
		Exhausted:      p.exhausted.Load(),
		CreateErrors:   p.createErrors.Load(),
		DoubleReleases: p.doubleReleases.Load(),
	}
}

// Close stops eviction, destroys idle resources and waits for outstanding
// leases to be released. It is safe to call Close more than once.
func (p *Pool[R]) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.log.Info("Closing pool")

	close(p.stopCh)
	p.cancel()
	p.wg.Wait()
	if p.inner != nil {
		p.inner.Close()
	}

	p.log.WithFields(logrus.Fields{
		"total_borrowed":    p.borrowed.Load(),
		"total_returned":    p.returned.Load(),
		"total_invalidated": p.invalidated.Load(),
		"total_evicted":     p.evicted.Load(),
	}).Info("Pool closed")
}
