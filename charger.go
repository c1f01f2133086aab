package speechgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultChargeWorkers = 1
	defaultChargeQueue   = 64
	defaultChargeTimeout = 5 * time.Second
)

// ChargeTask is a pending ledger charge.
type ChargeTask struct {
	RequestID string
	Seconds   float64
	At        time.Time
}

// Charger applies ledger charges off the response path on a bounded worker pool.
// Failures go to its own error channel, which is drained and logged; they are
// never surfaced to the request that scheduled the charge.
type Charger struct {
	ledger           *Ledger
	meter            Meter
	logger           *slog.Logger
	timeout          time.Duration
	workerCount      int
	queueSize        int
	onPersistFailure func(error)

	tasks chan ChargeTask
	errs  chan error
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// ChargerOption configures a Charger.
type ChargerOption func(*Charger)

// WithChargeWorkers sets the number of charge workers.
func WithChargeWorkers(n int) ChargerOption {
	return func(c *Charger) { c.workerCount = n }
}

// WithChargeQueue sets how many charges may be pending before new ones are dropped.
func WithChargeQueue(n int) ChargerOption {
	return func(c *Charger) { c.queueSize = n }
}

// WithChargeTimeout bounds each ledger write.
func WithChargeTimeout(d time.Duration) ChargerOption {
	return func(c *Charger) { c.timeout = d }
}

// WithChargeMeter sets the meter notified of every charge.
func WithChargeMeter(m Meter) ChargerOption {
	return func(c *Charger) { c.meter = m }
}

// WithChargeLogger sets the logger.
func WithChargeLogger(l *slog.Logger) ChargerOption {
	return func(c *Charger) { c.logger = l }
}

// WithPersistFailureHandler registers an operator alert hook, called from the
// error reporter whenever a charge could not be persisted.
func WithPersistFailureHandler(fn func(error)) ChargerOption {
	return func(c *Charger) { c.onPersistFailure = fn }
}

// NewCharger starts a charger bound to ledger.
func NewCharger(ledger *Ledger, opts ...ChargerOption) *Charger {
	c := &Charger{
		ledger:      ledger,
		meter:       noopMeter{},
		logger:      slog.Default(),
		timeout:     defaultChargeTimeout,
		workerCount: defaultChargeWorkers,
		queueSize:   defaultChargeQueue,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workerCount < 1 {
		c.workerCount = defaultChargeWorkers
	}
	if c.queueSize < 1 {
		c.queueSize = defaultChargeQueue
	}

	c.tasks = make(chan ChargeTask, c.queueSize)
	c.errs = make(chan error, c.queueSize)
	c.done = make(chan struct{})

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.work()
	}
	go c.report()

	return c
}

// Submit queues a charge without blocking. It returns false if the charge was
// dropped because the queue is full or the charger is closed.
func (c *Charger) Submit(t ChargeTask) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.drop(t, ErrChargerClosed)
		return false
	}

	select {
	case c.tasks <- t:
		return true
	default:
		c.drop(t, ErrChargeQueueFull)
		return false
	}
}

// Close stops accepting charges and waits until queued ones are applied.
func (c *Charger) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.tasks)
		c.mu.Unlock()

		go func() {
			c.wg.Wait()
			close(c.errs)
		}()
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Charger) drop(t ChargeTask, err error) {
	c.logger.Warn("charge dropped",
		"request_id", t.RequestID,
		"seconds", t.Seconds,
		"error", err,
	)
	c.meter.OnCharge(ChargeEvent{
		RequestID: t.RequestID,
		Seconds:   t.Seconds,
		Dropped:   true,
		Error:     err,
	})
}

func (c *Charger) work() {
	defer c.wg.Done()

	for t := range c.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		res, err := c.ledger.Charge(ctx, t.Seconds, t.At)
		cancel()

		c.meter.OnCharge(ChargeEvent{
			RequestID: t.RequestID,
			Seconds:   t.Seconds,
			Charged:   res.Charged,
			Total:     res.Total,
			Rolled:    res.Rolled,
			Error:     err,
		})
		if err != nil {
			c.errs <- fmt.Errorf("speechgate: charge request=%s: %w", t.RequestID, err)
		}
	}
}

func (c *Charger) report() {
	defer close(c.done)

	for err := range c.errs {
		c.logger.Error("ledger charge failed", "error", err)
		if errors.Is(err, ErrPersist) && c.onPersistFailure != nil {
			c.onPersistFailure(err)
		}
	}
}
