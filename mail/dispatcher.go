package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
)

const (
	DefaultWorkers     = 2
	DefaultQueueSize   = 64
	DefaultMaxRetries  = 3
	DefaultRetryBase   = 200 * time.Millisecond
	DefaultMaxFailures = 5
	DefaultOpenTimeout = 30 * time.Second
)

// Dispatcher delivers messages from a bounded queue. Deliveries are retried
// with exponential backoff; consecutive failures open a circuit breaker that
// fails deliveries fast until it half-opens again.
type Dispatcher struct {
	sender  Sender
	queue   chan *Message
	workers int

	maxRetries uint64
	retryBase  time.Duration
	breaker    *gobreaker.CircuitBreaker

	maxFailures uint32
	openTimeout time.Duration

	logger  Logger
	onError func(msg *Message, err error)

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type DispatcherOption func(*Dispatcher)

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan *Message, n)
		}
	}
}

// WithRetry sets how many times a failed delivery is retried and the base
// delay of the exponential backoff.
func WithRetry(maxRetries uint64, base time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxRetries = maxRetries
		if base > 0 {
			d.retryBase = base
		}
	}
}

// WithCircuitBreaker sets the consecutive failures that open the breaker and
// how long it stays open.
func WithCircuitBreaker(maxFailures uint32, openTimeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if maxFailures > 0 {
			d.maxFailures = maxFailures
		}
		if openTimeout > 0 {
			d.openTimeout = openTimeout
		}
	}
}

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = normalizeLogger(logger)
	}
}

// WithErrorHandler is called for every queued message that could not be
// delivered.
func WithErrorHandler(fn func(msg *Message, err error)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onError = fn
	}
}

func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		queue:       make(chan *Message, DefaultQueueSize),
		workers:     DefaultWorkers,
		maxRetries:  DefaultMaxRetries,
		retryBase:   DefaultRetryBase,
		maxFailures: DefaultMaxFailures,
		openTimeout: DefaultOpenTimeout,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mail",
		MaxRequests: 1,
		Timeout:     d.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= d.maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return d
}

// Start launches the workers. It is a no-op when already started.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

// Enqueue validates msg and queues it for delivery without blocking.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return mailError(CodeClosed).Wrap(ErrClosed)
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		return mailError(CodeQueueFull).
			With("capacity", cap(d.queue)).
			Wrap(ErrQueueFull)
	}
}

// Send delivers msg right away, with the same retry and breaker policy used
// by the workers.
func (d *Dispatcher) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return d.deliver(ctx, msg)
}

// Close stops accepting messages, waits for queued ones to be delivered and
// stops the workers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
		d.cancel()
	}

	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()

	for msg := range d.queue {
		if err := d.deliver(ctx, msg); err != nil {
			d.logger.Error("failed to deliver %q to %v: %v", msg.Subject, msg.To, err)
			if d.onError != nil {
				d.onError(msg, err)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg *Message) error {
	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(d.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := d.breaker.Execute(func() (interface{}, error) {
			return nil, d.sender.Send(ctx, msg)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}

		d.logger.Debug("delivery of %q failed, retrying: %v", msg.Subject, err)
		return retry.RetryableError(err)
	})
}
