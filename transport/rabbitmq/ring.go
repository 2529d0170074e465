package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"

	"github.com/drblury/auditflow/transport"
)

// ErrPublisherClosed is returned when publishing on a closed sink.
var ErrPublisherClosed = errors.New("rabbitmq: publisher is closed")

// link is a publisher bound to the connection of one ring member.
type link struct {
	index     int
	conn      *amqp.ConnectionWrapper
	publisher message.Publisher
}

func (l *link) Publish(topic string, messages ...*message.Message) error {
	return l.publisher.Publish(topic, messages...)
}

// Close closes the publisher and the connection it owns.
func (l *link) Close() error {
	return errors.Join(l.publisher.Close(), closeConnection(l.conn))
}

type dialer struct {
	cfg       transport.Config
	endpoints []Endpoint
	tlsCfg    *tls.Config
	logger    watermill.LoggerAdapter
}

func (d *dialer) dial(index int) (*link, error) {
	conn, err := ConnectionFactory(d.connectionConfig(index), d.logger)
	if err != nil {
		return nil, err
	}
	publisher, err := PublisherFactory(d.amqpConfig(index), d.logger, conn)
	if err != nil {
		_ = closeConnection(conn)
		return nil, err
	}
	return &link{index: index, conn: conn, publisher: publisher}, nil
}

// connectRing walks the ring starting at start. One attempt is a full pass
// over every host; attempts <= 0 retries until ctx is done.
func (d *dialer) connectRing(ctx context.Context, start, attempts int) (*link, error) {
	n := len(d.endpoints)
	pass := func() (*link, error) {
		var errs []error
		for i := 0; i < n; i++ {
			index := (start + i) % n
			l, err := d.dial(index)
			if err == nil {
				d.logger.Info("Audit broker connected", watermill.LogFields{
					"endpoint": d.endpoints[index].Redacted(),
				})
				return l, nil
			}
			d.logger.Error("Audit broker connection failed", err, watermill.LogFields{
				"endpoint": d.endpoints[index].Redacted(),
			})
			errs = append(errs, err)
		}
		return nil, errors.Join(errs...)
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(d.backoff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.logger.Info("Retrying audit broker connection", watermill.LogFields{
				"retry_in": next.String(),
			})
		}),
	}
	if attempts > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(attempts)))
	}
	return backoff.Retry(ctx, pass, opts...)
}

func (d *dialer) backoff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.cfg.GetRetryInterval()
	eb.Multiplier = d.cfg.GetRetryMultiplier()
	eb.MaxInterval = d.cfg.GetMaxRetryInterval()
	eb.RandomizationFactor = backoffRandomness
	return eb
}

// failoverPublisher publishes through the current link. A failed publish
// still returns its error, and in the background the ring is walked from the
// next host until a link is established or the attempts run out.
type failoverPublisher struct {
	dialer      *dialer
	logger      watermill.LoggerAdapter
	maxAttempts int

	mu      sync.RWMutex
	current *link
	closed  bool

	switching atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
}

func newFailoverPublisher(d *dialer, initial *link, maxAttempts int, logger watermill.LoggerAdapter) *failoverPublisher {
	return &failoverPublisher{
		dialer:      d,
		logger:      logger,
		maxAttempts: maxAttempts,
		current:     initial,
		done:        make(chan struct{}),
	}
}

func (p *failoverPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	current, closed := p.current, p.closed
	p.mu.RUnlock()

	if closed {
		return ErrPublisherClosed
	}
	if current == nil {
		return errors.New("rabbitmq: no broker connection")
	}
	err := current.Publish(topic, messages...)
	if err != nil {
		p.failover(current)
	}
	return err
}

// failover starts at most one background rotation at a time.
func (p *failoverPublisher) failover(failed *link) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || !p.switching.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.switching.Store(false)
		p.rotate(failed)
	}()
}

func (p *failoverPublisher) rotate(failed *link) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	p.logger.Info("Audit broker failover started", watermill.LogFields{
		"failed_endpoint": p.dialer.endpoints[failed.index].Redacted(),
	})

	next, err := p.dialer.connectRing(ctx, failed.index+1, p.maxAttempts)
	if err != nil {
		p.logger.Error("Audit broker failover gave up", err, nil)
		return
	}

	p.mu.Lock()
	if p.closed || p.current != failed {
		p.mu.Unlock()
		_ = next.Close()
		return
	}
	p.current = next
	p.mu.Unlock()

	if err := failed.Close(); err != nil {
		p.logger.Debug("Closing failed audit broker link", watermill.LogFields{"error": err.Error()})
	}
	p.logger.Info("Audit broker failover complete", watermill.LogFields{
		"endpoint": p.dialer.endpoints[next.index].Redacted(),
	})
}

// Endpoint returns the redacted URI of the host currently in use.
func (p *failoverPublisher) Endpoint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return ""
	}
	return p.dialer.endpoints[p.current.index].Redacted()
}

func (p *failoverPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	current := p.current
	p.current = nil
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	if current != nil {
		return current.Close()
	}
	return nil
}
