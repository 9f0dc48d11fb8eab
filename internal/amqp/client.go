// Package amqp carries ledger change notifications over RabbitMQ. Publishers
// send one message per remote mutation; every subscription gets its own
// exclusive queue bound to the principal's routing key.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"billtrack/internal/core"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
)

// Circuit breaker states for publishing.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second

	// resubscribeAttempts bounds how often a dropped subscription is
	// re-established before the loss is reported.
	resubscribeAttempts = 5
)

type Client struct {
	url          string
	exchangeName string

	dialMu  sync.Mutex // serializes reconnects
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	closed  bool

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient connects and declares the exchange.
func NewClient(url, exchangeName string) (*Client, error) {
	c := &Client{url: url, exchangeName: exchangeName}
	c.dialMu.Lock()
	defer c.dialMu.Unlock()
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// DialWithRetry retries connection errors with exponential backoff until
// attempts are exhausted or ctx is done.
func DialWithRetry(ctx context.Context, url, exchangeName string, attempts int) (*Client, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		c, err := NewClient(url, exchangeName)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if !isConnectionError(err) {
			return nil, err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP connection failed, retrying",
			log.FieldComponent, log.ComponentAMQP,
			"attempt", attempt+1,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("dial AMQP after %d attempts: %w", attempts, lastErr)
}

// connect dials a new connection and publishing channel and swaps them in,
// closing the ones they replace. Callers hold dialMu.
func (c *Client) connect() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return amqp091.ErrClosed
	}

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		channel.Close()
		conn.Close()
		return amqp091.ErrClosed
	}
	oldConn, oldChannel := c.conn, c.channel
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	if oldChannel != nil {
		oldChannel.Close()
	}
	if oldConn != nil {
		oldConn.Close()
	}
	return nil
}

// connection returns the open connection, dialing only when it is gone.
func (c *Client) connection() (*amqp091.Connection, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn, nil
}

// Publish sends a change notification to the principal's routing key.
func (c *Client) Publish(ctx context.Context, change core.Change) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, refusing to publish")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewChangeMessage(change).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := c.publishChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName,            // exchange
		RoutingKey(change.UserID), // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) || errors.Is(err, amqp091.ErrClosed) {
			c.dropChannel()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published change message",
		log.FieldComponent, log.ComponentAMQP,
		"user_id", change.UserID,
		"id", change.ID,
		"op", change.Op,
		"exchange", c.exchangeName)
	return nil
}

// publishChannel returns the open publishing channel. A closed channel on a
// live connection is reopened on that connection; only a dead connection is
// redialed.
func (c *Client) publishChannel() (*amqp091.Channel, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	conn, ch := c.conn, c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}

	if conn != nil && !conn.IsClosed() {
		reopened, err := conn.Channel()
		if err == nil {
			c.mu.Lock()
			c.channel = reopened
			c.mu.Unlock()
			return reopened, nil
		}
		slog.Warn("Reopening AMQP channel failed, redialing",
			log.FieldComponent, log.ComponentAMQP,
			"error", err)
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

func (c *Client) dropChannel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
}

// Subscribe implements ledger.ChangeFeed. Each subscription consumes from its
// own exclusive, auto-deleted queue; onChange runs on the consumer goroutine.
func (c *Client) Subscribe(ctx context.Context, principal string, onChange func()) (ledger.Unsubscribe, error) {
	return c.SubscribeWithLoss(ctx, principal, onChange, nil)
}

// SubscribeWithLoss implements ledger.LossReportingFeed. When the broker
// closes the consumer, the queue is declared and bound again with
// exponential backoff, and onChange runs once to catch up on missed changes.
// If every attempt fails, onLost receives the last error.
func (c *Client) SubscribeWithLoss(ctx context.Context, principal string, onChange func(), onLost func(error)) (ledger.Unsubscribe, error) {
	if err := core.ValidatePrincipal(principal); err != nil {
		return nil, err
	}

	sub := &subscription{
		principal: principal,
		open:      func() (consumer, error) { return c.openConsumer(principal) },
		onChange:  onChange,
		onLost:    onLost,
		backoff:   exponentialBackoff,
		attempts:  resubscribeAttempts,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if err := sub.start(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Subscribed to change messages",
		log.FieldComponent, log.ComponentAMQP,
		"user_id", principal,
		"exchange", c.exchangeName)
	return sub.close, nil
}

var _ ledger.LossReportingFeed = (*Client)(nil)

// consumer is one open queue consumption.
type consumer struct {
	deliveries <-chan amqp091.Delivery
	channel    io.Closer
}

func (c *Client) openConsumer(principal string) (consumer, error) {
	conn, err := c.connection()
	if err != nil {
		return consumer{}, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return consumer{}, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return consumer{}, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, RoutingKey(principal), c.exchangeName, false, nil); err != nil {
		ch.Close()
		return consumer{}, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack (we want manual ack)
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return consumer{}, fmt.Errorf("start consuming: %w", err)
	}
	return consumer{deliveries: deliveries, channel: ch}, nil
}

// subscription keeps one principal's consumer alive until closed.
type subscription struct {
	principal string
	open      func() (consumer, error)
	onChange  func()
	onLost    func(error)
	backoff   func(attempt int) time.Duration
	attempts  int

	mu      sync.Mutex
	current io.Closer
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) start() error {
	cons, err := s.open()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = cons.channel
	s.mu.Unlock()
	go s.run(cons.deliveries)
	return nil
}

func (s *subscription) run(deliveries <-chan amqp091.Delivery) {
	defer close(s.done)
	ctx := context.Background()

	for {
		consume(s.principal, deliveries, s.onChange)
		if s.stopped() {
			return
		}

		slog.WarnContext(ctx, "Change message consumer closed, resubscribing",
			log.FieldComponent, log.ComponentAMQP,
			"user_id", s.principal)

		next, err := s.reopen()
		if err != nil {
			if s.stopped() {
				return
			}
			slog.ErrorContext(ctx, "Change message subscription lost",
				log.FieldComponent, log.ComponentAMQP,
				"user_id", s.principal,
				"attempts", s.attempts,
				"error", err)
			if s.onLost != nil {
				s.onLost(err)
			}
			return
		}
		deliveries = next

		slog.InfoContext(ctx, "Resubscribed to change messages",
			log.FieldComponent, log.ComponentAMQP,
			"user_id", s.principal)
		s.onChange()
	}
}

// reopen retries open with backoff. It gives up early when the subscription
// is closed meanwhile.
func (s *subscription) reopen() (<-chan amqp091.Delivery, error) {
	lastErr := errors.New("no attempts made")
	for attempt := 0; attempt < s.attempts; attempt++ {
		select {
		case <-s.stop:
			return nil, amqp091.ErrClosed
		case <-time.After(s.backoff(attempt)):
		}

		cons, err := s.open()
		if err != nil {
			lastErr = err
			continue
		}

		s.mu.Lock()
		if s.stopped() {
			s.mu.Unlock()
			cons.channel.Close()
			return nil, amqp091.ErrClosed
		}
		s.current = cons.channel
		s.mu.Unlock()
		return cons.deliveries, nil
	}
	return nil, fmt.Errorf("resubscribe after %d attempts: %w", s.attempts, lastErr)
}

func (s *subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.stop)
		current := s.current
		s.mu.Unlock()
		if current != nil {
			current.Close()
		}
		<-s.done
	})
}

func consume(principal string, deliveries <-chan amqp091.Delivery, onChange func()) {
	ctx := context.Background()

	for delivery := range deliveries {
		msg, err := ChangeMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal change message",
				log.FieldComponent, log.ComponentAMQP,
				"error", err)
			delivery.Nack(false, false) // reject and don't requeue
			continue
		}
		if msg.UserID != principal {
			delivery.Ack(false)
			continue
		}

		onChange()
		delivery.Ack(false)
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return err
		}
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
		"connection reset",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
