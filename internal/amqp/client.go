package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finances/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second

	// maxDeliveries bounds how often a failing import job is attempted
	// before it is dead-lettered.
	maxDeliveries    = 5
	retryCountHeader = "x-retry-count"
)

// ErrDiscard marks handler errors that retrying cannot fix. Such messages
// are rejected without requeue and end up in the dead-letter queue.
var ErrDiscard = errors.New("discard message")

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	dead := deadLetterQueue(queueName)
	if _, err := ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(dead, dead, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		queueArguments(exchangeName, queueName), // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// one import at a time per worker
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// currentChannel returns an open channel, reconnecting if the previous one
// was closed.
func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}

	c.closeConn()
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

// PublishImportRequested publishes an import job for an uploaded file.
func (c *Client) PublishImportRequested(ctx context.Context, msg *ImportRequestedMessage) error {
	if c.isCircuitOpen() {
		return errors.New("publish import request: circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.currentChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish import request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			Timestamp:     msg.Timestamp,
			CorrelationId: msg.RequestID,
			Body:          body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeConn()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.InfoContext(ctx, "Published import request",
		log.FieldComponent, log.ComponentAMQP,
		log.FieldFileName, msg.FileName,
		log.FieldRequestID, msg.RequestID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeImportRequests delivers import jobs to handler until ctx is done.
// Successful jobs are acked. Failures wrapping ErrDiscard and undecodable
// messages are dead-lettered. Any other failure is republished after a
// backoff until maxDeliveries attempts were made, then dead-lettered. Lost
// connections are re-established with exponential backoff.
func (c *Client) ConsumeImportRequests(ctx context.Context, handler func(context.Context, *ImportRequestedMessage) error) error {
	for attempt := 0; ; attempt++ {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption",
				log.FieldComponent, log.ComponentAMQP, "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting",
			log.FieldComponent, log.ComponentAMQP, log.FieldError, err, "retry_in", wait)
		c.closeConn()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed",
				log.FieldComponent, log.ComponentAMQP, log.FieldError, err)
			continue
		}
		attempt = -1
	}
}

func (c *Client) consume(ctx context.Context, handler func(context.Context, *ImportRequestedMessage) error) error {
	ch, err := c.currentChannel()
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming import requests",
		log.FieldComponent, log.ComponentAMQP, "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *ImportRequestedMessage) error) {
	msg, err := ImportRequestedMessageFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode import request",
			log.FieldComponent, log.ComponentAMQP, log.FieldError, err)
		d.Nack(false, false)
		return
	}

	err = handler(ctx, msg)
	if err != nil && ctx.Err() != nil {
		// shutting down; hand the job back untouched
		d.Nack(false, true)
		return
	}

	attempt := retryCount(d.Headers) + 1
	switch classify(err, attempt) {
	case outcomeAck:
		d.Ack(false)
	case outcomeDeadLetter:
		slog.ErrorContext(ctx, "Dead-lettering import request",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldFileName, msg.FileName,
			log.FieldError, err,
			"attempt", attempt)
		d.Nack(false, false)
	case outcomeRetry:
		slog.WarnContext(ctx, "Import request failed, retrying",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldFileName, msg.FileName,
			log.FieldError, err,
			"attempt", attempt,
			"max_attempts", maxDeliveries)
		c.retry(ctx, d, attempt)
	}
}

type deliveryOutcome int

const (
	outcomeAck deliveryOutcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// classify decides what happens to a delivery after its attempt-th run
// returned err.
func classify(err error, attempt int) deliveryOutcome {
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, ErrDiscard), attempt >= maxDeliveries:
		return outcomeDeadLetter
	default:
		return outcomeRetry
	}
}

// retry republishes a copy of d carrying the attempt count, after a
// backoff, and acks the original. If the copy cannot be published the
// original is requeued instead.
func (c *Client) retry(ctx context.Context, d amqp091.Delivery, attempt int) {
	select {
	case <-ctx.Done():
		d.Nack(false, true)
		return
	case <-time.After(exponentialBackoff(attempt - 1)):
	}

	ch, err := c.currentChannel()
	if err == nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = ch.PublishWithContext(pubCtx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
			ContentType:   d.ContentType,
			DeliveryMode:  amqp091.Persistent,
			Timestamp:     d.Timestamp,
			CorrelationId: d.CorrelationId,
			Headers:       withRetryCount(d.Headers, attempt),
			Body:          d.Body,
		})
		cancel()
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to republish import request",
			log.FieldComponent, log.ComponentAMQP, log.FieldError, err)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// retryCount reads how many attempts already failed for a delivery.
func retryCount(h amqp091.Table) int {
	switch v := h[retryCountHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

func withRetryCount(h amqp091.Table, n int) amqp091.Table {
	out := make(amqp091.Table, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	out[retryCountHeader] = int32(n)
	return out
}

func deadLetterQueue(queueName string) string {
	return queueName + ".dead"
}

// queueArguments routes rejected jobs to the dead-letter queue.
func queueArguments(exchangeName, queueName string) amqp091.Table {
	return amqp091.Table{
		"x-dead-letter-exchange":    exchangeName,
		"x-dead-letter-routing-key": deadLetterQueue(queueName),
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
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
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
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
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}
