// Package amqp is a RabbitMQ-backed job queue for running analysis workers
// in a separate process from the API.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Harikeshav-R/Penny/internal/jobs"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Queue publishes and consumes AnalyzeImageJob messages on a durable queue
// bound to a direct exchange.
type Queue struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	store        jobs.JobStore

	workers   int
	baseDelay time.Duration

	publishMu sync.Mutex
	publish   func(ctx context.Context, body []byte) error

	wg sync.WaitGroup
}

// Config configures a Queue.
type Config struct {
	URL            string
	Exchange       string
	Queue          string
	Workers        int
	RetryBaseDelay time.Duration
}

// NewQueue dials the broker and declares the exchange and queue.
func NewQueue(cfg Config, store jobs.JobStore) (*Queue, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("NewQueue: dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewQueue: open channel: %w", err)
	}

	q := newQueue(cfg, store)
	q.conn = conn
	q.channel = channel
	q.publish = q.publishAMQP

	if err := q.setup(); err != nil {
		q.Close()
		return nil, fmt.Errorf("NewQueue: setup exchange and queue: %w", err)
	}

	return q, nil
}

func newQueue(cfg Config, store jobs.JobStore) *Queue {
	q := &Queue{
		exchangeName: cfg.Exchange,
		queueName:    cfg.Queue,
		store:        store,
		workers:      cfg.Workers,
		baseDelay:    cfg.RetryBaseDelay,
	}
	if q.workers <= 0 {
		q.workers = 1
	}
	if q.baseDelay <= 0 {
		q.baseDelay = time.Second
	}
	return q
}

func (q *Queue) setup() error {
	err := q.channel.ExchangeDeclare(
		q.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		q.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	if err := q.channel.QueueBind(q.queueName, q.queueName, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return q.channel.Qos(q.workers, 0, false)
}

// PublishAnalyzeImage saves the job as pending and publishes it.
func (q *Queue) PublishAnalyzeImage(ctx context.Context, job *jobs.AnalyzeImageJob) error {
	job.Prepare(time.Now())

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishAnalyzeImage: save job: %w", err)
		}
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("PublishAnalyzeImage: marshal job: %w", err)
	}
	if err := q.publish(ctx, body); err != nil {
		return fmt.Errorf("PublishAnalyzeImage: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.JobID).
		Str("exchange", q.exchangeName).
		Str("queue", q.queueName).
		Msg("Published analysis job")
	return nil
}

func (q *Queue) publishAMQP(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	err := q.channel.PublishWithContext(
		ctx,
		q.exchangeName, // exchange
		q.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Start consumes deliveries on q.workers goroutines until ctx is cancelled or
// the channel closes.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	deliveries, err := q.channel.Consume(
		q.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("Start: start consuming: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("queue", q.queueName).Int("workers", q.workers).Msg("Started consuming analysis jobs")

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					q.deliver(ctx, d, handler)
				}
			}
		}()
	}
	return nil
}

// outcome is what to do with a delivery once processed.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeReject
)

func (q *Queue) deliver(ctx context.Context, d amqp091.Delivery, handler jobs.JobHandler) {
	log := logger.Component(logger.FromContext(ctx), "jobs")

	var err error
	switch q.process(ctx, d.Body, handler) {
	case outcomeReject:
		err = d.Nack(false, false)
	default:
		err = d.Ack(false)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to settle delivery")
	}
}

// process runs one message. Retries are published as new messages after the
// linear backoff, so the original is always settled.
func (q *Queue) process(ctx context.Context, body []byte, handler jobs.JobHandler) outcome {
	log := logger.Component(logger.FromContext(ctx), "jobs")

	var job jobs.AnalyzeImageJob
	if err := json.Unmarshal(body, &job); err != nil || job.JobID == "" {
		log.Error().Err(err).Msg("Failed to unmarshal job message")
		return outcomeReject
	}
	log = log.With().Str("job_id", job.JobID).Logger()

	now := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &now
	q.save(ctx, &job)

	err := handler(ctx, &job)
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, &job)
		log.Info().Dur("duration", completedAt.Sub(now)).Msg("Successfully processed analysis job")

	case jobs.Retryable(err) && job.RetryCount < job.MaxRetries:
		job.RetryCount++
		job.Error = err.Error()
		job.Status = jobs.JobStatusRetrying
		q.save(ctx, &job)

		backoff := jobs.RetryDelay(job.RetryCount, q.baseDelay)
		log.Warn().Err(err).Int("retry_count", job.RetryCount).Dur("backoff", backoff).Msg("Analysis job failed, retrying")

		select {
		case <-ctx.Done():
			// Shutting down: re-publish without waiting.
			log.Warn().Msg("Consumer stopping during backoff, re-publishing job without delay")
			ctx = context.WithoutCancel(ctx)
		case <-time.After(backoff):
		}
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.PublishAnalyzeImage(ctx, &job); err != nil {
			log.Error().Err(err).Msg("Failed to re-publish job")
			job.Status = jobs.JobStatusFailed
			q.save(ctx, &job)
		}

	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		q.save(ctx, &job)
		log.Error().Err(err).Msg("Analysis job failed")
	}
	return outcomeAck
}

func (q *Queue) save(ctx context.Context, job *jobs.AnalyzeImageJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to save job state")
	}
}

// Stop waits for in-flight deliveries.
func (q *Queue) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
