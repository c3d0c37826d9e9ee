package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/messaging-permissions/internal/core/events"
)

var (
	ErrQueueFull    = errors.New("notification queue full")
	ErrClientClosed = errors.New("notification client closed")
)

type Job struct {
	Event *events.PermissionEvent
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker delivering notification", "worker_id", w.ID, "event_id", job.Event.EventID())
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	WebhookURL     string
	Timeout        time.Duration
	MaxWorkers     int
	JobQueueSize   int
	WorkerPoolSize int
}

// WebhookClient posts permission events to a single webhook endpoint from a
// fixed pool of workers. Send never blocks; a full queue drops the job.
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewWebhookClient(config Config, logger *slog.Logger) *WebhookClient {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	workerPoolSize := config.WorkerPoolSize
	if workerPoolSize < maxWorkers {
		workerPoolSize = maxWorkers
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := &WebhookClient{
		webhookURL: config.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, jobQueueSize),
		workerPool: make(chan chan Job, workerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *WebhookClient) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.deliver)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("notification worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *WebhookClient) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					c.logger.Info("notification dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.logger.Info("notification dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

// Send queues job for delivery.
func (c *WebhookClient) Send(job Job) error {
	if c.ctx.Err() != nil {
		return ErrClientClosed
	}

	select {
	case c.jobQueue <- job:
		c.logger.Debug("notification queued",
			"event_id", job.Event.EventID(),
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("notification queue full, dropping event",
			"event_id", job.Event.EventID(),
			"event_type", job.Event.EventType(),
			"queue_capacity", cap(c.jobQueue))
		return ErrQueueFull
	}
}

func (c *WebhookClient) Shutdown() {
	c.logger.Info("shutting down notification client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("notification client shutdown complete")
}

func (c *WebhookClient) deliver(job Job) {
	body, err := json.Marshal(job.Event)
	if err != nil {
		c.logger.Error("failed to marshal notification", "error", err, "event_id", job.Event.EventID())
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create webhook request", "error", err, "event_id", job.Event.EventID())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", job.Event.EventType())
	req.Header.Set("X-Event-ID", job.Event.EventID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("webhook delivery failed", "error", err, "event_id", job.Event.EventID())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("webhook rejected notification",
			"event_id", job.Event.EventID(),
			"status_code", resp.StatusCode)
		return
	}

	c.logger.Info("notification delivered",
		"event_id", job.Event.EventID(),
		"event_type", job.Event.EventType(),
		"recipient_id", job.Event.RecipientID)
}

