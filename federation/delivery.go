package federation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/util"
)

// Backoff between delivery attempts. The last step repeats.
var Backoff = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	4 * time.Hour,
	24 * time.Hour,
}

// StaleJobTimeout is how long a job may stay in progress before a restart
// hands it out again.
const StaleJobTimeout = 10 * time.Minute

func backoffFor(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return Backoff[min(attempts-1, len(Backoff)-1)]
}

// DeliveryWorker drains the delivery queue with a fixed pool of goroutines.
type DeliveryWorker struct {
	store        Store
	queue        Queue
	client       *http.Client
	workers      int
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int
	userAgent    string
	log          *log.Logger
}

func NewDeliveryWorker(store Store, queue Queue, conf *util.AppConfig) *DeliveryWorker {
	w := &DeliveryWorker{
		store:        store,
		queue:        queue,
		client:       &http.Client{Timeout: 30 * time.Second},
		workers:      max(conf.Delivery.Workers, 1),
		batchSize:    max(conf.Delivery.BatchSize, 1),
		pollInterval: conf.Delivery.PollInterval,
		maxAttempts:  max(conf.Delivery.MaxAttempts, 1),
		userAgent:    util.GetNameAndVersion(),
		log:          util.NewLogger("DeliveryWorker"),
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	return w
}

// WithClient replaces the HTTP client used for deliveries.
func (w *DeliveryWorker) WithClient(client *http.Client) *DeliveryWorker {
	w.client = client
	return w
}

// Run polls the queue until ctx is cancelled. In-flight jobs of the current
// batch are finished before it returns.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting delivery worker", "workers", w.workers, "poll", w.pollInterval)

	if n, err := w.queue.ResetStaleDeliveryJobs(ctx, StaleJobTimeout); err != nil {
		w.log.Error("Failed to reset stale jobs", "err", err)
	} else if n > 0 {
		w.log.Info("Reset stale jobs", "count", n)
	}

	t := time.NewTicker(w.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Delivery worker stopped")
			return nil

		case <-t.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.log.Error("Failed to process delivery queue", "err", err)
			}
		}
	}
}

// ProcessBatch claims due jobs and delivers them. It returns the number of
// claimed jobs.
func (w *DeliveryWorker) ProcessBatch(ctx context.Context) (int, error) {
	jobs, err := w.queue.ClaimDeliveryJobs(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	w.log.Debug("Processing deliveries", "count", len(jobs))

	tasks := make(chan domain.DeliveryJob)
	var workers sync.WaitGroup

	workers.Add(w.workers)
	for range w.workers {
		go func() {
			defer workers.Done()
			for job := range tasks {
				w.handle(ctx, job)
			}
		}()
	}

	for _, job := range jobs {
		tasks <- job
	}
	close(tasks)
	workers.Wait()

	return len(jobs), nil
}

func (w *DeliveryWorker) handle(ctx context.Context, job domain.DeliveryJob) {
	err := w.Deliver(ctx, &job)

	// bookkeeping must land even when shutdown cancelled the delivery
	ctx = context.WithoutCancel(ctx)

	if err == nil {
		if err := w.queue.CompleteDeliveryJob(ctx, job.Id); err != nil {
			w.log.Error("Failed to mark job complete", "job", job.Id, "err", err)
		}
		w.log.Info("Delivered", "job", job.Id, "type", job.EntityType)
		return
	}

	attempts := job.Attempts + 1
	var next time.Time
	if attempts < w.maxAttempts {
		next = time.Now().Add(backoffFor(attempts))
		w.log.Warn("Delivery failed", "job", job.Id, "attempt", attempts, "retry", next.Format(time.DateTime), "err", err)
	} else {
		w.log.Warn("Giving up on delivery", "job", job.Id, "attempts", attempts, "err", err)
	}

	if err := w.queue.FailDeliveryJob(ctx, job.Id, err.Error(), next); err != nil {
		w.log.Error("Failed to record delivery attempt", "job", job.Id, "err", err)
	}
}

// Deliver re-resolves sender and recipient by id, signs the stored entity
// with the sender's key and POSTs it to the recipient inbox.
func (w *DeliveryWorker) Deliver(ctx context.Context, job *domain.DeliveryJob) error {
	sender, err := w.store.ReadActorById(ctx, job.SenderId)
	if err != nil {
		return fmt.Errorf("failed to resolve sender %s: %w", job.SenderId, err)
	}
	if !sender.IsLocal() || sender.PrivateKey == "" {
		return fmt.Errorf("sender %s cannot sign", sender.URI)
	}

	recipient, err := w.store.ReadActorById(ctx, job.RecipientId)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient %s: %w", job.RecipientId, err)
	}

	inbox, err := w.inboxOf(ctx, recipient)
	if err != nil {
		return err
	}

	key, err := ParsePrivateKey(sender.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	body := []byte(job.Entity)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", w.userAgent)
	if err := Sign(req, body, key, sender.URI, time.Now()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}

func (w *DeliveryWorker) inboxOf(ctx context.Context, recipient *domain.Actor) (string, error) {
	if recipient.InboxURI != "" {
		return recipient.InboxURI, nil
	}
	if recipient.InstanceId != nil {
		instance, err := w.store.ReadInstanceById(ctx, *recipient.InstanceId)
		if err == nil && instance.SharedInbox != "" {
			return instance.SharedInbox, nil
		}
	}
	return "", fmt.Errorf("recipient %s has no inbox", recipient.URI)
}
