// Package webhook delivers workflow events to an external HTTP receiver,
// typically an HR or payroll system consuming attendance marks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/ws"
)

const (
	HeaderSignature = "X-Rollcall-Signature"
	HeaderTimestamp = "X-Rollcall-Timestamp"
	HeaderEvent     = "X-Rollcall-Event"
	HeaderDelivery  = "X-Rollcall-Delivery"
)

// Dispatcher queues events in memory and delivers them from a single
// worker. Failed deliveries are retried with exponential backoff until
// MaxAttempts; pending deliveries are lost on restart.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	events map[string]bool
	queue  chan *job
	stopCh chan struct{}
	once   sync.Once
	now    func() time.Time
}

func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var events map[string]bool
	if len(cfg.Events) > 0 {
		events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			events[e] = true
		}
	}

	return &Dispatcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With(slog.String("component", "webhook")),
		events: events,
		queue:  make(chan *job, cfg.QueueSize),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Publish implements the service event hook. It never blocks; when the
// queue is full the event is dropped and logged.
func (d *Dispatcher) Publish(eventType ws.EventType, data any) {
	if d.events != nil && !d.events[string(eventType)] {
		return
	}

	event := EventPayload{
		ID:        uuid.New(),
		Type:      string(eventType),
		Data:      data,
		Timestamp: d.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal webhook event", slog.String("event", event.Type), slog.Any("error", err))
		return
	}

	d.enqueue(&job{id: event.ID, eventType: event.Type, payload: payload})
}

func (d *Dispatcher) enqueue(j *job) {
	select {
	case <-d.stopCh:
		return
	default:
	}

	select {
	case d.queue <- j:
	default:
		d.logger.Warn("webhook queue full, dropping event",
			slog.String("delivery_id", j.id.String()),
			slog.String("event", j.eventType),
		)
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("webhook worker started", slog.String("url", d.cfg.URL))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("webhook worker stopped")
			return
		case <-d.stopCh:
			d.logger.Info("webhook worker stopped")
			return
		case j := <-d.queue:
			d.process(ctx, j)
		}
	}
}

// Stop ends Run and cancels pending retries.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stopCh) })
}

func (d *Dispatcher) process(ctx context.Context, j *job) {
	j.attempts++
	err := d.send(ctx, j)
	if err == nil {
		d.logger.Debug("webhook delivered",
			slog.String("delivery_id", j.id.String()),
			slog.String("event", j.eventType),
			slog.Int("attempts", j.attempts),
		)
		return
	}

	if j.attempts >= d.cfg.MaxAttempts {
		d.logger.Warn("webhook delivery failed",
			slog.String("delivery_id", j.id.String()),
			slog.String("event", j.eventType),
			slog.Int("attempts", j.attempts),
			slog.Any("error", err),
		)
		return
	}

	delay := d.cfg.RetryBase << (j.attempts - 1)
	d.logger.Info("webhook delivery scheduled for retry",
		slog.String("delivery_id", j.id.String()),
		slog.Int("attempts", j.attempts),
		slog.Duration("delay", delay),
		slog.Any("error", err),
	)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			d.enqueue(j)
		case <-d.stopCh:
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, j *job) error {
	timestamp := d.now().Unix()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(j.payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Rollcall-Webhook/1.0")
	req.Header.Set(HeaderEvent, j.eventType)
	req.Header.Set(HeaderDelivery, j.id.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	if d.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.cfg.Secret, timestamp, j.payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
