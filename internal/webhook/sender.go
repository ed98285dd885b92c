package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
)

const (
	EventPing = "ping"

	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
	DeliveryHeader  = "X-Webhook-Delivery"
)

var ErrQueueFull = errors.New("webhook queue full")

type WebhookPayload struct {
	Event      string      `json:"event"`
	DeliveryID string      `json:"delivery_id"`
	Revision   uint64      `json:"revision,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       interface{} `json:"data"`
	Signature  string      `json:"signature,omitempty"`
}

type WebhookConfig struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

type WebhookStore interface {
	ListEnabledWebhooks(ctx context.Context) ([]*db.Webhook, error)
	GetWebhookByID(ctx context.Context, id int64) (*db.Webhook, error)
}

type NotificationSource interface {
	Subscribe(buffer int) *core.Subscription
}

type webhookTask struct {
	webhook *db.Webhook
	payload *WebhookPayload
	attempt int
}

// WebhookSender fans engine events out to registered webhooks through a
// bounded worker pool.
type WebhookSender struct {
	store       WebhookStore
	httpClient  *http.Client
	logger      logrus.FieldLogger
	retryCount  int
	retryDelay  time.Duration
	workerCount int
	queue       chan *webhookTask
	stopCh      chan struct{}
	wg          sync.WaitGroup
	sub         *core.Subscription
	stopOnce    sync.Once
}

func NewWebhookSender(store WebhookStore, config WebhookConfig, logger logrus.FieldLogger) *WebhookSender {
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	return &WebhookSender{
		store: store,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:      logger.WithField("component", "webhook"),
		retryCount:  config.RetryCount,
		retryDelay:  config.RetryDelay,
		workerCount: config.WorkerCount,
		queue:       make(chan *webhookTask, config.QueueSize),
		stopCh:      make(chan struct{}),
	}
}

func (s *WebhookSender) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Forward subscribes to source and enqueues every event it publishes until
// Stop is called.
func (s *WebhookSender) Forward(source NotificationSource) {
	s.sub = source.Subscribe(core.DefaultSubscriptionBuffer)
	s.wg.Add(1)
	go func(sub *core.Subscription) {
		defer s.wg.Done()
		for n := range sub.C {
			for _, ev := range n.Events {
				s.Enqueue(context.Background(), n.Revision, ev)
			}
		}
	}(s.sub)
}

func (s *WebhookSender) Stop() {
	s.stopOnce.Do(func() {
		if s.sub != nil {
			s.sub.Close()
		}
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Enqueue schedules delivery of ev to every enabled webhook subscribed to its
// kind. Deliveries are dropped when the queue is full.
func (s *WebhookSender) Enqueue(ctx context.Context, revision uint64, ev core.Event) {
	webhooks, err := s.store.ListEnabledWebhooks(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("event", ev.Kind).Error("failed to get webhooks for event")
		return
	}

	for _, webhook := range webhooks {
		if !Subscribed(webhook, string(ev.Kind)) {
			continue
		}

		task := &webhookTask{
			webhook: webhook,
			payload: &WebhookPayload{
				Event:      string(ev.Kind),
				DeliveryID: uuid.NewString(),
				Revision:   revision,
				Timestamp:  ev.At,
				Data:       ev,
			},
		}

		select {
		case s.queue <- task:
		default:
			s.logger.WithFields(logrus.Fields{
				"webhook_id": webhook.ID,
				"event":      ev.Kind,
			}).Warn("queue full, dropping webhook delivery")
		}
	}
}

// SendTest delivers a single ping synchronously, without retries.
func (s *WebhookSender) SendTest(ctx context.Context, webhookID int64) (string, error) {
	webhook, err := s.store.GetWebhookByID(ctx, webhookID)
	if err != nil {
		return "", err
	}
	payload := &WebhookPayload{
		Event:      EventPing,
		DeliveryID: uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Data:       map[string]interface{}{"webhook_id": webhook.ID, "name": webhook.Name},
	}
	return payload.DeliveryID, s.sendRequest(ctx, webhook, payload)
}

// Subscribed reports whether webhook wants events of kind. An empty event
// list subscribes to everything.
func Subscribed(webhook *db.Webhook, kind string) bool {
	events, err := ParseEvents(webhook.EventsJSON)
	if err != nil || len(events) == 0 {
		return err == nil
	}
	for _, e := range events {
		if e == kind || e == "*" {
			return true
		}
	}
	return false
}

func ParseEvents(eventsJSON string) ([]string, error) {
	if eventsJSON == "" {
		return nil, nil
	}
	var events []string
	if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
		return nil, fmt.Errorf("invalid events list: %w", err)
	}
	return events, nil
}

func (s *WebhookSender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case task := <-s.queue:
			if err := s.sendWithRetry(task); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"worker":     id,
					"webhook_id": task.webhook.ID,
					"event":      task.payload.Event,
					"attempts":   task.attempt,
				}).Error("failed to deliver webhook")
			}
		}
	}
}

func (s *WebhookSender) sendWithRetry(task *webhookTask) error {
	var lastErr error
	for task.attempt < s.retryCount {
		task.attempt++

		err := s.sendRequest(context.Background(), task.webhook, task.payload)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			s.logger.WithError(err).WithField("webhook_id", task.webhook.ID).Warn("client error, not retrying")
			return err
		}

		if task.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(task.attempt-1))
			s.logger.WithError(err).WithFields(logrus.Fields{
				"webhook_id": task.webhook.ID,
				"attempt":    task.attempt,
				"backoff":    backoff,
			}).Debug("retrying webhook delivery")

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *WebhookSender) sendRequest(ctx context.Context, webhook *db.Webhook, payload *WebhookPayload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if webhook.Secret != "" {
		payload.Signature = Sign(dataBytes, webhook.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, payload.Signature)
	req.Header.Set(EventHeader, payload.Event)
	req.Header.Set(DeliveryHeader, payload.DeliveryID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}

	return nil
}

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %d", e.StatusCode)
}

func isClientError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}
	return false
}
