package events

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/termbridge/termbridge/internal/infrastructure/monitoring"
	"github.com/termbridge/termbridge/internal/infrastructure/resilience"
)

// WebhookConfig configures a Webhook sink.
type WebhookConfig struct {
	// URL receives one POST per event with a JSON body.
	URL string
	// Timeout bounds a single delivery attempt. Defaults to 10 seconds.
	Timeout time.Duration
	// QueueSize bounds the delivery backlog. Events beyond it are
	// dropped so session reader loops never wait on the network.
	// Defaults to 1024.
	QueueSize int
	// Metrics, if set, counts deliveries and drops.
	Metrics *monitoring.Metrics
}

// Webhook delivers session events to an external HTTP endpoint. Emit
// only enqueues; a single dispatcher goroutine posts events in order,
// which preserves per-session sequencing. Deliveries retry with backoff
// and a circuit breaker sheds load while the endpoint stays down.
type Webhook struct {
	url     string
	client  *retryablehttp.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics

	queue    chan Event
	stop     chan struct{}
	finished chan struct{}
	once     sync.Once
}

// NewWebhook creates the sink and starts its dispatcher.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	w := &Webhook{
		url:     cfg.URL,
		client:  client,
		logger:  logger,
		metrics: cfg.Metrics,

		queue:    make(chan Event, cfg.QueueSize),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	w.breaker = resilience.New("webhook", resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("webhook circuit state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	go w.dispatch()
	return w
}

// Emit enqueues the event for delivery, dropping it when the queue is
// full or the sink is closed.
func (w *Webhook) Emit(ev Event) {
	select {
	case <-w.stop:
		return
	default:
	}

	select {
	case w.queue <- ev:
	default:
		w.dropped(ev)
	}
}

// Close stops the dispatcher after draining already-queued events.
func (w *Webhook) Close() {
	w.once.Do(func() { close(w.stop) })
	<-w.finished
}

// dispatch posts queued events one at a time until Close.
func (w *Webhook) dispatch() {
	defer close(w.finished)
	for {
		select {
		case ev := <-w.queue:
			w.deliver(ev)
		case <-w.stop:
			for {
				select {
				case ev := <-w.queue:
					w.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver posts one event, feeding the outcome back to the breaker.
func (w *Webhook) deliver(ev Event) {
	if !w.breaker.Allow() {
		w.dropped(ev)
		return
	}

	err := w.post(ev)
	w.breaker.Record(err == nil)
	if err != nil {
		w.logger.Warn("webhook delivery failed",
			zap.String("session_id", ev.SessionID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

// post serializes and sends a single event.
func (w *Webhook) post(ev Event) error {
	body, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, w.url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}

func (w *Webhook) dropped(ev Event) {
	if w.metrics != nil {
		w.metrics.RecordEventDropped("webhook")
	}
	w.logger.Debug("webhook event dropped",
		zap.String("session_id", ev.SessionID),
		zap.String("event_type", string(ev.Type)),
	)
}
