package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"webhookrelay/internal/data"
)

const (
	HeaderSecret  = "X-Webhook-Secret"
	HeaderEventID = "X-Relay-Event-Id"

	DefaultTimeout = 20 * time.Second
	publishTimeout = 2 * time.Second

	// MaxResponseBytes caps how much of the webhook's reply is kept as Result.Text.
	MaxResponseBytes = 1 << 20
)

// Publisher is notified once after every attempt that reached the network.
type Publisher interface {
	Publish(ctx context.Context, rec data.Record) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the default client used for the outbound POST.
func WithHTTPClient(c *http.Client) Option { return func(d *Dispatcher) { d.client = c } }

// WithPublisher announces every attempt through p.
func WithPublisher(p Publisher) Option { return func(d *Dispatcher) { d.publisher = p } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

// WithTimeout bounds each POST. Non-positive values keep DefaultTimeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// Dispatcher forwards envelopes to a single webhook. It never retries.
type Dispatcher struct {
	url       string
	secret    string
	timeout   time.Duration
	client    *http.Client
	publisher Publisher
	logger    *slog.Logger
}

// New returns a Dispatcher posting to url. An empty url yields a
// dispatcher that answers every call with the no-op status.
func New(url, secret string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		url:     url,
		secret:  secret,
		timeout: DefaultTimeout,
		client:  &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enabled reports whether a destination is configured.
func (d *Dispatcher) Enabled() bool { return d.url != "" }

// Relay performs at most one POST of env. Failures are folded into the
// returned Result; the caller never sees a Go error.
//
// The outbound call does not inherit ctx's cancellation: a caller hanging
// up does not abort a delivery already in flight.
func (d *Dispatcher) Relay(ctx context.Context, env data.Envelope) data.Result {
	if !d.Enabled() {
		d.logger.DebugContext(ctx, "webhook not configured, skipping relay", "action", env.Action)
		return data.Result{StatusCode: data.StatusNoop}
	}

	eventID := uuid.New().String()
	body, err := json.Marshal(env)
	if err != nil {
		return d.finish(ctx, env, nil, data.Result{
			EventID:    eventID,
			StatusCode: data.StatusTransportFailure,
			Error:      fmt.Sprintf("encode envelope: %v", err),
		})
	}

	res := d.post(ctx, eventID, body)
	return d.finish(ctx, env, body, res)
}

func (d *Dispatcher) post(ctx context.Context, eventID string, body []byte) data.Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	failed := func(err error) data.Result {
		return data.Result{EventID: eventID, StatusCode: data.StatusTransportFailure, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return failed(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, eventID)
	if d.secret != "" {
		req.Header.Set(HeaderSecret, d.secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	res := data.Result{EventID: eventID, StatusCode: resp.StatusCode}
	text, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	res.Text = string(text)
	if err != nil {
		res.Error = fmt.Sprintf("read response: %v", err)
	}
	return res
}

func (d *Dispatcher) finish(ctx context.Context, env data.Envelope, body []byte, res data.Result) data.Result {
	attrs := []any{"event_id", res.EventID, "action", env.Action, "status_code", res.StatusCode}
	if res.OK() {
		d.logger.InfoContext(ctx, "webhook relayed", attrs...)
	} else {
		d.logger.WarnContext(ctx, "webhook relay failed", append(attrs, "error", res.Error)...)
	}

	if d.publisher == nil {
		return res
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	rec := data.Record{
		EventID:    res.EventID,
		Action:     env.Action,
		Timestamp:  env.Timestamp,
		StatusCode: res.StatusCode,
		Envelope:   body,
		Text:       res.Text,
		Error:      res.Error,
	}
	if err := d.publisher.Publish(pubCtx, rec); err != nil {
		d.logger.WarnContext(ctx, "publish relay record failed", "event_id", res.EventID, "error", err)
	}
	return res
}
