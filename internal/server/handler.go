package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"webhookrelay/internal/data"
	"webhookrelay/internal/envelope"
)

const maxBodyBytes = 1 << 20

// Relayer forwards one envelope and reports the outcome.
type Relayer interface {
	Relay(ctx context.Context, env data.Envelope) data.Result
}

type Handler struct {
	relay  Relayer
	source string
	env    envelope.Lookup
	now    func() time.Time
	logger *slog.Logger
}

func NewHandler(relay Relayer, source string, env envelope.Lookup, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{relay: relay, source: source, env: env, now: time.Now, logger: logger}
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook relay is running"})
}

func (h *Handler) head(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) deploy(w http.ResponseWriter, r *http.Request) {
	body, truncated, err := ioReadAllLimit(r.Body, maxBodyBytes)
	if err != nil || truncated {
		h.logger.WarnContext(r.Context(), "ignoring unreadable deploy body",
			"request_id", middleware.GetReqID(r.Context()), "truncated", truncated, "error", err)
		body = nil
	}

	header := r.Header.Clone()
	if r.Host != "" {
		header.Set("Host", r.Host)
	}
	env := envelope.Deploy(h.source, h.env, h.now(), envelope.Request{
		ClientIP: clientIP(r),
		Header:   header,
		Body:     body,
	})

	res := h.relay.Relay(r.Context(), env)
	if res.OK() {
		writeJSON(w, http.StatusOK, deployResponse{OK: true, EventID: res.EventID, Relay: res})
		return
	}

	detail := res.Text
	if res.Error != "" {
		detail = res.Error
	}
	writeJSON(w, http.StatusBadGateway, deployResponse{
		EventID: res.EventID,
		Detail:  fmt.Sprintf("webhook returned %d: %s", res.StatusCode, detail),
		Relay:   res,
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
