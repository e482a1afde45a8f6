package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"webhookrelay/internal/data"
	"webhookrelay/internal/envelope"
)

// Startup announces the process to the webhook exactly once. Its outcome
// never affects readiness.
type Startup struct {
	once   sync.Once
	relay  Relayer
	source string
	env    envelope.Lookup
	now    func() time.Time
	logger *slog.Logger
}

func NewStartup(relay Relayer, source string, env envelope.Lookup, logger *slog.Logger) *Startup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Startup{relay: relay, source: source, env: env, now: time.Now, logger: logger}
}

// Fire relays the startup envelope on the first call and does nothing on
// later calls. It blocks until the relay finishes; callers that must not
// wait run it in a goroutine.
func (s *Startup) Fire(ctx context.Context) {
	s.once.Do(func() {
		res := s.relay.Relay(ctx, envelope.Startup(s.source, s.env, s.now()))
		switch {
		case res.StatusCode == data.StatusNoop:
			s.logger.InfoContext(ctx, "startup event skipped, webhook not configured")
		case !res.OK():
			s.logger.WarnContext(ctx, "startup event not delivered",
				"event_id", res.EventID, "status_code", res.StatusCode, "error", res.Error)
		default:
			s.logger.InfoContext(ctx, "startup event delivered",
				"event_id", res.EventID, "status_code", res.StatusCode)
		}
	})
}
