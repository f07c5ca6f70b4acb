package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/config"
	"github.com/mealmind/e2eharness/internal/metrics"
	"github.com/mealmind/e2eharness/internal/store"
	"github.com/mealmind/e2eharness/internal/tracing"
)

const ackOutput = "I understand and will note this in your profile."

// Scheduler delivers each user's demo messages to the personal-agent
// store at the configured pace. Users are processed strictly in order
// and a user's messages are sent in order before the next user begins.
type Scheduler struct {
	personal  *store.PersonalStore
	pacer     *Pacer
	collector *metrics.Collector
	cfg       config.RateLimitConfig
	log       *zap.Logger
	tracer    trace.Tracer
}

func NewScheduler(personal *store.PersonalStore, pacer *Pacer, collector *metrics.Collector, cfg config.RateLimitConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		personal:  personal,
		pacer:     pacer,
		collector: collector,
		cfg:       cfg,
		log:       log,
		tracer:    noop.NewTracerProvider().Tracer("e2eharness"),
	}
}

// WithTracer replaces the no-op tracer so each interaction write gets
// its own span.
func (s *Scheduler) WithTracer(tracer trace.Tracer) *Scheduler {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// messagesFor returns the prefix of a user's demo messages up to the
// per-user cap. A cap of zero sends nothing.
func (s *Scheduler) messagesFor(u ProvisionedUser) []string {
	msgs := u.DemoMessages
	if limit := s.cfg.MaxMessagesPerUser; limit < len(msgs) {
		msgs = msgs[:max(limit, 0)]
	}
	return msgs
}

// Run sends every user's capped messages, waits out the backend
// processing window, then verifies each user's stored message count.
// The first persistence error aborts the remaining work.
func (s *Scheduler) Run(ctx context.Context, users []ProvisionedUser) (sent int, err error) {
	for i, u := range users {
		if i > 0 {
			if err := s.pacer.UserGap(ctx); err != nil {
				return sent, err
			}
		}
		n, err := s.runUser(ctx, u)
		sent += n
		if err != nil {
			return sent, err
		}
	}

	s.log.Info("messages sent, waiting for backend processing",
		zap.Int("sent", sent),
		zap.Duration("wait", s.cfg.BackendProcessingWait))
	if err := Sleep(ctx, s.cfg.BackendProcessingWait); err != nil {
		return sent, err
	}

	for _, u := range users {
		want := len(s.messagesFor(u))
		got, err := s.personal.CountInteractions(ctx, u.UserID)
		if err != nil {
			return sent, fmt.Errorf("counting messages for %s: %w", u.Name, err)
		}
		if got != want {
			return sent, fmt.Errorf("user %s: stored %d messages, want %d", u.Name, got, want)
		}
	}
	return sent, nil
}

func (s *Scheduler) runUser(ctx context.Context, u ProvisionedUser) (int, error) {
	msgs := s.messagesFor(u)
	s.log.Info("sending messages",
		zap.String("user", u.Name),
		zap.Int("count", len(msgs)),
		zap.Int("available", len(u.DemoMessages)))

	sent := 0
	for i, msg := range msgs {
		if i > 0 {
			if err := s.pacer.MessageGap(ctx); err != nil {
				return sent, err
			}
		}
		if err := s.send(ctx, u, msg); err != nil {
			return sent, fmt.Errorf("sending message %d for %s: %w", i+1, u.Name, err)
		}
		sent++
	}
	return sent, nil
}

func (s *Scheduler) send(ctx context.Context, u ProvisionedUser, msg string) error {
	it := store.Interaction{
		ID:        ulid.Make().String(),
		UserID:    u.UserID,
		AgentID:   u.AgentID,
		Input:     msg,
		Output:    ackOutput,
		CreatedAt: time.Now().UTC(),
	}
	spanCtx, span := tracing.StartOpSpan(ctx, s.tracer, "interaction_insert", u.UserID)
	start := time.Now()
	err := s.personal.InsertInteraction(spanCtx, it)
	s.collector.RecordOp("interaction_insert", time.Since(start), err)
	tracing.EndSpan(span, err)
	return err
}
