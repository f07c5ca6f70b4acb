package suite

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/mealmind/e2eharness/internal/tracing"
)

// Phase is one isolated step of the run. Its function returns the
// outcome to record; panics and overruns in one phase never prevent the
// phases after it from running.
type Phase struct {
	Name string
	Run  func(ctx context.Context, rc *RunContext) Outcome
}

// Orchestrator executes phases in order and guarantees cleanup runs
// afterwards regardless of how the phases ended.
type Orchestrator struct {
	phases  []Phase
	cleanup func(ctx context.Context) error
	tracer  trace.Tracer
	log     *zap.Logger
}

func NewOrchestrator(phases []Phase, cleanup func(ctx context.Context) error, tracer trace.Tracer, log *zap.Logger) *Orchestrator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("e2eharness")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{phases: phases, cleanup: cleanup, tracer: tracer, log: log}
}

// Run executes every phase against the run context. Each phase's
// outcome is recorded under its name; a panicking phase is recorded as
// a failure. Cleanup always runs, and cleanup errors are logged rather
// than returned so they cannot mask the run's results.
func (o *Orchestrator) Run(ctx context.Context, rc *RunContext) {
	defer func() {
		if o.cleanup == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("cleanup panicked", zap.Any("panic", r))
			}
		}()
		if err := o.cleanup(ctx); err != nil {
			o.log.Warn("cleanup finished with errors", zap.Error(err))
		}
	}()

	for _, phase := range o.phases {
		o.runPhase(ctx, rc, phase)
	}
}

func (o *Orchestrator) runPhase(ctx context.Context, rc *RunContext, phase Phase) {
	phaseCtx, span := tracing.StartPhaseSpan(ctx, o.tracer, phase.Name)
	start := time.Now()
	o.log.Info("phase starting", zap.String("phase", phase.Name))

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("phase panicked", zap.String("phase", phase.Name), zap.Any("panic", r))
			if !rc.Recorded(phase.Name) {
				rc.Record(Outcome{
					Name:     phase.Name,
					Success:  false,
					Message:  fmt.Sprintf("panic: %v", r),
					Duration: time.Since(start),
				})
			}
			tracing.EndSpan(span, fmt.Errorf("phase %s panicked: %v", phase.Name, r))
		}
	}()

	outcome := phase.Run(phaseCtx, rc)
	outcome.Name = phase.Name
	outcome.Duration = time.Since(start)
	rc.Record(outcome)

	var spanErr error
	if !outcome.Success {
		spanErr = fmt.Errorf("phase %s failed: %s", phase.Name, outcome.Message)
	}
	tracing.EndSpan(span, spanErr)

	o.log.Info("phase finished",
		zap.String("phase", phase.Name),
		zap.Bool("success", outcome.Success),
		zap.Duration("duration", outcome.Duration),
		zap.String("message", outcome.Message))
}
