package spawn

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "structspawn.ai/internal/sim/spawn"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	trials   metric.Int64Counter
	outcomes metric.Int64Counter
	skipped  metric.Int64Counter
	pending  metric.Int64ObservableGauge

	pendingReg metric.Registration
}

// newMetrics uses m, or the global OTel meter (no-op if not configured) when
// m is nil. The pending gauge reads reg from the collector goroutine through
// Size.
func newMetrics(m metric.Meter, reg *Registry) (*metrics, error) {
	if m == nil {
		m = meter()
	}
	out := &metrics{}
	var err error

	out.trials, err = m.Int64Counter(
		"spawn.trials",
		metric.WithDescription("Precondition evaluations of candidate templates"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trials counter: %w", err)
	}
	out.outcomes, err = m.Int64Counter(
		"spawn.outcomes",
		metric.WithDescription("Non-idle engine steps by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outcomes counter: %w", err)
	}
	out.skipped, err = m.Int64Counter(
		"spawn.intake.skipped",
		metric.WithDescription("Placement specs rejected at intake"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	out.pending, err = m.Int64ObservableGauge(
		"spawn.pending",
		metric.WithDescription("Pending spawn requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pending gauge: %w", err)
	}
	out.pendingReg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(out.pending, reg.Size())
			return nil
		},
		out.pending,
	)
	if err != nil {
		return nil, fmt.Errorf("registering pending callback: %w", err)
	}
	return out, nil
}

// close unregisters the pending gauge callback so the meter no longer holds
// the registry.
func (m *metrics) close() error {
	if m == nil || m.pendingReg == nil {
		return nil
	}
	err := m.pendingReg.Unregister()
	m.pendingReg = nil
	return err
}

func (m *metrics) outcome(k OutcomeKind) {
	if m == nil {
		return
	}
	m.outcomes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", k.String())))
}

func (m *metrics) trial() {
	if m == nil {
		return
	}
	m.trials.Add(context.Background(), 1)
}

func (m *metrics) skip(reason string) {
	if m == nil {
		return
	}
	m.skipped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
