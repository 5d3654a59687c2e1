package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/metrics"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	"github.com/KB1RD/matrix-widget-api/internal/widget/driver"
)

const metricsDomain = "widget"

// capabilityUseCaseWithMetrics decorates CapabilityUseCase with metrics instrumentation.
type capabilityUseCaseWithMetrics struct {
	next    CapabilityUseCase
	metrics metrics.BusinessMetrics
}

// NewCapabilityUseCaseWithMetrics wraps a CapabilityUseCase with metrics recording.
func NewCapabilityUseCaseWithMetrics(useCase CapabilityUseCase, m metrics.BusinessMetrics) CapabilityUseCase {
	return &capabilityUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Negotiate records metrics for capability negotiations. Negotiation never
// fails, so the status is always success; the decision counter carries the outcome.
func (c *capabilityUseCaseWithMetrics) Negotiate(
	ctx context.Context,
	widget domain.Widget,
	requested domain.CapabilitySet,
) domain.CapabilitySet {
	start := time.Now()
	approved := c.next.Negotiate(ctx, widget, requested)

	c.metrics.RecordOperation(ctx, metricsDomain, "validate_capabilities", "success")
	c.metrics.RecordDuration(ctx, metricsDomain, "validate_capabilities", time.Since(start), "success")
	c.metrics.RecordDecision(ctx, string(domain.CapabilitiesAuditAction), negotiationOutcome(requested, approved))

	return approved
}

// eventUseCaseWithMetrics decorates EventUseCase with metrics instrumentation.
type eventUseCaseWithMetrics struct {
	next    EventUseCase
	metrics metrics.BusinessMetrics
}

// NewEventUseCaseWithMetrics wraps an EventUseCase with metrics recording.
func NewEventUseCaseWithMetrics(useCase EventUseCase, m metrics.BusinessMetrics) EventUseCase {
	return &eventUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Send records metrics for event sends.
func (e *eventUseCaseWithMetrics) Send(
	ctx context.Context,
	widget domain.Widget,
	eventType string,
	content json.RawMessage,
	stateKey *string,
) (*domain.SendEventDetails, error) {
	start := time.Now()
	details, err := e.next.Send(ctx, widget, eventType, content, stateKey)

	status := "success"
	if err != nil {
		status = "error"
	}

	e.metrics.RecordOperation(ctx, metricsDomain, "send_event", status)
	e.metrics.RecordDuration(ctx, metricsDomain, "send_event", time.Since(start), status)

	return details, err
}

// openIDUseCaseWithMetrics decorates OpenIDUseCase with metrics instrumentation.
type openIDUseCaseWithMetrics struct {
	next    OpenIDUseCase
	metrics metrics.BusinessMetrics
}

// NewOpenIDUseCaseWithMetrics wraps an OpenIDUseCase with metrics recording.
func NewOpenIDUseCaseWithMetrics(useCase OpenIDUseCase, m metrics.BusinessMetrics) OpenIDUseCase {
	return &openIDUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Ask records the handshake once its terminal update is pushed. The duration
// covers the whole handshake, including the time spent waiting for the user.
func (o *openIDUseCaseWithMetrics) Ask(ctx context.Context, widget domain.Widget, observer driver.OpenIDObserver) {
	o.next.Ask(ctx, widget, &meteredObserver{
		ctx:     context.WithoutCancel(ctx),
		next:    observer,
		metrics: o.metrics,
		start:   time.Now(),
	})
}

// meteredObserver forwards updates and records the first terminal one. Only a
// delivered terminal update counts as a decision.
type meteredObserver struct {
	ctx     context.Context
	next    driver.OpenIDObserver
	metrics metrics.BusinessMetrics
	start   time.Time
	once    sync.Once
}

func (m *meteredObserver) Push(update domain.OpenIDUpdate) error {
	err := m.next.Push(update)
	if !update.State.IsTerminal() {
		return err
	}

	m.once.Do(func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.metrics.RecordOperation(m.ctx, metricsDomain, "ask_openid", status)
		m.metrics.RecordDuration(m.ctx, metricsDomain, "ask_openid", time.Since(m.start), status)
		if err == nil {
			m.metrics.RecordDecision(m.ctx, string(domain.OpenIDAuditAction), string(update.State))
		}
	})
	return err
}
