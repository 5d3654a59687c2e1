package usecase

import (
	"context"
	"encoding/json"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	"github.com/KB1RD/matrix-widget-api/internal/widget/driver"
)

// HostDriver is the host's Driver for one widget session. Operations whose use
// case is not configured keep the DenyAll behaviour.
type HostDriver struct {
	driver.DenyAll

	widget       domain.Widget
	capabilities CapabilityUseCase
	events       EventUseCase
	openID       OpenIDUseCase
}

var _ driver.Driver = (*HostDriver)(nil)

// Widget returns the session the driver acts for.
func (h *HostDriver) Widget() domain.Widget {
	return h.widget
}

func (h *HostDriver) ValidateCapabilities(ctx context.Context, requested domain.CapabilitySet) domain.CapabilitySet {
	if h.capabilities == nil {
		return h.DenyAll.ValidateCapabilities(ctx, requested)
	}
	return h.capabilities.Negotiate(ctx, h.widget, requested)
}

func (h *HostDriver) SendEvent(
	ctx context.Context,
	eventType string,
	content json.RawMessage,
	stateKey *string,
) (*domain.SendEventDetails, error) {
	if h.events == nil {
		return h.DenyAll.SendEvent(ctx, eventType, content, stateKey)
	}
	return h.events.Send(ctx, h.widget, eventType, content, stateKey)
}

func (h *HostDriver) AskOpenID(ctx context.Context, observer driver.OpenIDObserver) {
	if h.openID == nil {
		h.DenyAll.AskOpenID(ctx, observer)
		return
	}
	h.openID.Ask(ctx, h.widget, observer)
}

// DriverFactory binds the host use cases to widget sessions. A nil use case
// disables the matching operation.
type DriverFactory struct {
	Capabilities CapabilityUseCase
	Events       EventUseCase
	OpenID       OpenIDUseCase
}

// ForWidget returns a Driver acting for widget.
func (f *DriverFactory) ForWidget(widget domain.Widget) driver.Driver {
	return &HostDriver{
		widget:       widget,
		capabilities: f.Capabilities,
		events:       f.Events,
		openID:       f.OpenID,
	}
}
