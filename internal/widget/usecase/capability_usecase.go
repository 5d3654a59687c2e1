package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// Capability negotiation outcomes recorded in the audit log.
const (
	CapabilitiesGranted = "granted"
	CapabilitiesPartial = "partial"
	CapabilitiesDenied  = "denied"
)

type capabilityUseCase struct {
	policies      domain.PolicySet
	prompter      Prompter
	promptTimeout time.Duration
	auditLog      AuditLogUseCase
	logger        *slog.Logger
}

// Negotiate approves in two steps:
//  1. The configured policies for the widget origin approve what they cover
//  2. The prompter, when present, is asked about the rest
//
// The result is intersected with requested, so a prompter answering with
// capabilities nobody asked for cannot widen the grant. Prompter failures and
// timeouts leave only the policy-approved subset.
func (c *capabilityUseCase) Negotiate(
	ctx context.Context,
	widget domain.Widget,
	requested domain.CapabilitySet,
) domain.CapabilitySet {
	// Work on a private copy; the caller's set is never touched
	requested = requested.Clone()

	approved := c.policies.Approve(widget.Origin, requested)
	remaining := requested.Difference(approved)

	if remaining.Len() > 0 && c.prompter != nil {
		promptCtx, cancel := context.WithTimeout(ctx, c.promptTimeout)
		granted, err := c.prompter.ConfirmCapabilities(promptCtx, widget, remaining.Clone())
		cancel()

		if err != nil {
			c.logger.Warn("capability prompt failed",
				slog.String("widget_id", widget.ID),
				slog.Any("error", err),
			)
		} else {
			approved = approved.Union(granted.Intersect(remaining))
		}
	}

	approved = approved.Intersect(requested)

	outcome := negotiationOutcome(requested, approved)
	if err := c.auditLog.Create(context.WithoutCancel(ctx), widget, domain.CapabilitiesAuditAction, outcome,
		map[string]any{
			"requested": requested.Strings(),
			"approved":  approved.Strings(),
		},
	); err != nil {
		c.logger.Error("failed to audit capability negotiation",
			slog.String("widget_id", widget.ID),
			slog.Any("error", err),
		)
	}

	return approved
}

func negotiationOutcome(requested, approved domain.CapabilitySet) string {
	switch {
	case approved.Len() == 0 && requested.Len() > 0:
		return CapabilitiesDenied
	case approved.Len() < requested.Len():
		return CapabilitiesPartial
	default:
		return CapabilitiesGranted
	}
}

// NewCapabilityUseCase creates a CapabilityUseCase. prompter may be nil, in which
// case only policy-covered capabilities are ever approved.
func NewCapabilityUseCase(
	policies domain.PolicySet,
	prompter Prompter,
	promptTimeout time.Duration,
	auditLog AuditLogUseCase,
	logger *slog.Logger,
) CapabilityUseCase {
	return &capabilityUseCase{
		policies:      policies,
		prompter:      prompter,
		promptTimeout: promptTimeout,
		auditLog:      auditLog,
		logger:        logger,
	}
}
