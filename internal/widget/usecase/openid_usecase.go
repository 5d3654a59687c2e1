package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	"github.com/KB1RD/matrix-widget-api/internal/widget/driver"
	widgetService "github.com/KB1RD/matrix-widget-api/internal/widget/service"
)

// Reasons attached to identity-assertion audit entries.
const (
	OpenIDReasonCached      = "cached"
	OpenIDReasonPolicy      = "policy"
	OpenIDReasonUser        = "user"
	OpenIDReasonNoPrompter  = "no_prompter"
	OpenIDReasonTimeout     = "timeout"
	OpenIDReasonPromptError = "prompt_error"
	OpenIDReasonTokenError  = "token_error"
)

type openIDUseCase struct {
	policies      domain.PolicySet
	prompter      Prompter
	promptTimeout time.Duration
	cache         ApprovalCache
	authority     widgetService.IdentityAuthority
	auditLog      AuditLogUseCase
	logger        *slog.Logger
}

// Ask resolves the handshake from, in order: a remembered decision, an origin
// policy, or the user. Only the last one pushes a pending update and continues
// on a new goroutine; the others settle before Ask returns.
//
// A prompt that does not answer within the prompt timeout, or whose context is
// cancelled, ends the handshake as blocked. Such outcomes are not remembered.
func (o *openIDUseCase) Ask(ctx context.Context, widget domain.Widget, observer driver.OpenIDObserver) {
	if allowed, found := o.cache.Get(widget); found {
		o.settle(ctx, widget, observer, allowed, OpenIDReasonCached)
		return
	}

	if o.policies.AllowsOpenID(widget.Origin) {
		o.settle(ctx, widget, observer, true, OpenIDReasonPolicy)
		return
	}

	if o.prompter == nil {
		o.settle(ctx, widget, observer, false, OpenIDReasonNoPrompter)
		return
	}

	if err := observer.Push(domain.PendingUpdate()); err != nil {
		o.logger.Warn("openid observer rejected pending update",
			slog.String("widget_id", widget.ID),
			slog.Any("error", err),
		)
		return
	}

	go o.awaitUser(ctx, widget, observer)
}

func (o *openIDUseCase) awaitUser(ctx context.Context, widget domain.Widget, observer driver.OpenIDObserver) {
	promptCtx, cancel := context.WithTimeout(ctx, o.promptTimeout)
	defer cancel()

	decision, err := o.prompter.ConfirmOpenID(promptCtx, widget)
	if err != nil {
		reason := OpenIDReasonPromptError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			reason = OpenIDReasonTimeout
		}
		o.logger.Info("openid prompt did not complete",
			slog.String("widget_id", widget.ID),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		o.settle(ctx, widget, observer, false, reason)
		return
	}

	if decision.Remember {
		o.cache.Put(widget, decision.Allowed)
	}

	o.settle(ctx, widget, observer, decision.Allowed, OpenIDReasonUser)
}

// settle pushes the terminal update. An allowed handshake whose token cannot be
// issued is downgraded to blocked.
func (o *openIDUseCase) settle(
	ctx context.Context,
	widget domain.Widget,
	observer driver.OpenIDObserver,
	allowed bool,
	reason string,
) {
	update := domain.BlockedUpdate()
	if allowed {
		token, err := o.authority.Issue(ctx, widget)
		if err != nil {
			o.logger.Error("failed to issue openid token",
				slog.String("widget_id", widget.ID),
				slog.Any("error", err),
			)
			reason = OpenIDReasonTokenError
		} else {
			update = domain.AllowedUpdate(token)
		}
	}

	// Record before pushing so the audit entry exists once the receiver sees the outcome
	if err := o.auditLog.Create(context.WithoutCancel(ctx), widget, domain.OpenIDAuditAction,
		string(update.State), map[string]any{"reason": reason},
	); err != nil {
		o.logger.Error("failed to audit openid handshake",
			slog.String("widget_id", widget.ID),
			slog.Any("error", err),
		)
	}

	if err := observer.Push(update); err != nil {
		o.logger.Warn("openid observer rejected terminal update",
			slog.String("widget_id", widget.ID),
			slog.String("state", string(update.State)),
			slog.Any("error", err),
		)
	}
}

// NewOpenIDUseCase creates an OpenIDUseCase. prompter may be nil, in which case
// handshakes not covered by the cache or a policy are blocked.
func NewOpenIDUseCase(
	policies domain.PolicySet,
	prompter Prompter,
	promptTimeout time.Duration,
	cache ApprovalCache,
	authority widgetService.IdentityAuthority,
	auditLog AuditLogUseCase,
	logger *slog.Logger,
) OpenIDUseCase {
	return &openIDUseCase{
		policies:      policies,
		prompter:      prompter,
		promptTimeout: promptTimeout,
		cache:         cache,
		authority:     authority,
		auditLog:      auditLog,
		logger:        logger,
	}
}
