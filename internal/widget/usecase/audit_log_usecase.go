package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

type auditLogUseCase struct {
	auditLogRepo AuditLogRepository
}

func (a *auditLogUseCase) Create(
	ctx context.Context,
	widget domain.Widget,
	action domain.AuditAction,
	outcome string,
	metadata map[string]any,
) error {
	auditLog := &domain.AuditLog{
		ID:        uuid.Must(uuid.NewV7()),
		RequestID: RequestIDFromContext(ctx),
		WidgetID:  widget.ID,
		UserID:    widget.UserID,
		Action:    action,
		Outcome:   outcome,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := a.auditLogRepo.Create(ctx, auditLog); err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}

	return nil
}

func (a *auditLogUseCase) List(ctx context.Context, offset, limit int) ([]*domain.AuditLog, error) {
	auditLogs, err := a.auditLogRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	return auditLogs, nil
}

func (a *auditLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "days must be zero or positive")
	}

	olderThan := time.Now().UTC().AddDate(0, 0, -days)
	count, err := a.auditLogRepo.DeleteOlderThan(ctx, olderThan, dryRun)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}
	return count, nil
}

// NewAuditLogUseCase creates an AuditLogUseCase backed by auditLogRepo.
func NewAuditLogUseCase(auditLogRepo AuditLogRepository) AuditLogUseCase {
	return &auditLogUseCase{auditLogRepo: auditLogRepo}
}
