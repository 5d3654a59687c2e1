package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/database"
	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	widgetService "github.com/KB1RD/matrix-widget-api/internal/widget/service"
)

type eventUseCase struct {
	txManager   database.TxManager
	eventRepo   EventRepository
	auditLog    AuditLogUseCase
	idGenerator widgetService.EventIDGenerator
}

// Send validates the request, assigns an event ID and stores the event together
// with its audit entry in one transaction. Capabilities are not re-checked here.
func (e *eventUseCase) Send(
	ctx context.Context,
	widget domain.Widget,
	eventType string,
	content json.RawMessage,
	stateKey *string,
) (*domain.SendEventDetails, error) {
	if !widget.HasRoom() {
		return nil, domain.ErrNoRoomContext
	}

	if eventType == "" || len(eventType) > domain.MaxEventTypeLength {
		return nil, domain.ErrInvalidEventType
	}

	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	eventID, err := e.idGenerator.NewEventID()
	if err != nil {
		return nil, err
	}

	event := &domain.RoomEvent{
		ID:        eventID,
		RoomID:    widget.RoomID,
		Sender:    widget.UserID,
		Type:      eventType,
		StateKey:  copyStateKey(stateKey),
		Content:   content,
		WidgetID:  widget.ID,
		CreatedAt: time.Now().UTC(),
	}

	err = e.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := e.eventRepo.Create(ctx, event); err != nil {
			return err
		}

		metadata := map[string]any{
			"room_id":    event.RoomID,
			"event_id":   event.ID,
			"event_type": event.Type,
		}
		if event.StateKey != nil {
			metadata["state_key"] = *event.StateKey
		}
		return e.auditLog.Create(ctx, widget, domain.SendEventAuditAction, "sent", metadata)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "send failed")
	}

	return &domain.SendEventDetails{
		RoomID:  event.RoomID,
		EventID: event.ID,
	}, nil
}

// normalizeContent accepts a JSON object; empty content becomes {}.
func normalizeContent(content json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, domain.ErrInvalidEventContent
	}
	return json.RawMessage(trimmed), nil
}

// copyStateKey keeps nil as nil and copies everything else, including "".
func copyStateKey(stateKey *string) *string {
	if stateKey == nil {
		return nil
	}
	return domain.StateKey(*stateKey)
}

// NewEventUseCase creates an EventUseCase.
func NewEventUseCase(
	txManager database.TxManager,
	eventRepo EventRepository,
	auditLog AuditLogUseCase,
	idGenerator widgetService.EventIDGenerator,
) EventUseCase {
	return &eventUseCase{
		txManager:   txManager,
		eventRepo:   eventRepo,
		auditLog:    auditLog,
		idGenerator: idGenerator,
	}
}
