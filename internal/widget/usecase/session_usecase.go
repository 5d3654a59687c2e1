package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	widgetService "github.com/KB1RD/matrix-widget-api/internal/widget/service"
)

// sessionUseCase keeps sessions in process memory, indexed by token hash.
// Sessions end on restart and widgets must be handed a new one.
type sessionUseCase struct {
	mu       sync.Mutex
	byHash   map[string]*domain.Session
	byID     map[uuid.UUID]string
	tokens   widgetService.SessionTokenService
	auditLog AuditLogUseCase
	ttl      time.Duration
	now      func() time.Time
}

func (s *sessionUseCase) Open(ctx context.Context, widget domain.Widget) (*domain.Session, string, error) {
	plainToken, tokenHash, err := s.tokens.Generate()
	if err != nil {
		return nil, "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, "", apperrors.Wrap(err, "failed to generate session id")
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        id,
		TokenHash: tokenHash,
		Widget:    widget,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.removeExpiredLocked(now)
	s.byHash[tokenHash] = session
	s.byID[id] = tokenHash
	s.mu.Unlock()

	s.audit(ctx, widget, "opened", session.ID)

	copied := *session
	return &copied, plainToken, nil
}

func (s *sessionUseCase) Authenticate(ctx context.Context, plainToken string) (*domain.Session, error) {
	if plainToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	tokenHash := s.tokens.Hash(plainToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byHash[tokenHash]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.IsExpired(s.now()) {
		s.deleteLocked(session)
		return nil, domain.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (s *sessionUseCase) Close(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	tokenHash, ok := s.byID[sessionID]
	var session *domain.Session
	if ok {
		session = s.byHash[tokenHash]
		s.deleteLocked(session)
	}
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotOpen
	}

	s.audit(ctx, session.Widget, "closed", sessionID)
	return nil
}

func (s *sessionUseCase) deleteLocked(session *domain.Session) {
	delete(s.byHash, session.TokenHash)
	delete(s.byID, session.ID)
}

func (s *sessionUseCase) removeExpiredLocked(now time.Time) {
	for _, session := range s.byHash {
		if session.IsExpired(now) {
			s.deleteLocked(session)
		}
	}
}

// audit records the session event. A failing audit log does not undo the session.
func (s *sessionUseCase) audit(ctx context.Context, widget domain.Widget, outcome string, sessionID uuid.UUID) {
	if s.auditLog == nil {
		return
	}
	_ = s.auditLog.Create(context.WithoutCancel(ctx), widget, domain.SessionAuditAction, outcome, map[string]any{
		"session_id": sessionID.String(),
		"room_id":    widget.RoomID,
		"origin":     widget.Origin,
	})
}

// NewSessionUseCase creates a SessionUseCase whose sessions expire after ttl.
// auditLog may be nil.
func NewSessionUseCase(
	tokens widgetService.SessionTokenService,
	auditLog AuditLogUseCase,
	ttl time.Duration,
) SessionUseCase {
	return &sessionUseCase{
		byHash:   make(map[string]*domain.Session),
		byID:     make(map[uuid.UUID]string),
		tokens:   tokens,
		auditLog: auditLog,
		ttl:      ttl,
		now:      time.Now,
	}
}
