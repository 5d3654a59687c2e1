package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	"github.com/KB1RD/matrix-widget-api/internal/widget/driver"
)

const (
	testWidgetID = "w1"
	testRoomID   = "!room:example.org"
	testUserID   = "@alice:example.org"
	testOrigin   = "https://widget.example.org"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestContext creates a test Gin context with the given request.
func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
}

// mockDriver is a testify mock of driver.Driver. AskOpenID replays script.
type mockDriver struct {
	mock.Mock
	script []domain.OpenIDUpdate
}

func (m *mockDriver) ValidateCapabilities(ctx context.Context, requested domain.CapabilitySet) domain.CapabilitySet {
	args := m.Called(ctx, requested)
	return args.Get(0).(domain.CapabilitySet)
}

func (m *mockDriver) SendEvent(
	ctx context.Context,
	eventType string,
	content json.RawMessage,
	stateKey *string,
) (*domain.SendEventDetails, error) {
	args := m.Called(ctx, eventType, content, stateKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SendEventDetails), args.Error(1)
}

func (m *mockDriver) AskOpenID(ctx context.Context, observer driver.OpenIDObserver) {
	for _, update := range m.script {
		_ = observer.Push(update)
	}
}

// fakeDriverProvider returns the same driver for every widget and records the
// widgets it was asked for.
type fakeDriverProvider struct {
	mu      sync.Mutex
	driver  driver.Driver
	widgets []domain.Widget
}

func (p *fakeDriverProvider) ForWidget(widget domain.Widget) driver.Driver {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.widgets = append(p.widgets, widget)
	return p.driver
}

func (p *fakeDriverProvider) lastWidget() domain.Widget {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.widgets) == 0 {
		return domain.Widget{}
	}
	return p.widgets[len(p.widgets)-1]
}

// mockPromptUseCase is a testify mock of usecase.PromptUseCase.
type mockPromptUseCase struct {
	mock.Mock
}

func (m *mockPromptUseCase) List(ctx context.Context) []domain.Prompt {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Prompt)
}

func (m *mockPromptUseCase) Resolve(ctx context.Context, promptID uuid.UUID, resolution domain.PromptResolution) error {
	args := m.Called(ctx, promptID, resolution)
	return args.Error(0)
}

// mockAuditLogUseCase is a testify mock of usecase.AuditLogUseCase.
type mockAuditLogUseCase struct {
	mock.Mock
}

func (m *mockAuditLogUseCase) Create(
	ctx context.Context,
	widget domain.Widget,
	action domain.AuditAction,
	outcome string,
	metadata map[string]any,
) error {
	args := m.Called(ctx, widget, action, outcome, metadata)
	return args.Error(0)
}

func (m *mockAuditLogUseCase) List(ctx context.Context, offset, limit int) ([]*domain.AuditLog, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AuditLog), args.Error(1)
}

func (m *mockAuditLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	args := m.Called(ctx, days, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// mockSessionUseCase is a testify mock of usecase.SessionUseCase.
type mockSessionUseCase struct {
	mock.Mock
}

func (m *mockSessionUseCase) Open(ctx context.Context, widget domain.Widget) (*domain.Session, string, error) {
	args := m.Called(ctx, widget)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*domain.Session), args.String(1), args.Error(2)
}

func (m *mockSessionUseCase) Authenticate(ctx context.Context, plainToken string) (*domain.Session, error) {
	args := m.Called(ctx, plainToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionUseCase) Close(ctx context.Context, sessionID uuid.UUID) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}
