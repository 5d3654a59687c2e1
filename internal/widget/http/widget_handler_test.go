package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/KB1RD/matrix-widget-api/internal/httputil"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	"github.com/KB1RD/matrix-widget-api/internal/widget/driver"
	"github.com/KB1RD/matrix-widget-api/internal/widget/http/dto"
)

func setupTestWidgetHandler(t *testing.T, d driver.Driver) (*WidgetHandler, *fakeDriverProvider) {
	t.Helper()

	provider := &fakeDriverProvider{driver: d}
	return NewWidgetHandler(provider, time.Second, discardLogger()), provider
}

func testSessionWidget() domain.Widget {
	return domain.Widget{
		ID:     testWidgetID,
		RoomID: testRoomID,
		UserID: testUserID,
		Origin: testOrigin,
	}
}

// withTestSession attaches a session for widget as WidgetAuthenticationMiddleware would.
func withTestSession(c *gin.Context, widget domain.Widget) {
	session := &domain.Session{
		ID:        uuid.Must(uuid.NewV7()),
		Widget:    widget,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	c.Request = c.Request.WithContext(WithSession(c.Request.Context(), session))
	c.Params = gin.Params{{Key: "widget_id", Value: widget.ID}}
}

func TestWidgetHandler_CapabilitiesHandler(t *testing.T) {
	t.Run("Success_ReturnsApprovedSubset", func(t *testing.T) {
		d := &mockDriver{}
		handler, provider := setupTestWidgetHandler(t, d)

		requested := domain.NewCapabilitySet(domain.AlwaysOnScreenCapability, domain.ScreenshotCapability)
		d.On("ValidateCapabilities", mock.Anything, requested).
			Return(domain.NewCapabilitySet(domain.AlwaysOnScreenCapability)).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/capabilities", map[string]any{
			"requested": []string{"m.always_on_screen", "m.capability.screenshot"},
		})
		withTestSession(c, testSessionWidget())

		handler.CapabilitiesHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.CapabilitiesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, domain.NewCapabilitySet(domain.AlwaysOnScreenCapability), response.Approved)

		widget := provider.lastWidget()
		assert.Equal(t, testWidgetID, widget.ID)
		assert.Equal(t, testRoomID, widget.RoomID)
		assert.Equal(t, testUserID, widget.UserID)
		d.AssertExpectations(t)
	})

	t.Run("Success_DenyAllApprovesNothing", func(t *testing.T) {
		handler, _ := setupTestWidgetHandler(t, driver.DenyAll{})

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/capabilities", map[string]any{
			"requested": []string{"m.always_on_screen"},
		})
		withTestSession(c, testSessionWidget())

		handler.CapabilitiesHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"approved":[]}`, w.Body.String())
	})

	t.Run("Success_BodyIdentityClaimsAreIgnored", func(t *testing.T) {
		d := &mockDriver{}
		handler, provider := setupTestWidgetHandler(t, d)

		d.On("ValidateCapabilities", mock.Anything, mock.Anything).
			Return(domain.NewCapabilitySet()).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/capabilities", map[string]any{
			"room_id":   "!other:example.org",
			"user_id":   "@admin:example.org",
			"origin":    "https://claimed.example.org",
			"requested": []string{},
		})
		withTestSession(c, testSessionWidget())

		handler.CapabilitiesHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testSessionWidget(), provider.lastWidget())
	})

	t.Run("Failure_NoSession", func(t *testing.T) {
		handler, provider := setupTestWidgetHandler(t, &mockDriver{})

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/capabilities", map[string]any{
			"requested": []string{"m.sticker"},
		})

		handler.CapabilitiesHandler(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, provider.widgets)
	})

	t.Run("Failure_InvalidJSON", func(t *testing.T) {
		handler, _ := setupTestWidgetHandler(t, &mockDriver{})

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/capabilities", nil)
		c.Request.Body = http.NoBody
		withTestSession(c, testSessionWidget())

		handler.CapabilitiesHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Failure_BlankCapability", func(t *testing.T) {
		handler, provider := setupTestWidgetHandler(t, &mockDriver{})

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/capabilities", map[string]any{
			"requested": []string{" "},
		})
		withTestSession(c, testSessionWidget())

		handler.CapabilitiesHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, provider.widgets)
	})
}

func TestWidgetHandler_SendEventHandler(t *testing.T) {
	t.Run("Success_TimelineEvent", func(t *testing.T) {
		d := &mockDriver{}
		handler, _ := setupTestWidgetHandler(t, d)

		d.On("SendEvent", mock.Anything, "m.room.message", json.RawMessage(`{"body":"hi"}`), (*string)(nil)).
			Return(&domain.SendEventDetails{RoomID: testRoomID, EventID: "$abc:example.org"}, nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/events", map[string]any{
			"type":    "m.room.message",
			"content": map[string]string{"body": "hi"},
		})
		withTestSession(c, testSessionWidget())

		handler.SendEventHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response dto.SendEventResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, testRoomID, response.RoomID)
		assert.Equal(t, "$abc:example.org", response.EventID)
		d.AssertExpectations(t)
	})

	t.Run("Success_EmptyStateKeyIsKept", func(t *testing.T) {
		d := &mockDriver{}
		handler, _ := setupTestWidgetHandler(t, d)

		d.On("SendEvent", mock.Anything, "m.room.topic", mock.Anything, mock.MatchedBy(func(key *string) bool {
			return key != nil && *key == ""
		})).
			Return(&domain.SendEventDetails{RoomID: testRoomID, EventID: "$state:example.org"}, nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/events", map[string]any{
			"type":      "m.room.topic",
			"content":   map[string]string{"topic": "news"},
			"state_key": "",
		})
		withTestSession(c, testSessionWidget())

		handler.SendEventHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		d.AssertExpectations(t)
	})

	t.Run("Failure_DenyAllNotImplemented", func(t *testing.T) {
		handler, _ := setupTestWidgetHandler(t, driver.DenyAll{})

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/events", map[string]any{
			"type":    "m.room.message",
			"content": map[string]string{"body": "hi"},
		})
		withTestSession(c, testSessionWidget())

		handler.SendEventHandler(c)

		assert.Equal(t, http.StatusNotImplemented, w.Code)

		var response httputil.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "not_implemented", response.Error)
	})

	t.Run("Failure_NoRoomContext", func(t *testing.T) {
		d := &mockDriver{}
		handler, _ := setupTestWidgetHandler(t, d)

		d.On("SendEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.ErrNoRoomContext).
			Once()

		// A body room does not replace the missing session room
		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/events", map[string]any{
			"room_id": testRoomID,
			"type":    "m.room.message",
			"content": map[string]string{"body": "hi"},
		})
		widget := testSessionWidget()
		widget.RoomID = ""
		withTestSession(c, widget)

		handler.SendEventHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "no room context")
	})

	t.Run("Failure_InvalidEventType", func(t *testing.T) {
		handler, provider := setupTestWidgetHandler(t, &mockDriver{})

		c, w := createTestContext(http.MethodPost, "/v1/widgets/w1/events", map[string]any{
			"type": "m.room message",
		})
		withTestSession(c, testSessionWidget())

		handler.SendEventHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, provider.widgets)
	})
}

// openIDPath carries identity query parameters the handler must ignore.
func openIDPath() string {
	return "/v1/widgets/w1/openid?user_id=%40admin%3Aexample.org&origin=https%3A%2F%2Fevil.example.org"
}

func TestWidgetHandler_OpenIDHandler(t *testing.T) {
	allowed := domain.AllowedUpdate(&domain.OpenIDCredentials{
		AccessToken:      "token",
		TokenType:        "Bearer",
		MatrixServerName: "example.org",
		ExpiresIn:        3600,
	})

	t.Run("Success_DenyAllStreamsBlocked", func(t *testing.T) {
		handler, provider := setupTestWidgetHandler(t, driver.DenyAll{})

		c, w := createTestContext(http.MethodGet, openIDPath(), nil)
		withTestSession(c, testSessionWidget())

		handler.OpenIDHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
		assert.Contains(t, w.Body.String(), "event:update")
		assert.Contains(t, w.Body.String(), `"state":"blocked"`)
		assert.NotContains(t, w.Body.String(), "event:error")
		assert.Equal(t, testUserID, provider.lastWidget().UserID)
	})

	t.Run("Success_PendingThenAllowed", func(t *testing.T) {
		d := &mockDriver{script: []domain.OpenIDUpdate{domain.PendingUpdate(), allowed}}
		handler, _ := setupTestWidgetHandler(t, d)

		c, w := createTestContext(http.MethodGet, openIDPath(), nil)
		withTestSession(c, testSessionWidget())

		handler.OpenIDHandler(c)

		body := w.Body.String()
		pending := strings.Index(body, `"state":"request"`)
		allowedAt := strings.Index(body, `"state":"allowed"`)
		require.GreaterOrEqual(t, pending, 0)
		require.Greater(t, allowedAt, pending)
		assert.Contains(t, body, `"access_token":"token"`)
	})

	t.Run("Failure_ProtocolViolation", func(t *testing.T) {
		// Allowed without a token is rejected by the channel
		d := &mockDriver{script: []domain.OpenIDUpdate{
			domain.PendingUpdate(),
			{State: domain.OpenIDAllowed},
		}}
		handler, _ := setupTestWidgetHandler(t, d)

		c, w := createTestContext(http.MethodGet, openIDPath(), nil)
		withTestSession(c, testSessionWidget())

		handler.OpenIDHandler(c)

		body := w.Body.String()
		assert.Contains(t, body, "event:error")
		assert.Contains(t, body, `"error":"protocol_violation"`)
		assert.NotContains(t, body, `"state":"blocked"`)
	})

	t.Run("Failure_StalledHandshakeTimesOut", func(t *testing.T) {
		d := &mockDriver{script: []domain.OpenIDUpdate{domain.PendingUpdate()}}
		provider := &fakeDriverProvider{driver: d}
		handler := NewWidgetHandler(provider, 50*time.Millisecond, discardLogger())

		c, w := createTestContext(http.MethodGet, openIDPath(), nil)
		withTestSession(c, testSessionWidget())

		handler.OpenIDHandler(c)

		body := w.Body.String()
		assert.Contains(t, body, `"state":"request"`)
		assert.Contains(t, body, `"error":"timeout"`)
	})

	t.Run("Failure_NoSession", func(t *testing.T) {
		handler, provider := setupTestWidgetHandler(t, driver.DenyAll{})

		c, w := createTestContext(http.MethodGet, openIDPath(), nil)

		handler.OpenIDHandler(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, provider.widgets)
	})
}
