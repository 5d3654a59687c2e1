package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

func TestLocalIdentityAuthority_Issue(t *testing.T) {
	authority := NewLocalIdentityAuthority("example.org", time.Hour)
	widget := domain.Widget{ID: "w1", RoomID: "!abc:example.org", UserID: "@alice:example.org"}

	t.Run("Success_IssueCredentials", func(t *testing.T) {
		creds, err := authority.Issue(context.Background(), widget)
		require.NoError(t, err)

		assert.Equal(t, "Bearer", creds.TokenType)
		assert.Equal(t, "example.org", creds.MatrixServerName)
		assert.Equal(t, 3600, creds.ExpiresIn)

		raw, err := base64.RawURLEncoding.DecodeString(creds.AccessToken)
		require.NoError(t, err)
		assert.Len(t, raw, tokenBytes)

		assert.NoError(t, domain.AllowedUpdate(creds).Validate())
	})

	t.Run("Success_TokensAreUnique", func(t *testing.T) {
		first, err := authority.Issue(context.Background(), widget)
		require.NoError(t, err)
		second, err := authority.Issue(context.Background(), widget)
		require.NoError(t, err)

		assert.NotEqual(t, first.AccessToken, second.AccessToken)
	})

	t.Run("Failure_NoUser", func(t *testing.T) {
		creds, err := authority.Issue(context.Background(), domain.Widget{ID: "w1"})
		assert.Nil(t, creds)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestRandomEventIDGenerator_NewEventID(t *testing.T) {
	gen := NewEventIDGenerator("example.org")

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := gen.NewEventID()
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(id, "$"))
		assert.True(t, strings.HasSuffix(id, ":example.org"))
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestSessionTokenService(t *testing.T) {
	tokens := NewSessionTokenService()

	t.Run("Success_GenerateMatchesHash", func(t *testing.T) {
		plain, hash, err := tokens.Generate()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(plain)
		require.NoError(t, err)
		assert.Len(t, raw, tokenBytes)
		assert.Len(t, hash, 64)
		assert.Equal(t, hash, tokens.Hash(plain))
		assert.NotEqual(t, plain, hash)
	})

	t.Run("Success_TokensAreUnique", func(t *testing.T) {
		first, _, err := tokens.Generate()
		require.NoError(t, err)
		second, _, err := tokens.Generate()
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
