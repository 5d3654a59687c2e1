package domain

import (
	"fmt"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
)

// OpenIDRequestState is a position in the identity-assertion handshake.
// The string values match the states used on the widget wire.
type OpenIDRequestState string

const (
	// OpenIDBlocked is terminal: the widget does not receive an identity token.
	OpenIDBlocked OpenIDRequestState = "blocked"

	// OpenIDPendingUserConfirmation is non-terminal: the host is asking the user.
	OpenIDPendingUserConfirmation OpenIDRequestState = "request"

	// OpenIDAllowed is terminal: the update carries the identity token.
	OpenIDAllowed OpenIDRequestState = "allowed"
)

// IsTerminal reports whether the state ends the handshake.
func (s OpenIDRequestState) IsTerminal() bool {
	return s == OpenIDBlocked || s == OpenIDAllowed
}

// IsValid reports whether s is one of the known states.
func (s OpenIDRequestState) IsValid() bool {
	switch s {
	case OpenIDBlocked, OpenIDPendingUserConfirmation, OpenIDAllowed:
		return true
	default:
		return false
	}
}

// OpenIDCredentials is the bearer credential material produced by the identity
// authority. The host treats it as an opaque payload.
type OpenIDCredentials struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	MatrixServerName string `json:"matrix_server_name"`
	ExpiresIn        int    `json:"expires_in"`
}

// OpenIDUpdate is one push of the identity-assertion handshake.
// Token is set if and only if State is OpenIDAllowed.
type OpenIDUpdate struct {
	State OpenIDRequestState `json:"state"`
	Token *OpenIDCredentials `json:"token,omitempty"`
}

// BlockedUpdate returns the terminal denial update.
func BlockedUpdate() OpenIDUpdate {
	return OpenIDUpdate{State: OpenIDBlocked}
}

// PendingUpdate returns the non-terminal "asking the user" update.
func PendingUpdate() OpenIDUpdate {
	return OpenIDUpdate{State: OpenIDPendingUserConfirmation}
}

// AllowedUpdate returns the terminal approval update carrying token.
func AllowedUpdate(token *OpenIDCredentials) OpenIDUpdate {
	return OpenIDUpdate{State: OpenIDAllowed, Token: token}
}

// Validate checks a single update in isolation: the state must be known and the
// token must be present exactly when the state is allowed.
func (u OpenIDUpdate) Validate() error {
	if !u.State.IsValid() {
		return apperrors.Wrapf(apperrors.ErrProtocolViolation, "unknown openid state %q", u.State)
	}
	if u.State == OpenIDAllowed {
		if u.Token == nil || u.Token.AccessToken == "" {
			return apperrors.Wrap(apperrors.ErrProtocolViolation, "allowed update without token")
		}
		return nil
	}
	if u.Token != nil {
		return apperrors.Wrapf(apperrors.ErrProtocolViolation, "token attached to %q update", u.State)
	}
	return nil
}

// OpenIDSequence checks the ordering of updates pushed during one handshake.
// The legal sequences are: blocked; allowed; request, blocked; request, allowed.
// The zero value is ready to use and is not safe for concurrent use.
type OpenIDSequence struct {
	pending  bool
	terminal *OpenIDUpdate
	count    int
}

// Accept validates the next update against the updates seen so far. A rejected
// update does not advance the sequence.
func (s *OpenIDSequence) Accept(update OpenIDUpdate) error {
	if s.terminal != nil {
		return apperrors.Wrapf(
			apperrors.ErrProtocolViolation,
			"update %q after terminal %q", update.State, s.terminal.State,
		)
	}
	if err := update.Validate(); err != nil {
		return err
	}
	if update.State == OpenIDPendingUserConfirmation {
		if s.pending {
			return apperrors.Wrap(apperrors.ErrProtocolViolation, "repeated pending confirmation")
		}
		s.pending = true
	}
	if update.State.IsTerminal() {
		terminal := update
		s.terminal = &terminal
	}
	s.count++
	return nil
}

// Complete reports whether a terminal update has been accepted.
func (s *OpenIDSequence) Complete() bool {
	return s.terminal != nil
}

// Terminal returns the accepted terminal update, if any.
func (s *OpenIDSequence) Terminal() (OpenIDUpdate, bool) {
	if s.terminal == nil {
		return OpenIDUpdate{}, false
	}
	return *s.terminal, true
}

// Len returns the number of accepted updates.
func (s *OpenIDSequence) Len() int {
	return s.count
}

// ValidateOpenIDSequence checks a complete handshake. Besides the per-update and
// ordering rules it rejects sequences that never reach a terminal update.
func ValidateOpenIDSequence(updates []OpenIDUpdate) error {
	var seq OpenIDSequence
	for i, update := range updates {
		if err := seq.Accept(update); err != nil {
			return fmt.Errorf("update %d: %w", i, err)
		}
	}
	if !seq.Complete() {
		return apperrors.Wrap(apperrors.ErrProtocolViolation, "sequence has no terminal update")
	}
	return nil
}

// OpenIDDecision is the user's (or a cached) answer to an identity-assertion prompt.
type OpenIDDecision struct {
	Allowed  bool
	Remember bool
}
