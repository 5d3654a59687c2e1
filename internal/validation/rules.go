// Package validation provides custom validation rules for the application.
package validation

import (
	"net/url"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// matrixID reports whether s is sigil + localpart + ":" + server name.
func matrixID(sigil byte, s string) bool {
	if len(s) < 4 || s[0] != sigil {
		return false
	}
	localpart, server, ok := strings.Cut(s[1:], ":")
	return ok && localpart != "" && server != "" && !strings.ContainsAny(s, " \t\r\n")
}

// RoomID validates a room identifier such as "!abc:example.org".
var RoomID = validation.NewStringRuleWithError(
	func(s string) bool {
		return matrixID('!', s)
	},
	validation.NewError("validation_room_id", "must be a room ID like !id:server"),
)

// UserID validates a user identifier such as "@alice:example.org".
var UserID = validation.NewStringRuleWithError(
	func(s string) bool {
		return matrixID('@', s)
	},
	validation.NewError("validation_user_id", "must be a user ID like @user:server"),
)

// Origin validates a web origin: scheme and host, nothing else.
var Origin = validation.NewStringRuleWithError(
	func(s string) bool {
		u, err := url.Parse(s)
		if err != nil {
			return false
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false
		}
		return u.Host != "" && u.User == nil && (u.Path == "" || u.Path == "/") &&
			u.RawQuery == "" && u.Fragment == ""
	},
	validation.NewError("validation_origin", "must be an origin like https://host[:port]"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// WildcardPattern validates a policy pattern: "*" alone, or a single wildcard
// at the start or end of the pattern.
var WildcardPattern = validation.NewStringRuleWithError(
	func(s string) bool {
		switch strings.Count(s, "*") {
		case 0:
			return true
		case 1:
			return strings.HasPrefix(s, "*") || strings.HasSuffix(s, "*")
		default:
			return false
		}
	},
	validation.NewError("validation_wildcard_pattern", "wildcard is only allowed at the start or end"),
)
