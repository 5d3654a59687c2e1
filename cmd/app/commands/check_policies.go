package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/KB1RD/matrix-widget-api/internal/config"
	customValidation "github.com/KB1RD/matrix-widget-api/internal/validation"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// policyCheck is what the configured policies decide for one origin.
type policyCheck struct {
	Origin       string               `json:"origin"`
	AutoApproved domain.CapabilitySet `json:"auto_approved"`
	Prompted     domain.CapabilitySet `json:"prompted"`
	OpenID       string               `json:"openid"`
}

// RunCheckPolicies validates a WIDGET_POLICIES document and, when origin is
// set, shows which of the requested capabilities a widget from that origin
// gets without a prompt.
func RunCheckPolicies(
	writer io.Writer,
	policiesJSON string,
	origin string,
	requested []string,
	format string,
) error {
	policies, err := (&config.Config{WidgetPolicies: policiesJSON}).Policies()
	if err != nil {
		return fmt.Errorf("invalid policies: %w", err)
	}

	var check *policyCheck
	if origin != "" {
		if err := customValidation.Origin.Validate(origin); err != nil {
			return fmt.Errorf("invalid origin %q: %w", origin, err)
		}
		check = checkOrigin(policies, origin, requested)
	}

	if format == "json" {
		result := map[string]any{
			"valid":    true,
			"policies": policies,
		}
		if check != nil {
			result["check"] = check
		}
		if err := writeJSON(writer, result); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
		return nil
	}

	outputPoliciesText(writer, policies, check)
	return nil
}

func checkOrigin(policies domain.PolicySet, origin string, requested []string) *policyCheck {
	requestedSet := domain.NewCapabilitySet()
	for _, c := range requested {
		if c = strings.TrimSpace(c); c != "" {
			requestedSet[domain.Capability(c)] = struct{}{}
		}
	}

	approved := policies.Approve(origin, requestedSet)

	openID := "prompted"
	if policies.AllowsOpenID(origin) {
		openID = "allowed"
	}

	return &policyCheck{
		Origin:       origin,
		AutoApproved: approved,
		Prompted:     requestedSet.Difference(approved),
		OpenID:       openID,
	}
}

func outputPoliciesText(writer io.Writer, policies domain.PolicySet, check *policyCheck) {
	_, _ = fmt.Fprintf(writer, "Policies are valid (%d configured)\n", len(policies))
	for i, p := range policies {
		_, _ = fmt.Fprintf(writer, "  [%d] origin=%s capabilities=%s allow_openid=%t\n",
			i, p.Origin, strings.Join(p.Capabilities, ","), p.AllowOpenID)
	}

	if check == nil {
		return
	}

	_, _ = fmt.Fprintf(writer, "\nOrigin %s\n", check.Origin)
	_, _ = fmt.Fprintf(writer, "  Auto-approved: %s\n", joinOrNone(check.AutoApproved))
	_, _ = fmt.Fprintf(writer, "  Prompted:      %s\n", joinOrNone(check.Prompted))
	_, _ = fmt.Fprintf(writer, "  OpenID:        %s\n", check.OpenID)
}

func joinOrNone(set domain.CapabilitySet) string {
	if set.Len() == 0 {
		return "(none)"
	}
	return strings.Join(set.Strings(), ", ")
}
