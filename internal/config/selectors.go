// File: internal/config/selectors.go
package config

import "github.com/xkilldash9x/ghostpay/api/schemas"

// DefaultExternalSchemes returns the payment-app scheme prefixes that are handed to the OS.
func DefaultExternalSchemes() []string {
	return []string{
		"upi://",
		"intent://",
		"phonepe://",
		"paytmmp://",
		"tez://",
		"gpay://",
		"bhim://",
		"credpay://",
		"mobikwik://",
	}
}

// DefaultSelectors returns the built-in ordered candidate lists. The most specific
// candidates come first; the first visible, enabled match wins.
func DefaultSelectors() LocatorConfig {
	return LocatorConfig{
		CardNumber: []CandidateConfig{
			{Tag: "input", Match: "cardnumber"},
			{Tag: "input", Match: "card_number"},
			{Tag: "input", Match: "cardno"},
			{Tag: "input", Match: "card_no"},
			{Tag: "input", Match: "ccnum"},
			{Tag: "input", Placeholder: "card number"},
			{Tag: "input", Type: "tel", Match: "card"},
		},
		Email: []CandidateConfig{
			{Tag: "input", Type: "email"},
			{Tag: "input", Match: "email"},
			{Tag: "input", Match: "mail"},
			{Tag: "input", Placeholder: "@"},
		},
		Phone: []CandidateConfig{
			{Tag: "input", Match: "mobile"},
			{Tag: "input", Match: "phone"},
			{Tag: "input", Type: "tel", Placeholder: "mobile"},
		},
		Amount: []CandidateConfig{
			{Tag: "input", Match: "amount"},
			{Tag: "input", Match: "amt"},
			{Tag: "input", Placeholder: "amount"},
		},
		NetworkRadio: []CandidateConfig{
			{Tag: "input", Type: "radio"},
		},
	}
}

// CandidatesFor returns the ordered candidate list configured for a role.
func (l LocatorConfig) CandidatesFor(role schemas.Role) []CandidateConfig {
	switch role {
	case schemas.RoleCardNumber:
		return l.CardNumber
	case schemas.RoleEmail:
		return l.Email
	case schemas.RolePhone:
		return l.Phone
	case schemas.RoleAmount:
		return l.Amount
	case schemas.RoleNetworkRadio:
		return l.NetworkRadio
	default:
		return nil
	}
}
