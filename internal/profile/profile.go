// Package profile provides the browsing identity model and the registry that
// owns every profile and its active flag.
package profile

import (
	"fmt"
	"strings"
)

// ShortIDLen is how many id characters are shown in listings.
const ShortIDLen = 6

// Profile is a named browsing identity bound to a proxy.
// Active is true only while a browser session for the profile is live.
type Profile struct {
	ID     string `json:"fingerprint"`
	Name   string `json:"name"`
	Proxy  Proxy  `json:"proxy"`
	Active bool   `json:"active"`
}

// ShortID returns the id prefix used in listings.
func (p Profile) ShortID() string {
	if len(p.ID) <= ShortIDLen {
		return p.ID
	}
	return p.ID[:ShortIDLen]
}

// Validate checks that the profile can be persisted.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	return p.Proxy.Validate()
}

// Strategy returns the proxy injection strategy for the profile.
func (p Profile) Strategy() Strategy {
	return SelectStrategy(p.Proxy)
}
