package profile

import "github.com/xabinapal/dabrowser/internal/utils"

// Info represents profile information for listing and display.
// The proxy password is never included.
type Info struct {
	ID       string `json:"id"`
	ShortID  string `json:"short_id"`
	Name     string `json:"name"`
	Proxy    string `json:"proxy,omitempty"`
	Username string `json:"username,omitempty"`
	Auth     bool   `json:"auth"`
	Strategy string `json:"strategy"`
	Active   bool   `json:"active"`
}

// Status represents detailed profile information for a single profile.
type Status struct {
	Info
	Password string `json:"password,omitempty"`
}

// InfoOf summarizes a profile for listings.
func InfoOf(p Profile) Info {
	return Info{
		ID:       p.ID,
		ShortID:  p.ShortID(),
		Name:     p.Name,
		Proxy:    p.Proxy.Address(),
		Username: p.Proxy.Username,
		Auth:     p.Proxy.HasAuth(),
		Strategy: StrategyName(p.Strategy()),
		Active:   p.Active,
	}
}

// StatusOf returns detailed information with the password masked.
func StatusOf(p Profile) Status {
	return Status{
		Info:     InfoOf(p),
		Password: utils.Mask(p.Proxy.Password),
	}
}

// Infos summarizes a list of profiles, preserving order.
func Infos(profiles []Profile) []Info {
	out := make([]Info, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, InfoOf(p))
	}
	return out
}
