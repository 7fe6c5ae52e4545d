package profile

import (
	"strings"

	"github.com/xabinapal/dabrowser/internal/utils"
)

// Filter returns the profiles whose name contains term (ignoring case) or
// whose proxy host or port contains term. An empty term matches everything.
func Filter(profiles []Profile, term string) []Profile {
	term = strings.TrimSpace(term)
	if term == "" {
		return profiles
	}

	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if utils.ContainsFold(p.Name, term) ||
			strings.Contains(p.Proxy.Host, term) ||
			strings.Contains(p.Proxy.Port, term) {
			out = append(out, p)
		}
	}
	return out
}
