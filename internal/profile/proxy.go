package profile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Proxy is the forward proxy a profile routes its traffic through.
// Host and Port are either both set or both empty.
type Proxy struct {
	Host     string `json:"ip"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ParseProxy parses HOST:PORT or HOST:PORT:USERNAME:PASSWORD.
// Everything after the third colon is the password, so passwords may contain colons.
func ParseProxy(s string) (Proxy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Proxy{}, fmt.Errorf("%w: empty proxy string", ErrInvalidProxyFormat)
	}

	parts := strings.Split(s, ":")

	var p Proxy
	switch {
	case len(parts) == 2:
		p = Proxy{Host: parts[0], Port: parts[1]}
	case len(parts) >= 4:
		p = Proxy{
			Host:     parts[0],
			Port:     parts[1],
			Username: parts[2],
			Password: strings.Join(parts[3:], ":"),
		}
	default:
		return Proxy{}, fmt.Errorf("%w: expected HOST:PORT or HOST:PORT:USERNAME:PASSWORD", ErrInvalidProxyFormat)
	}

	if err := p.Validate(); err != nil {
		return Proxy{}, err
	}
	return p, nil
}

// Validate checks the host/port pair. An entirely empty proxy is valid.
func (p Proxy) Validate() error {
	if p.Host == "" && p.Port == "" {
		if p.HasAuth() {
			return fmt.Errorf("%w: credentials without host and port", ErrInvalidProxy)
		}
		return nil
	}

	if err := validateHost(p.Host); err != nil {
		return err
	}
	return validatePort(p.Port)
}

func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidProxy)
	}
	if strings.ContainsAny(host, ":/") {
		return fmt.Errorf("%w: host %q must not contain ':' or '/'", ErrInvalidProxy, host)
	}
	if strings.IndexFunc(host, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: host %q contains whitespace", ErrInvalidProxy, host)
	}
	return nil
}

func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidProxy)
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: port %q is not a decimal number", ErrInvalidProxy, port)
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: port %q out of range 1-65535", ErrInvalidProxy, port)
	}
	return nil
}

// IsZero reports whether no proxy is configured.
func (p Proxy) IsZero() bool {
	return p == Proxy{}
}

// HasAddress reports whether both host and port are set.
func (p Proxy) HasAddress() bool {
	return p.Host != "" && p.Port != ""
}

// HasAuth reports whether both username and password are set.
func (p Proxy) HasAuth() bool {
	return p.Username != "" && p.Password != ""
}

// Address returns host:port, or an empty string without an address.
func (p Proxy) Address() string {
	if !p.HasAddress() {
		return ""
	}
	return p.Host + ":" + p.Port
}

// String renders the proxy in the form accepted by ParseProxy.
func (p Proxy) String() string {
	if !p.HasAddress() {
		return ""
	}
	if p.Username == "" && p.Password == "" {
		return p.Address()
	}
	return p.Address() + ":" + p.Username + ":" + p.Password
}
