package profile

// Strategy is how a session injects its proxy into the browser. It is one of
// NoProxy, PlainProxy or AuthenticatedProxy.
type Strategy interface {
	strategy()
}

// NoProxy launches the browser without any proxy settings.
type NoProxy struct{}

// PlainProxy passes the proxy address on the browser command line.
type PlainProxy struct {
	Host string
	Port string
}

// AuthenticatedProxy installs a generated extension that answers
// proxy authentication challenges.
type AuthenticatedProxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

func (NoProxy) strategy()            {}
func (PlainProxy) strategy()         {}
func (AuthenticatedProxy) strategy() {}

// Address returns host:port.
func (p PlainProxy) Address() string { return p.Host + ":" + p.Port }

// Address returns host:port.
func (p AuthenticatedProxy) Address() string { return p.Host + ":" + p.Port }

// Proxy returns the proxy the strategy was built from.
func (p AuthenticatedProxy) Proxy() Proxy {
	return Proxy{Host: p.Host, Port: p.Port, Username: p.Username, Password: p.Password}
}

// SelectStrategy picks the injection strategy for a proxy. Credentials only
// matter when an address is present.
func SelectStrategy(p Proxy) Strategy {
	switch {
	case p.HasAddress() && p.HasAuth():
		return AuthenticatedProxy{Host: p.Host, Port: p.Port, Username: p.Username, Password: p.Password}
	case p.HasAddress():
		return PlainProxy{Host: p.Host, Port: p.Port}
	default:
		return NoProxy{}
	}
}

// StrategyName returns a short label for logs and output.
func StrategyName(s Strategy) string {
	switch s.(type) {
	case AuthenticatedProxy:
		return "authenticated"
	case PlainProxy:
		return "plain"
	default:
		return "none"
	}
}
