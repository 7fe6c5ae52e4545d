package profile

import "errors"

var (
	// ErrNotFound indicates no profile has the requested id.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidProxyFormat indicates a proxy string is not HOST:PORT or HOST:PORT:USER:PASS.
	ErrInvalidProxyFormat = errors.New("invalid proxy format")
	// ErrInvalidProxy indicates a proxy host or port is malformed.
	ErrInvalidProxy = errors.New("invalid proxy")
	// ErrInvalidProfile indicates a profile record is malformed.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrAmbiguous indicates a reference matches more than one profile.
	ErrAmbiguous = errors.New("ambiguous profile reference")
)
