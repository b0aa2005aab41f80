package apns

import (
	"fmt"
	"strings"
)

// Environment selects the APNs server a Dispatcher talks to.
type Environment int

const (
	// Production is the default environment.
	Production Environment = iota
	// Development is the sandbox used by debug builds of an app.
	Development
)

// APNs provider API endpoints.
const (
	HostProduction  = "https://api.push.apple.com:443"
	HostDevelopment = "https://api.development.push.apple.com:443"
)

var baseURLs = map[Environment]string{
	Production:  HostProduction,
	Development: HostDevelopment,
}

// BaseURL returns the endpoint for e, or "" for an unknown value.
func (e Environment) BaseURL() string {
	return baseURLs[e]
}

func (e Environment) String() string {
	switch e {
	case Production:
		return "production"
	case Development:
		return "development"
	}
	return fmt.Sprintf("Environment(%d)", int(e))
}

// ParseEnvironment accepts "production"/"prod" and "development"/"dev"/"sandbox".
// The empty string is Production.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "production", "prod":
		return Production, nil
	case "development", "dev", "sandbox":
		return Development, nil
	}
	return Production, fmt.Errorf("unknown APNs environment %q", s)
}
