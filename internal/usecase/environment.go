package usecase

import (
	"context"
	"net/http"

	"github.com/V4T54L/loanapp/internal/domain"
)

// Environment describes where a failure happened: the client's user agent
// and the page URL. Code running outside a request has neither.
type Environment struct {
	UserAgent string
	URL       string
}

type environmentKey struct{}

// WithEnvironment returns a copy of ctx carrying env.
func WithEnvironment(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, environmentKey{}, env)
}

// EnvironmentFromRequest captures the user agent and absolute URL of r.
func EnvironmentFromRequest(r *http.Request) Environment {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return Environment{
		UserAgent: r.UserAgent(),
		URL:       scheme + "://" + r.Host + r.URL.RequestURI(),
	}
}

// EnvironmentFrom returns the environment carried by ctx. Missing values read
// as "Server".
func EnvironmentFrom(ctx context.Context) Environment {
	env, _ := ctx.Value(environmentKey{}).(Environment)
	if env.UserAgent == "" {
		env.UserAgent = domain.ServerValue
	}
	if env.URL == "" {
		env.URL = domain.ServerValue
	}
	return env
}
