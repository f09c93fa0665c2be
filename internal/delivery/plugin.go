// Package delivery implements the multi-channel incident delivery engine: the
// plugin contract, the type registry, the orchestrator that fans an incident
// out to every matching integration, and the append-only delivery audit trail.
package delivery

import (
	"context"
	"time"

	"github.com/BATSNet/sims-sub000/internal/incident"
)

// Result is the uniform outcome of one plugin send. Plugins never return Go
// errors for expected failure modes; those become Success=false results with
// a populated ErrorMessage so the orchestrator needs no catch-all.
type Result struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	ErrorMessage string
	Duration     time.Duration
	RequestURL   string
	// RequestPayload is a snapshot of the rendered outbound payload.
	RequestPayload string
	// TimedOut marks the failure as a timeout rather than a plain transport
	// error.
	TimedOut bool
	// Retryable is false for configuration and protocol failures, which are
	// terminal regardless of the template's retry settings.
	Retryable bool
}

// Failure builds a failed Result from a structured delivery error.
func Failure(err *Error, duration time.Duration) Result {
	return Result{
		ErrorMessage: err.Error(),
		Duration:     duration,
		TimedOut:     err.Type == ErrorTypeTimeout,
		Retryable:    err.Retryable(),
	}
}

// Plugin turns a normalized incident plus an organization into one
// transport-specific call.
type Plugin interface {
	// Send delivers the incident. payloadTemplate is the effective template
	// (integration override or template default); plugins that do not render
	// templates ignore it.
	Send(ctx context.Context, inc *incident.Incident, org *incident.Organization, payloadTemplate string) Result

	// TestConnection is a best-effort reachability and auth check with a
	// short timeout. It never mutates remote state.
	TestConnection(ctx context.Context) (bool, string)

	// ValidateConfig checks that required config fields are present and well
	// formed. It is called before Send is ever invoked for a new integration.
	ValidateConfig() error
}

// Factory constructs a plugin from an integration's config values and opaque
// credentials.
type Factory func(config map[string]any, credentials map[string]string) (Plugin, error)
