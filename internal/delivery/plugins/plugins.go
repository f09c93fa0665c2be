// Package plugins provides the concrete delivery plugins (webhook, email,
// SEDAP transport, mesh) and registers them with the delivery registry.
package plugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/incident"
)

const userAgent = "SIMS-Delivery/1.0"

// Register binds every built-in plugin to the registry, including the type
// aliases that share the webhook implementation.
func Register(r *delivery.Registry) {
	r.Register("webhook", NewWebhook)
	r.Register("email", NewEmail)
	r.Register("sedap", NewSedap)
	r.Register("mesh", NewMesh)
	// Workflow engines and bespoke endpoints are plain webhooks.
	_ = r.Alias("n8n", "webhook")
	_ = r.Alias("custom", "webhook")
}

// TemplateData is the fixed variable set exposed to payload templates. No
// arbitrary expression evaluation happens beyond field access and the small
// helper FuncMap.
type TemplateData struct {
	Incident     *incident.Incident
	Organization *incident.Organization
	Timestamp    string
}

func newTemplateData(inc *incident.Incident, org *incident.Organization) TemplateData {
	return TemplateData{
		Incident:     inc,
		Organization: org,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

// --- config map access -------------------------------------------------

func cfgString(cfg map[string]any, key string) string {
	if v, ok := cfg[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func cfgInt(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func cfgBool(cfg map[string]any, key string) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return false
}

func cfgStringList(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func timeout(cfg map[string]any) time.Duration {
	if s := cfgInt(cfg, "timeout_seconds"); s > 0 {
		return time.Duration(s) * time.Second
	}
	return 30 * time.Second
}

// --- outbound HTTP -----------------------------------------------------

// httpResult carries the transport outcome of one HTTP call.
type httpResult struct {
	statusCode int
	body       string
	err        *delivery.Error
}

// doRequest performs one outbound HTTP call with the plugin's timeout and
// classifies failures into the delivery error taxonomy. Non-2xx responses are
// transport errors carrying the status code and body.
func doRequest(ctx context.Context, name, method, url string, contentType string, payload []byte, headers map[string]string, timeout time.Duration) httpResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return httpResult{err: delivery.NewError(delivery.ErrorTypeConfiguration, "build_request", name, err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return httpResult{err: delivery.NewError(delivery.ErrorTypeTimeout, "send", name, err)}
		}
		return httpResult{err: delivery.NewError(delivery.ErrorTypeTransport, "send", name, err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpResult{
			statusCode: resp.StatusCode,
			body:       string(body),
			err: delivery.NewError(delivery.ErrorTypeTransport, "send", name,
				fmt.Errorf("endpoint returned status %d", resp.StatusCode)),
		}
	}
	return httpResult{statusCode: resp.StatusCode, body: string(body)}
}

// reachable performs a short best-effort reachability probe. Any HTTP
// response, even an error status, proves the endpoint is there.
func reachable(ctx context.Context, url string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Sprintf("invalid endpoint URL: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return false, fmt.Sprintf("endpoint unreachable: %v", err)
	}
	resp.Body.Close()
	return true, fmt.Sprintf("endpoint reachable (status %d)", resp.StatusCode)
}
