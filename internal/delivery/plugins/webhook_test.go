package plugins

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIncident() *incident.Incident {
	lat, lon := 52.52, 13.405
	return &incident.Incident{
		ID:          "inc-1",
		Code:        "INC-2026-0042",
		Title:       "Warehouse fire",
		Description: "Visible flames at the loading dock",
		Category:    "fire",
		Priority:    incident.PriorityCritical,
		Status:      incident.StatusOpen,
		Latitude:    &lat,
		Longitude:   &lon,
		CreatedAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func testOrg() *incident.Organization {
	return &incident.Organization{ID: "org-1", Name: "City Fire Department", ShortName: "CFD"}
}

func newTestWebhook(t *testing.T, cfg map[string]any, creds map[string]string) *Webhook {
	t.Helper()
	p, err := NewWebhook(cfg, creds)
	require.NoError(t, err)
	return p.(*Webhook)
}

func TestWebhookSendGenericPayload(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`))
	}))
	defer srv.Close()

	w := newTestWebhook(t, map[string]any{"endpoint_url": srv.URL}, nil)
	res := w.Send(context.Background(), testIncident(), testOrg(), "")

	assert.True(t, res.Success)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"received":true}`, res.ResponseBody)
	assert.Equal(t, srv.URL, res.RequestURL)
	assert.Equal(t, "application/json", gotContentType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	inc := payload["incident"].(map[string]any)
	assert.Equal(t, "INC-2026-0042", inc["code"])
	assert.Equal(t, "sims-delivery", payload["source"])
}

func TestWebhookSendCustomTemplate(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tmpl := `{"text":"{{printf "%s" .Incident.Priority | upper}} incident {{.Incident.Code}} for {{.Organization.ShortName}}"}`
	w := newTestWebhook(t, map[string]any{"endpoint_url": srv.URL}, nil)
	res := w.Send(context.Background(), testIncident(), testOrg(), tmpl)

	require.True(t, res.Success, res.ErrorMessage)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "CRITICAL incident INC-2026-0042 for CFD", payload["text"])
	assert.Equal(t, string(gotBody), res.RequestPayload)
}

func TestWebhookTemplateInvalidJSONIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint must not be called for broken templates")
	}))
	defer srv.Close()

	w := newTestWebhook(t, map[string]any{"endpoint_url": srv.URL}, nil)
	res := w.Send(context.Background(), testIncident(), testOrg(), `not json: {{.Incident.Code}}`)

	assert.False(t, res.Success)
	assert.False(t, res.Retryable, "template problems are configuration territory")
	assert.Contains(t, res.ErrorMessage, "invalid JSON")
}

func TestWebhookTemplateSyntaxError(t *testing.T) {
	w := newTestWebhook(t, map[string]any{"endpoint_url": "https://example.com"}, nil)
	res := w.Send(context.Background(), testIncident(), testOrg(), `{{.Unclosed`)
	assert.False(t, res.Success)
	assert.False(t, res.Retryable)
	assert.Contains(t, res.ErrorMessage, "invalid template")
}

func TestWebhookNon2xxIsRetryableTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := newTestWebhook(t, map[string]any{"endpoint_url": srv.URL}, nil)
	res := w.Send(context.Background(), testIncident(), testOrg(), "")

	assert.False(t, res.Success)
	assert.True(t, res.Retryable)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Contains(t, res.ResponseBody, "upstream broken")
	assert.Contains(t, res.ErrorMessage, "failed for webhook")
	assert.NotContains(t, res.ErrorMessage, srv.URL, "error message names the plugin, not the endpoint")
}

func TestWebhookTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	w := newTestWebhook(t, map[string]any{"endpoint_url": srv.URL, "timeout_seconds": 1}, nil)
	res := w.Send(context.Background(), testIncident(), testOrg(), "")

	assert.False(t, res.Success)
	assert.True(t, res.TimedOut)
	assert.True(t, res.Retryable)
}

func TestWebhookAuthHeaders(t *testing.T) {
	tests := []struct {
		name       string
		cfg        map[string]any
		creds      map[string]string
		wantHeader string
		wantValue  string
	}{
		{
			name:       "bearer",
			cfg:        map[string]any{"auth_type": "bearer"},
			creds:      map[string]string{"bearer_token": "tok-123"},
			wantHeader: "Authorization",
			wantValue:  "Bearer tok-123",
		},
		{
			name:       "api key default header",
			cfg:        map[string]any{"auth_type": "api_key"},
			creds:      map[string]string{"api_key": "key-456"},
			wantHeader: "X-API-Key",
			wantValue:  "key-456",
		},
		{
			name:       "custom header",
			cfg:        map[string]any{"auth_type": "custom_header", "header_name": "X-Hook-Secret"},
			creds:      map[string]string{"header_value": "s3cret"},
			wantHeader: "X-Hook-Secret",
			wantValue:  "s3cret",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tc.wantHeader)
			}))
			defer srv.Close()

			tc.cfg["endpoint_url"] = srv.URL
			w := newTestWebhook(t, tc.cfg, tc.creds)
			res := w.Send(context.Background(), testIncident(), testOrg(), "")
			require.True(t, res.Success)
			assert.Equal(t, tc.wantValue, got)
		})
	}
}

func TestNewWebhookUnknownAuthType(t *testing.T) {
	_, err := NewWebhook(map[string]any{"endpoint_url": "https://x", "auth_type": "kerberos"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth_type")
}

func TestWebhookValidateConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]any
		creds map[string]string
		want  string
	}{
		{"missing url", map[string]any{}, nil, "endpoint_url is required"},
		{"bad scheme", map[string]any{"endpoint_url": "ftp://example.com"}, nil, "http or https"},
		{"bad method", map[string]any{"endpoint_url": "https://x", "method": "GET"}, nil, "POST or PUT"},
		{"missing bearer token", map[string]any{"endpoint_url": "https://x", "auth_type": "bearer"}, nil, "bearer_token"},
		{"missing api key", map[string]any{"endpoint_url": "https://x", "auth_type": "api_key"}, nil, "api_key"},
		{
			"missing custom header name",
			map[string]any{"endpoint_url": "https://x", "auth_type": "custom_header"},
			map[string]string{"header_value": "v"},
			"header_name",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := newTestWebhook(t, tc.cfg, tc.creds)
			err := w.ValidateConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	w := newTestWebhook(t, map[string]any{"endpoint_url": "https://example.com", "method": "PUT"}, nil)
	assert.NoError(t, w.ValidateConfig())
}

func TestWebhookTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
	}))
	defer srv.Close()

	w := newTestWebhook(t, map[string]any{"endpoint_url": srv.URL}, nil)
	ok, msg := w.TestConnection(context.Background())
	assert.True(t, ok, msg)

	w = newTestWebhook(t, map[string]any{}, nil)
	ok, msg = w.TestConnection(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "endpoint_url")
}
