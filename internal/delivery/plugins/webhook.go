package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/jellydator/ttlcache/v3"
)

// Authentication modes for the webhook plugin.
const (
	authNone         = "none"
	authBearer       = "bearer"
	authAPIKey       = "api_key"
	authCustomHeader = "custom_header"
)

// templateCache holds parsed payload templates keyed by content hash.
// Integrations rarely change their templates, so parsing once per delivery
// would be pure waste on busy organizations.
var templateCache = ttlcache.New[string, *template.Template](
	ttlcache.WithTTL[string, *template.Template](10*time.Minute),
	ttlcache.WithCapacity[string, *template.Template](256),
)

func init() {
	go templateCache.Start()
}

// templateFuncs is the full helper set available to payload templates.
var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	},
	"printf": fmt.Sprintf,
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// Webhook delivers incidents as rendered JSON to an HTTP endpoint.
type Webhook struct {
	endpointURL string
	method      string
	authType    string
	headerName  string // api_key header or custom header name
	secret      string // bearer token, api key value, or custom header value
	timeout     time.Duration
}

// NewWebhook builds the webhook plugin from integration config and
// credentials. It fails fast with a named-field error on malformed config so
// the orchestrator records a configuration failure before any network call.
func NewWebhook(cfg map[string]any, creds map[string]string) (delivery.Plugin, error) {
	w := &Webhook{
		endpointURL: cfgString(cfg, "endpoint_url"),
		method:      strings.ToUpper(cfgString(cfg, "method")),
		authType:    cfgString(cfg, "auth_type"),
		timeout:     timeout(cfg),
	}
	if w.method == "" {
		w.method = http.MethodPost
	}
	if w.authType == "" {
		w.authType = authNone
	}

	switch w.authType {
	case authNone:
	case authBearer:
		w.secret = creds["bearer_token"]
	case authAPIKey:
		w.headerName = cfgString(cfg, "api_key_header")
		if w.headerName == "" {
			w.headerName = "X-API-Key"
		}
		w.secret = creds["api_key"]
	case authCustomHeader:
		w.headerName = cfgString(cfg, "header_name")
		w.secret = creds["header_value"]
	default:
		return nil, fmt.Errorf("unknown auth_type %q", w.authType)
	}
	return w, nil
}

// ValidateConfig checks the endpoint URL, method, and auth material.
func (w *Webhook) ValidateConfig() error {
	if w.endpointURL == "" {
		return fmt.Errorf("endpoint_url is required")
	}
	u, err := url.Parse(w.endpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("endpoint_url must be an http or https URL")
	}
	if w.method != http.MethodPost && w.method != http.MethodPut {
		return fmt.Errorf("method must be POST or PUT, got %s", w.method)
	}
	switch w.authType {
	case authBearer:
		if w.secret == "" {
			return fmt.Errorf("bearer_token credential is required for bearer auth")
		}
	case authAPIKey:
		if w.secret == "" {
			return fmt.Errorf("api_key credential is required for api_key auth")
		}
	case authCustomHeader:
		if w.headerName == "" || w.secret == "" {
			return fmt.Errorf("header_name and header_value are required for custom_header auth")
		}
	}
	return nil
}

// Send renders the payload template and posts the result. Template problems
// (syntax errors, undefined variables, non-JSON output) are configuration
// territory: terminal, never retried.
func (w *Webhook) Send(ctx context.Context, inc *incident.Incident, org *incident.Organization, payloadTemplate string) delivery.Result {
	start := time.Now()

	payload, derr := renderPayload(payloadTemplate, newTemplateData(inc, org))
	if derr != nil {
		return delivery.Failure(derr, time.Since(start))
	}

	res := doRequest(ctx, "webhook", w.method, w.endpointURL, "application/json", payload, w.authHeaders(), w.timeout)
	result := delivery.Result{
		Success:        res.err == nil,
		StatusCode:     res.statusCode,
		ResponseBody:   res.body,
		Duration:       time.Since(start),
		RequestURL:     w.endpointURL,
		RequestPayload: string(payload),
	}
	if res.err != nil {
		result.ErrorMessage = res.err.Error()
		result.TimedOut = res.err.Type == delivery.ErrorTypeTimeout
		result.Retryable = res.err.Retryable()
	}
	return result
}

// TestConnection probes the endpoint without sending a payload.
func (w *Webhook) TestConnection(ctx context.Context) (bool, string) {
	if err := w.ValidateConfig(); err != nil {
		return false, err.Error()
	}
	return reachable(ctx, w.endpointURL)
}

func (w *Webhook) authHeaders() map[string]string {
	switch w.authType {
	case authBearer:
		return map[string]string{"Authorization": "Bearer " + w.secret}
	case authAPIKey, authCustomHeader:
		return map[string]string{w.headerName: w.secret}
	}
	return nil
}

// renderPayload renders the template against the fixed variable set and
// verifies the output is valid JSON. An empty template falls back to the
// generic payload.
func renderPayload(payloadTemplate string, data TemplateData) ([]byte, *delivery.Error) {
	if strings.TrimSpace(payloadTemplate) == "" {
		return genericPayload(data)
	}

	tmpl, err := parseTemplate(payloadTemplate)
	if err != nil {
		return nil, delivery.NewError(delivery.ErrorTypeProtocol, "parse_template", "", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, delivery.NewError(delivery.ErrorTypeProtocol, "render_template", "", err)
	}

	var check any
	if err := json.Unmarshal([]byte(buf.String()), &check); err != nil {
		return nil, delivery.NewError(delivery.ErrorTypeProtocol, "render_template", "",
			fmt.Errorf("template produced invalid JSON: %w", err))
	}
	return []byte(buf.String()), nil
}

func parseTemplate(payloadTemplate string) (*template.Template, error) {
	key := templateKey(payloadTemplate)
	if item := templateCache.Get(key); item != nil {
		return item.Value(), nil
	}
	tmpl, err := template.New("payload").Funcs(templateFuncs).Option("missingkey=error").Parse(payloadTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	templateCache.Set(key, tmpl, ttlcache.DefaultTTL)
	return tmpl, nil
}

func templateKey(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 16)
}

func genericPayload(data TemplateData) ([]byte, *delivery.Error) {
	payload := map[string]any{
		"incident":     data.Incident,
		"organization": data.Organization,
		"timestamp":    data.Timestamp,
		"source":       "sims-delivery",
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, delivery.NewError(delivery.ErrorTypeProtocol, "marshal_payload", "", err)
	}
	return b, nil
}
