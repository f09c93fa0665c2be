// Package integration defines the configuration model for outbound
// integrations: admin-created templates, per-organization instances, and the
// trigger filters that decide which incidents an integration receives.
package integration

import (
	"fmt"
	"slices"
	"time"

	"github.com/BATSNet/sims-sub000/internal/incident"
)

// FieldSpec describes one field of a template's config schema.
type FieldSpec struct {
	Type     string `json:"type" mapstructure:"type"` // string, int, bool, string_list
	Required bool   `json:"required" mapstructure:"required"`
	Default  any    `json:"default,omitempty" mapstructure:"default"`
}

// Template is an admin-created integration template. It is rarely mutated and
// never deleted while an organization integration references it.
type Template struct {
	ID              string               `json:"id" mapstructure:"id" validate:"required"`
	Type            string               `json:"type" mapstructure:"type" validate:"required"` // webhook|sedap|email|mesh|custom|...
	Name            string               `json:"name" mapstructure:"name" validate:"required"`
	ConfigSchema    map[string]FieldSpec `json:"configSchema" mapstructure:"config_schema"`
	PayloadTemplate string               `json:"payloadTemplate,omitempty" mapstructure:"payload_template"`
	AuthType        string               `json:"authType,omitempty" mapstructure:"auth_type"` // none|bearer|api_key|custom_header
	TimeoutSeconds  int                  `json:"timeoutSeconds" mapstructure:"timeout_seconds"`
	RetryEnabled    bool                 `json:"retryEnabled" mapstructure:"retry_enabled"`
	RetryAttempts   int                  `json:"retryAttempts" mapstructure:"retry_attempts"`
	Active          bool                 `json:"active" mapstructure:"active"`
}

// Timeout returns the per-integration timeout, defaulting to 30s.
func (t *Template) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// ValidateConfig checks cfg against the template schema and returns a copy
// with defaults applied. Missing required fields and type mismatches fail with
// a named-field error.
func (t *Template) ValidateConfig(cfg map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	for name, spec := range t.ConfigSchema {
		v, ok := out[name]
		if !ok || v == nil {
			if spec.Default != nil {
				out[name] = spec.Default
				continue
			}
			if spec.Required {
				return nil, fmt.Errorf("config field %q is required for template %s", name, t.Name)
			}
			continue
		}
		if err := checkFieldType(name, spec.Type, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkFieldType(name, typ string, v any) error {
	switch typ {
	case "", "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("config field %q must be a string", name)
		}
	case "int":
		switch v.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("config field %q must be an integer", name)
		}
	case "bool":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("config field %q must be a boolean", name)
		}
	case "string_list":
		switch vv := v.(type) {
		case []string:
		case []any:
			for _, e := range vv {
				if _, ok := e.(string); !ok {
					return fmt.Errorf("config field %q must be a list of strings", name)
				}
			}
		default:
			return fmt.Errorf("config field %q must be a list of strings", name)
		}
	default:
		return fmt.Errorf("config field %q has unknown schema type %q", name, typ)
	}
	return nil
}

// TriggerFilters restricts which incidents fire an integration. Each provided
// key is an allow-list; keys combine as a conjunction, and an integration with
// no filters fires for every incident.
type TriggerFilters struct {
	Priorities []string `json:"priorities,omitempty" mapstructure:"priorities"`
	Categories []string `json:"categories,omitempty" mapstructure:"categories"`
	Statuses   []string `json:"statuses,omitempty" mapstructure:"statuses"`
}

// Matches reports whether the incident passes every provided allow-list.
func (f *TriggerFilters) Matches(inc *incident.Incident) bool {
	if f == nil {
		return true
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, string(inc.Priority)) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, inc.Category) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, string(inc.Status)) {
		return false
	}
	return true
}

// OrgIntegration is one configured instance of a template for one
// organization. It is soft-disabled via Active=false, never hard-deleted while
// delivery history references it.
type OrgIntegration struct {
	ID             string            `json:"id" mapstructure:"id" validate:"required"`
	OrganizationID string            `json:"organizationId" mapstructure:"organization_id" validate:"required"`
	TemplateID     string            `json:"templateId" mapstructure:"template_id" validate:"required"`
	Name           string            `json:"name" mapstructure:"name"`
	Config         map[string]any    `json:"config" mapstructure:"config"`
	Credentials    map[string]string `json:"-" mapstructure:"credentials"`
	// PayloadTemplate overrides the template's payload template when set.
	PayloadTemplate    string          `json:"payloadTemplate,omitempty" mapstructure:"payload_template"`
	Filters            *TriggerFilters `json:"filters,omitempty" mapstructure:"filters"`
	Active             bool            `json:"active" mapstructure:"active"`
	LastDeliveryAt     *time.Time      `json:"lastDeliveryAt,omitempty" mapstructure:"-"`
	LastDeliveryStatus string          `json:"lastDeliveryStatus,omitempty" mapstructure:"-"`
}
