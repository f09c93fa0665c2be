// Package incident defines the normalized incident and organization values
// consumed by every delivery plugin. These are produced by the inbound layer
// and treated as read-only by the delivery engine.
package incident

import (
	"fmt"
	"time"
)

// Priority is the normalized incident priority.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// ParsePriority validates a priority string. Unknown values are rejected so
// they never reach the delivery engine.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Valid reports whether p is one of the fixed priority values.
func (p Priority) Valid() bool {
	_, err := ParsePriority(string(p))
	return err == nil
}

// CategoryUnclassified is the fallback for incidents that arrive with no
// category or one outside the fixed set.
const CategoryUnclassified = "unclassified"

var knownCategories = map[string]bool{
	CategoryUnclassified: true,
	"drone_detection":    true,
	"fire":               true,
	"medical":            true,
	"flood":              true,
	"hazmat":             true,
	"security":           true,
	"infrastructure":     true,
	"traffic":            true,
}

// NormalizeCategory maps empty or unknown categories to the unclassified
// fallback so only fixed-set values reach the delivery engine.
func NormalizeCategory(s string) string {
	if knownCategories[s] {
		return s
	}
	return CategoryUnclassified
}

// Status is the normalized incident status.
type Status string

const (
	StatusOpen     Status = "open"
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

// Incident is the immutable normalized incident value handed to the delivery
// engine. Latitude/Longitude/Heading/Altitude are pointers because embedded
// devices and webhook sources may not report a position.
type Incident struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"` // human-readable incident code, e.g. INC-2024-0042
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Priority    Priority       `json:"priority"`
	Status      Status         `json:"status"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Heading     *float64       `json:"heading,omitempty"`
	Altitude    *float64       `json:"altitude,omitempty"`
	ReporterID  string         `json:"reporterId"`
	// ReporterPhone is used as the SEDAP sender when present.
	ReporterPhone string         `json:"reporterPhone,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	AudioURL      string         `json:"audioUrl,omitempty"`
	VideoURL      string         `json:"videoUrl,omitempty"`
	// Image holds raw image bytes when the incident arrived with an inline
	// attachment (device uplink). Plugins that need a URL use ImageURL instead.
	Image      []byte    `json:"-"`
	Transcript string    `json:"transcript,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasPosition reports whether the incident carries a geographic position.
func (i *Incident) HasPosition() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// Organization identifies the receiving organization for a delivery. Read-only
// to the delivery engine.
type Organization struct {
	ID           string `json:"id" mapstructure:"id"`
	Name         string `json:"name" mapstructure:"name"`
	ShortName    string `json:"shortName" mapstructure:"short_name"`
	Type         string `json:"type" mapstructure:"type"` // fire_department, police, bms, ngo, ...
	ContactEmail string `json:"contactEmail,omitempty" mapstructure:"contact_email"`
	ContactPhone string `json:"contactPhone,omitempty" mapstructure:"contact_phone"`
}
