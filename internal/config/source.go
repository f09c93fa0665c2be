package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/BATSNet/sims-sub000/internal/integration"
)

// DeliveryPersister receives last-delivery updates for durable storage.
type DeliveryPersister interface {
	UpdateDelivery(ctx context.Context, integrationID string, at time.Time, status delivery.Status) error
}

// Source adapts the loaded configuration to the orchestrator's
// IntegrationSource. It is safe for concurrent use and can be swapped to a
// new Config on hot reload.
type Source struct {
	mu        sync.RWMutex
	cfg       *Config
	persister DeliveryPersister

	// last-delivery bookkeeping per integration id
	lastAt     map[string]time.Time
	lastStatus map[string]delivery.Status
}

// NewSource wraps a configuration. persister may be nil.
func NewSource(cfg *Config, persister DeliveryPersister) *Source {
	return &Source{
		cfg:        cfg,
		persister:  persister,
		lastAt:     make(map[string]time.Time),
		lastStatus: make(map[string]delivery.Status),
	}
}

// Reload swaps in a new configuration, keeping delivery bookkeeping.
func (s *Source) Reload(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// ActiveIntegrations returns the active integrations configured for the
// organization, with last-delivery fields filled in.
func (s *Source) ActiveIntegrations(_ context.Context, organizationID string) ([]integration.OrgIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []integration.OrgIntegration
	for _, integ := range s.cfg.Integrations {
		if !integ.Active || integ.OrganizationID != organizationID {
			continue
		}
		if at, ok := s.lastAt[integ.ID]; ok {
			t := at
			integ.LastDeliveryAt = &t
			integ.LastDeliveryStatus = string(s.lastStatus[integ.ID])
		}
		out = append(out, integ)
	}
	return out, nil
}

// TemplateByID resolves a template by id.
func (s *Source) TemplateByID(_ context.Context, templateID string) (*integration.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.cfg.Templates {
		if s.cfg.Templates[i].ID == templateID {
			t := s.cfg.Templates[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("template %q not found", templateID)
}

// UpdateDelivery records the outcome of the latest attempt for an
// integration and forwards it to the persister when one is configured.
func (s *Source) UpdateDelivery(ctx context.Context, integrationID string, at time.Time, status delivery.Status) error {
	s.mu.Lock()
	s.lastAt[integrationID] = at
	s.lastStatus[integrationID] = status
	persister := s.persister
	s.mu.Unlock()

	if persister != nil {
		return persister.UpdateDelivery(ctx, integrationID, at, status)
	}
	return nil
}

// OrganizationByID resolves an organization from the configuration.
func (s *Source) OrganizationByID(id string) (*incident.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.cfg.Organizations {
		if s.cfg.Organizations[i].ID == id {
			org := s.cfg.Organizations[i]
			return &org, nil
		}
	}
	return nil, fmt.Errorf("organization %q not found", id)
}

// Organizations returns all configured organizations.
func (s *Source) Organizations() []incident.Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]incident.Organization, len(s.cfg.Organizations))
	copy(out, s.cfg.Organizations)
	return out
}
