package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/BATSNet/sims-sub000/internal/integration"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// IntegrationSource supplies integration configuration for a target
// organization. The incident/organization subsystem owns the data; the engine
// only reads it and writes back last-delivery bookkeeping.
type IntegrationSource interface {
	ActiveIntegrations(ctx context.Context, organizationID string) ([]integration.OrgIntegration, error)
	TemplateByID(ctx context.Context, templateID string) (*integration.Template, error)
	UpdateDelivery(ctx context.Context, integrationID string, at time.Time, status Status) error
}

// historySize bounds the in-memory delivery history kept for debugging.
const historySize = 100

// Orchestrator fans one incident out to every active, matching integration of
// an organization and records one audit row per attempt. Integrations fail
// independently: one misconfigured endpoint never blocks the others.
type Orchestrator struct {
	registry *Registry
	source   IntegrationSource
	store    RecordStore

	// maxConcurrent caps the delivery fan-out for one incident. 1 restores
	// strictly sequential processing.
	maxConcurrent int
	retryBackoff  time.Duration

	histMu  sync.Mutex
	history []*Record
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxConcurrent caps the per-incident fan-out.
func WithMaxConcurrent(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithRetryBackoff overrides the base retry backoff.
func WithRetryBackoff(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.retryBackoff = d }
}

// NewOrchestrator wires the registry, integration source, and record store.
func NewOrchestrator(registry *Registry, source IntegrationSource, store RecordStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:      registry,
		source:        source,
		store:         store,
		maxConcurrent: 4,
		retryBackoff:  time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DeliverIncident dispatches the incident to every active integration of the
// organization whose trigger filters match. It returns every record produced,
// including records for integrations whose plugin could not be resolved, so
// callers can count successes and failures.
func (o *Orchestrator) DeliverIncident(ctx context.Context, inc *incident.Incident, org *incident.Organization) ([]*Record, error) {
	integrations, err := o.source.ActiveIntegrations(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("load integrations for organization %s: %w", org.ID, err)
	}

	log.Info().
		Str("incident", inc.Code).
		Str("organization", org.ID).
		Int("integrations", len(integrations)).
		Msg("Dispatching incident")

	var mu sync.Mutex
	var records []*Record

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrent)
	for _, integ := range integrations {
		g.Go(func() error {
			recs := o.deliverOne(gctx, inc, org, integ)
			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			// Failures are carried in the records; returning an error here
			// would cancel sibling deliveries.
			return nil
		})
	}
	// No goroutine returns an error, but Wait also observes ctx.
	_ = g.Wait()

	o.recordHistory(records)
	return records, nil
}

// deliverOne runs every attempt for a single integration and returns one
// record per attempt.
func (o *Orchestrator) deliverOne(ctx context.Context, inc *incident.Incident, org *incident.Organization, integ integration.OrgIntegration) []*Record {
	tmpl, err := o.source.TemplateByID(ctx, integ.TemplateID)
	if err != nil || tmpl == nil || !tmpl.Active {
		log.Debug().
			Str("integration", integ.Name).
			Str("template", integ.TemplateID).
			Msg("Skipping integration: template missing or inactive")
		return nil
	}

	if !integ.Filters.Matches(inc) {
		log.Debug().
			Str("integration", integ.Name).
			Str("incident", inc.Code).
			Msg("Incident filtered out by integration triggers")
		return nil
	}

	name := integ.Name
	if name == "" {
		name = tmpl.Name
	}

	// Validate config against the template schema and build the plugin once;
	// both failures are terminal and recorded, never retried.
	config, cfgErr := tmpl.ValidateConfig(integ.Config)
	var plugin Plugin
	if cfgErr == nil {
		plugin = o.registry.Get(tmpl.Type, config, integ.Credentials)
	}

	payloadTemplate := tmpl.PayloadTemplate
	if integ.PayloadTemplate != "" {
		payloadTemplate = integ.PayloadTemplate
	}

	maxAttempts := 1
	if tmpl.RetryEnabled && tmpl.RetryAttempts > 0 {
		maxAttempts = tmpl.RetryAttempts + 1
	}

	var records []*Record
	backoff := o.retryBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record := newRecord(inc.ID, org.ID, integ.ID, tmpl.Type, name, attempt)

		var result Result
		switch {
		case cfgErr != nil:
			result = Failure(NewError(ErrorTypeConfiguration, "validate_config", name, cfgErr), 0)
		case plugin == nil:
			result = Failure(NewError(ErrorTypeUnresolved, "resolve_plugin", name,
				fmt.Errorf("%w: %q", ErrUnresolvedPlugin, tmpl.Type)), 0)
		default:
			if validateErr := plugin.ValidateConfig(); validateErr != nil {
				result = Failure(NewError(ErrorTypeConfiguration, "validate_config", name, validateErr), 0)
			} else {
				result = o.send(ctx, plugin, inc, org, payloadTemplate, name)
			}
		}

		record.complete(result)
		o.append(ctx, record)
		GetMetrics().observe(record)
		records = append(records, record)

		if err := o.source.UpdateDelivery(ctx, integ.ID, time.Now().UTC(), record.Status); err != nil {
			log.Warn().Err(err).Str("integration", integ.ID).Msg("Failed to update integration delivery status")
		}

		if record.Status == StatusSuccess || !result.Retryable || attempt == maxAttempts {
			break
		}
		log.Info().
			Str("integration", name).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying delivery after backoff")
		select {
		case <-ctx.Done():
			return records
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
	return records
}

// send invokes the plugin, converting panics into failed results so one
// integration's defect cannot take down the dispatch of the others.
func (o *Orchestrator) send(ctx context.Context, plugin Plugin, inc *incident.Incident, org *incident.Organization, payloadTemplate, name string) (result Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("integration", name).
				Interface("panic", rec).
				Msg("Plugin panicked during send")
			result = Failure(NewError(ErrorTypeTransport, "send", name,
				fmt.Errorf("plugin panicked: %v", rec)), time.Since(start))
			result.Retryable = false
		}
	}()
	return plugin.Send(ctx, inc, org, payloadTemplate)
}

// append persists the record, logging rather than failing on store errors so
// delivery outcomes are never lost to audit problems.
func (o *Orchestrator) append(ctx context.Context, record *Record) {
	if o.store == nil {
		return
	}
	if err := o.store.Append(ctx, record); err != nil {
		log.Error().Err(err).Str("record", record.ID).Msg("Failed to append delivery record")
	}
}

func (o *Orchestrator) recordHistory(records []*Record) {
	o.histMu.Lock()
	defer o.histMu.Unlock()
	o.history = append(o.history, records...)
	if len(o.history) > historySize {
		o.history = o.history[len(o.history)-historySize:]
	}
}

// History returns a copy of the most recent delivery records for debugging.
func (o *Orchestrator) History() []*Record {
	o.histMu.Lock()
	defer o.histMu.Unlock()
	out := make([]*Record, len(o.history))
	copy(out, o.history)
	return out
}

// Summarize counts terminal outcomes for a record set, for confirmation
// messages back to the reporter.
func Summarize(records []*Record) (succeeded, failed int) {
	for _, r := range records {
		if r.Status == StatusSuccess {
			succeeded++
		} else if r.Status.Terminal() {
			failed++
		}
	}
	return succeeded, failed
}
