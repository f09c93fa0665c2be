package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/BATSNet/sims-sub000/internal/sedap"
)

// sedapCounters is shared by every SEDAP plugin instance so message numbering
// stays monotonic per message kind across all integrations in the process.
var sedapCounters = &sedap.Counters{}

// Sedap delivers incidents to a battle management system as a CONTACT plus
// TEXT message pair over HTTP.
type Sedap struct {
	endpointURL string
	codec       *sedap.Codec
	timeout     time.Duration

	classification string
}

// sedapEnvelope is the JSON body the BMS gateway accepts.
type sedapEnvelope struct {
	Messages []sedapMessage `json:"messages"`
}

type sedapMessage struct {
	Message string `json:"message"`
}

// NewSedap builds the SEDAP transport plugin.
func NewSedap(cfg map[string]any, _ map[string]string) (delivery.Plugin, error) {
	classification := cfgString(cfg, "classification")
	if classification == "" {
		classification = "U"
	}
	return &Sedap{
		endpointURL:    cfgString(cfg, "endpoint_url"),
		codec:          sedap.NewCodec(cfgString(cfg, "sender_id"), classification, sedapCounters),
		timeout:        timeout(cfg),
		classification: classification,
	}, nil
}

// ValidateConfig checks the endpoint URL and classification marking.
func (s *Sedap) ValidateConfig() error {
	if s.endpointURL == "" {
		return fmt.Errorf("endpoint_url is required")
	}
	u, err := url.Parse(s.endpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("endpoint_url must be an http or https URL")
	}
	if !sedap.ValidClassification(s.classification) {
		return fmt.Errorf("classification must be one of %s, got %q", sedap.ValidClassifications, s.classification)
	}
	return nil
}

// Send composes the CONTACT and TEXT messages and posts them. The payload
// template is ignored: the wire format is fixed by the protocol.
func (s *Sedap) Send(ctx context.Context, inc *incident.Incident, org *incident.Organization, _ string) delivery.Result {
	start := time.Now()

	contact := s.codec.FormatContact(sedap.ContactIncident{
		Code:          inc.Code,
		Title:         inc.Title,
		Description:   inc.Description,
		Category:      inc.Category,
		Priority:      string(inc.Priority),
		ReporterPhone: inc.ReporterPhone,
		Latitude:      inc.Latitude,
		Longitude:     inc.Longitude,
		Altitude:      inc.Altitude,
		Heading:       inc.Heading,
		Transcript:    inc.Transcript,
		CreatedAt:     inc.CreatedAt,
	}, inc.Image)

	text := s.codec.FormatText(
		fmt.Sprintf("%s incident %s reported for %s: %s", inc.Priority, inc.Code, org.ShortName, inc.Title),
		textTypeFor(inc.Priority),
	)

	payload, err := json.Marshal(sedapEnvelope{Messages: []sedapMessage{{Message: contact}, {Message: text}}})
	if err != nil {
		return delivery.Failure(delivery.NewError(delivery.ErrorTypeProtocol, "marshal_payload", "", err), time.Since(start))
	}

	res := doRequest(ctx, "sedap", http.MethodPost, s.endpointURL, "application/json", payload, nil, s.timeout)
	result := delivery.Result{
		Success:        res.err == nil,
		StatusCode:     res.statusCode,
		ResponseBody:   res.body,
		Duration:       time.Since(start),
		RequestURL:     s.endpointURL,
		RequestPayload: string(payload),
	}
	if res.err != nil {
		result.ErrorMessage = res.err.Error()
		result.TimedOut = res.err.Type == delivery.ErrorTypeTimeout
		result.Retryable = res.err.Retryable()
	}
	return result
}

// TestConnection probes the BMS gateway endpoint.
func (s *Sedap) TestConnection(ctx context.Context) (bool, string) {
	if err := s.ValidateConfig(); err != nil {
		return false, err.Error()
	}
	return reachable(ctx, s.endpointURL)
}

func textTypeFor(p incident.Priority) sedap.TextType {
	switch p {
	case incident.PriorityCritical:
		return sedap.TextAlert
	case incident.PriorityHigh:
		return sedap.TextWarning
	}
	return sedap.TextNotice
}
