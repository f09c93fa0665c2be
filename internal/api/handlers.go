package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/incident"
	"github.com/BATSNet/sims-sub000/internal/logging"
	"github.com/BATSNet/sims-sub000/internal/uplink"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// codeSeq numbers incidents created by this process. The code is a
// human-readable handle, not a primary key; the uuid ID is.
var codeSeq atomic.Uint64

func nextIncidentCode() string {
	return fmt.Sprintf("INC-%d-%04d", time.Now().UTC().Year(), codeSeq.Add(1))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": r.version})
}

func (r *Router) handlePlugins(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": r.registry.Types()})
}

// deliveryResponse is returned to the reporter after a dispatch so the
// confirmation can state how many channels succeeded.
type deliveryResponse struct {
	Incident  *incident.Incident `json:"incident"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Records   []*delivery.Record `json:"records"`
}

// handleUplink ingests a binary device payload, transcribes attached audio
// when possible, and dispatches the resulting incident.
func (r *Router) handleUplink(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, requestID := logging.WithRequestID(req.Context(), req.Header.Get("X-Request-ID"))

	body, err := io.ReadAll(io.LimitReader(req.Body, maxUplinkBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	draft, err := uplink.Decode(body)
	if err != nil {
		var truncated *uplink.TruncatedFieldError
		switch {
		case errors.Is(err, uplink.ErrPayloadTooShort), errors.Is(err, uplink.ErrVersionMismatch), errors.As(err, &truncated):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	log.Info().
		Str("request_id", requestID).
		Str("device", draft.DeviceID).
		Str("priority", string(draft.Priority)).
		Bool("audio", len(draft.Audio) > 0).
		Bool("image", len(draft.Image) > 0).
		Msg("Uplink payload decoded")

	uplink.ApplyTranscript(ctx, r.transcriber, draft)

	org, err := r.resolveOrg(req.URL.Query().Get("org"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc := draft.Incident(uuid.NewString(), nextIncidentCode())
	r.dispatch(w, req, inc, org)
}

// incidentRequest is the JSON submission body for pre-normalized incidents.
type incidentRequest struct {
	OrganizationID string            `json:"organizationId"`
	Incident       incident.Incident `json:"incident"`
}

func (r *Router) handleIncident(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var in incidentRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	org, err := r.resolveOrg(in.OrganizationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inc := in.Incident
	if !inc.Priority.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown priority %q", inc.Priority))
		return
	}
	inc.Category = incident.NormalizeCategory(inc.Category)
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.Code == "" {
		inc.Code = nextIncidentCode()
	}
	if inc.Status == "" {
		inc.Status = incident.StatusOpen
	}
	now := time.Now().UTC()
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = now
	}
	inc.UpdatedAt = now

	r.dispatch(w, req, &inc, org)
}

// dispatch fans the incident out and writes the summary response. 202 is
// deliberate: delivery outcomes are per-integration, not a property of the
// HTTP exchange.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request, inc *incident.Incident, org *incident.Organization) {
	records, err := r.orchestrator.DeliverIncident(req.Context(), inc, org)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	succeeded, failed := delivery.Summarize(records)
	writeJSON(w, http.StatusAccepted, deliveryResponse{
		Incident:  inc,
		Succeeded: succeeded,
		Failed:    failed,
		Records:   records,
	})
}

// resolveOrg maps an organization id to its configuration. An empty id is
// accepted when exactly one organization is configured.
func (r *Router) resolveOrg(id string) (*incident.Organization, error) {
	if id == "" {
		orgs := r.source.Organizations()
		if len(orgs) == 1 {
			return &orgs[0], nil
		}
		return nil, errors.New("organization id is required")
	}
	return r.source.OrganizationByID(id)
}

// testIntegrationRequest probes an integration configuration before it is
// saved. Credentials travel in the body and are never persisted here.
type testIntegrationRequest struct {
	Type        string            `json:"type"`
	Config      map[string]any    `json:"config"`
	Credentials map[string]string `json:"credentials"`
}

func (r *Router) handleTestIntegration(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var in testIntegrationRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	plugin := r.registry.Get(in.Type, in.Config, in.Credentials)
	if plugin == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown integration type %q", in.Type))
		return
	}
	ok, msg := plugin.TestConnection(req.Context())
	writeJSON(w, http.StatusOK, map[string]any{"reachable": ok, "message": msg})
}

func (r *Router) handleDeliveries(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	incidentID := req.URL.Query().Get("incident")
	if incidentID == "" {
		writeError(w, http.StatusBadRequest, "incident query parameter is required")
		return
	}
	if r.store == nil {
		writeJSON(w, http.StatusOK, []*delivery.Record{})
		return
	}
	records, err := r.store.ByIncident(req.Context(), incidentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (r *Router) handleRecentDeliveries(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.orchestrator.History())
}
