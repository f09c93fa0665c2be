package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the lifecycle state of one delivery attempt. A record is created
// pending and transitions exactly once to a terminal state; retries append a
// new record rather than overwrite.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusTimeout  Status = "timeout"
	StatusRetrying Status = "retrying"
)

// Terminal reports whether the status ends the attempt's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusTimeout
}

// maxResponseBody bounds the stored response-body snapshot.
const maxResponseBody = 4096

// Record is one row of the append-only delivery audit trail. The integration
// type and name are snapshotted so history survives config changes and
// integration deletion.
type Record struct {
	ID              string            `json:"id"`
	IncidentID      string            `json:"incidentId"`
	OrganizationID  string            `json:"organizationId"`
	IntegrationID   string            `json:"integrationId,omitempty"` // empty if the integration was deleted
	IntegrationType string            `json:"integrationType"`
	IntegrationName string            `json:"integrationName"`
	Status          Status            `json:"status"`
	Attempt         int               `json:"attempt"`
	RequestURL      string            `json:"requestUrl,omitempty"`
	RequestPayload  string            `json:"requestPayload,omitempty"`
	ResponseCode    int               `json:"responseCode,omitempty"`
	ResponseBody    string            `json:"responseBody,omitempty"`
	ErrorMessage    string            `json:"errorMessage,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	DurationMS      int64             `json:"durationMs"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// newRecord creates a pending record for one attempt. ULIDs keep the audit
// trail lexically sortable by creation time.
func newRecord(incidentID, orgID string, integrationID, integrationType, integrationName string, attempt int) *Record {
	return &Record{
		ID:              ulid.Make().String(),
		IncidentID:      incidentID,
		OrganizationID:  orgID,
		IntegrationID:   integrationID,
		IntegrationType: integrationType,
		IntegrationName: integrationName,
		Status:          StatusPending,
		Attempt:         attempt,
		StartedAt:       time.Now().UTC(),
	}
}

// complete applies a plugin result, moving the record to its terminal state.
func (r *Record) complete(res Result) {
	switch {
	case res.Success:
		r.Status = StatusSuccess
	case res.TimedOut:
		r.Status = StatusTimeout
	default:
		r.Status = StatusFailed
	}
	r.RequestURL = res.RequestURL
	r.RequestPayload = res.RequestPayload
	r.ResponseCode = res.StatusCode
	r.ResponseBody = truncate(res.ResponseBody, maxResponseBody)
	r.ErrorMessage = res.ErrorMessage
	r.DurationMS = res.Duration.Milliseconds()
	now := time.Now().UTC()
	r.CompletedAt = &now
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RecordStore is the append-only audit trail collaborator. Concrete storage
// lives outside the engine; MemoryStore is the in-process default.
type RecordStore interface {
	Append(ctx context.Context, record *Record) error
}

// MemoryStore keeps records in memory. It backs tests and deployments without
// a database.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStore returns an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of the record.
func (s *MemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records = append(s.records, &cp)
	return nil
}

// Records returns a snapshot of everything appended so far.
func (s *MemoryStore) Records() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}
