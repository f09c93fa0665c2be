// Package api exposes the inbound HTTP surface: binary device uplinks,
// normalized incident submissions, and the delivery audit endpoints.
package api

import (
	"net/http"

	"github.com/BATSNet/sims-sub000/internal/config"
	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/store"
	"github.com/BATSNet/sims-sub000/internal/uplink"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxUplinkBody bounds a single uplink payload. Devices send at most a few
// hundred KB of audio; anything larger is a misbehaving client.
const maxUplinkBody = 4 << 20

// Router wires the HTTP handlers to the delivery engine.
type Router struct {
	mux          *http.ServeMux
	source       *config.Source
	orchestrator *delivery.Orchestrator
	registry     *delivery.Registry
	store        *store.Store
	transcriber  uplink.Transcriber
	version      string
}

// NewRouter builds the HTTP surface. transcriber and store may be nil.
func NewRouter(source *config.Source, orch *delivery.Orchestrator, registry *delivery.Registry, st *store.Store, transcriber uplink.Transcriber, version string) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		source:       source,
		orchestrator: orch,
		registry:     registry,
		store:        st,
		transcriber:  transcriber,
		version:      version,
	}
	r.routes()
	return r
}

func (r *Router) routes() {
	r.mux.HandleFunc("/api/health", r.handleHealth)
	r.mux.HandleFunc("/api/version", r.handleVersion)
	r.mux.HandleFunc("/api/plugins", r.handlePlugins)
	r.mux.HandleFunc("/api/uplink", r.handleUplink)
	r.mux.HandleFunc("/api/incidents", r.handleIncident)
	r.mux.HandleFunc("/api/integrations/test", r.handleTestIntegration)
	r.mux.HandleFunc("/api/deliveries", r.handleDeliveries)
	r.mux.HandleFunc("/api/deliveries/recent", r.handleRecentDeliveries)
	r.mux.Handle("/metrics", promhttp.Handler())
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
