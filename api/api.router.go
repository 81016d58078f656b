package api

import (
	"net/http"
	"os"

	"github.com/factoriot/hub/api/middleware"
	"github.com/factoriot/hub/api/resources"
	"github.com/factoriot/hub/internal/aggregator"
	"github.com/factoriot/hub/internal/service"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"
)

type Router struct {
	router    *mux.Router
	resources *resources.Resources
}

func NewRouter(svc *service.Service, agg *aggregator.Aggregator, publisher resources.DevicePublisher) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		resources: resources.NewResources(svc, agg, publisher),
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.router.Use(middleware.RequestID)

	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.handleHealth).Methods(http.MethodGet)

	// Devices
	devices := api.PathPrefix("/devices").Subrouter()
	devices.HandleFunc("/{deviceId}/history", r.resources.Devices.GetHistory).Methods(http.MethodGet)
	devices.HandleFunc("/{deviceId}/statistics", r.resources.Devices.GetStatistics).Methods(http.MethodGet)
	devices.HandleFunc("/{deviceId}/trend", r.resources.Devices.GetTrend).Methods(http.MethodGet)
	devices.HandleFunc("/{deviceId}/publish", r.resources.Devices.PublishData).Methods(http.MethodPost)
	devices.HandleFunc("/{deviceId}/status", r.resources.Devices.PublishStatus).Methods(http.MethodPost)

	// Aggregation
	api.HandleFunc("/aggregation/run", r.resources.Aggregation.RunCycle).Methods(http.MethodPost)
}

// handleHealth is a simple liveness probe
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","version":"` + nuts.GetVersion() + `"}`))
}

// Handler returns the router wrapped with CORS and request logging.
func (r *Router) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
	)
	return handlers.CombinedLoggingHandler(os.Stdout, cors(r.router))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
