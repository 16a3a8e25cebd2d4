// Package server exposes flag evaluation over HTTP: a health check,
// the raw configuration for relay consumers, a per-flag evaluation
// endpoint, and an admin refresh hook.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	charmlog "github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/unbound-force/flaglens/internal/evaluate"
	"github.com/unbound-force/flaglens/internal/flagconf"
)

// Options configures a Server.
type Options struct {
	// APIKey protects every route except /health when set.
	APIKey string

	// Refresh forces the configuration source to re-fetch. Nil
	// disables POST /v1/admin/refresh.
	Refresh func(ctx context.Context) error

	// Logger receives request-level diagnostics. Nil silences them.
	Logger *charmlog.Logger
}

// Server evaluates flags over HTTP.
type Server struct {
	client  *evaluate.Client
	events  *eventLog
	refresh func(ctx context.Context) error
	apiKey  string
	logger  *charmlog.Logger

	mu    sync.RWMutex
	flags flagconf.FlagSet
}

// New builds a Server around an initial configuration.
func New(flags flagconf.FlagSet, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	return &Server{
		client:  evaluate.New(flags),
		events:  newEventLog(defaultEventCap),
		refresh: opts.Refresh,
		apiKey:  opts.APIKey,
		logger:  logger,
		flags:   flags,
	}
}

// SetFlags swaps the configuration, typically from a poller.
func (s *Server) SetFlags(flags flagconf.FlagSet) {
	s.mu.Lock()
	s.flags = flags
	s.mu.Unlock()
	s.client.SetFlags(flags)
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/v1/flags/raw", s.rawFlagsHandler).Methods("GET")
	r.HandleFunc("/v1/flags/{key}/eval", s.evalHandler).Methods("POST")
	r.HandleFunc("/v1/events", s.eventsHandler).Methods("GET")
	r.HandleFunc("/v1/admin/refresh", s.refreshHandler).Methods("POST")

	return corsMiddleware(s.authMiddleware(r))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"initialized": true})
}

func (s *Server) rawFlagsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	flags := s.flags
	s.mu.RUnlock()

	data, err := flags.Encode(flagconf.FormatJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// evalRequest is the body of POST /v1/flags/{key}/eval.
type evalRequest struct {
	TargetingKey string         `json:"targetingKey"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// evalResponse mirrors evaluate.Detail plus the resolved value.
type evalResponse struct {
	Key       string          `json:"key"`
	Value     any             `json:"value"`
	Variant   string          `json:"variant,omitempty"`
	Reason    evaluate.Reason `json:"reason"`
	ErrorCode string          `json:"errorCode,omitempty"`
}

func (s *Server) evalHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := flagconf.ValidateKey(key); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req evalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	evalCtx := evaluate.NewContext(req.TargetingKey)
	for k, v := range req.Attributes {
		evalCtx = evalCtx.WithAttribute(k, v)
	}

	value, detail := s.client.RawValueDetails(key, evalCtx)

	status := http.StatusOK
	if detail.ErrorCode == evaluate.CodeFlagNotFound {
		status = http.StatusNotFound
	}

	if detail.TrackEvents && detail.Err == nil {
		ev := s.events.record(key, req.TargetingKey, detail.Variant, value)
		s.logger.Debug("evaluation", "id", ev.ID, "key", key, "variant", detail.Variant)
	}

	writeJSON(w, status, evalResponse{
		Key:       key,
		Value:     value,
		Variant:   detail.Variant,
		Reason:    detail.Reason,
		ErrorCode: string(detail.ErrorCode),
	})
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.events.list()})
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		http.Error(w, "No configuration source to refresh", http.StatusNotImplemented)
		return
	}
	if err := s.refresh(r.Context()); err != nil {
		s.logger.Error("refresh failed", "err", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			const prefix = "Bearer "
			if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) {
				key = auth[len(prefix):]
			}
		}
		if key != s.apiKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
