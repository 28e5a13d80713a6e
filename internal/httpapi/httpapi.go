// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpapi is Strom's external HTTP + WebSocket surface (spec §6):
// flow CRUD and lifecycle, element/pad property writes, gst-launch
// parse/export, discovery stream listing, and a /ws event stream. It is a
// thin transport over internal/flowengine, internal/flowstore,
// internal/gstlaunch and internal/discovery; it owns no domain state of
// its own.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/discovery"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/flowengine"
	"github.com/eyevinn/strom/internal/flowstore"
	"github.com/eyevinn/strom/internal/log"
	"github.com/eyevinn/strom/internal/mediaplayer"
	"github.com/eyevinn/strom/internal/mf"
)

// Config controls the router's cross-cutting middleware.
type Config struct {
	// RateLimitRPS is the global per-IP request budget; 0 disables limiting.
	RateLimitRPS int
	// AllowedOrigins is the /ws upgrade origin allowlist; empty allows any
	// origin (development default).
	AllowedOrigins []string
}

// Server wires the flow store, flow engine, block registry, media
// framework factory, discovery service and event broadcaster into the
// handlers spec §6 names.
type Server struct {
	store       *flowstore.Store
	engine      *flowengine.Engine
	registry    *blocks.Registry
	factory     mf.Factory
	discovery   *discovery.Service
	broadcaster *events.Broadcaster
	players     *mediaplayer.Registry
	cfg         Config
	validator   *requestValidator
	upgrader    wsUpgrader
}

// NewServer builds a Server. disc may be nil if discovery is disabled.
func NewServer(store *flowstore.Store, engine *flowengine.Engine, registry *blocks.Registry, factory mf.Factory, disc *discovery.Service, broadcaster *events.Broadcaster, players *mediaplayer.Registry, cfg Config) *Server {
	s := &Server{
		store:       store,
		engine:      engine,
		registry:    registry,
		factory:     factory,
		discovery:   disc,
		broadcaster: broadcaster,
		players:     players,
		cfg:         cfg,
	}
	s.validator = newRequestValidator()
	s.upgrader = newWSUpgrader(cfg.AllowedOrigins)
	return s
}

// Routes builds the full router: public health checks, the flows/gst-launch/
// discovery REST surface, and the /ws event stream.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(log.Middleware())
	r.Use(otelhttp.NewMiddleware("strom-httpapi"))
	if s.cfg.RateLimitRPS > 0 {
		r.Use(rateLimit(s.cfg.RateLimitRPS))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws", s.handleWS)

	r.Route("/api/flows", func(fr chi.Router) {
		fr.Get("/", s.handleListFlows)
		fr.Post("/", s.validateBody("createFlow", s.handleCreateFlow))
		fr.Route("/{flowID}", func(fr chi.Router) {
			fr.Get("/", s.handleGetFlow)
			fr.Put("/", s.validateBody("updateFlow", s.handleUpdateFlow))
			fr.Delete("/", s.handleDeleteFlow)
			fr.Post("/start", s.handleStartFlow)
			fr.Post("/stop", s.handleStopFlow)
			fr.Post("/restart", s.handleRestartFlow)
			fr.Route("/elements/{elementID}", func(er chi.Router) {
				er.Post("/properties", s.validateBody("setElementProperty", s.handleSetElementProperty))
				er.Route("/pads/{pad}", func(pr chi.Router) {
					pr.Post("/properties", s.validateBody("setPadProperty", s.handleSetPadProperty))
				})
			})
			fr.Route("/blocks/{blockID}/player", func(br chi.Router) {
				br.Get("/", s.handlePlayerState)
				br.Post("/play", s.handlePlayerPlay)
				br.Post("/pause", s.handlePlayerPause)
				br.Post("/next", s.handlePlayerNext)
				br.Post("/previous", s.handlePlayerPrevious)
				br.Post("/goto", s.validateBody("playerGoto", s.handlePlayerGoto))
				br.Post("/seek", s.validateBody("playerSeek", s.handlePlayerSeek))
			})
		})
	})

	r.Route("/api/gst-launch", func(gr chi.Router) {
		gr.Post("/parse", s.validateBody("gstLaunchParse", s.handleGstLaunchParse))
		gr.Post("/export", s.validateBody("gstLaunchExport", s.handleGstLaunchExport))
	})

	r.Route("/api/discovery/streams", func(dr chi.Router) {
		dr.Get("/", s.handleListDiscoveredStreams)
		dr.Get("/{streamID}/sdp", s.handleStreamSDP)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
