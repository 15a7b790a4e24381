package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"

	"github.com/barmeter-community/barmeter-agent/pkg/agent"
	"github.com/barmeter-community/barmeter-agent/pkg/bargraph"
	"github.com/barmeter-community/barmeter-agent/pkg/log"
)

// BarMeterHttpService exposes a BarMeterAgent over a JSON HTTP API.
type BarMeterHttpService struct {
	agent      agent.BarMeterAgent
	listenAddr string
	server     *http.Server
}

// NewHttpApiServer creates a new HTTP API service.
func NewHttpApiServer(options ...HttpApiServiceOption) *BarMeterHttpService {
	service := &BarMeterHttpService{}

	for _, option := range options {
		option(service)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", service.handleStatus)
	mux.HandleFunc("PUT /api/v1/level", service.handleLevel)
	mux.HandleFunc("PUT /api/v1/brightness", service.handleBrightness)
	mux.HandleFunc("PUT /api/v1/blink", service.handleBlink)
	mux.HandleFunc("PUT /api/v1/warnings/low", service.handleSetLowWarnings)
	mux.HandleFunc("DELETE /api/v1/warnings/low", service.handleClearLowWarnings)
	mux.HandleFunc("PUT /api/v1/warnings/high", service.handleSetHighWarnings)
	mux.HandleFunc("DELETE /api/v1/warnings/high", service.handleClearHighWarnings)
	mux.HandleFunc("PUT /api/v1/noise", service.handleNoise)
	mux.Handle("GET /metrics", promhttp.Handler())

	service.server = &http.Server{Handler: mux}
	return service
}

// Handler returns the service's HTTP handler, mainly for tests.
func (s *BarMeterHttpService) Handler() http.Handler {
	return s.server.Handler
}

func (s *BarMeterHttpService) ServeAsync(ctx context.Context, cancel context.CancelCauseFunc) {
	go func() {
		err := s.Serve(ctx)
		if err != nil {
			log.FromContext(ctx).Error("Failed to start http server",
				zap.Error(err),
				zap.String("cause", err.Cause().Error()),
				zap.Strings("advice", err.Advice()),
			)

			cancel(err.Cause())
		}
	}()
}

func (s *BarMeterHttpService) Serve(ctx context.Context) humane.Error {
	if s.listenAddr == "" {
		return humane.New("no listen address provided",
			"ensure you are passing a valid listen config to the http server",
		)
	}

	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return humane.Wrap(err, "failed to create http listener",
			"ensure the address is not bound by another process",
		)
	}

	log.FromContext(ctx).Info("Starting http server", zap.String("address", s.listenAddr))
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return humane.Wrap(err, "failed to start http server",
			"ensure the address is not bound by another process",
		)
	}

	return nil
}

func (s *BarMeterHttpService) GracefulStop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *BarMeterHttpService) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.agent.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, status)
}

func (s *BarMeterHttpService) handleLevel(w http.ResponseWriter, r *http.Request) {
	var req LevelRequest
	if !readJson(w, r, &req) {
		return
	}

	delta, accepted, err := s.agent.SubmitLevel(r.Context(), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, LevelResponse{Delta: delta, Accepted: accepted})
}

func (s *BarMeterHttpService) handleBrightness(w http.ResponseWriter, r *http.Request) {
	var req BrightnessRequest
	if !readJson(w, r, &req) {
		return
	}

	if err := s.agent.SetBrightness(r.Context(), req.Level); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, struct{}{})
}

func (s *BarMeterHttpService) handleBlink(w http.ResponseWriter, r *http.Request) {
	var req BlinkRequest
	if !readJson(w, r, &req) {
		return
	}

	if err := s.agent.SetBlinkRate(r.Context(), bargraph.BlinkRate(req.Rate)); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, struct{}{})
}

func (s *BarMeterHttpService) handleSetLowWarnings(w http.ResponseWriter, r *http.Request) {
	var req WarningsRequest
	if !readJson(w, r, &req) {
		return
	}

	if err := s.agent.SetLowWarnings(r.Context(), req.Warn, req.Crit); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, struct{}{})
}

func (s *BarMeterHttpService) handleClearLowWarnings(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.ClearLowWarnings(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, struct{}{})
}

func (s *BarMeterHttpService) handleSetHighWarnings(w http.ResponseWriter, r *http.Request) {
	var req WarningsRequest
	if !readJson(w, r, &req) {
		return
	}

	if err := s.agent.SetHighWarnings(r.Context(), req.Warn, req.Crit); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, struct{}{})
}

func (s *BarMeterHttpService) handleClearHighWarnings(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.ClearHighWarnings(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, struct{}{})
}

func (s *BarMeterHttpService) handleNoise(w http.ResponseWriter, r *http.Request) {
	var req NoiseRequest
	if !readJson(w, r, &req) {
		return
	}

	var err error
	if req.Default {
		err = s.agent.SetNoiseDefault(r.Context())
	} else {
		err = s.agent.SetNoise(r.Context(), req.Value)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, struct{}{})
}

func readJson(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJson(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps agent errors onto HTTP statuses: bus failures are gateway
// errors, range and config violations are client errors.
func writeError(w http.ResponseWriter, err error) {
	var writeErr *bargraph.WriteError
	if errors.As(err, &writeErr) {
		writeJson(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	var rangeErr *bargraph.RangeError
	if errors.As(err, &rangeErr) {
		writeJson(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var herr humane.Error
	if errors.As(err, &herr) {
		writeJson(w, http.StatusBadRequest, ErrorResponse{Error: herr.Error(), Advice: herr.Advice()})
		return
	}

	writeJson(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
