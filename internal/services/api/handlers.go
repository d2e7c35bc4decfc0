package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/NordCoder/netwatch/internal/services/prober"
	"github.com/NordCoder/netwatch/internal/services/scheduler"
	"go.uber.org/zap"
)

type statusResponse struct {
	Endpoints []*endpoint.Endpoint `json:"endpoints"`
	Total     int                  `json:"total"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := endpoint.Filter{Group: q.Get("group"), Status: probe.Status(q.Get("status"))}
	if f.Status != "" && !f.Status.Valid() {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("unknown status %q", f.Status))
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("limit: %w", err))
			return
		}
		f.Limit = n
	}
	f.ActiveOnly = q.Get("active") == "true"

	eps, err := s.Endpoints.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if eps == nil {
		eps = []*endpoint.Endpoint{}
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Endpoints: eps, Total: len(eps)})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, http.StatusBadRequest, errors.New("endpoint id must be a positive integer"))
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 || limit > 1000 {
			s.writeError(w, r, http.StatusBadRequest, errors.New("limit must be within 1..1000"))
			return
		}
	}
	entries, err := s.Logs.ListByEndpoint(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Scheduler.Status())
}

func (s *Server) handleSchedulerAction(w http.ResponseWriter, r *http.Request) {
	var err error
	switch action := r.PathValue("action"); action {
	case "start":
		err = s.Scheduler.Start(r.Context())
	case "stop":
		s.Scheduler.Stop()
	case "restart":
		err = s.Scheduler.Restart(r.Context())
	default:
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown scheduler action %q", action))
		return
	}
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrStartFailed) {
			code = http.StatusServiceUnavailable
		}
		s.writeError(w, r, code, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Scheduler.Status())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cur, err := s.Settings.GetCurrent(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cur)
}

type settingsResponse struct {
	Settings  probe.Settings   `json:"settings"`
	Scheduler scheduler.Status `json:"scheduler"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in probe.Settings
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := validateStruct(in); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.applySettings(r.Context(), in); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settingsResponse{Settings: in, Scheduler: s.Scheduler.Status()})
}

type optimizeResponse struct {
	Endpoints      int                  `json:"endpoints"`
	Recommendation probe.Recommendation `json:"recommendation"`
	Settings       probe.Settings       `json:"settings"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	n, err := s.Endpoints.CountActive(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	cur, err := s.Settings.GetCurrent(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	rec := prober.Recommend(n)
	next := cur.WithRecommendation(rec)
	if err := s.applySettings(r.Context(), next); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.logger().Info("settings optimized",
		zap.Int("endpoints", n),
		zap.Int("max_concurrency", rec.MaxConcurrency),
		zap.Int("batch_size", rec.BatchSize),
	)
	s.writeJSON(w, http.StatusOK, optimizeResponse{Endpoints: n, Recommendation: rec, Settings: next})
}

// applySettings persists s and restarts a running scheduler so the new
// interval takes effect.
func (s *Server) applySettings(ctx context.Context, next probe.Settings) error {
	if err := s.Settings.Save(ctx, next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if s.Scheduler.Status().State != scheduler.StateRunning {
		return nil
	}
	if err := s.Scheduler.Restart(ctx); err != nil {
		return fmt.Errorf("restart scheduler: %w", err)
	}
	return nil
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || n < 0 {
		s.writeError(w, r, http.StatusBadRequest, errors.New("count must be a non-negative integer"))
		return
	}
	s.writeJSON(w, http.StatusOK, prober.Recommend(n))
}

type probeRequest struct {
	Addresses []string `json:"addresses" validate:"required,min=1,max=1000"`
}

type probeResponse struct {
	Results []probe.Result `json:"results"`
	Up      int            `json:"up"`
	Down    int            `json:"down"`
	Error   int            `json:"error"`
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var in probeRequest
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := validateStruct(in); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	for _, a := range in.Addresses {
		if !prober.ValidAddress(a) {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid address %q", a))
			return
		}
	}

	cur, err := s.Settings.GetCurrent(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	results := s.Prober.RunOnce(r.Context(), in.Addresses, cur, nil)

	out := probeResponse{Results: results}
	for _, res := range results {
		switch res.Status {
		case probe.StatusUp:
			out.Up++
		case probe.StatusDown:
			out.Down++
		default:
			out.Error++
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}
