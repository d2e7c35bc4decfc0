package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/NordCoder/netwatch/internal/domain/pinglog"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/NordCoder/netwatch/internal/domain/settings"
	"github.com/NordCoder/netwatch/internal/services/scheduler"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type EndpointReader interface {
	List(ctx context.Context, f endpoint.Filter) ([]*endpoint.Endpoint, error)
	CountActive(ctx context.Context) (int, error)
}

type LogReader interface {
	ListByEndpoint(ctx context.Context, endpointID int64, limit int) ([]*pinglog.Entry, error)
}

type Scheduler interface {
	Start(ctx context.Context) error
	Stop()
	Restart(ctx context.Context) error
	Status() scheduler.Status
}

type AdHocProber interface {
	RunOnce(ctx context.Context, addresses []string, settings probe.Settings, onProgress probe.ProgressFunc) []probe.Result
}

// Server exposes the monitor's control surface over HTTP.
type Server struct {
	Endpoints EndpointReader
	Logs      LogReader
	Settings  settings.Repo
	Scheduler Scheduler
	Prober    AdHocProber
	Live      http.Handler // optional websocket endpoint
	Log       *zap.Logger
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/endpoints/{id}/logs", s.handleLogs)
	mux.HandleFunc("GET /api/scheduler", s.handleSchedulerStatus)
	mux.HandleFunc("POST /api/scheduler/{action}", s.handleSchedulerAction)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("POST /api/settings/optimize", s.handleOptimize)
	mux.HandleFunc("GET /api/recommend", s.handleRecommend)
	mux.HandleFunc("POST /api/probe", s.handleProbe)
	if s.Live != nil {
		mux.Handle("GET /ws", s.Live)
	}
	return otelhttp.NewHandler(mux, "control-api",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/ws" }),
	)
}

func NewHTTPServer(addr string, h http.Handler, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       read,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger().Debug("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger().Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, code, errorBody{Error: err.Error()})
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
