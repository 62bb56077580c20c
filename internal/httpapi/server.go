package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hadir-sekolah/presensi/internal/capture"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
	"github.com/hadir-sekolah/presensi/internal/presensi/service"
	"github.com/hadir-sekolah/presensi/internal/presensi/types"
)

// Request headers. The subject header stands in for an authenticated
// session.
const (
	HeaderSubjectID = "X-Subject-ID"
	HeaderAttemptID = "X-Attempt-ID"
)

type Dependencies struct {
	Logger     logsvc.Logger
	Addr       string
	Attendance *service.AttendanceService
	Settings   *service.SettingsService
	// AdminToken is required as a bearer token on PUT /v1/settings.
	// Empty disables settings updates.
	AdminToken string
	// Registry receives the server's metrics. Nil creates a private one.
	Registry *prometheus.Registry
}

type Server struct {
	httpServer *http.Server
	logger     logsvc.Logger
	attendance *service.AttendanceService
	settings   *service.SettingsService
	adminToken string
	metrics    *metrics
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = logsvc.Discard()
	}
	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		logger:     d.Logger,
		attendance: d.Attendance,
		settings:   d.Settings,
		adminToken: d.AdminToken,
		metrics:    newMetrics(reg),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/attendance", s.handleSubmit)
		r.Get("/attendance/today", s.handleToday)
		r.Get("/settings", s.handleGetSettings)
		r.With(s.requireAdmin).Put("/settings", s.handlePutSettings)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if isProtobuf(r) {
		st, err := readStruct(r)
		if err != nil {
			s.metrics.submission("invalid")
			s.respondError(w, r, http.StatusBadRequest, "bad_body", "invalid protobuf body", nil)
			return
		}
		req = submitRequestFromStruct(st)
	} else if err := decodeJSON(r, &req); err != nil {
		s.metrics.submission("invalid")
		s.respondError(w, r, http.StatusBadRequest, "bad_json", "invalid JSON body", nil)
		return
	}

	resp, err := s.attendance.Submit(r.Context(), r.Header.Get(HeaderSubjectID), r.Header.Get(HeaderAttemptID), req)
	if err != nil {
		s.writeSubmitError(w, r, req.Mode, err)
		return
	}

	if resp.Duplicate {
		s.metrics.submission("duplicate")
	} else {
		s.metrics.submission("accepted")
	}
	s.respond(w, r, http.StatusOK, resp)
}

func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, mode string, err error) {
	var fe types.FieldErrors
	msg := service.RejectionMessage(mode, err, time.Now())

	switch {
	case errors.Is(err, service.ErrInvalidSubject):
		s.metrics.submission("unknown_subject")
		s.respondError(w, r, http.StatusUnauthorized, "missing_subject", "no subject on this session", nil)
	case errors.Is(err, service.ErrUnknownSubject):
		s.metrics.submission("unknown_subject")
		s.respondError(w, r, http.StatusForbidden, "unknown_subject", "subject is not allowed to record attendance", nil)
	case errors.As(err, &fe):
		s.metrics.submission("invalid")
		s.respondError(w, r, http.StatusBadRequest, "invalid_request", firstFieldError(fe), fe)
	case errors.Is(err, service.ErrNoCheckIn):
		s.metrics.submission("conflict")
		s.respondError(w, r, http.StatusConflict, "no_check_in", msg, nil)
	case errors.Is(err, capture.ErrOutsideWindow):
		s.metrics.submission("rejected_window")
		s.respondError(w, r, http.StatusUnprocessableEntity, "outside_window", msg, nil)
	case errors.Is(err, capture.ErrOutsideGeofence):
		s.metrics.submission("rejected_geofence")
		s.respondError(w, r, http.StatusUnprocessableEntity, "outside_geofence", msg, nil)
	default:
		s.metrics.submission("error")
		s.logger.Errorf("attendance submit error: %v", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
	}
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	resp, err := s.attendance.Today(r.Context(), r.Header.Get(HeaderSubjectID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSubject):
			s.respondError(w, r, http.StatusUnauthorized, "missing_subject", "no subject on this session", nil)
		case errors.Is(err, service.ErrUnknownSubject):
			s.respondError(w, r, http.StatusForbidden, "unknown_subject", "subject is not allowed to record attendance", nil)
		default:
			s.logger.Errorf("attendance today error: %v", err)
			s.respondError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}
		return
	}
	s.respond(w, r, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	kv, err := s.settings.Get(r.Context())
	if err != nil {
		s.logger.Errorf("settings get error: %v", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		return
	}
	s.respond(w, r, http.StatusOK, kv)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var kv map[string]string
	if err := decodeJSON(r, &kv); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "bad_json", "body must be a JSON object of strings", nil)
		return
	}

	updated, err := s.settings.Put(r.Context(), kv)
	if err != nil {
		var fe types.FieldErrors
		if errors.As(err, &fe) {
			s.respondError(w, r, http.StatusBadRequest, "invalid_settings", firstFieldError(fe), fe)
			return
		}
		s.logger.Errorf("settings put error: %v", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		return
	}
	s.logger.Infof("settings updated keys=%d", len(kv))
	s.respond(w, r, http.StatusOK, updated)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeError(w, http.StatusForbidden, "settings_read_only", "settings updates are disabled")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// respond writes v as protobuf when the client sent or asked for protobuf,
// and as JSON otherwise.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsProtobuf(r) {
		writeJSON(w, status, v)
		return
	}
	st, err := toStruct(v)
	if err != nil {
		s.logger.Errorf("encode protobuf response: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeProto(w, status, st)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, msg string, fields map[string]string) {
	s.respond(w, r, status, types.ErrorResponse{Code: code, Message: msg, Errors: fields})
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// firstFieldError picks a stable headline for a set of field errors.
func firstFieldError(fe map[string]string) string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "invalid request"
	}
	sort.Strings(keys)
	return fe[keys[0]]
}
