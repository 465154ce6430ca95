// Package api exposes the report service over HTTP JSON.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	apperrors "github.com/louisbranch/carbontrace/internal/platform/errors"
	"github.com/louisbranch/carbontrace/internal/services/report/app"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
)

// Server routes HTTP requests to the report application service.
type Server struct {
	svc     *app.Service
	metrics *Metrics
	logger  *log.Logger
}

// NewServer creates an HTTP server over the given application service.
func NewServer(svc *app.Service) *Server {
	return &Server{
		svc:     svc,
		metrics: NewMetrics(),
		logger:  log.New(log.Writer(), "[REPORT-API] ", log.LstdFlags),
	}
}

// Handler builds the full routed handler with request logging and recovery.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.Handle("/healthz", s.metrics.WrapHandler("healthz", http.HandlerFunc(s.health))).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	r.Handle("/api/users/{userID}/report",
		s.metrics.WrapHandler("report", http.HandlerFunc(s.getReport))).Methods(http.MethodGet)
	r.Handle("/api/users/{userID}/achievements",
		s.metrics.WrapHandler("achievements", http.HandlerFunc(s.getAchievements))).Methods(http.MethodGet)
	r.Handle("/api/users/{userID}/activities",
		s.metrics.WrapHandler("activities_list", http.HandlerFunc(s.listActivities))).Methods(http.MethodGet)
	r.Handle("/api/users/{userID}/activities",
		s.metrics.WrapHandler("activities_log", http.HandlerFunc(s.postActivity))).Methods(http.MethodPost)
	r.Handle("/api/users/{userID}/goals",
		s.metrics.WrapHandler("goals_get", http.HandlerFunc(s.getGoals))).Methods(http.MethodGet)
	r.Handle("/api/users/{userID}/goals",
		s.metrics.WrapHandler("goals_put", http.HandlerFunc(s.putGoals))).Methods(http.MethodPut)

	return handlers.RecoveryHandler()(handlers.LoggingHandler(log.Writer(), r))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	report, err := s.svc.BuildReport(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ReportGenerated(report.Stale)
	s.writeJSON(w, http.StatusOK, toReportPayload(report))
}

func (s *Server) getAchievements(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	views, points, err := s.svc.Achievements(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"achievements": toAchievementPayloads(views),
		"totalPoints":  points,
	})
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	window, err := s.windowFromQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	category := activity.Category(strings.TrimSpace(r.URL.Query().Get("category")))

	records, err := s.svc.Activities(r.Context(), userID, window, category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"activities": toActivityPayloads(records)})
}

func (s *Server) postActivity(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var payload activityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	record := activity.Record{
		ID:          payload.ID,
		UserID:      userID,
		Category:    activity.Category(payload.Category),
		Subcategory: payload.Subcategory,
		CO2Kg:       payload.CO2Kg,
		OccurredAt:  payload.OccurredAt,
		Metadata:    payload.Metadata,
	}
	if err := s.svc.LogActivity(r.Context(), record); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ActivityLogged()
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": record.ID})
}

func (s *Server) getGoals(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	targets, err := s.svc.GoalTargets(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, goalTargetsPayload(targets))
}

func (s *Server) putGoals(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var payload goalTargetsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if err := s.svc.SaveGoalTargets(r.Context(), userID, toGoalTargets(payload)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// windowFromQuery parses optional from/to RFC 3339 bounds, defaulting to the
// current month window.
func (s *Server) windowFromQuery(r *http.Request) (bucket.Window, error) {
	query := r.URL.Query()
	fromStr := strings.TrimSpace(query.Get("from"))
	toStr := strings.TrimSpace(query.Get("to"))

	if fromStr == "" && toStr == "" {
		return s.svc.Calendar().MonthWindow(time.Now().UTC()), nil
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return bucket.Window{}, apperrors.New(apperrors.CodeReportWindowInvalid, "invalid from timestamp")
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return bucket.Window{}, apperrors.New(apperrors.CodeReportWindowInvalid, "invalid to timestamp")
	}
	if !to.After(from) {
		return bucket.Window{}, apperrors.New(apperrors.CodeReportWindowInvalid, "window end must be after start")
	}
	return bucket.Window{Start: from, End: to}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	s.writeJSON(w, code.HTTPStatus(), map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
