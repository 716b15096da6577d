package server

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/models"
	"github.com/auriga-os/emonk/internal/scheduler"
)

// handleTick drives one scheduler tick and returns the TickReport as JSON.
// Only a global precondition failure (store unreachable) surfaces as a
// non-2xx response; per-job faults are reflected inside the report body.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	report, err := s.app.Scheduler.Tick(r.Context(), scheduler.DefaultBudget())
	if err != nil {
		s.logger.Error().Err(err).Msg("tick failed")
		WriteError(w, http.StatusServiceUnavailable, "tick failed: "+err.Error())
		return
	}

	s.app.Chart.Record(time.Now().UTC(), report)
	WriteJSON(w, http.StatusOK, report)
}

// webhookRequest is the inbound chat message envelope.
type webhookRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// handleWebhook ingests one chat message and returns the assistant's reply
// card: {reply, skill_invocations}.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req webhookRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "message is required")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	reply, err := s.app.Chat.HandleMessage(r.Context(), sessionID, req.Message)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("chat handling failed")
		WriteError(w, http.StatusBadGateway, "failed to process message: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, reply)
}

// handleHealth reports liveness plus a shallow dependency check against the
// job store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok", "registry": "ok"}
	status := "ok"

	if _, err := s.app.JobStore.List(r.Context(), jobstore.Filter{Limit: 1}); err != nil {
		checks["store"] = "unreachable: " + err.Error()
		status = "degraded"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

// scheduleJobRequest is the admin API's POST /api/admin/jobs body.
type scheduleJobRequest struct {
	Kind        string          `json:"kind"`
	Payload     []byte          `json:"payload,omitempty"`
	Schedule    models.Schedule `json:"schedule"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

// handleJobsCollection handles POST (schedule a job) and GET (list jobs)
// against /api/admin/jobs.
func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleScheduleJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		RequireMethod(w, r, http.MethodPost, http.MethodGet)
	}
}

func (s *Server) handleScheduleJob(w http.ResponseWriter, r *http.Request) {
	var req scheduleJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	id, err := s.app.JobAPI.Schedule(r.Context(), req.Kind, req.Payload, req.Schedule, req.MaxAttempts)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobstore.Filter{
		Status: r.URL.Query().Get("status"),
		Kind:   r.URL.Query().Get("kind"),
		Limit:  100,
	}
	jobs, err := s.app.JobAPI.List(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// handleJobByID handles GET (fetch) and DELETE (cancel) against
// /api/admin/jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/admin/jobs/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := s.app.JobAPI.Get(r.Context(), id)
		if err != nil {
			if err == jobstore.ErrNotFound {
				WriteError(w, http.StatusNotFound, "job not found")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		result, err := s.app.JobAPI.Cancel(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"result": string(result)})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handleSchedulerChart serves a PNG sparkline of recent tick throughput for
// operator inspection.
func (s *Server) handleSchedulerChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	samples := s.app.Chart.Samples()
	png, err := scheduler.RenderThroughputChart(samples)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, "not enough tick history yet: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// adminLoginRequest is the POST /api/admin/login body.
type adminLoginRequest struct {
	Password string `json:"password"`
}

// handleAdminLogin trades the configured admin password for a signed JWT
// usable against the rest of the /api/admin surface.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	cfg := s.app.Config
	if cfg.Auth.AdminPasswordHash == "" {
		WriteError(w, http.StatusServiceUnavailable, "admin login has no password configured")
		return
	}

	var req adminLoginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.Auth.AdminPasswordHash), []byte(req.Password)); err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := signAdminToken("operator", cfg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}
