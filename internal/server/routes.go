package server

import "net/http"

// registerRoutes mounts every handler on mux, layering each route's specific
// auth middleware (tick/webhook/admin) on top of the shared stack that
// applyMiddleware applies once at the top level.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	cfg := s.app.Config

	mux.Handle("/cron/tick", tickAuthMiddleware(cfg)(http.HandlerFunc(s.handleTick)))
	mux.Handle("/webhook", webhookAuthMiddleware(cfg)(http.HandlerFunc(s.handleWebhook)))
	mux.HandleFunc("/health", s.handleHealth)

	mux.Handle("/api/admin/jobs", adminAuthMiddleware(cfg)(http.HandlerFunc(s.handleJobsCollection)))
	mux.Handle("/api/admin/jobs/", adminAuthMiddleware(cfg)(http.HandlerFunc(s.handleJobByID)))
	mux.Handle("/api/admin/scheduler/chart", adminAuthMiddleware(cfg)(http.HandlerFunc(s.handleSchedulerChart)))
	mux.HandleFunc("/api/admin/login", s.handleAdminLogin)
}
