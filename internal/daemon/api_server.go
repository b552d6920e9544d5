package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"emblem/internal/api"
	"emblem/internal/config"
	"emblem/internal/logging"
	"emblem/internal/services"
	"emblem/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/schedules", srv.handleSchedules)
	mux.HandleFunc("/api/schedules/", srv.handleScheduleItem)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/prune", srv.handlePrune)
	mux.HandleFunc("/api/jobs/", srv.handleJobItem)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.status.Overview(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.daemon.schedules.List(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req api.ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		view, err := s.daemon.schedules.Create(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, view)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleScheduleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	ref, action, _ := strings.Cut(rest, "/")
	if ref == "" {
		s.writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	schedule, err := s.daemon.schedules.Resolve(r.Context(), ref)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			view, err := s.daemon.schedules.Get(r.Context(), schedule.ID)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			s.writeJSON(w, http.StatusOK, view)
		case http.MethodPut:
			var req api.ScheduleRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			view, err := s.daemon.schedules.Update(r.Context(), schedule.ID, req)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			s.writeJSON(w, http.StatusOK, view)
		case http.MethodDelete:
			if err := s.daemon.schedules.Delete(r.Context(), schedule.ID); err != nil {
				s.writeServiceError(w, err)
				return
			}
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch action {
	case "enable", "disable":
		view, err := s.daemon.schedules.SetEnabled(r.Context(), schedule.ID, action == "enable")
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, view)
	case "pause", "resume":
		view, err := s.daemon.schedules.SetPaused(r.Context(), schedule.ID, action == "pause")
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, view)
	case "run":
		job, err := s.daemon.runner.Run(r.Context(), schedule.ID, store.TriggerManual, schedule.Options)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
	default:
		s.writeError(w, http.StatusNotFound, "unknown schedule action")
	}
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	var filter store.JobFilter
	for _, value := range query["status"] {
		status, ok := store.ParseJobStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job status %q", value))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	filter.ScheduleID = strings.TrimSpace(query.Get("schedule"))
	filter.Search = strings.TrimSpace(query.Get("search"))

	list, err := s.daemon.status.ListJobs(r.Context(), filter, parsePage(query.Get("limit"), query.Get("offset")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *apiServer) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OlderThanDays <= 0 {
		s.writeError(w, http.StatusBadRequest, "olderThanDays must be positive")
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -req.OlderThanDays)
	deleted, err := s.daemon.store.PruneJobs(r.Context(), cutoff)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PruneResponse{Deleted: deleted})
}

func (s *apiServer) handleJobItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			detail, err := s.daemon.status.JobDetail(r.Context(), id, parsePage(query.Get("limit"), query.Get("offset")))
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			s.writeJSON(w, http.StatusOK, detail)
		case http.MethodDelete:
			s.deleteJob(w, r, id)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "progress":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		progress, err := s.daemon.status.Progress(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, progress)
	case "retry":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, err := s.daemon.runner.Retry(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
	case "cancel":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := s.daemon.runner.Cancel(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	default:
		s.writeError(w, http.StatusNotFound, "unknown job action")
	}
}

func (s *apiServer) deleteJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.daemon.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", id))
		return
	}
	if !job.Status.Terminal() {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("job %s is %s; cancel it first", id, job.Status))
		return
	}
	if _, err := s.daemon.store.DeleteJob(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func parsePage(limitStr, offsetStr string) store.Page {
	var page store.Page
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		page.Limit = limit
	}
	if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
		page.Offset = offset
	}
	return page
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case services.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrFinalized):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
