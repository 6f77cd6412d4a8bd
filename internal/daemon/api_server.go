package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookarr/internal/api"
	"bookarr/internal/catalog"
	"bookarr/internal/config"
	"bookarr/internal/dispatch"
	"bookarr/internal/logging"
	"bookarr/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/authors", srv.handleListAuthors)
	mux.HandleFunc("POST /api/authors", srv.handleCreateAuthor)
	mux.HandleFunc("GET /api/authors/search", srv.handleAuthorSearch)
	mux.HandleFunc("GET /api/authors/{id}", srv.handleGetAuthor)
	mux.HandleFunc("DELETE /api/authors/{id}", srv.handleDeleteAuthor)
	mux.HandleFunc("GET /api/authors/{id}/books", srv.handleAuthorBooks)
	mux.HandleFunc("GET /api/authors/{id}/missing", srv.handleAuthorMissing)
	mux.HandleFunc("POST /api/authors/{id}/download", srv.handleDownload)
	mux.HandleFunc("POST /api/authors/{id}/download-all", srv.handleDownloadAll)
	mux.HandleFunc("GET /api/jobs", srv.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", srv.handleGetJob)
	mux.HandleFunc("POST /api/downloads/magnet", srv.handleMagnet)
	mux.HandleFunc("GET /api/autosync", srv.handleAutosyncState)
	mux.HandleFunc("POST /api/autosync/configure", srv.handleAutosyncConfigure)
	mux.HandleFunc("POST /api/autosync/sync-now", srv.handleSyncNow)
	mux.HandleFunc("POST /api/library/sync", srv.handleLibrarySync)
	mux.HandleFunc("POST /api/library/import", srv.handleLibraryImport)
	mux.HandleFunc("GET /api/settings", srv.handleGetSettings)
	mux.HandleFunc("POST /api/settings", srv.handleUpdateSettings)

	srv.server = &http.Server{
		Handler:           srv.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// withRequestID tags every request with a correlation identifier, echoed in
// the response header and attached to the request context.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), requestID)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
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

// addr returns the bound listen address once the server is started.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.daemon.Store().ListAuthors(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthorListResponse{Authors: api.FromAuthors(authors)})
}

func (s *apiServer) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		ExternalID string `json:"externalId"`
		ImageURL   string `json:"imageUrl"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.writeFailure(w, services.Wrap(services.ErrValidation, "api", "create author", "name is required", nil))
		return
	}

	ctx := r.Context()
	store := s.daemon.Store()
	if req.ExternalID != "" {
		if existing, err := store.GetAuthorByExternalID(ctx, req.ExternalID); err != nil {
			s.writeFailure(w, err)
			return
		} else if existing != nil {
			s.writeFailure(w, services.Wrap(services.ErrConflict, "api", "create author", "author already exists", nil))
			return
		}
	}
	if existing, err := store.FindAuthorByName(ctx, name); err != nil {
		s.writeFailure(w, err)
		return
	} else if existing != nil {
		s.writeFailure(w, services.Wrap(services.ErrConflict, "api", "create author", "author already exists", nil))
		return
	}

	author := &catalog.Author{
		Name:       name,
		ExternalID: strings.TrimSpace(req.ExternalID),
		ImageURL:   strings.TrimSpace(req.ImageURL),
		Monitored:  true,
	}
	if err := store.CreateAuthor(ctx, author); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.AuthorResponse{Author: api.FromAuthor(author)})
}

func (s *apiServer) handleAuthorSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeFailure(w, services.Wrap(services.ErrValidation, "api", "author search", "query parameter q is required", nil))
		return
	}
	results, err := s.daemon.Bibliography().SearchAuthors(r.Context(), query, 10)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthorSearchResponse{Results: api.FromAuthorSearch(results)})
}

func (s *apiServer) handleGetAuthor(w http.ResponseWriter, r *http.Request) {
	author, ok := s.lookupAuthor(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthorResponse{Author: api.FromAuthor(author)})
}

func (s *apiServer) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.daemon.Store().DeleteAuthor(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !deleted {
		s.writeFailure(w, services.Wrap(services.ErrNotFound, "catalog", "delete author", "unknown author", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *apiServer) handleAuthorBooks(w http.ResponseWriter, r *http.Request) {
	author, ok := s.lookupAuthor(w, r)
	if !ok {
		return
	}
	books, err := s.daemon.Store().ListBooksByAuthor(r.Context(), author.ID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BookListResponse{Books: api.FromBooks(books)})
}

func (s *apiServer) handleAuthorMissing(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	works, err := s.daemon.Detector().MissingFor(services.WithAuthorID(r.Context(), id), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MissingWorksResponse{Works: works})
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
		Label string `json:"label"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	job, err := s.daemon.Dispatcher().RequestDownload(services.WithAuthorID(r.Context(), id), id, req.Title, req.Label)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleDownloadAll(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Titles []string `json:"titles"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	outcomes, err := s.daemon.Dispatcher().RequestDownloadAll(services.WithAuthorID(r.Context(), id), id, req.Titles)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if outcomes == nil {
		outcomes = []dispatch.Outcome{}
	}
	s.writeJSON(w, http.StatusOK, api.OutcomeListResponse{Outcomes: outcomes})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []catalog.JobStatus
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := catalog.ParseJobStatus(trimmed)
		if !ok {
			s.writeFailure(w, services.Wrap(services.ErrValidation, "api", "list jobs", fmt.Sprintf("unknown status %q", trimmed), nil))
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.Store().ListJobs(r.Context(), statuses...)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	job, err := s.daemon.Store().GetJob(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if job == nil {
		s.writeFailure(w, services.Wrap(services.ErrNotFound, "catalog", "get job", "unknown job", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleMagnet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MagnetURL string `json:"magnetUrl"`
		Label     string `json:"label"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	transferID, label, err := s.daemon.AddMagnet(r.Context(), req.MagnetURL, req.Label)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MagnetResponse{TransferID: transferID, Label: label})
}

func (s *apiServer) handleAutosyncState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Scheduler().Status())
}

func (s *apiServer) handleAutosyncConfigure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled       bool `json:"enabled"`
		IntervalHours int  `json:"intervalHours"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	state, err := s.daemon.Scheduler().Configure(r.Context(), req.Enabled, req.IntervalHours)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *apiServer) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.Scheduler().SyncNow(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SyncResponse{Summary: summary})
}

func (s *apiServer) handleLibrarySync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DryRun bool `json:"dryRun"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	summary, err := s.daemon.Engine().Sync(r.Context(), req.DryRun)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SyncResponse{DryRun: req.DryRun, Summary: summary})
}

func (s *apiServer) handleLibraryImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DryRun bool `json:"dryRun"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.DryRun {
		entries, err := s.daemon.Importer().Plan(r.Context())
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ImportResponse{DryRun: true, Entries: entries})
		return
	}

	imported, err := s.daemon.Importer().CheckAndImport(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ImportResponse{Imported: api.FromJobs(imported)})
}

func (s *apiServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := s.daemon.Store().MaskedSettings(r.Context(), s.daemon.cfg)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SettingsResponse{Settings: values})
}

func (s *apiServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var partial map[string]string
	if !s.decodeBody(w, r, &partial) {
		return
	}
	if err := s.daemon.UpdateSettings(r.Context(), partial); err != nil {
		s.writeFailure(w, err)
		return
	}
	values, err := s.daemon.Store().MaskedSettings(r.Context(), s.daemon.cfg)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SettingsResponse{Settings: values})
}

func (s *apiServer) lookupAuthor(w http.ResponseWriter, r *http.Request) (*catalog.Author, bool) {
	id, ok := s.pathID(w, r)
	if !ok {
		return nil, false
	}
	author, err := s.daemon.Store().GetAuthor(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return nil, false
	}
	if author == nil {
		s.writeFailure(w, services.Wrap(services.ErrNotFound, "catalog", "get author", "unknown author", nil))
		return nil, false
	}
	return author, true
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeFailure(w, services.Wrap(services.ErrValidation, "api", "parse id", "invalid identifier", nil))
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body. An empty body decodes to the zero
// request so boolean-flag endpoints accept bare POSTs.
func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		s.writeFailure(w, services.Wrap(services.ErrValidation, "api", "decode request", "malformed json body", err))
		return false
	}
	return true
}

func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	kind := services.Classify(err)
	s.writeJSON(w, api.HTTPStatus(err), api.ErrorResponse{
		Error: err.Error(),
		Kind:  string(kind),
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
