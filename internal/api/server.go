// Package api serves the library over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/httputil"
	"github.com/JustinTDCT/AnimeVault/internal/jobs"
	"github.com/JustinTDCT/AnimeVault/internal/metadata"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/parser"
	"github.com/JustinTDCT/AnimeVault/internal/releases"
)

type AnimeStore interface {
	List(ctx context.Context) ([]*models.Anime, error)
	GetByID(ctx context.Context, id int) (*models.Anime, error)
	Upsert(ctx context.Context, a *models.Anime) error
	SetQualityProfile(ctx context.Context, id int, profileID uuid.UUID) error
	SetMonitored(ctx context.Context, id int, monitored bool) error
	Delete(ctx context.Context, id int) error
}

type EpisodeReader interface {
	List(ctx context.Context, animeID int) ([]models.EpisodeView, error)
}

type FileImporter interface {
	ImportFile(ctx context.Context, animeID int, episode float64, path string, rel *parser.Release) error
}

type ReleaseDecider interface {
	Decide(ctx context.Context, req releases.Request) (*releases.Evaluation, error)
}

type Renamer interface {
	Preview(ctx context.Context, animeID int) ([]models.RenamePreviewItem, error)
	Execute(ctx context.Context, animeID int) (*models.RenameResult, error)
	Pattern() string
	SetPattern(pattern string)
}

type MetadataRefresher interface {
	RefreshEpisodes(ctx context.Context, animeID int, force bool) (bool, error)
}

type RecycleBin interface {
	List(ctx context.Context) ([]*models.RecycledFile, error)
	Restore(ctx context.Context, id uuid.UUID) (*models.RecycledFile, error)
	Purge(ctx context.Context, now time.Time) (int, error)
}

type ProfileStore interface {
	CreateQualityProfile(ctx context.Context, p *models.QualityProfile) error
	UpdateQualityProfile(ctx context.Context, p *models.QualityProfile) error
	GetQualityProfile(ctx context.Context, id uuid.UUID) (*models.QualityProfile, error)
	ListQualityProfiles(ctx context.Context) ([]*models.QualityProfile, error)
	DeleteQualityProfile(ctx context.Context, id uuid.UUID) error
	SaveReleaseProfile(ctx context.Context, p *models.ReleaseProfile) error
	GetReleaseProfile(ctx context.Context, id uuid.UUID) (*models.ReleaseProfile, error)
	ListReleaseProfiles(ctx context.Context) ([]*models.ReleaseProfile, error)
	DeleteReleaseProfile(ctx context.Context, id uuid.UUID) error
}

type SettingsStore interface {
	Set(ctx context.Context, key, value string) error
}

type DiscoveryView interface {
	Snapshot() []models.UnmappedFolder
	Running() bool
	LastScan() time.Time
	Remove(path string)
}

// Deps are the services behind the routes. Optional members left nil
// answer 503.
type Deps struct {
	LibraryRoot string

	Anime     AnimeStore
	Episodes  EpisodeReader
	Importer  FileImporter
	Decider   ReleaseDecider
	Renamer   Renamer
	Metadata  MetadataRefresher
	Search    metadata.Searcher
	Bin       RecycleBin
	Profiles  ProfileStore
	Settings  SettingsStore
	Discovery DiscoveryView
	Queue     jobs.Enqueuer

	Events  http.HandlerFunc
	Metrics http.Handler
}

type Server struct {
	deps   Deps
	router chi.Router
	now    func() time.Time
}

func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, now: time.Now}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(securityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if s.deps.Events != nil {
			r.Get("/ws", s.deps.Events)
		}
		r.Mount("/anime", s.animeRouter())
		r.Get("/search", s.search)
		r.Post("/releases/decide", s.decideRelease)
		r.Post("/scans", s.startFileScan)
		r.Route("/discovery", func(r chi.Router) {
			r.Get("/", s.discoveryState)
			r.Post("/scan", s.startDiscovery)
			r.Post("/map", s.mapFolder)
		})
		r.Route("/recyclebin", func(r chi.Router) {
			r.Get("/", s.listRecycled)
			r.Post("/purge", s.purgeRecycled)
			r.Post("/{id}/restore", s.restoreRecycled)
		})
		r.Mount("/profiles", s.profilesRouter())
		r.Get("/settings/naming", s.getNaming)
		r.Put("/settings/naming", s.putNaming)
	})
	s.router = r
}

// writeErr maps service errors onto HTTP statuses. Storage detail is only
// logged.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		httputil.WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, apperr.ErrProviderUnavailable):
		httputil.WriteError(w, http.StatusBadGateway, "PROVIDER_UNAVAILABLE", "metadata providers are unavailable")
	case errors.Is(err, apperr.ErrCritical):
		log.Error().Str("component", "api").Str("path", r.URL.Path).Err(err).Msg("critical failure")
		httputil.WriteError(w, http.StatusInternalServerError, "CRITICAL", err.Error())
	default:
		log.Error().Str("component", "api").Str("path", r.URL.Path).Err(err).Msg("request failed")
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func unavailable(w http.ResponseWriter, what string) {
	httputil.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", what+" is not configured")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().Str("component", "api").Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).Msg("request")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
