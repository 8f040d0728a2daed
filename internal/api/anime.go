package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/httputil"
	"github.com/JustinTDCT/AnimeVault/internal/jobs"
	"github.com/JustinTDCT/AnimeVault/internal/scanner"
)

func (s *Server) animeRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.listAnime)
	r.Post("/", s.addAnime)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", s.getAnime)
		r.Patch("/", s.updateAnime)
		r.Delete("/", s.deleteAnime)
		r.Get("/episodes", s.listEpisodes)
		r.Post("/episodes/{episode}/map", s.mapEpisode)
		r.Post("/metadata/refresh", s.refreshMetadata)
		r.Get("/rename", s.previewRename)
		r.Post("/rename", s.executeRename)
	})
	return r
}

func animeID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid anime id %q: %w", chi.URLParam(r, "id"), apperr.ErrValidation)
	}
	return id, nil
}

func (s *Server) listAnime(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Anime.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

type addAnimeRequest struct {
	ID               int        `json:"id"`
	Path             string     `json:"path,omitempty"`
	QualityProfileID *uuid.UUID `json:"quality_profile_id,omitempty"`
}

// addAnime looks the id up on AniList and starts monitoring it.
func (s *Server) addAnime(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		unavailable(w, "metadata search")
		return
	}
	var req addAnimeRequest
	if err := httputil.ReadJSON(r, &req); err != nil || req.ID <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "an AniList id is required")
		return
	}
	a, err := s.deps.Search.GetByID(r.Context(), req.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if req.Path != "" {
		p := filepath.Clean(req.Path)
		a.Path = &p
	}
	a.QualityProfileID = req.QualityProfileID
	a.Monitored = true
	if err := s.deps.Anime.Upsert(r.Context(), a); err != nil {
		writeErr(w, r, err)
		return
	}
	s.enqueueRefresh(a.ID)
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (s *Server) getAnime(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	a, err := s.deps.Anime.GetByID(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

type updateAnimeRequest struct {
	Monitored        *bool      `json:"monitored"`
	QualityProfileID *uuid.UUID `json:"quality_profile_id"`
}

func (s *Server) updateAnime(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req updateAnimeRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	ctx := r.Context()
	if req.QualityProfileID != nil {
		if s.deps.Profiles != nil {
			if _, err := s.deps.Profiles.GetQualityProfile(ctx, *req.QualityProfileID); err != nil {
				writeErr(w, r, err)
				return
			}
		}
		if err := s.deps.Anime.SetQualityProfile(ctx, id, *req.QualityProfileID); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	if req.Monitored != nil {
		if err := s.deps.Anime.SetMonitored(ctx, id, *req.Monitored); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	a, err := s.deps.Anime.GetByID(ctx, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (s *Server) deleteAnime(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Anime.Delete(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listEpisodes(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := s.deps.Anime.GetByID(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	eps, err := s.deps.Episodes.List(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eps)
}

type mapEpisodeRequest struct {
	Path string `json:"path"`
}

// mapEpisode records a file for an episode by hand, going through the same
// import path as library scans.
func (s *Server) mapEpisode(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ep, err := strconv.ParseFloat(chi.URLParam(r, "episode"), 64)
	if err != nil || !scanner.ValidEpisodeNumber(ep) {
		writeErr(w, r, fmt.Errorf("episode %q must be a positive number: %w", chi.URLParam(r, "episode"), apperr.ErrValidation))
		return
	}
	var req mapEpisodeRequest
	if err := httputil.ReadJSON(r, &req); err != nil || strings.TrimSpace(req.Path) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "path is required")
		return
	}
	if !filepath.IsAbs(req.Path) {
		writeErr(w, r, fmt.Errorf("path must be absolute: %w", apperr.ErrValidation))
		return
	}
	if _, err := s.deps.Anime.GetByID(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Importer.ImportFile(r.Context(), id, ep, filepath.Clean(req.Path), nil); err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"anime_id": id, "episode": ep, "path": req.Path})
}

func (s *Server) refreshMetadata(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metadata == nil {
		unavailable(w, "metadata refresh")
		return
	}
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	fetched, err := s.deps.Metadata.RefreshEpisodes(r.Context(), id, force)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"refreshed": fetched, "throttled": !fetched})
}

func (s *Server) previewRename(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	items, err := s.deps.Renamer.Preview(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

// executeRename runs synchronously unless ?async=true, which queues it.
func (s *Server) executeRename(w http.ResponseWriter, r *http.Request) {
	id, err := animeID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && s.deps.Queue != nil {
		taskID, err := s.deps.Queue.EnqueueUnique(jobs.TaskRenameAnime, jobs.RenamePayload{AnimeID: id}, jobs.RenameID(id))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		return
	}
	result, err := s.deps.Renamer.Execute(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) enqueueRefresh(animeID int) {
	if s.deps.Queue == nil {
		return
	}
	if _, err := s.deps.Queue.EnqueueUnique(jobs.TaskMetadataRefresh, jobs.MetadataPayload{AnimeID: animeID},
		jobs.MetadataRefreshID(animeID)); err != nil {
		log.Warn().Str("component", "api").Int("anime_id", animeID).Err(err).Msg("enqueue metadata refresh")
	}
}
