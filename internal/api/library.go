package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/config"
	"github.com/JustinTDCT/AnimeVault/internal/httputil"
	"github.com/JustinTDCT/AnimeVault/internal/jobs"
	"github.com/JustinTDCT/AnimeVault/internal/releases"
	"github.com/JustinTDCT/AnimeVault/internal/renamer"
)

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		unavailable(w, "metadata search")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "q is required")
		return
	}
	results, err := s.deps.Search.Search(r.Context(), q)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}

func (s *Server) decideRelease(w http.ResponseWriter, r *http.Request) {
	var req releases.Request
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.AnimeID <= 0 {
		writeErr(w, r, fmt.Errorf("anime_id is required: %w", apperr.ErrValidation))
		return
	}
	ev, err := s.deps.Decider.Decide(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ev)
}

// ──────── Scans ────────

func (s *Server) startFileScan(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queue == nil {
		unavailable(w, "job queue")
		return
	}
	taskID, err := s.deps.Queue.EnqueueUnique(jobs.TaskScanFiles, jobs.ScanPayload{Root: s.deps.LibraryRoot},
		jobs.ScanFilesID(s.deps.LibraryRoot))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) startDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queue == nil {
		unavailable(w, "job queue")
		return
	}
	if s.deps.Discovery != nil && s.deps.Discovery.Running() {
		httputil.WriteJSON(w, http.StatusAccepted, map[string]bool{"running": true})
		return
	}
	taskID, err := s.deps.Queue.EnqueueUnique(jobs.TaskScanDiscovery, jobs.DiscoveryPayload{}, jobs.DiscoveryID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) discoveryState(w http.ResponseWriter, r *http.Request) {
	if s.deps.Discovery == nil {
		unavailable(w, "discovery")
		return
	}
	resp := map[string]interface{}{
		"running": s.deps.Discovery.Running(),
		"folders": s.deps.Discovery.Snapshot(),
	}
	if last := s.deps.Discovery.LastScan(); !last.IsZero() {
		resp["last_scan"] = last
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type mapFolderRequest struct {
	Path    string `json:"path"`
	AnimeID int    `json:"anime_id"`
}

// mapFolder adopts an unmapped library folder as the home of an anime.
func (s *Server) mapFolder(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		unavailable(w, "metadata search")
		return
	}
	var req mapFolderRequest
	if err := httputil.ReadJSON(r, &req); err != nil || req.Path == "" || req.AnimeID <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "path and anime_id are required")
		return
	}
	path := filepath.Clean(req.Path)
	if rel, err := filepath.Rel(s.deps.LibraryRoot, path); err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		writeErr(w, r, fmt.Errorf("%s is not inside the library: %w", path, apperr.ErrValidation))
		return
	}

	ctx := r.Context()
	a, err := s.deps.Anime.GetByID(ctx, req.AnimeID)
	if err != nil {
		a, err = s.deps.Search.GetByID(ctx, req.AnimeID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
	}
	a.Path = &path
	a.Monitored = true
	if err := s.deps.Anime.Upsert(ctx, a); err != nil {
		writeErr(w, r, err)
		return
	}
	if s.deps.Discovery != nil {
		s.deps.Discovery.Remove(path)
	}
	s.enqueueRefresh(a.ID)
	httputil.WriteJSON(w, http.StatusOK, a)
}

// ──────── Recycle bin ────────

func (s *Server) listRecycled(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Bin.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) restoreRecycled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "invalid id")
		return
	}
	entry, err := s.deps.Bin.Restore(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) purgeRecycled(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Bin.Purge(r.Context(), s.now())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"purged": n})
}

// ──────── Settings ────────

type namingRequest struct {
	Pattern string `json:"pattern"`
}

func (s *Server) getNaming(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"pattern": s.deps.Renamer.Pattern(),
		"example": renamer.Render(s.deps.Renamer.Pattern(), sampleTokens),
	})
}

var sampleTokens = renamer.Tokens{
	SeriesTitle: "Sousou no Frieren", Year: 2023, Season: 1, Episode: 3,
	EpisodeTitle: "Killing Magic", Quality: "WEB 1080p", Group: "SubsPlease",
}

func (s *Server) putNaming(w http.ResponseWriter, r *http.Request) {
	var req namingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" || !strings.Contains(pattern, "{Episode") {
		writeErr(w, r, fmt.Errorf("pattern must reference an episode token: %w", apperr.ErrValidation))
		return
	}
	if s.deps.Settings != nil {
		if err := s.deps.Settings.Set(r.Context(), config.SettingNamingPattern, pattern); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	s.deps.Renamer.SetPattern(pattern)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"pattern": pattern,
		"example": renamer.Render(pattern, sampleTokens),
	})
}
