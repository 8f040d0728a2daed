package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/httputil"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/JustinTDCT/AnimeVault/internal/quality"
)

func (s *Server) profilesRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/qualities", s.listQualities)

	r.Get("/quality", s.listQualityProfiles)
	r.Post("/quality", s.createQualityProfile)
	r.Get("/quality/{id}", s.getQualityProfile)
	r.Put("/quality/{id}", s.updateQualityProfile)
	r.Delete("/quality/{id}", s.deleteQualityProfile)

	r.Get("/release", s.listReleaseProfiles)
	r.Post("/release", s.createReleaseProfile)
	r.Get("/release/{id}", s.getReleaseProfile)
	r.Put("/release/{id}", s.updateReleaseProfile)
	r.Delete("/release/{id}", s.deleteReleaseProfile)
	return r
}

func profileID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid profile id: %w", apperr.ErrValidation)
	}
	return id, nil
}

func (s *Server) listQualities(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, quality.Listed())
}

func (s *Server) listQualityProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Profiles.ListQualityProfiles(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) createQualityProfile(w http.ResponseWriter, r *http.Request) {
	var p models.QualityProfile
	if err := httputil.ReadJSON(r, &p); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	p.ID = uuid.Nil
	if err := quality.ValidateProfile(p); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Profiles.CreateQualityProfile(r.Context(), &p); err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) getQualityProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.deps.Profiles.GetQualityProfile(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) updateQualityProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var p models.QualityProfile
	if err := httputil.ReadJSON(r, &p); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	p.ID = id
	if err := quality.ValidateProfile(p); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Profiles.UpdateQualityProfile(r.Context(), &p); err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) deleteQualityProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Profiles.DeleteQualityProfile(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listReleaseProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Profiles.ListReleaseProfiles(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func validateReleaseProfile(p models.ReleaseProfile) error {
	if p.Name == "" {
		return fmt.Errorf("release profile name is required: %w", apperr.ErrValidation)
	}
	for _, rule := range p.Rules {
		if rule.Term == "" || !rule.RuleType.Valid() {
			return fmt.Errorf("rule %q of type %q is invalid: %w", rule.Term, rule.RuleType, apperr.ErrValidation)
		}
	}
	return nil
}

func (s *Server) createReleaseProfile(w http.ResponseWriter, r *http.Request) {
	var p models.ReleaseProfile
	if err := httputil.ReadJSON(r, &p); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	p.ID = uuid.Nil
	if err := validateReleaseProfile(p); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Profiles.SaveReleaseProfile(r.Context(), &p); err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) getReleaseProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.deps.Profiles.GetReleaseProfile(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) updateReleaseProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := s.deps.Profiles.GetReleaseProfile(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	var p models.ReleaseProfile
	if err := httputil.ReadJSON(r, &p); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	p.ID = id
	if err := validateReleaseProfile(p); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Profiles.SaveReleaseProfile(r.Context(), &p); err != nil {
		writeErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) deleteReleaseProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.deps.Profiles.DeleteReleaseProfile(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
