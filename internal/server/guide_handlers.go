package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"guidehub/internal/app"
	"guidehub/pkg/domain"
)

func (s *Server) handleGuides(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		guides, err := s.app.ListGuides()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": guides,
			"count": len(guides),
		})
	case http.MethodPost:
		s.adminOnly(s.handleCreateGuide).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateGuide(w http.ResponseWriter, r *http.Request, user domain.User) {
	var in app.GuideInput
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	guide, err := s.app.CreateGuide(in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "guide.create", "success", "user_id", user.ID, "guide_id", guide.ID)
	writeJSON(w, http.StatusCreated, guide)
}

func (s *Server) handleGuideByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/guides/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/pdf"); ok {
		if strings.Contains(id, "/") || id == "" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleUploadGuidePDF(w, r, user, id)
		}).ServeHTTP(w, r)
		return
	}
	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	id := rest

	switch r.Method {
	case http.MethodGet:
		guide, err := s.app.GetGuide(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, guide)
	case http.MethodPut:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			var in app.GuideInput
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			guide, err := s.app.UpdateGuide(id, in)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, guide)
		}).ServeHTTP(w, r)
	case http.MethodDelete:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			if err := s.app.DeleteGuide(r.Context(), id); err != nil {
				writeAppError(w, err)
				return
			}
			s.audit(r, "guide.delete", "success", "user_id", user.ID, "guide_id", id)
			w.WriteHeader(http.StatusNoContent)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadGuidePDF(w http.ResponseWriter, r *http.Request, user domain.User, guideID string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdf file field is required")
		return
	}
	defer file.Close()

	saved, err := s.app.UploadGuidePDF(r.Context(), guideID, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		s.audit(r, "guide.pdf.upload", "fail", "user_id", user.ID, "guide_id", guideID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "guide.pdf.upload", "success", "user_id", user.ID, "guide_id", guideID, "size", strconv.FormatInt(header.Size, 10))
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleViewPDF(w http.ResponseWriter, r *http.Request, user domain.User, guideID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stream, err := s.app.OpenGuidePDF(r.Context(), user, guideID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer stream.Body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline")
	if stream.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, stream.Body)
}
