package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"guidehub/pkg/domain"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"count": len(users),
	})
}

func (s *Server) handlePromoteAdmin(w http.ResponseWriter, r *http.Request, admin domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	user, err := s.app.PromoteAdmin(req.Email)
	if err != nil {
		s.audit(r, "admin.promote", "fail", "admin_id", admin.ID, "email", req.Email, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "admin.promote", "success", "admin_id", admin.ID, "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}
