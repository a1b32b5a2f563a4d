package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"guidehub/internal/app"
	"guidehub/pkg/domain"
)

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		courses, err := s.app.ListCourses()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": courses,
			"count": len(courses),
		})
	case http.MethodPost:
		s.adminOnly(s.handleCreateCourse).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request, user domain.User) {
	var in app.CourseInput
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	course, err := s.app.CreateCourse(in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "course.create", "success", "user_id", user.ID, "course_id", course.ID)
	writeJSON(w, http.StatusCreated, course)
}

func (s *Server) handleCourseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/courses/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		course, err := s.app.GetCourse(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, course)
	case http.MethodPut:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			var in app.CourseInput
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			course, err := s.app.UpdateCourse(id, in)
			if err != nil {
				writeAppError(w, err)
				return
			}
			s.audit(r, "course.update", "success", "user_id", user.ID, "course_id", id)
			writeJSON(w, http.StatusOK, course)
		}).ServeHTTP(w, r)
	case http.MethodDelete:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			if err := s.app.DeleteCourse(id); err != nil {
				writeAppError(w, err)
				return
			}
			s.audit(r, "course.delete", "success", "user_id", user.ID, "course_id", id)
			w.WriteHeader(http.StatusNoContent)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var in app.LessonInput
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	lesson, err := s.app.CreateLesson(in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "lesson.create", "success", "user_id", user.ID, "lesson_id", lesson.ID)
	writeJSON(w, http.StatusCreated, lesson)
}

func (s *Server) handleLessonByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/lessons/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/content"); ok {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			content, err := s.app.GetLessonContent(r.Context(), user, id)
			if err != nil {
				s.audit(r, "lesson.content", "fail", "user_id", user.ID, "lesson_id", id, "reason", err.Error())
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, content)
		}).ServeHTTP(w, r)
		return
	}
	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		lesson, err := s.app.GetLesson(rest)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lesson)
	case http.MethodPut:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			var in app.LessonInput
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			lesson, err := s.app.UpdateLesson(rest, in)
			if err != nil {
				writeAppError(w, err)
				return
			}
			s.audit(r, "lesson.update", "success", "user_id", user.ID, "lesson_id", rest)
			writeJSON(w, http.StatusOK, lesson)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}
