package server

import (
	"net/http"

	"community/internal/auth"
	"community/internal/models"
)

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := models.GetUser(r.Context(), s.DB, r.PathValue("uid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var patch models.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := models.UpdateUser(r.Context(), s.DB, r.PathValue("uid"), id.UserID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if _, err := models.GetUser(r.Context(), s.DB, uid); err != nil {
		s.writeError(w, r, err)
		return
	}
	posts, err := models.ListPostsByAuthor(r.Context(), s.DB, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}
