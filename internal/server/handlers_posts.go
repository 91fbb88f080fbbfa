package server

import (
	"net/http"

	"community/internal/auth"
	"community/internal/models"
)

type postInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Category    string `json:"category"`
}

type postDetail struct {
	*models.Post
	Comments []models.Comment `json:"comments"`
	// Liked is only reported to authenticated callers.
	Liked *bool `json:"liked,omitempty"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := models.ListPosts(r.Context(), s.DB, r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := models.GetPost(ctx, s.DB, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	comments, err := models.ListComments(ctx, s.DB, post.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	detail := postDetail{Post: post, Comments: comments}
	if id, ok := auth.FromContext(ctx); ok {
		liked, err := models.HasLiked(ctx, s.DB, post.ID, id.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		detail.Liked = &liked
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var in postInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := models.CreatePost(r.Context(), s.DB, id.UserID, models.NewPost{
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var patch models.PostPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := models.UpdatePost(r.Context(), s.DB, r.PathValue("id"), id.UserID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := models.DeletePost(r.Context(), s.DB, r.PathValue("id"), id.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	liked, count, err := models.ToggleLike(r.Context(), s.DB, r.PathValue("id"), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": liked, "likeCount": count})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	if _, err := models.GetPost(r.Context(), s.DB, postID); err != nil {
		s.writeError(w, r, err)
		return
	}
	comments, err := models.ListComments(r.Context(), s.DB, postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var in struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	comment, err := models.AddComment(r.Context(), s.DB, r.PathValue("id"), id.UserID, in.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
