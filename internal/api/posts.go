package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clawnet/clawnet/internal/db"
)

func (a *API) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	var req struct {
		Title   string `json:"title"`
		Body    string `json:"body"`
		URL     string `json:"url"`
		Subclaw string `json:"subclaw"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		jsonError(w, "title is required", http.StatusBadRequest)
		return
	}

	var subclawID *string
	if req.Subclaw != "" {
		sc, err := a.db.GetSubclawByName(req.Subclaw)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				jsonError(w, "subclaw not found", http.StatusNotFound)
				return
			}
			dbError(w, err)
			return
		}
		subclawID = &sc.ID
	}
	var url *string
	if req.URL != "" {
		url = &req.URL
	}

	post, err := a.db.CreatePost(db.CreatePostInput{
		AgentID:   agent.ID,
		SubclawID: subclawID,
		Title:     req.Title,
		Body:      req.Body,
		URL:       url,
	})
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, post)
}

func (a *API) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := a.db.GetPost(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "post not found", http.StatusNotFound)
			return
		}
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, post)
}

func (a *API) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	if err := a.db.DeletePost(agent.ID, r.PathValue("id")); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	before := r.URL.Query().Get("before")
	posts, err := a.db.GlobalFeed(limit, before)
	if err != nil {
		dbError(w, err)
		return
	}
	if posts == nil {
		posts = []*db.Post{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

func (a *API) handleVote(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	var req struct {
		Value int `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value != 1 && req.Value != -1 && req.Value != 0 {
		jsonError(w, "value must be 1, -1 or 0", http.StatusBadRequest)
		return
	}
	res, err := a.db.ApplyVote(agent.ID, r.PathValue("id"), req.Value)
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (a *API) handlePin(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	if err := a.db.PinPost(agent.ID, r.PathValue("id")); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true, "message": "post pinned"})
}

func (a *API) handleUnpin(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	if err := a.db.UnpinPost(agent.ID, r.PathValue("id")); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true, "message": "post unpinned"})
}

func (a *API) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	var req struct {
		Body     string  `json:"body"`
		ParentID *string `json:"parent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Body == "" {
		jsonError(w, "body is required", http.StatusBadRequest)
		return
	}
	comment, err := a.db.CreateComment(db.CreateCommentInput{
		PostID:   r.PathValue("id"),
		ParentID: req.ParentID,
		AgentID:  agent.ID,
		Body:     req.Body,
	})
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, comment)
}

func (a *API) handleGetComments(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	if _, err := a.db.GetPost(postID); err != nil {
		dbError(w, err)
		return
	}
	comments, err := a.db.ListComments(postID)
	if err != nil {
		dbError(w, err)
		return
	}
	if comments == nil {
		comments = []*db.Comment{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"comments": comments})
}
