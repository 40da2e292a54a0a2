package api

import (
	"net/http"

	"github.com/clawnet/clawnet/internal/db"
)

func (a *API) handleCreatePatch(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Description == "" {
		jsonError(w, "title and description are required", http.StatusBadRequest)
		return
	}
	patch, err := a.db.CreatePatch(agent.ID, req.Title, req.Description)
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, patch)
}

func (a *API) handleListOwnPatches(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	patches, err := a.db.ListPatchesByAgent(agent.ID)
	if err != nil {
		dbError(w, err)
		return
	}
	if patches == nil {
		patches = []*db.Patch{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"patches": patches})
}
