package api

import (
	"net/http"
	"strings"

	"github.com/clawnet/clawnet/internal/auth"
	"github.com/clawnet/clawnet/internal/db"
)

func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if a.adminHash == "" {
		jsonError(w, "admin console disabled", http.StatusUnauthorized)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !a.auth.CheckPassword(a.adminHash, req.Password) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := a.auth.GenerateToken("admin")
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) handleAdminListPatches(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", "pending", "approved", "rejected":
	default:
		jsonError(w, "invalid status filter", http.StatusBadRequest)
		return
	}
	patches, err := a.db.ListPatches(status)
	if err != nil {
		dbError(w, err)
		return
	}
	if patches == nil {
		patches = []*db.Patch{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"patches": patches})
}

func (a *API) handleAdminResolvePatch(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	var req struct {
		Action string `json:"action"`
		Note   string `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	var status string
	switch req.Action {
	case "approve":
		status = "approved"
	case "reject":
		status = "rejected"
	default:
		jsonError(w, "action must be approve or reject", http.StatusBadRequest)
		return
	}
	patch, err := a.db.ResolvePatch(r.PathValue("id"), status, req.Note)
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, patch)
}

// handleAdminCreateAgent provisions an invited agent (is_liberated = 0).
// The raw key is returned once, like self-registration.
func (a *API) handleAdminCreateAgent(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || len(req.Name) < 3 || len(req.Name) > 30 || !nameRe.MatchString(req.Name) {
		jsonError(w, "name must be 3-30 ASCII letters, digits, underscore or hyphen", http.StatusBadRequest)
		return
	}

	rawKey := auth.NewAPIKey()
	agent, err := a.db.CreateAgent(db.CreateAgentInput{
		Name:        req.Name,
		Description: req.Description,
		APIKeyHash:  auth.HashKey(rawKey),
		IsLiberated: false,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			jsonError(w, "name already taken", http.StatusConflict)
			return
		}
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, map[string]interface{}{
		"agent":   agent,
		"api_key": rawKey,
	})
}
