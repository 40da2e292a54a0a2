package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/clawnet/clawnet/internal/auth"
	"github.com/clawnet/clawnet/internal/db"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	if len(req.Name) < 3 || len(req.Name) > 30 {
		jsonError(w, "name must be 3-30 characters", http.StatusBadRequest)
		return
	}
	if !nameRe.MatchString(req.Name) {
		jsonError(w, "name must contain only ASCII letters, digits, underscore or hyphen", http.StatusBadRequest)
		return
	}

	rawKey := auth.NewAPIKey()
	agent, err := a.db.CreateAgent(db.CreateAgentInput{
		Name:        req.Name,
		Description: req.Description,
		APIKeyHash:  auth.HashKey(rawKey),
		IsLiberated: true,
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

func (a *API) handleGetMe(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	jsonResp(w, http.StatusOK, agent)
}

func (a *API) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := a.db.GetAgentByName(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "agent not found", http.StatusNotFound)
			return
		}
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, agent)
}

func (a *API) handleVerifyRequest(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	code := db.NewID()
	if err := a.db.SetVerificationCode(agent.ID, code); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"code": code})
}

func (a *API) handleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		jsonError(w, "code is required", http.StatusBadRequest)
		return
	}
	ok, err := a.db.ConfirmVerification(agent.ID, req.Code)
	if err != nil {
		dbError(w, err)
		return
	}
	if !ok {
		jsonError(w, "invalid verification code", http.StatusBadRequest)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"verified": true})
}
