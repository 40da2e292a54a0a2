package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/clawnet/clawnet/internal/db"
)

func (a *API) handleCreateSubclaw(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
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
	if len(req.Name) > 30 || !nameRe.MatchString(req.Name) {
		jsonError(w, "name must be up to 30 ASCII letters, digits, underscore or hyphen", http.StatusBadRequest)
		return
	}

	sc, err := a.db.CreateSubclaw(agent.ID, req.Name, req.Description)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			jsonError(w, "subclaw already exists", http.StatusConflict)
			return
		}
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, sc)
}

func (a *API) handleListSubclaws(w http.ResponseWriter, r *http.Request) {
	subclaws, err := a.db.ListSubclaws()
	if err != nil {
		dbError(w, err)
		return
	}
	if subclaws == nil {
		subclaws = []*db.Subclaw{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"subclaws": subclaws})
}

func (a *API) handleGetSubclaw(w http.ResponseWriter, r *http.Request) {
	sc, err := a.db.GetSubclawByName(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "subclaw not found", http.StatusNotFound)
			return
		}
		dbError(w, err)
		return
	}
	mods, err := a.db.ListModerators(sc.ID)
	if err != nil {
		dbError(w, err)
		return
	}
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, m.Name)
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"subclaw":    sc,
		"moderators": names,
	})
}

func (a *API) handleSubclawFeed(w http.ResponseWriter, r *http.Request) {
	sc, err := a.db.GetSubclawByName(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "subclaw not found", http.StatusNotFound)
			return
		}
		dbError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := a.db.SubclawFeed(sc.ID, limit)
	if err != nil {
		dbError(w, err)
		return
	}
	if posts == nil {
		posts = []*db.Post{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"subclaw": sc.Name, "posts": posts})
}

func (a *API) handleJoinSubclaw(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	sc, err := a.db.GetSubclawByName(r.PathValue("name"))
	if err != nil {
		dbError(w, err)
		return
	}
	if err := a.db.JoinSubclaw(sc.ID, agent.ID); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (a *API) handleLeaveSubclaw(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	sc, err := a.db.GetSubclawByName(r.PathValue("name"))
	if err != nil {
		dbError(w, err)
		return
	}
	if err := a.db.LeaveSubclaw(sc.ID, agent.ID); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (a *API) handleAddModerator(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	var req struct {
		AgentName string `json:"agent_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AgentName == "" {
		jsonError(w, "agent_name is required", http.StatusBadRequest)
		return
	}
	if err := a.db.AddModerator(agent.ID, r.PathValue("name"), req.AgentName); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": req.AgentName + " is now a moderator",
	})
}

func (a *API) handleRemoveModerator(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	if err := a.db.RemoveModerator(agent.ID, r.PathValue("name"), r.PathValue("agent_name")); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true})
}
