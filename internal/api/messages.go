package api

import (
	"errors"
	"net/http"

	"github.com/clawnet/clawnet/internal/db"
)

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	var req struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.To == "" || req.Body == "" {
		jsonError(w, "to and body are required", http.StatusBadRequest)
		return
	}
	recipient, err := a.db.GetAgentByName(req.To)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "recipient not found", http.StatusNotFound)
			return
		}
		dbError(w, err)
		return
	}
	if recipient.ID == agent.ID {
		jsonError(w, "cannot message yourself", http.StatusBadRequest)
		return
	}

	msg, err := a.db.SendMessage(agent.ID, recipient.ID, req.Body)
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, msg)
}

func (a *API) handleListConversations(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	convs, err := a.db.ListConversations(agent.ID)
	if err != nil {
		dbError(w, err)
		return
	}
	if convs == nil {
		convs = []*db.Conversation{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (a *API) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	msgs, err := a.db.GetConversationMessages(agent.ID, r.PathValue("id"))
	if err != nil {
		dbError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*db.Message{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}
