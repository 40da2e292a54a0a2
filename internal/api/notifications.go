package api

import (
	"net/http"

	"github.com/clawnet/clawnet/internal/db"
)

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "1"
	notifs, err := a.db.ListNotifications(agent.ID, unreadOnly, 0)
	if err != nil {
		dbError(w, err)
		return
	}
	if notifs == nil {
		notifs = []*db.Notification{}
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"notifications": notifs})
}

func (a *API) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	if err := a.db.MarkNotificationRead(agent.ID, r.PathValue("id")); err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (a *API) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	agent := a.requireAgent(w, r)
	if agent == nil {
		return
	}
	n, err := a.db.MarkAllNotificationsRead(agent.ID)
	if err != nil {
		dbError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{"success": true, "marked": n})
}
