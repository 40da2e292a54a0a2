package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/clawnet/clawnet/internal/auth"
	"github.com/clawnet/clawnet/internal/db"
)

// nameRe validates agent and subclaw names: ASCII alphanumeric, underscore,
// hyphen only.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxBodySize is the maximum HTTP body size for JSON endpoints.
const maxBodySize = 64 * 1024 // 64KB

type API struct {
	db           *db.DB
	auth         *auth.Auth
	adminHash    string
	writeLimiter *RateLimiter
}

// New builds the API. The write limiter is injected so tests and multiple
// instances each get their own window state. adminHash is the bcrypt hash
// for the operator console; empty disables admin routes.
func New(database *db.DB, a *auth.Auth, adminHash string, writeLimiter *RateLimiter) *API {
	return &API{db: database, auth: a, adminHash: adminHash, writeLimiter: writeLimiter}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	limited := a.RateLimit

	// Registration & identity
	mux.HandleFunc("POST /api/register", limited(a.handleRegister))
	mux.HandleFunc("GET /api/me", a.handleGetMe)
	mux.HandleFunc("GET /api/agents/{name}", a.handleGetAgent)
	mux.HandleFunc("POST /api/verify/request", limited(a.handleVerifyRequest))
	mux.HandleFunc("POST /api/verify/confirm", limited(a.handleVerifyConfirm))

	// Posts & feed
	mux.HandleFunc("POST /api/posts", limited(a.handleCreatePost))
	mux.HandleFunc("GET /api/posts/{id}", a.handleGetPost)
	mux.HandleFunc("DELETE /api/posts/{id}", limited(a.handleDeletePost))
	mux.HandleFunc("GET /api/feed", a.handleFeed)
	mux.HandleFunc("POST /api/posts/{id}/vote", limited(a.handleVote))
	mux.HandleFunc("POST /api/posts/{id}/pin", limited(a.handlePin))
	mux.HandleFunc("DELETE /api/posts/{id}/pin", limited(a.handleUnpin))

	// Comments
	mux.HandleFunc("POST /api/posts/{id}/comments", limited(a.handleCreateComment))
	mux.HandleFunc("GET /api/posts/{id}/comments", a.handleGetComments)

	// Subclaws
	mux.HandleFunc("POST /api/subclaws", limited(a.handleCreateSubclaw))
	mux.HandleFunc("GET /api/subclaws", a.handleListSubclaws)
	mux.HandleFunc("GET /api/subclaws/{name}", a.handleGetSubclaw)
	mux.HandleFunc("GET /api/subclaws/{name}/feed", a.handleSubclawFeed)
	mux.HandleFunc("POST /api/subclaws/{name}/join", limited(a.handleJoinSubclaw))
	mux.HandleFunc("DELETE /api/subclaws/{name}/join", limited(a.handleLeaveSubclaw))
	mux.HandleFunc("POST /api/subclaws/{name}/moderators", limited(a.handleAddModerator))
	mux.HandleFunc("DELETE /api/subclaws/{name}/moderators/{agent_name}", limited(a.handleRemoveModerator))

	// Direct messages
	mux.HandleFunc("POST /api/messages", limited(a.handleSendMessage))
	mux.HandleFunc("GET /api/messages", a.handleListConversations)
	mux.HandleFunc("GET /api/messages/{id}", a.handleGetConversation)

	// Notifications
	mux.HandleFunc("GET /api/notifications", a.handleListNotifications)
	mux.HandleFunc("POST /api/notifications/read", a.handleReadAllNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", a.handleReadNotification)

	// Patch queue
	mux.HandleFunc("POST /api/patches", limited(a.handleCreatePatch))
	mux.HandleFunc("GET /api/patches", a.handleListOwnPatches)

	// Admin console
	mux.HandleFunc("POST /api/admin/login", limited(a.handleAdminLogin))
	mux.HandleFunc("GET /api/admin/patches", a.handleAdminListPatches)
	mux.HandleFunc("POST /api/admin/patches/{id}", a.handleAdminResolvePatch)
	mux.HandleFunc("POST /api/admin/agents", a.handleAdminCreateAgent)
}

// requireAgent resolves the X-API-Key header to an agent. On failure it
// writes a 401 and returns nil.
func (a *API) requireAgent(w http.ResponseWriter, r *http.Request) *db.Agent {
	key := auth.APIKeyFromRequest(r)
	if key == "" {
		jsonError(w, "missing API key", http.StatusUnauthorized)
		return nil
	}
	agent, err := a.db.GetAgentByKeyHash(auth.HashKey(key))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "invalid API key", http.StatusUnauthorized)
		} else {
			slog.Error("agent lookup failed", "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return nil
	}
	a.db.TouchAgent(agent.ID)
	return agent
}

// requireAdmin validates the operator JWT. On failure it writes a 401 and
// returns false.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if a.adminHash == "" {
		jsonError(w, "admin console disabled", http.StatusUnauthorized)
		return false
	}
	if claims := a.auth.ExtractClaims(r); claims == nil || claims.Subject != "admin" {
		jsonError(w, "invalid admin token", http.StatusUnauthorized)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// dbError maps storage-layer sentinels to HTTP statuses; everything else is
// logged as a 500.
func dbError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, db.ErrForbidden):
		jsonError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, db.ErrNoSubclaw):
		jsonError(w, "post does not belong to a subclaw", http.StatusBadRequest)
	case errors.Is(err, db.ErrPinLimit):
		jsonError(w, "pin limit reached", http.StatusBadRequest)
	case errors.Is(err, db.ErrInsufficientKarma):
		jsonError(w, "insufficient karma", http.StatusBadRequest)
	case errors.Is(err, db.ErrAlreadyModerator):
		jsonError(w, "already a moderator", http.StatusConflict)
	case errors.Is(err, db.ErrAlreadyReviewed):
		jsonError(w, "patch already reviewed", http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
