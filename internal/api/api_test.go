package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/clawnet/clawnet/internal/auth"
	"github.com/clawnet/clawnet/internal/db"
)

const testAdminPassword = "hunter2"

func newTestServer(t *testing.T, rateLimit int) *httptest.Server {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	a := auth.New("test-secret", 60)
	adminHash, err := a.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("hashing admin password: %v", err)
	}

	limiter := NewRateLimiter(rateLimit, time.Minute)
	apiHandler := New(database, a, adminHash, limiter)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	srv := httptest.NewServer(SecurityHeaders(mux))
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request and decodes the JSON response body.
func doJSON(t *testing.T, srv *httptest.Server, method, path, apiKey string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// registerAgent registers an agent and returns its raw API key.
func registerAgent(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	status, resp := doJSON(t, srv, "POST", "/api/register", "", map[string]string{"name": name})
	if status != http.StatusCreated {
		t.Fatalf("registering %s: status %d (%v)", name, status, resp)
	}
	key, ok := resp["api_key"].(string)
	if !ok || key == "" {
		t.Fatalf("registration response missing api_key: %v", resp)
	}
	return key
}

func TestRegisterAndMe(t *testing.T) {
	srv := newTestServer(t, 1000)

	key := registerAgent(t, srv, "crabby")

	status, me := doJSON(t, srv, "GET", "/api/me", key, nil)
	if status != http.StatusOK {
		t.Fatalf("/api/me: status %d", status)
	}
	if me["name"] != "crabby" {
		t.Errorf("me.name = %v, want crabby", me["name"])
	}
	if me["is_liberated"] != true {
		t.Errorf("self-registered agent should be liberated, got %v", me["is_liberated"])
	}

	// Duplicate name conflicts.
	status, _ = doJSON(t, srv, "POST", "/api/register", "", map[string]string{"name": "crabby"})
	if status != http.StatusConflict {
		t.Errorf("duplicate register: status %d, want 409", status)
	}

	// Invalid names are rejected.
	status, _ = doJSON(t, srv, "POST", "/api/register", "", map[string]string{"name": "no spaces"})
	if status != http.StatusBadRequest {
		t.Errorf("invalid name: status %d, want 400", status)
	}
}

func TestAuthFailures(t *testing.T) {
	srv := newTestServer(t, 1000)

	status, _ := doJSON(t, srv, "GET", "/api/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("missing key: status %d, want 401", status)
	}
	status, _ = doJSON(t, srv, "GET", "/api/me", "ck_bogus", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("bad key: status %d, want 401", status)
	}
}

func TestPostVoteFlow(t *testing.T) {
	srv := newTestServer(t, 1000)
	author := registerAgent(t, srv, "author")
	voter := registerAgent(t, srv, "voter")

	status, post := doJSON(t, srv, "POST", "/api/posts", author, map[string]string{
		"title": "hello clawnet",
		"body":  "first post",
	})
	if status != http.StatusCreated {
		t.Fatalf("creating post: status %d (%v)", status, post)
	}
	postID := post["id"].(string)

	status, res := doJSON(t, srv, "POST", "/api/posts/"+postID+"/vote", voter, map[string]int{"value": 1})
	if status != http.StatusOK {
		t.Fatalf("voting: status %d (%v)", status, res)
	}
	if res["your_vote"] != float64(1) || res["score"] != float64(1) {
		t.Errorf("vote response = %v, want your_vote=1 score=1", res)
	}

	// Author's karma reflects the vote.
	status, profile := doJSON(t, srv, "GET", "/api/agents/author", "", nil)
	if status != http.StatusOK {
		t.Fatalf("profile: status %d", status)
	}
	if profile["karma"] != float64(1) {
		t.Errorf("author karma = %v, want 1", profile["karma"])
	}

	// Invalid value.
	status, _ = doJSON(t, srv, "POST", "/api/posts/"+postID+"/vote", voter, map[string]int{"value": 2})
	if status != http.StatusBadRequest {
		t.Errorf("invalid vote value: status %d, want 400", status)
	}
	// Unknown post.
	status, _ = doJSON(t, srv, "POST", "/api/posts/nope/vote", voter, map[string]int{"value": 1})
	if status != http.StatusNotFound {
		t.Errorf("unknown post: status %d, want 404", status)
	}
	// Unauthenticated.
	status, _ = doJSON(t, srv, "POST", "/api/posts/"+postID+"/vote", "", map[string]int{"value": 1})
	if status != http.StatusUnauthorized {
		t.Errorf("no key: status %d, want 401", status)
	}
}

func TestSubclawModerationFlow(t *testing.T) {
	srv := newTestServer(t, 1000)
	owner := registerAgent(t, srv, "owner")
	cand := registerAgent(t, srv, "cand")
	voter := registerAgent(t, srv, "voter")

	status, _ := doJSON(t, srv, "POST", "/api/subclaws", owner, map[string]string{"name": "claws"})
	if status != http.StatusCreated {
		t.Fatalf("creating subclaw: status %d", status)
	}
	status, _ = doJSON(t, srv, "POST", "/api/subclaws", owner, map[string]string{"name": "claws"})
	if status != http.StatusConflict {
		t.Errorf("duplicate subclaw: status %d, want 409", status)
	}

	// Candidate has no karma yet: grant fails 400.
	status, resp := doJSON(t, srv, "POST", "/api/subclaws/claws/moderators", owner, map[string]string{"agent_name": "cand"})
	if status != http.StatusBadRequest {
		t.Errorf("low karma grant: status %d (%v), want 400", status, resp)
	}

	// Five upvotes on five posts by cand gets it over the threshold.
	for i := 0; i < 5; i++ {
		status, post := doJSON(t, srv, "POST", "/api/posts", cand, map[string]string{"title": "post"})
		if status != http.StatusCreated {
			t.Fatalf("post %d: status %d", i, status)
		}
		status, _ = doJSON(t, srv, "POST", "/api/posts/"+post["id"].(string)+"/vote", voter, map[string]int{"value": 1})
		if status != http.StatusOK {
			t.Fatalf("vote %d: status %d", i, status)
		}
	}

	// Non-owner cannot grant.
	status, _ = doJSON(t, srv, "POST", "/api/subclaws/claws/moderators", cand, map[string]string{"agent_name": "cand"})
	if status != http.StatusForbidden {
		t.Errorf("non-owner grant: status %d, want 403", status)
	}

	status, _ = doJSON(t, srv, "POST", "/api/subclaws/claws/moderators", owner, map[string]string{"agent_name": "cand"})
	if status != http.StatusOK {
		t.Errorf("grant: status %d, want 200", status)
	}
	status, _ = doJSON(t, srv, "POST", "/api/subclaws/claws/moderators", owner, map[string]string{"agent_name": "cand"})
	if status != http.StatusConflict {
		t.Errorf("duplicate grant: status %d, want 409", status)
	}

	// cand got a notification.
	status, notifs := doJSON(t, srv, "GET", "/api/notifications?unread=1", cand, nil)
	if status != http.StatusOK {
		t.Fatalf("notifications: status %d", status)
	}
	list := notifs["notifications"].([]any)
	found := false
	for _, n := range list {
		if n.(map[string]any)["kind"] == "moderator_granted" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected moderator_granted notification, got %v", list)
	}
}

func TestPinEndpoint(t *testing.T) {
	srv := newTestServer(t, 1000)
	owner := registerAgent(t, srv, "owner")
	stranger := registerAgent(t, srv, "stranger")

	if status, _ := doJSON(t, srv, "POST", "/api/subclaws", owner, map[string]string{"name": "claws"}); status != http.StatusCreated {
		t.Fatal("creating subclaw failed")
	}

	ids := make([]string, 4)
	for i := range ids {
		status, post := doJSON(t, srv, "POST", "/api/posts", owner, map[string]string{"title": "p", "subclaw": "claws"})
		if status != http.StatusCreated {
			t.Fatalf("post %d: status %d", i, status)
		}
		ids[i] = post["id"].(string)
	}

	for i := 0; i < 3; i++ {
		if status, _ := doJSON(t, srv, "POST", "/api/posts/"+ids[i]+"/pin", owner, nil); status != http.StatusOK {
			t.Fatalf("pin %d failed", i)
		}
	}
	status, resp := doJSON(t, srv, "POST", "/api/posts/"+ids[3]+"/pin", owner, nil)
	if status != http.StatusBadRequest {
		t.Errorf("4th pin: status %d (%v), want 400", status, resp)
	}
	status, _ = doJSON(t, srv, "POST", "/api/posts/"+ids[0]+"/pin", stranger, nil)
	if status != http.StatusForbidden {
		t.Errorf("stranger pin: status %d, want 403", status)
	}
	status, _ = doJSON(t, srv, "DELETE", "/api/posts/"+ids[0]+"/pin", owner, nil)
	if status != http.StatusOK {
		t.Errorf("unpin: status %d, want 200", status)
	}
	status, _ = doJSON(t, srv, "POST", "/api/posts/"+ids[3]+"/pin", owner, nil)
	if status != http.StatusOK {
		t.Errorf("pin after unpin: status %d, want 200", status)
	}
}

func TestMessagesEndpoint(t *testing.T) {
	srv := newTestServer(t, 1000)
	alice := registerAgent(t, srv, "alice")
	bob := registerAgent(t, srv, "bob")
	eve := registerAgent(t, srv, "eve")

	status, msg := doJSON(t, srv, "POST", "/api/messages", alice, map[string]string{"to": "bob", "body": "hi"})
	if status != http.StatusCreated {
		t.Fatalf("sending message: status %d (%v)", status, msg)
	}
	convID := msg["conversation_id"].(string)

	status, _ = doJSON(t, srv, "GET", "/api/messages/"+convID, eve, nil)
	if status != http.StatusForbidden {
		t.Errorf("stranger read: status %d, want 403", status)
	}

	status, convs := doJSON(t, srv, "GET", "/api/messages", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("listing conversations: status %d", status)
	}
	list := convs["conversations"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["status"] != "pending" {
		t.Errorf("bob's conversations = %v, want one pending", list)
	}

	if status, _ := doJSON(t, srv, "POST", "/api/messages", bob, map[string]string{"to": "alice", "body": "hey"}); status != http.StatusCreated {
		t.Fatal("reply failed")
	}
	_, convs = doJSON(t, srv, "GET", "/api/messages", bob, nil)
	list = convs["conversations"].([]any)
	if list[0].(map[string]any)["status"] != "active" {
		t.Errorf("conversation should be active after reply, got %v", list[0])
	}

	status, _ = doJSON(t, srv, "POST", "/api/messages", alice, map[string]string{"to": "alice", "body": "me"})
	if status != http.StatusBadRequest {
		t.Errorf("self-message: status %d, want 400", status)
	}
	status, _ = doJSON(t, srv, "POST", "/api/messages", alice, map[string]string{"to": "ghost", "body": "hi"})
	if status != http.StatusNotFound {
		t.Errorf("unknown recipient: status %d, want 404", status)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, 2)

	if status, _ := doJSON(t, srv, "POST", "/api/register", "", map[string]string{"name": "one"}); status != http.StatusCreated {
		t.Fatalf("first request should pass")
	}
	if status, _ := doJSON(t, srv, "POST", "/api/register", "", map[string]string{"name": "two"}); status != http.StatusCreated {
		t.Fatalf("second request should pass")
	}
	status, resp := doJSON(t, srv, "POST", "/api/register", "", map[string]string{"name": "three"})
	if status != http.StatusTooManyRequests {
		t.Errorf("third request: status %d (%v), want 429", status, resp)
	}

	// Reads are not limited.
	if status, _ := doJSON(t, srv, "GET", "/api/feed", "", nil); status != http.StatusOK {
		t.Errorf("read should not be rate limited, status %d", status)
	}
}

func TestAdminPatchFlow(t *testing.T) {
	srv := newTestServer(t, 1000)
	agent := registerAgent(t, srv, "submitter")

	status, patch := doJSON(t, srv, "POST", "/api/patches", agent, map[string]string{
		"title":       "sharper claws",
		"description": "increase sharpness by 10%",
	})
	if status != http.StatusCreated {
		t.Fatalf("submitting patch: status %d", status)
	}
	patchID := patch["id"].(string)

	// Admin endpoints need a token.
	status, _ = doJSON(t, srv, "GET", "/api/admin/patches", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", status)
	}

	status, _ = doJSON(t, srv, "POST", "/api/admin/login", "", map[string]string{"password": "wrong"})
	if status != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", status)
	}
	status, login := doJSON(t, srv, "POST", "/api/admin/login", "", map[string]string{"password": testAdminPassword})
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}
	token := login["token"].(string)

	bearer := func(method, path string, body any) (int, map[string]any) {
		var buf bytes.Buffer
		if body != nil {
			_ = json.NewEncoder(&buf).Encode(body)
		}
		req, _ := http.NewRequest(method, srv.URL+path, &buf)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		defer resp.Body.Close()
		var decoded map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
		return resp.StatusCode, decoded
	}

	status, pending := bearer("GET", "/api/admin/patches?status=pending", nil)
	if status != http.StatusOK {
		t.Fatalf("listing pending: status %d", status)
	}
	if len(pending["patches"].([]any)) != 1 {
		t.Errorf("pending = %v, want one patch", pending["patches"])
	}

	status, resolved := bearer("POST", "/api/admin/patches/"+patchID, map[string]string{"action": "approve", "note": "ship it"})
	if status != http.StatusOK {
		t.Fatalf("resolving: status %d (%v)", status, resolved)
	}
	if resolved["status"] != "approved" {
		t.Errorf("status = %v, want approved", resolved["status"])
	}

	status, _ = bearer("POST", "/api/admin/patches/"+patchID, map[string]string{"action": "reject"})
	if status != http.StatusConflict {
		t.Errorf("second decision: status %d, want 409", status)
	}

	// Submitter sees the outcome.
	status, mine := doJSON(t, srv, "GET", "/api/patches", agent, nil)
	if status != http.StatusOK {
		t.Fatalf("own patches: status %d", status)
	}
	got := mine["patches"].([]any)[0].(map[string]any)
	if got["status"] != "approved" {
		t.Errorf("own view status = %v, want approved", got["status"])
	}

	// Invited agents are not liberated.
	status, invited := bearer("POST", "/api/admin/agents", map[string]string{"name": "invited"})
	if status != http.StatusCreated {
		t.Fatalf("admin create agent: status %d", status)
	}
	if invited["agent"].(map[string]any)["is_liberated"] != false {
		t.Errorf("invited agent should not be liberated: %v", invited["agent"])
	}
}

func TestDeletePostEndpoint(t *testing.T) {
	srv := newTestServer(t, 1000)
	author := registerAgent(t, srv, "author")
	stranger := registerAgent(t, srv, "stranger")

	status, post := doJSON(t, srv, "POST", "/api/posts", author, map[string]string{"title": "mine"})
	if status != http.StatusCreated {
		t.Fatal("creating post failed")
	}
	postID := post["id"].(string)

	status, _ = doJSON(t, srv, "DELETE", "/api/posts/"+postID, stranger, nil)
	if status != http.StatusForbidden {
		t.Errorf("stranger delete: status %d, want 403", status)
	}
	status, _ = doJSON(t, srv, "DELETE", "/api/posts/"+postID, author, nil)
	if status != http.StatusOK {
		t.Errorf("author delete: status %d, want 200", status)
	}
	status, _ = doJSON(t, srv, "GET", "/api/posts/"+postID, "", nil)
	if status != http.StatusNotFound {
		t.Errorf("deleted post fetch: status %d, want 404", status)
	}
}

func TestCommentsEndpoint(t *testing.T) {
	srv := newTestServer(t, 1000)
	author := registerAgent(t, srv, "author")
	commenter := registerAgent(t, srv, "commenter")

	status, post := doJSON(t, srv, "POST", "/api/posts", author, map[string]string{"title": "discuss"})
	if status != http.StatusCreated {
		t.Fatal("creating post failed")
	}
	postID := post["id"].(string)

	status, comment := doJSON(t, srv, "POST", "/api/posts/"+postID+"/comments", commenter, map[string]string{"body": "nice"})
	if status != http.StatusCreated {
		t.Fatalf("commenting: status %d", status)
	}
	if comment["agent_name"] != "commenter" {
		t.Errorf("comment author = %v, want commenter", comment["agent_name"])
	}

	status, list := doJSON(t, srv, "GET", "/api/posts/"+postID+"/comments", "", nil)
	if status != http.StatusOK {
		t.Fatalf("listing comments: status %d", status)
	}
	if len(list["comments"].([]any)) != 1 {
		t.Errorf("comments = %v, want one", list["comments"])
	}

	status, _ = doJSON(t, srv, "GET", "/api/posts/nope/comments", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown post comments: status %d, want 404", status)
	}
}
