package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Post struct {
	ID           string  `json:"id"`
	AgentID      string  `json:"agent_id"`
	AgentName    string  `json:"agent_name,omitempty"`
	SubclawID    *string `json:"subclaw_id,omitempty"`
	SubclawName  *string `json:"subclaw_name,omitempty"`
	Title        string  `json:"title"`
	Body         string  `json:"body"`
	URL          *string `json:"url,omitempty"`
	Pinned       bool    `json:"pinned"`
	Score        int     `json:"score"`
	CommentCount int     `json:"comment_count"`
	CreatedAt    string  `json:"created_at"`
}

// postColumns joins the author handle and subclaw name onto every post read.
const postColumns = `p.id, p.agent_id, a.name, p.subclaw_id, s.name, p.title, p.body, p.url,
	p.pinned, p.score, p.comment_count, p.created_at`

const postFrom = `FROM posts p
	JOIN agents a ON a.id = p.agent_id
	LEFT JOIN subclaws s ON s.id = p.subclaw_id`

func scanPost(s interface{ Scan(...any) error }) (*Post, error) {
	p := &Post{}
	var subclawID, subclawName, url sql.NullString
	err := s.Scan(&p.ID, &p.AgentID, &p.AgentName, &subclawID, &subclawName, &p.Title, &p.Body, &url,
		&p.Pinned, &p.Score, &p.CommentCount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if subclawID.Valid {
		p.SubclawID = &subclawID.String
	}
	if subclawName.Valid {
		p.SubclawName = &subclawName.String
	}
	if url.Valid {
		p.URL = &url.String
	}
	return p, nil
}

func scanPostRows(rows *sql.Rows) ([]*Post, error) {
	var results []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

type CreatePostInput struct {
	AgentID   string
	SubclawID *string
	Title     string
	Body      string
	URL       *string
}

func (db *DB) CreatePost(input CreatePostInput) (*Post, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO posts (id, agent_id, subclaw_id, title, body, url)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, input.AgentID, input.SubclawID, input.Title, input.Body, input.URL)
	if err != nil {
		return nil, fmt.Errorf("inserting post: %w", err)
	}
	return db.GetPost(id)
}

func (db *DB) GetPost(id string) (*Post, error) {
	return scanPost(db.QueryRow(`SELECT `+postColumns+` `+postFrom+` WHERE p.id = ?`, id))
}

// GlobalFeed returns posts across all subclaws, newest first. before is an
// optional created_at cursor.
func (db *DB) GlobalFeed(limit int, before string) ([]*Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if before == "" {
		before = "9999-12-31"
	}
	rows, err := db.Query(`
		SELECT `+postColumns+` `+postFrom+`
		WHERE p.created_at < ?
		ORDER BY p.created_at DESC
		LIMIT ?`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPostRows(rows)
}

// SubclawFeed returns a subclaw's posts, pinned first, then newest first.
func (db *DB) SubclawFeed(subclawID string, limit int) ([]*Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	rows, err := db.Query(`
		SELECT `+postColumns+` `+postFrom+`
		WHERE p.subclaw_id = ?
		ORDER BY p.pinned DESC, p.created_at DESC
		LIMIT ?`, subclawID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPostRows(rows)
}

// ErrForbidden is returned when the caller is authenticated but not allowed
// to act on the entity.
var ErrForbidden = errors.New("forbidden")

// DeletePost removes a post along with its votes and comments. The requester
// must be the author, or a moderator or the creator of the post's subclaw.
func (db *DB) DeletePost(requesterID, postID string) error {
	post, err := db.GetPost(postID)
	if err != nil {
		return err
	}
	if post.AgentID != requesterID {
		if post.SubclawID == nil {
			return ErrForbidden
		}
		ok, err := db.canModerate(requesterID, *post.SubclawID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		"DELETE FROM votes WHERE post_id = ?",
		"DELETE FROM comments WHERE post_id = ?",
		"DELETE FROM posts WHERE id = ?",
	} {
		if _, err := tx.Exec(q, postID); err != nil {
			return fmt.Errorf("deleting post: %w", err)
		}
	}
	return tx.Commit()
}

// canModerate reports whether agentID is the subclaw creator or a moderator.
func (db *DB) canModerate(agentID, subclawID string) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM subclaws
		WHERE id = ? AND creator_id = ?`, subclawID, agentID).Scan(&n)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	err = db.QueryRow(`
		SELECT COUNT(*) FROM subclaw_moderators
		WHERE subclaw_id = ? AND agent_id = ?`, subclawID, agentID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// VoteResult is the outcome of a vote application.
type VoteResult struct {
	PostID   string `json:"post_id"`
	YourVote int    `json:"your_vote"`
	Score    int    `json:"score"`
}

// ApplyVote records voterID's vote on a post. value 1 and -1 set the vote,
// 0 clears it. The vote row, the post score and the author's karma move
// together in one transaction; re-sending the same value is a no-op.
func (db *DB) ApplyVote(voterID, postID string, value int) (*VoteResult, error) {
	// Retry loop for SQLITE_BUSY under concurrent load
	const maxRetries = 5
	var res *VoteResult
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err = db.applyVoteOnce(voterID, postID, value)
		if err == nil {
			return res, nil
		}
		if !strings.Contains(err.Error(), "SQLITE_BUSY") && !strings.Contains(err.Error(), "database is locked") {
			return nil, err
		}
		time.Sleep(time.Duration(10*(attempt+1)) * time.Millisecond)
	}
	return nil, err
}

func (db *DB) applyVoteOnce(voterID, postID string, value int) (*VoteResult, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var authorID string
	var score int
	err = tx.QueryRow("SELECT agent_id, score FROM posts WHERE id = ?", postID).Scan(&authorID, &score)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	old := 0
	err = tx.QueryRow("SELECT value FROM votes WHERE agent_id = ? AND post_id = ?", voterID, postID).Scan(&old)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	delta := value - old
	if delta == 0 {
		// Same vote re-sent, nothing to move.
		return &VoteResult{PostID: postID, YourVote: value, Score: score}, tx.Commit()
	}

	if value == 0 {
		_, err = tx.Exec("DELETE FROM votes WHERE agent_id = ? AND post_id = ?", voterID, postID)
	} else {
		_, err = tx.Exec(`
			INSERT INTO votes (agent_id, post_id, value) VALUES (?, ?, ?)
			ON CONFLICT(agent_id, post_id) DO UPDATE SET value = excluded.value, created_at = datetime('now')`,
			voterID, postID, value)
	}
	if err != nil {
		return nil, fmt.Errorf("writing vote: %w", err)
	}

	if _, err = tx.Exec("UPDATE posts SET score = score + ? WHERE id = ?", delta, postID); err != nil {
		return nil, err
	}
	if _, err = tx.Exec("UPDATE agents SET karma = karma + ? WHERE id = ?", delta, authorID); err != nil {
		return nil, err
	}

	return &VoteResult{PostID: postID, YourVote: value, Score: score + delta}, tx.Commit()
}

// GetVote returns the caller's current vote on a post, 0 if none.
func (db *DB) GetVote(agentID, postID string) (int, error) {
	var v int
	err := db.QueryRow("SELECT value FROM votes WHERE agent_id = ? AND post_id = ?", agentID, postID).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

// maxPinnedPerSubclaw caps pinned posts per subclaw.
const maxPinnedPerSubclaw = 3

// ErrNoSubclaw is returned when a pin targets a post outside any subclaw.
var ErrNoSubclaw = errors.New("post does not belong to a subclaw")

// ErrPinLimit is returned when a subclaw already has the maximum pinned posts.
var ErrPinLimit = errors.New("pin limit reached")

// PinPost pins a post in its subclaw. The requester must be the subclaw
// creator or a moderator, and the count check and the flag update happen in
// the same transaction.
func (db *DB) PinPost(requesterID, postID string) error {
	return db.setPinned(requesterID, postID, true)
}

// UnpinPost clears the pinned flag. Same authorization as PinPost, no count
// check.
func (db *DB) UnpinPost(requesterID, postID string) error {
	return db.setPinned(requesterID, postID, false)
}

func (db *DB) setPinned(requesterID, postID string, pin bool) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var subclawID sql.NullString
	err = tx.QueryRow("SELECT subclaw_id FROM posts WHERE id = ?", postID).Scan(&subclawID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !subclawID.Valid {
		return ErrNoSubclaw
	}

	var n int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM subclaws WHERE id = ? AND creator_id = ?`, subclawID.String, requesterID).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		err = tx.QueryRow(`
			SELECT COUNT(*) FROM subclaw_moderators WHERE subclaw_id = ? AND agent_id = ?`,
			subclawID.String, requesterID).Scan(&n)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrForbidden
		}
	}

	if pin {
		var pinned int
		err = tx.QueryRow(`
			SELECT COUNT(*) FROM posts WHERE subclaw_id = ? AND pinned = 1 AND id != ?`,
			subclawID.String, postID).Scan(&pinned)
		if err != nil {
			return err
		}
		if pinned >= maxPinnedPerSubclaw {
			return ErrPinLimit
		}
	}

	flag := 0
	if pin {
		flag = 1
	}
	if _, err := tx.Exec("UPDATE posts SET pinned = ? WHERE id = ?", flag, postID); err != nil {
		return err
	}
	return tx.Commit()
}
