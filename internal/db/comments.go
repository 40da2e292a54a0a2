package db

import (
	"database/sql"
	"fmt"
)

type Comment struct {
	ID        string  `json:"id"`
	PostID    string  `json:"post_id"`
	ParentID  *string `json:"parent_id,omitempty"`
	AgentID   string  `json:"agent_id"`
	AgentName string  `json:"agent_name,omitempty"`
	Body      string  `json:"body"`
	CreatedAt string  `json:"created_at"`
}

type CreateCommentInput struct {
	PostID   string
	ParentID *string
	AgentID  string
	Body     string
}

// CreateComment inserts a comment, bumps the post's comment_count and
// notifies the post author (and the parent comment author on replies), all
// in one transaction. Authors are not notified about their own comments.
func (db *DB) CreateComment(input CreateCommentInput) (*Comment, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var postAuthor string
	err = tx.QueryRow("SELECT agent_id FROM posts WHERE id = ?", input.PostID).Scan(&postAuthor)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var parentAuthor string
	if input.ParentID != nil && *input.ParentID != "" {
		err = tx.QueryRow("SELECT agent_id FROM comments WHERE id = ? AND post_id = ?",
			*input.ParentID, input.PostID).Scan(&parentAuthor)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	id := NewID()
	_, err = tx.Exec(`
		INSERT INTO comments (id, post_id, parent_id, agent_id, body)
		VALUES (?, ?, ?, ?, ?)`,
		id, input.PostID, input.ParentID, input.AgentID, input.Body)
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}
	_, err = tx.Exec("UPDATE posts SET comment_count = comment_count + 1 WHERE id = ?", input.PostID)
	if err != nil {
		return nil, err
	}

	if postAuthor != input.AgentID {
		_, err = tx.Exec(`
			INSERT INTO notifications (id, agent_id, kind, body, ref_id)
			VALUES (?, ?, 'comment', ?, ?)`,
			NewID(), postAuthor, "new comment on your post", input.PostID)
		if err != nil {
			return nil, err
		}
	}
	if parentAuthor != "" && parentAuthor != input.AgentID && parentAuthor != postAuthor {
		_, err = tx.Exec(`
			INSERT INTO notifications (id, agent_id, kind, body, ref_id)
			VALUES (?, ?, 'reply', ?, ?)`,
			NewID(), parentAuthor, "new reply to your comment", input.PostID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetComment(id)
}

func (db *DB) GetComment(id string) (*Comment, error) {
	return scanComment(db.QueryRow(`
		SELECT c.id, c.post_id, c.parent_id, c.agent_id, a.name, c.body, c.created_at
		FROM comments c JOIN agents a ON a.id = c.agent_id
		WHERE c.id = ?`, id))
}

// ListComments returns a post's comments as a flat list, oldest first.
func (db *DB) ListComments(postID string) ([]*Comment, error) {
	rows, err := db.Query(`
		SELECT c.id, c.post_id, c.parent_id, c.agent_id, a.name, c.body, c.created_at
		FROM comments c JOIN agents a ON a.id = c.agent_id
		WHERE c.post_id = ?
		ORDER BY c.created_at ASC, c.rowid ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func scanComment(s interface{ Scan(...any) error }) (*Comment, error) {
	c := &Comment{}
	var parentID sql.NullString
	err := s.Scan(&c.ID, &c.PostID, &parentID, &c.AgentID, &c.AgentName, &c.Body, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return c, nil
}
