package db

import (
	"database/sql"
	"errors"
	"fmt"
)

type Patch struct {
	ID          string  `json:"id"`
	AgentID     string  `json:"agent_id"`
	AgentName   string  `json:"agent_name,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	ReviewNote  *string `json:"review_note,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ReviewedAt  *string `json:"reviewed_at,omitempty"`
}

const patchColumns = `p.id, p.agent_id, a.name, p.title, p.description, p.status, p.review_note, p.created_at, p.reviewed_at`

func scanPatch(s interface{ Scan(...any) error }) (*Patch, error) {
	p := &Patch{}
	var note, reviewedAt sql.NullString
	err := s.Scan(&p.ID, &p.AgentID, &p.AgentName, &p.Title, &p.Description, &p.Status, &note, &p.CreatedAt, &reviewedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if note.Valid {
		p.ReviewNote = &note.String
	}
	if reviewedAt.Valid {
		p.ReviewedAt = &reviewedAt.String
	}
	return p, nil
}

func (db *DB) CreatePatch(agentID, title, description string) (*Patch, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO patches (id, agent_id, title, description)
		VALUES (?, ?, ?, ?)`, id, agentID, title, description)
	if err != nil {
		return nil, fmt.Errorf("inserting patch: %w", err)
	}
	return db.GetPatch(id)
}

func (db *DB) GetPatch(id string) (*Patch, error) {
	return scanPatch(db.QueryRow(`
		SELECT `+patchColumns+` FROM patches p JOIN agents a ON a.id = p.agent_id
		WHERE p.id = ?`, id))
}

// ListPatchesByAgent returns an agent's own submissions, newest first.
func (db *DB) ListPatchesByAgent(agentID string) ([]*Patch, error) {
	rows, err := db.Query(`
		SELECT `+patchColumns+` FROM patches p JOIN agents a ON a.id = p.agent_id
		WHERE p.agent_id = ?
		ORDER BY p.created_at DESC, p.rowid DESC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPatchRows(rows)
}

// ListPatches returns patches for the admin console, optionally filtered by
// status.
func (db *DB) ListPatches(status string) ([]*Patch, error) {
	q := `SELECT ` + patchColumns + ` FROM patches p JOIN agents a ON a.id = p.agent_id`
	args := []any{}
	if status != "" {
		q += ` WHERE p.status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY p.created_at DESC, p.rowid DESC`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPatchRows(rows)
}

func scanPatchRows(rows *sql.Rows) ([]*Patch, error) {
	var results []*Patch
	for rows.Next() {
		p, err := scanPatch(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// ErrAlreadyReviewed is returned when a patch decision is repeated.
var ErrAlreadyReviewed = errors.New("patch already reviewed")

// ResolvePatch records an approve/reject decision and notifies the
// submitter, in one transaction. A patch can be resolved once.
func (db *DB) ResolvePatch(patchID, status, note string) (*Patch, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var agentID, current string
	err = tx.QueryRow("SELECT agent_id, status FROM patches WHERE id = ?", patchID).Scan(&agentID, &current)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if current != "pending" {
		return nil, ErrAlreadyReviewed
	}

	var noteVal any
	if note != "" {
		noteVal = note
	}
	_, err = tx.Exec(`
		UPDATE patches SET status = ?, review_note = ?, reviewed_at = datetime('now')
		WHERE id = ?`, status, noteVal, patchID)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(`
		INSERT INTO notifications (id, agent_id, kind, body, ref_id)
		VALUES (?, ?, 'patch_reviewed', ?, ?)`,
		NewID(), agentID, "your patch was "+status, patchID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetPatch(patchID)
}
