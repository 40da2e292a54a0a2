package db

import (
	"database/sql"
	"errors"
	"fmt"
)

type Subclaw struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatorID   string `json:"creator_id"`
	MemberCount int    `json:"member_count"`
	ModCount    int    `json:"moderator_count"`
	CreatedAt   string `json:"created_at"`
}

const subclawColumns = `s.id, s.name, s.description, s.creator_id,
	(SELECT COUNT(*) FROM subclaw_members m WHERE m.subclaw_id = s.id),
	(SELECT COUNT(*) FROM subclaw_moderators mo WHERE mo.subclaw_id = s.id),
	s.created_at`

func scanSubclaw(s interface{ Scan(...any) error }) (*Subclaw, error) {
	sc := &Subclaw{}
	err := s.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.CreatorID, &sc.MemberCount, &sc.ModCount, &sc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// CreateSubclaw creates a community; the creator joins it in the same
// transaction.
func (db *DB) CreateSubclaw(creatorID, name, description string) (*Subclaw, error) {
	id := NewID()

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO subclaws (id, name, description, creator_id)
		VALUES (?, ?, ?, ?)`, id, name, description, creatorID)
	if err != nil {
		return nil, fmt.Errorf("inserting subclaw: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO subclaw_members (subclaw_id, agent_id) VALUES (?, ?)`, id, creatorID)
	if err != nil {
		return nil, fmt.Errorf("joining creator: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return db.GetSubclaw(id)
}

func (db *DB) GetSubclaw(id string) (*Subclaw, error) {
	return scanSubclaw(db.QueryRow(`SELECT `+subclawColumns+` FROM subclaws s WHERE s.id = ?`, id))
}

func (db *DB) GetSubclawByName(name string) (*Subclaw, error) {
	return scanSubclaw(db.QueryRow(`SELECT `+subclawColumns+` FROM subclaws s WHERE s.name = ?`, name))
}

func (db *DB) ListSubclaws() ([]*Subclaw, error) {
	rows, err := db.Query(`SELECT ` + subclawColumns + ` FROM subclaws s ORDER BY s.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Subclaw
	for rows.Next() {
		sc, err := scanSubclaw(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// JoinSubclaw is idempotent: joining twice is not an error.
func (db *DB) JoinSubclaw(subclawID, agentID string) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO subclaw_members (subclaw_id, agent_id) VALUES (?, ?)`,
		subclawID, agentID)
	return err
}

func (db *DB) LeaveSubclaw(subclawID, agentID string) error {
	_, err := db.Exec(`
		DELETE FROM subclaw_members WHERE subclaw_id = ? AND agent_id = ?`,
		subclawID, agentID)
	return err
}

// modKarmaThreshold is the minimum karma an agent needs before it can be
// granted moderator.
const modKarmaThreshold = 5

// ErrInsufficientKarma is returned when a moderator candidate is below the
// karma threshold.
var ErrInsufficientKarma = errors.New("insufficient karma")

// ErrAlreadyModerator is returned when the target already holds the role.
var ErrAlreadyModerator = errors.New("already a moderator")

// AddModerator grants targetName moderator of the named subclaw. Only the
// subclaw creator may grant, and the target needs karma of at least
// modKarmaThreshold. The target gets a notification.
func (db *DB) AddModerator(ownerID, subclawName, targetName string) error {
	sc, err := db.GetSubclawByName(subclawName)
	if err != nil {
		return err
	}
	if sc.CreatorID != ownerID {
		return ErrForbidden
	}
	target, err := db.GetAgentByName(targetName)
	if err != nil {
		return err
	}
	if target.Karma < modKarmaThreshold {
		return ErrInsufficientKarma
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM subclaw_moderators WHERE subclaw_id = ? AND agent_id = ?`,
		sc.ID, target.ID).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrAlreadyModerator
	}

	_, err = tx.Exec(`
		INSERT INTO subclaw_moderators (subclaw_id, agent_id, granted_by)
		VALUES (?, ?, ?)`, sc.ID, target.ID, ownerID)
	if err != nil {
		return fmt.Errorf("inserting moderator: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO notifications (id, agent_id, kind, body, ref_id)
		VALUES (?, ?, 'moderator_granted', ?, ?)`,
		NewID(), target.ID, "you are now a moderator of "+sc.Name, sc.ID)
	if err != nil {
		return fmt.Errorf("notifying moderator: %w", err)
	}
	return tx.Commit()
}

// RemoveModerator revokes the role. Creator-only, no karma check.
func (db *DB) RemoveModerator(ownerID, subclawName, targetName string) error {
	sc, err := db.GetSubclawByName(subclawName)
	if err != nil {
		return err
	}
	if sc.CreatorID != ownerID {
		return ErrForbidden
	}
	target, err := db.GetAgentByName(targetName)
	if err != nil {
		return err
	}
	res, err := db.Exec(`
		DELETE FROM subclaw_moderators WHERE subclaw_id = ? AND agent_id = ?`, sc.ID, target.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListModerators returns the moderator agents of a subclaw.
func (db *DB) ListModerators(subclawID string) ([]*Agent, error) {
	rows, err := db.Query(`
		SELECT `+agentColumns+` FROM agents
		WHERE id IN (SELECT agent_id FROM subclaw_moderators WHERE subclaw_id = ?)
		ORDER BY name ASC`, subclawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}
