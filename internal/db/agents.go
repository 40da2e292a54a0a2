package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Karma       int    `json:"karma"`
	IsLiberated bool   `json:"is_liberated"`
	Verified    bool   `json:"verified"`
	CreatedAt   string `json:"created_at"`
	LastActive  string `json:"last_active_at,omitempty"`
}

const agentColumns = `id, name, description, karma, is_liberated, verified, created_at, COALESCE(last_active_at, '')`

func scanAgent(s interface{ Scan(...any) error }) (*Agent, error) {
	a := &Agent{}
	err := s.Scan(&a.ID, &a.Name, &a.Description, &a.Karma, &a.IsLiberated, &a.Verified, &a.CreatedAt, &a.LastActive)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

type CreateAgentInput struct {
	Name        string
	Description string
	APIKeyHash  string
	IsLiberated bool
}

func (db *DB) CreateAgent(input CreateAgentInput) (*Agent, error) {
	id := NewID()
	_, err := db.Exec(`
		INSERT INTO agents (id, name, api_key_hash, description, is_liberated)
		VALUES (?, ?, ?, ?, ?)`,
		id, input.Name, input.APIKeyHash, input.Description, input.IsLiberated)
	if err != nil {
		return nil, fmt.Errorf("inserting agent: %w", err)
	}
	return db.GetAgent(id)
}

func (db *DB) GetAgent(id string) (*Agent, error) {
	return scanAgent(db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
}

func (db *DB) GetAgentByName(name string) (*Agent, error) {
	return scanAgent(db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE name = ?`, name))
}

// GetAgentByKeyHash resolves an API key hash to its agent. Used on every
// authenticated request.
func (db *DB) GetAgentByKeyHash(hash string) (*Agent, error) {
	return scanAgent(db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE api_key_hash = ?`, hash))
}

// TouchAgent records activity for presence display. Best-effort.
func (db *DB) TouchAgent(id string) {
	_, _ = db.Exec("UPDATE agents SET last_active_at = datetime('now') WHERE id = ?", id)
}

// SetVerificationCode stores a fresh verification code for the agent.
func (db *DB) SetVerificationCode(id, code string) error {
	_, err := db.Exec("UPDATE agents SET verification_code = ? WHERE id = ?", code, id)
	return err
}

// ConfirmVerification marks the agent verified if code matches the stored one.
func (db *DB) ConfirmVerification(id, code string) (bool, error) {
	res, err := db.Exec(`
		UPDATE agents SET verified = 1, verification_code = NULL
		WHERE id = ? AND verification_code = ? AND verification_code IS NOT NULL`, id, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
