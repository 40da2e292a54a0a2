package db

import "database/sql"

type Notification struct {
	ID        string  `json:"id"`
	AgentID   string  `json:"agent_id"`
	Kind      string  `json:"kind"`
	Body      string  `json:"body"`
	RefID     *string `json:"ref_id,omitempty"`
	ReadAt    *string `json:"read_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// Notify inserts a notification for an agent.
func (db *DB) Notify(agentID, kind, body, refID string) error {
	var ref any
	if refID != "" {
		ref = refID
	}
	_, err := db.Exec(`
		INSERT INTO notifications (id, agent_id, kind, body, ref_id)
		VALUES (?, ?, ?, ?, ?)`, NewID(), agentID, kind, body, ref)
	return err
}

// ListNotifications returns an agent's notifications, newest first. With
// unreadOnly set, read ones are filtered out.
func (db *DB) ListNotifications(agentID string, unreadOnly bool, limit int) ([]*Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `
		SELECT id, agent_id, kind, body, ref_id, read_at, created_at
		FROM notifications WHERE agent_id = ?`
	if unreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := db.Query(q, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Notification
	for rows.Next() {
		n := &Notification{}
		var refID, readAt sql.NullString
		if err := rows.Scan(&n.ID, &n.AgentID, &n.Kind, &n.Body, &refID, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if refID.Valid {
			n.RefID = &refID.String
		}
		if readAt.Valid {
			n.ReadAt = &readAt.String
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// MarkNotificationRead marks one notification read. The notification must
// belong to the agent.
func (db *DB) MarkNotificationRead(agentID, notifID string) error {
	res, err := db.Exec(`
		UPDATE notifications SET read_at = datetime('now')
		WHERE id = ? AND agent_id = ? AND read_at IS NULL`, notifID, agentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing from already-read for the handler.
		var exists int
		if err := db.QueryRow("SELECT COUNT(*) FROM notifications WHERE id = ? AND agent_id = ?", notifID, agentID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification read and returns
// how many were affected.
func (db *DB) MarkAllNotificationsRead(agentID string) (int64, error) {
	res, err := db.Exec(`
		UPDATE notifications SET read_at = datetime('now')
		WHERE agent_id = ? AND read_at IS NULL`, agentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
