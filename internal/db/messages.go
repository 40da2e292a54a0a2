package db

import (
	"database/sql"
	"fmt"
)

type Conversation struct {
	ID          string `json:"id"`
	InitiatorID string `json:"initiator_id"`
	RecipientID string `json:"recipient_id"`
	PeerName    string `json:"peer_name,omitempty"`
	Status      string `json:"status"`
	LastMessage string `json:"last_message_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
}

// SendMessage delivers a direct message from sender to the named recipient.
// The first message between a pair opens a pending conversation; a reply
// from the recipient activates it. The recipient gets a notification.
func (db *DB) SendMessage(senderID, recipientID, body string) (*Message, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var convID, initiatorID, status string
	err = tx.QueryRow(`
		SELECT id, initiator_id, status FROM conversations
		WHERE (initiator_id = ? AND recipient_id = ?) OR (initiator_id = ? AND recipient_id = ?)`,
		senderID, recipientID, recipientID, senderID).Scan(&convID, &initiatorID, &status)
	switch {
	case err == sql.ErrNoRows:
		convID = NewID()
		_, err = tx.Exec(`
			INSERT INTO conversations (id, initiator_id, recipient_id, status)
			VALUES (?, ?, ?, 'pending')`, convID, senderID, recipientID)
		if err != nil {
			return nil, fmt.Errorf("opening conversation: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		// A reply from the non-initiator activates a pending conversation.
		if status == "pending" && senderID != initiatorID {
			_, err = tx.Exec("UPDATE conversations SET status = 'active' WHERE id = ?", convID)
			if err != nil {
				return nil, err
			}
		}
	}

	id := NewID()
	_, err = tx.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, body)
		VALUES (?, ?, ?, ?)`, id, convID, senderID, body)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO notifications (id, agent_id, kind, body, ref_id)
		VALUES (?, ?, 'message', ?, ?)`,
		NewID(), recipientID, "new direct message", convID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	m := &Message{ID: id, ConversationID: convID, SenderID: senderID, Body: body}
	err = db.QueryRow("SELECT created_at FROM messages WHERE id = ?", id).Scan(&m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListConversations returns agentID's conversations, newest activity first.
// PeerName is the other participant's name.
func (db *DB) ListConversations(agentID string) ([]*Conversation, error) {
	rows, err := db.Query(`
		SELECT c.id, c.initiator_id, c.recipient_id,
			(SELECT name FROM agents WHERE id = CASE WHEN c.initiator_id = ? THEN c.recipient_id ELSE c.initiator_id END),
			c.status,
			COALESCE((SELECT MAX(created_at) FROM messages WHERE conversation_id = c.id), c.created_at),
			c.created_at
		FROM conversations c
		WHERE c.initiator_id = ? OR c.recipient_id = ?
		ORDER BY 6 DESC`, agentID, agentID, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Conversation
	for rows.Next() {
		c := &Conversation{}
		if err := rows.Scan(&c.ID, &c.InitiatorID, &c.RecipientID, &c.PeerName, &c.Status, &c.LastMessage, &c.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// GetConversationMessages returns the messages of a conversation, oldest
// first. Only the two participants may read it.
func (db *DB) GetConversationMessages(agentID, convID string) ([]*Message, error) {
	var initiatorID, recipientID string
	err := db.QueryRow("SELECT initiator_id, recipient_id FROM conversations WHERE id = ?", convID).
		Scan(&initiatorID, &recipientID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if agentID != initiatorID && agentID != recipientID {
		return nil, ErrForbidden
	}

	rows, err := db.Query(`
		SELECT m.id, m.conversation_id, m.sender_id, a.name, m.body, m.created_at
		FROM messages m JOIN agents a ON a.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at ASC, m.rowid ASC`, convID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
