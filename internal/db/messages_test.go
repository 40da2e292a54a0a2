package db

import (
	"errors"
	"testing"
)

func conversationStatus(t *testing.T, database *DB, convID string) string {
	t.Helper()
	var status string
	if err := database.QueryRow("SELECT status FROM conversations WHERE id = ?", convID).Scan(&status); err != nil {
		t.Fatalf("reading conversation: %v", err)
	}
	return status
}

func TestConversationLifecycle(t *testing.T) {
	database := newTestDB(t)
	alice := newTestAgent(t, database, "alice")
	bob := newTestAgent(t, database, "bob")

	// First message opens a pending conversation.
	msg, err := database.SendMessage(alice.ID, bob.ID, "hello")
	if err != nil {
		t.Fatalf("first message: %v", err)
	}
	if got := conversationStatus(t, database, msg.ConversationID); got != "pending" {
		t.Errorf("status after first message = %q, want pending", got)
	}

	// More initiator messages do not activate it.
	msg2, err := database.SendMessage(alice.ID, bob.ID, "you there?")
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if msg2.ConversationID != msg.ConversationID {
		t.Errorf("expected same conversation, got %s and %s", msg.ConversationID, msg2.ConversationID)
	}
	if got := conversationStatus(t, database, msg.ConversationID); got != "pending" {
		t.Errorf("status after initiator follow-up = %q, want pending", got)
	}

	// Recipient reply activates.
	if _, err := database.SendMessage(bob.ID, alice.ID, "hi"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got := conversationStatus(t, database, msg.ConversationID); got != "active" {
		t.Errorf("status after reply = %q, want active", got)
	}

	msgs, err := database.GetConversationMessages(alice.ID, msg.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Errorf("message count = %d, want 3", len(msgs))
	}
}

func TestConversationParticipantsOnly(t *testing.T) {
	database := newTestDB(t)
	alice := newTestAgent(t, database, "alice")
	bob := newTestAgent(t, database, "bob")
	eve := newTestAgent(t, database, "eve")

	msg, err := database.SendMessage(alice.ID, bob.ID, "secret")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := database.GetConversationMessages(eve.ID, msg.ConversationID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger read: got %v, want ErrForbidden", err)
	}
	if _, err := database.GetConversationMessages(bob.ID, msg.ConversationID); err != nil {
		t.Errorf("participant read: %v", err)
	}
	if _, err := database.GetConversationMessages(alice.ID, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown conversation: got %v, want ErrNotFound", err)
	}
}

func TestListConversationsPeerName(t *testing.T) {
	database := newTestDB(t)
	alice := newTestAgent(t, database, "alice")
	bob := newTestAgent(t, database, "bob")

	if _, err := database.SendMessage(alice.ID, bob.ID, "hello"); err != nil {
		t.Fatal(err)
	}

	convs, err := database.ListConversations(alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].PeerName != "bob" {
		t.Errorf("alice's conversations = %+v, want one with peer bob", convs)
	}

	convs, err = database.ListConversations(bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].PeerName != "alice" {
		t.Errorf("bob's conversations = %+v, want one with peer alice", convs)
	}
}

func TestSendMessageNotifiesRecipient(t *testing.T) {
	database := newTestDB(t)
	alice := newTestAgent(t, database, "alice")
	bob := newTestAgent(t, database, "bob")

	if _, err := database.SendMessage(alice.ID, bob.ID, "hello"); err != nil {
		t.Fatal(err)
	}
	notifs, err := database.ListNotifications(bob.ID, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifs) != 1 || notifs[0].Kind != "message" {
		t.Errorf("expected one message notification, got %+v", notifs)
	}
}
