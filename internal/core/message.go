package core

import "github.com/vovakirdan/chatroom-server/internal/store"

// messageFromStore builds the ReceiveMessage payload for a persisted message.
func messageFromStore(m *store.Message) *ReceiveMessage {
	return &ReceiveMessage{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		RoomID:     m.RoomID,
		Content:    m.Body,
		CreatedAt:  m.CreatedAt,
	}
}
