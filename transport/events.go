package transport

import (
	"encoding/json"
	"time"

	"github.com/egor/warrantychat/models"
)

// Имена событий транспорта.
// Клиент → сервер: join, message, typing.
// Сервер → клиент: newMessage, userTyping, chatAccepted, conversationClosed.
const (
	EventJoin               = "join"
	EventMessage            = "message"
	EventTyping             = "typing"
	EventNewMessage         = "newMessage"
	EventUserTyping         = "userTyping"
	EventChatAccepted       = "chatAccepted"
	EventConversationClosed = "conversationClosed"
)

// Envelope — кадр обмена по WebSocket
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope собирает кадр с указанным типом и полезной нагрузкой
func NewEnvelope(eventType string, payload interface{}) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: payloadJSON})
}

// JoinPayload — заявка на вход в комнату разговора (без подтверждения)
type JoinPayload struct {
	ConversationID string `json:"conversationId"`
	ParticipantID  string `json:"participantId"`
	Role           string `json:"role"` // "guest" или "staff"
}

// MessagePayload — исходящее сообщение чата
type MessagePayload struct {
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderType     string    `json:"senderType"`
	SenderName     string    `json:"senderName,omitempty"`
	Content        string    `json:"content"`
	ClientRef      string    `json:"clientRef,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// TypingPayload — сигнал «гость печатает»
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
}

// NewMessagePayload — событие о новом сообщении в разговоре
type NewMessagePayload struct {
	NewMessage models.Message `json:"newMessage"`
}

// ChatAcceptedPayload — сотрудник принял разговор
type ChatAcceptedPayload struct {
	ConversationID string `json:"conversationId"`
	StaffID        string `json:"staffId"`
}

// ConversationClosedPayload — разговор завершен
type ConversationClosedPayload struct {
	ConversationID string `json:"conversationId"`
	ClosedBy       string `json:"closedBy"`
}
