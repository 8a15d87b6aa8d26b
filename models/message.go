package models

import (
	"fmt"
	"strings"
	"time"
)

// Типы отправителей сообщений
const (
	SenderGuest  = "guest"
	SenderStaff  = "staff"
	SenderSystem = "system"
)

// TempIDPrefix — префикс id оптимистичных сообщений, ещё не подтверждённых сервером
const TempIDPrefix = "temp-"

// Message представляет собой структуру сообщения чата
type Message struct {
	ID             string    `json:"messageId"`
	ConversationID string    `json:"conversationId,omitempty"`
	Content        string    `json:"content"`
	SenderID       string    `json:"senderId"`
	SenderType     string    `json:"senderType"` // "guest", "staff" или "system"
	SenderName     string    `json:"senderName,omitempty"`
	SentAt         time.Time `json:"sentAt"`
	Read           bool      `json:"isRead"`
	// ClientRef — корреляционный id, который клиент отправляет вместе с сообщением;
	// сервер возвращает его в эхо, что позволяет заменить оптимистичную запись
	ClientRef string `json:"clientRef,omitempty"`
}

// Normalize приводит сообщение к каноническому виду.
// Транспорт и REST отдают senderType в произвольном регистре (наблюдался верхний),
// поэтому регистр нормализуется при каждом чтении. Операция идемпотентна.
func (m *Message) Normalize() {
	m.SenderType = strings.ToLower(m.SenderType)
}

// IsOptimistic сообщает, что сообщение добавлено локально и ещё не подтверждено сервером
func (m *Message) IsOptimistic() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// NewTempID генерирует клиентский id для оптимистичного сообщения
func NewTempID(now time.Time) string {
	return fmt.Sprintf("%s%d", TempIDPrefix, now.UnixMilli())
}

// NewSystemMessage создает синтетическое системное сообщение
// (приветствие, подключение сотрудника, закрытие чата)
func NewSystemMessage(conversationID, content string) Message {
	return Message{
		ID:             fmt.Sprintf("sys-%d", time.Now().UnixNano()),
		ConversationID: conversationID,
		Content:        content,
		SenderID:       SenderSystem,
		SenderType:     SenderSystem,
		SentAt:         time.Now(),
		Read:           true,
	}
}
