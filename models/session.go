package models

import (
	"fmt"
	"math/rand"
	"time"
)

// ConnectionState — единственный авторитетный статус сессии виджета
type ConnectionState string

const (
	StateIdle    ConnectionState = "idle"    // чат не начат
	StateWaiting ConnectionState = "waiting" // ждем подключения сотрудника
	StateActive  ConnectionState = "active"  // сотрудник в чате
	StateClosed  ConnectionState = "closed"  // разговор завершен
)

func (s ConnectionState) String() string { return string(s) }

// GuestIdentity — эфемерная личность неавторизованного посетителя.
// Генерируется заново на каждую попытку начать чат: переиспользование
// старого guestId приводит к конфликтам с устаревшей сессией на сервере.
type GuestIdentity struct {
	GuestID     string `json:"guestId"`
	DisplayName string `json:"displayName"`
}

const guestSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewGuestIdentity создает свежую гостевую личность: timestamp + случайный суффикс
func NewGuestIdentity(displayName string) GuestIdentity {
	suffix := make([]byte, 8)
	for i := range suffix {
		suffix[i] = guestSuffixAlphabet[rand.Intn(len(guestSuffixAlphabet))]
	}
	return GuestIdentity{
		GuestID:     fmt.Sprintf("guest-%d-%s", time.Now().UnixMilli(), suffix),
		DisplayName: displayName,
	}
}

// ConversationHandle связывает гостя и сотрудника с одним тредом чата.
// Создается при успешном старте сессии и далее не меняется.
type ConversationHandle struct {
	ConversationID  string `json:"conversationId"`
	ServiceCenterID string `json:"serviceCenterId"`
}

// IsZero сообщает, что хендл еще не получен от сервера
func (h ConversationHandle) IsZero() bool { return h.ConversationID == "" }
