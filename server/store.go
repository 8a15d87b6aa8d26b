package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/egor/warrantychat/models"
)

// Статусы разговора
const (
	StatusPending = "pending" // гость ждет сотрудника
	StatusActive  = "active"  // сотрудник принял
	StatusClosed  = "closed"
)

var (
	// ErrConversationNotFound — разговор не существует
	ErrConversationNotFound = errors.New("разговор не найден")
	// ErrConversationClosed — операция над завершенным разговором
	ErrConversationClosed = errors.New("разговор завершен")
)

// Conversation — серверное состояние одного разговора гостя с сотрудником
type Conversation struct {
	ID              uuid.UUID        `json:"id"`
	GuestID         string           `json:"guestId"`
	GuestName       string           `json:"guestName"`
	ServiceCenterID string           `json:"serviceCenterId"`
	Status          string           `json:"status"`
	StaffID         string           `json:"staffId,omitempty"`
	Messages        []models.Message `json:"messages"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Store — хранилище разговоров и загруженных файлов в памяти.
// Персистентность принадлежит настоящему бэкенду; референсный сервер
// существует для разработки и тестов виджета.
type Store struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*Conversation
	files         map[string][]byte
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		conversations: make(map[uuid.UUID]*Conversation),
		files:         make(map[string][]byte),
	}
}

// CreateConversation регистрирует новый разговор в статусе pending
func (s *Store) CreateConversation(guestID, guestName, serviceCenterID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &Conversation{
		ID:              uuid.New(),
		GuestID:         guestID,
		GuestName:       guestName,
		ServiceCenterID: serviceCenterID,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.conversations[conv.ID] = conv
	return conv
}

// GetConversation возвращает разговор по id
func (s *Store) GetConversation(id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// Messages возвращает копию истории разговора
func (s *Store) Messages(id uuid.UUID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	out := make([]models.Message, len(conv.Messages))
	copy(out, conv.Messages)
	return out, nil
}

// AddMessage сохраняет сообщение с серверным id и возвращает сохраненную копию.
// ClientRef отправителя переносится в эхо — по нему клиент заменяет
// свою оптимистичную запись.
func (s *Store) AddMessage(id uuid.UUID, senderID, senderType, senderName, content, clientRef string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return models.Message{}, ErrConversationNotFound
	}
	if conv.Status == StatusClosed {
		return models.Message{}, ErrConversationClosed
	}

	msg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: id.String(),
		Content:        content,
		SenderID:       senderID,
		SenderType:     senderType,
		SenderName:     senderName,
		SentAt:         time.Now(),
		ClientRef:      clientRef,
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.SentAt
	return msg, nil
}

// AcceptConversation переводит разговор в active и закрепляет сотрудника
func (s *Store) AcceptConversation(id uuid.UUID, staffID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if conv.Status == StatusClosed {
		return nil, ErrConversationClosed
	}
	conv.Status = StatusActive
	conv.StaffID = staffID
	conv.UpdatedAt = time.Now()
	return conv, nil
}

// CloseConversation переводит разговор в closed
func (s *Store) CloseConversation(id uuid.UUID) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	conv.Status = StatusClosed
	conv.UpdatedAt = time.Now()
	return conv, nil
}

// SaveFile кладет загруженный файл в память и возвращает его id
func (s *Store) SaveFile(data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.files[id] = data
	return id
}

// GetFile возвращает содержимое файла по id
func (s *Store) GetFile(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[id]
	return data, ok
}
