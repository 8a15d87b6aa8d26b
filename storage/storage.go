// Package storage хранит состояние гостевой сессии между перезагрузками страницы виджета.
// Аналог durable client storage: JSON-файл в каталоге пользователя.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const stateFile = "guest_chat.json"

// GuestState — то, что переживает перезагрузку: гостевой id, имя
// и id активного разговора. "Новый чат" стирает все целиком.
type GuestState struct {
	GuestID        string `json:"guestChatUserId,omitempty"`
	DisplayName    string `json:"guestDisplayName,omitempty"`
	ConversationID string `json:"activeConversationId,omitempty"`
}

// Store читает и пишет состояние в каталоге dir
type Store struct {
	dir string
}

// New создает Store. Пустой dir означает каталог по умолчанию
// (WARRANTYCHAT_CONFIG либо ~/.warrantychat).
func New(dir string) *Store {
	if dir == "" {
		dir = defaultDir()
	}
	return &Store{dir: dir}
}

func defaultDir() string {
	if d := os.Getenv("WARRANTYCHAT_CONFIG"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".warrantychat")
}

// Load возвращает сохраненное состояние. Отсутствующий или поврежденный
// файл — не ошибка: возвращается пустое состояние.
func (s *Store) Load() GuestState {
	var st GuestState
	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return GuestState{}
	}
	return st
}

// Save записывает состояние на диск
func (s *Store) Save(st GuestState) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, stateFile), data, 0o600); err != nil {
		return fmt.Errorf("storage: write: %w", err)
	}
	return nil
}

// Clear удаляет сохраненное состояние ("Новый чат"). Отсутствие файла — no-op.
func (s *Store) Clear() error {
	err := os.Remove(filepath.Join(s.dir, stateFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove: %w", err)
	}
	return nil
}
