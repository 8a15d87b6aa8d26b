package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSenderType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GUEST", "guest"},
		{"guest", "guest"},
		{"Staff", "staff"},
		{"STAFF", "staff"},
	}
	for _, tt := range tests {
		m := Message{SenderType: tt.in}
		m.Normalize()
		assert.Equal(t, tt.want, m.SenderType)

		// идемпотентность: повторная нормализация ничего не меняет
		m.Normalize()
		assert.Equal(t, tt.want, m.SenderType)
	}
}

func TestTempID(t *testing.T) {
	now := time.Now()
	m := Message{ID: NewTempID(now)}
	assert.True(t, m.IsOptimistic())

	m = Message{ID: "9f2c1a34-5d1e-4b7a-9c01-aaa111222333"}
	assert.False(t, m.IsOptimistic())
}

func TestNewSystemMessage(t *testing.T) {
	m := NewSystemMessage("conv-1", "Разговор завершен")
	assert.Equal(t, SenderSystem, m.SenderType)
	assert.Equal(t, "conv-1", m.ConversationID)
	assert.Equal(t, "Разговор завершен", m.Content)
	assert.False(t, m.IsOptimistic())
	assert.False(t, m.SentAt.IsZero())
}
