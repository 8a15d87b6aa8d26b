// Package transport владеет единственным WebSocket-соединением виджета
// и членством в комнате разговора.
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait        = 10 * time.Second    // время на запись одного кадра
	pongWait         = 60 * time.Second    // максимальное время ожидания PONG
	pingPeriod       = (pongWait * 9) / 10 // как часто слать PING
	maxMessageSize   = 8192                // максимальный размер входящего кадра
	handshakeTimeout = 10 * time.Second
)

// ErrTransportUnavailable — типизированный отказ: соединение не удалось создать
// или его нет. Вызывающий показывает ошибку подключения, не роняя сессию.
var ErrTransportUnavailable = errors.New("транспорт недоступен")

// Handler обрабатывает полезную нагрузку одного входящего события
type Handler func(payload json.RawMessage)

// Manager держит ровно одно живое соединение с транспортом.
// Владение явное, со счетчиком ссылок: первый Acquire устанавливает
// соединение, последний Release его закрывает. Несколько экземпляров
// виджета (или тестов) друг другу не мешают — у каждого свой Manager.
type Manager struct {
	url string
	log zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]Handler
	refs     int
	done     chan struct{}

	writeMu sync.Mutex
}

// NewManager создает менеджер для указанного ws:// или wss:// адреса
func NewManager(url string, logger zerolog.Logger) *Manager {
	return &Manager{
		url:      url,
		log:      logger,
		handlers: make(map[string]Handler),
	}
}

// Acquire берет ссылку на соединение, при необходимости устанавливая его.
// Повторный вызов при живом соединении идемпотентен.
func (m *Manager) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		m.refs++
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(m.url, nil)
	if err != nil {
		m.log.Error().Err(err).Str("url", m.url).Msg("не удалось установить WebSocket-соединение")
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	m.conn = conn
	m.refs++
	m.done = make(chan struct{})

	go m.readPump(conn, m.done)
	go m.pinger(conn, m.done)

	m.log.Info().Str("url", m.url).Msg("WebSocket подключен")
	return nil
}

// Release отпускает ссылку; последняя ссылка закрывает соединение
func (m *Manager) Release() {
	m.mu.Lock()
	if m.refs > 0 {
		m.refs--
	}
	last := m.refs == 0 && m.conn != nil
	m.mu.Unlock()

	if last {
		m.Teardown()
	}
}

// Connected сообщает, есть ли живое соединение
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// On регистрирует обработчик события. Существующий обработчик того же
// события предварительно снимается: повторная инициализация сессии не
// должна приводить к двойной доставке.
func (m *Manager) On(event string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, event)
	m.handlers[event] = h
}

// Off снимает обработчик события
func (m *Manager) Off(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, event)
}

// JoinRoom отправляет заявку на вход в комнату разговора.
// Подтверждение не ожидается: корректность обеспечивается тем, что все
// обработчики регистрируются ДО вызова JoinRoom.
func (m *Manager) JoinRoom(conversationID, participantID, role string) error {
	return m.emit(EventJoin, JoinPayload{
		ConversationID: conversationID,
		ParticipantID:  participantID,
		Role:           role,
	})
}

// SendMessage отправляет сообщение чата (fire-and-forget)
func (m *Manager) SendMessage(p MessagePayload) error {
	return m.emit(EventMessage, p)
}

// SendTyping отправляет сигнал «печатает» (fire-and-forget)
func (m *Manager) SendTyping(conversationID string) error {
	return m.emit(EventTyping, TypingPayload{ConversationID: conversationID})
}

// Teardown снимает все обработчики и закрывает соединение.
// Безопасен без соединения (no-op).
func (m *Manager) Teardown() {
	m.mu.Lock()
	conn := m.conn
	done := m.done
	m.conn = nil
	m.done = nil
	m.refs = 0
	m.handlers = make(map[string]Handler)
	m.mu.Unlock()

	if conn == nil {
		return
	}
	close(done)
	_ = conn.Close()
	m.log.Info().Msg("WebSocket отключен")
}

// emit пишет кадр в соединение; без соединения возвращает ErrTransportUnavailable
func (m *Manager) emit(event string, payload interface{}) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrTransportUnavailable
	}

	data, err := NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", event, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: emit %s: %w", event, err)
	}
	return nil
}

// readPump читает кадры и раздает их по зарегистрированным обработчикам
func (m *Manager) readPump(conn *websocket.Conn, done chan struct{}) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// штатный Teardown
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					m.log.Warn().Err(err).Msg("WebSocket закрыт неожиданно")
				}
				m.dropConn(conn)
			}
			return
		}

		// сервер может склеить несколько кадров в одно сообщение через \n
		for _, frame := range bytes.Split(raw, []byte{'\n'}) {
			frame = bytes.TrimSpace(frame)
			if len(frame) == 0 {
				continue
			}
			var env Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				m.log.Warn().Err(err).Msg("некорректный кадр от транспорта")
				continue
			}

			m.mu.Lock()
			h := m.handlers[env.Type]
			m.mu.Unlock()
			if h != nil {
				h(env.Payload)
			}
		}
	}
}

// pinger держит соединение живым
func (m *Manager) pinger(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			m.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// dropConn сбрасывает соединение после ошибки чтения, если оно еще текущее
func (m *Manager) dropConn(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		if m.done != nil {
			close(m.done)
			m.done = nil
		}
	}
	m.mu.Unlock()
	_ = conn.Close()
}
