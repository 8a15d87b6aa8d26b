package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/egor/warrantychat/transport"
)

// wsUpgrader апгрейдит HTTP→WebSocket с проверкой Origin
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin проверяет, разрешен ли Origin для подключения
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// локальные подключения без Origin (нативные клиенты, тесты)
		return true
	}

	allowedOrigins := []string{}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}
	if additional := os.Getenv("ADDITIONAL_ALLOWED_ORIGINS"); additional != "" {
		for _, url := range strings.Split(additional, ",") {
			url = strings.TrimSpace(url)
			if url != "" {
				allowedOrigins = append(allowedOrigins, url)
			}
		}
	}
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
	}

	// для разработки можно разрешить все origins
	return os.Getenv("ALLOW_ALL_ORIGINS") == "true"
}

// ServeWs обрабатывает WebSocket-соединение участника чата
func (s *Server) ServeWs(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("ServeWs: ошибка апгрейда соединения")
		return
	}

	client := NewClient(s.hub, conn, s.log)
	s.hub.Register <- client

	go client.WritePump()
	go client.ReadPump(s.processEvent)
}

// processEvent разбирает входящий кадр и выполняет событие
func (s *Server) processEvent(client *Client, raw []byte) {
	var env transport.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		client.SendError("invalid_json", "Некорректный формат JSON")
		return
	}

	switch env.Type {
	case transport.EventJoin:
		s.processJoin(client, env.Payload)
	case transport.EventMessage:
		s.processMessage(client, env.Payload)
	case transport.EventTyping:
		s.processTyping(client, env.Payload)
	default:
		client.SendError("unknown_type", "Неизвестный тип события: "+env.Type)
	}
}

// processJoin помещает клиента в комнату разговора.
// Подтверждение не отправляется: клиент обязан зарегистрировать
// обработчики до join и не ждет ответа.
func (s *Server) processJoin(client *Client, payload json.RawMessage) {
	var p transport.JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		client.SendError("invalid_payload", "Некорректные данные для join")
		return
	}

	convID, err := uuid.Parse(p.ConversationID)
	if err != nil {
		client.SendError("invalid_uuid", "Некорректный формат conversationId")
		return
	}
	if _, err := s.store.GetConversation(convID); err != nil {
		client.SendError("not_found", "Разговор не найден")
		return
	}

	client.ID = p.ParticipantID
	client.Role = p.Role
	s.hub.Join(client, p.ConversationID)
}

// processMessage сохраняет сообщение и рассылает newMessage в комнату.
// Эхо уходит и отправителю: по clientRef он заменит оптимистичную запись.
func (s *Server) processMessage(client *Client, payload json.RawMessage) {
	var p transport.MessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		client.SendError("invalid_payload", "Некорректные данные для message")
		return
	}
	if p.ConversationID == "" || p.Content == "" {
		client.SendError("missing_fields", "Необходимы поля conversationId и content")
		return
	}

	convID, err := uuid.Parse(p.ConversationID)
	if err != nil {
		client.SendError("invalid_uuid", "Некорректный формат conversationId")
		return
	}

	msg, err := s.store.AddMessage(convID, p.SenderID, p.SenderType, p.SenderName, p.Content, p.ClientRef)
	if err != nil {
		s.log.Warn().Err(err).Str("conversationId", p.ConversationID).Msg("processMessage: сообщение не сохранено")
		client.SendError("store_error", "Не удалось сохранить сообщение: "+err.Error())
		return
	}

	data, err := transport.NewEnvelope(transport.EventNewMessage, transport.NewMessagePayload{NewMessage: msg})
	if err != nil {
		s.log.Error().Err(err).Msg("processMessage: ошибка формирования кадра")
		return
	}
	s.hub.SendToRoom(p.ConversationID, data)
}

// processTyping транслирует сигнал «печатает» остальным участникам комнаты
func (s *Server) processTyping(client *Client, payload json.RawMessage) {
	var p transport.TypingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	if p.ConversationID == "" {
		return
	}

	data, err := transport.NewEnvelope(transport.EventUserTyping, struct{}{})
	if err != nil {
		return
	}
	s.hub.SendToRoomExcept(p.ConversationID, data, client)
}
