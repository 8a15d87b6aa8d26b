package widget

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/egor/warrantychat/models"
	"github.com/egor/warrantychat/transport"
)

// Обработчики входящих событий транспорта. События чужих разговоров
// фильтруются по conversationId здесь, а не только комнатой на сервере:
// комнатная маршрутизация — транспортная забота, которой согласователь
// полностью не доверяет.

func (s *Session) onNewMessage(raw json.RawMessage) {
	var p transport.NewMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn().Err(err).Msg("newMessage: некорректная нагрузка")
		return
	}
	msg := p.NewMessage
	msg.Normalize()

	s.mu.Lock()
	if s.handle.IsZero() || (msg.ConversationID != "" && msg.ConversationID != s.handle.ConversationID) {
		s.mu.Unlock()
		return
	}
	// пришло сообщение — индикатор «печатает» этого обмена больше не актуален
	s.typing.Clear()

	if s.backfilling {
		// история в полете: буферизуем и реплеим после снимка
		s.backfillBuf = append(s.backfillBuf, msg)
		s.mu.Unlock()
		return
	}

	s.upsertLocked(msg)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) onUserTyping(json.RawMessage) {
	s.typing.Signal()
	s.notify()
}

func (s *Session) onChatAccepted(raw json.RawMessage) {
	var p transport.ChatAcceptedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn().Err(err).Msg("chatAccepted: некорректная нагрузка")
		return
	}

	s.mu.Lock()
	if s.handle.IsZero() || p.ConversationID != s.handle.ConversationID {
		// чужой разговор на общем соединении — молча игнорируем
		s.mu.Unlock()
		return
	}
	if s.state != models.StateWaiting {
		// переходы монотонны: из active назад в waiting не бывает,
		// повторный chatAccepted ничего не меняет
		s.mu.Unlock()
		return
	}
	s.state = models.StateActive
	s.messages = append(s.messages, models.NewSystemMessage(p.ConversationID,
		"Сотрудник сервисного центра присоединился к чату."))
	s.backfilling = true
	convID := p.ConversationID
	s.mu.Unlock()
	s.notify()

	s.log.Info().Str("conversationId", convID).Str("staffId", p.StaffID).Msg("разговор принят сотрудником")
	go s.backfillHistory(convID)
}

func (s *Session) onConversationClosed(raw json.RawMessage) {
	var p transport.ConversationClosedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn().Err(err).Msg("conversationClosed: некорректная нагрузка")
		return
	}

	s.mu.Lock()
	if s.handle.IsZero() || p.ConversationID != s.handle.ConversationID {
		s.mu.Unlock()
		return
	}
	if s.state != models.StateWaiting && s.state != models.StateActive {
		s.mu.Unlock()
		return
	}
	s.state = models.StateClosed
	s.typing.Clear()
	s.messages = append(s.messages, models.NewSystemMessage(p.ConversationID,
		"Разговор завершен сотрудником сервисного центра."))
	s.mu.Unlock()
	s.notify()

	s.log.Info().Str("conversationId", p.ConversationID).Str("closedBy", p.ClosedBy).Msg("разговор завершен")
}

// upsertLocked добавляет сообщение либо, если это серверное эхо нашей
// оптимистичной записи (совпал clientRef), заменяет ее на месте —
// иначе в списке остались бы обе копии.
func (s *Session) upsertLocked(msg models.Message) {
	if msg.ClientRef != "" {
		for i := len(s.messages) - 1; i >= 0; i-- {
			if s.messages[i].IsOptimistic() && s.messages[i].ClientRef == msg.ClientRef {
				s.messages[i] = msg
				return
			}
		}
	}
	s.messages = append(s.messages, msg)
}

// backfillHistory загружает снимок истории по REST и сводит его с тем,
// что пришло по сокету, пока запрос был в полете. Дедупликация — по
// messageId; локально синтезированные и еще не подтвержденные записи
// в снимке отсутствуют и сохраняются поверх него.
func (s *Session) backfillHistory(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HistoryTimeout)
	defer cancel()

	hist, err := s.api.GetMessageHistory(ctx, conversationID)

	s.mu.Lock()
	if s.handle.ConversationID != conversationID {
		// «Новый чат» успел сбросить сессию — снимок больше не наш
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.log.Warn().Err(err).Str("conversationId", conversationID).Msg("история не загрузилась")
		// без снимка просто доливаем буфер в текущий список
		for _, m := range s.backfillBuf {
			s.upsertLocked(m)
		}
		s.backfillBuf = nil
		s.backfilling = false
		s.mu.Unlock()
		s.notify()
		return
	}

	seen := make(map[string]bool, len(hist))
	refs := make(map[string]bool)
	merged := make([]models.Message, 0, len(hist)+len(s.backfillBuf))
	for _, m := range hist {
		merged = append(merged, m)
		seen[m.ID] = true
		if m.ClientRef != "" {
			refs[m.ClientRef] = true
		}
	}
	for _, m := range s.backfillBuf {
		if seen[m.ID] {
			continue
		}
		merged = append(merged, m)
		seen[m.ID] = true
		if m.ClientRef != "" {
			refs[m.ClientRef] = true
		}
	}
	for _, m := range s.messages {
		switch {
		case m.SenderType == models.SenderSystem:
			merged = append(merged, m)
		case m.IsOptimistic() && !refs[m.ClientRef]:
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})

	s.messages = merged
	s.backfillBuf = nil
	s.backfilling = false
	s.mu.Unlock()
	s.notify()

	s.log.Debug().Int("count", len(merged)).Str("conversationId", conversationID).Msg("история загружена")
}
