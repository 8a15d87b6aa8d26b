// Package widget — ядро гостевой чат-сессии: машина состояний подключения,
// оркестрация транспорта и REST, согласование входящих событий.
package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/egor/warrantychat/models"
	"github.com/egor/warrantychat/storage"
	"github.com/egor/warrantychat/transport"
)

// Transport — контракт менеджера WebSocket-соединения (§ transport.Manager)
type Transport interface {
	Acquire() error
	Release()
	On(event string, h transport.Handler)
	JoinRoom(conversationID, participantID, role string) error
	SendMessage(p transport.MessagePayload) error
	SendTyping(conversationID string) error
	Teardown()
}

// API — контракт REST-бэкенда (§ chatapi.Client)
type API interface {
	StartSession(ctx context.Context, guestID, serviceCenterID, displayName string) (models.ConversationHandle, error)
	GetMessageHistory(ctx context.Context, conversationID string) ([]models.Message, error)
	UploadFile(ctx context.Context, filename string, r io.Reader) (string, error)
}

// StateStore — durable-хранилище гостевого состояния (§ storage.Store)
type StateStore interface {
	Load() storage.GuestState
	Save(st storage.GuestState) error
	Clear() error
}

// Config — настройки сессии
type Config struct {
	ServiceCenterID string        // сервисный центр, которому адресован чат
	TypingWindow    time.Duration // окно затухания индикатора «печатает»
	HistoryTimeout  time.Duration // тайм-аут загрузки истории
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		ServiceCenterID: "default",
		TypingWindow:    DefaultTypingWindow,
		HistoryTimeout:  10 * time.Second,
	}
}

// Пользовательские тексты ошибок: показываются в виджете, сессию не роняют
const (
	errStartChat = "Не удалось начать чат. Попробуйте еще раз."
	errSendMsg   = "Не удалось отправить сообщение. Попробуйте еще раз."
	errUpload    = "Не удалось загрузить файл. Попробуйте еще раз."
	errTooLarge  = "Файл превышает 10 МБ."
)

var errNotStarted = errors.New("widget: чат не активен")

// Session — контроллер гостевой чат-сессии. Ровно одно соединение
// и один хендл разговора на экземпляр.
type Session struct {
	cfg   Config
	log   zerolog.Logger
	api   API
	tr    Transport
	store StateStore

	mu          sync.Mutex
	state       models.ConnectionState
	identity    models.GuestIdentity
	handle      models.ConversationHandle
	messages    []models.Message
	lastErr     string
	open        bool
	acquired    bool
	backfilling bool
	backfillBuf []models.Message

	typing   *typingMonitor
	onChange func()
}

// NewSession собирает сессию из внешних коллабораторов
func NewSession(api API, tr Transport, store StateStore, cfg Config, logger zerolog.Logger) *Session {
	if cfg.ServiceCenterID == "" {
		cfg.ServiceCenterID = "default"
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = 10 * time.Second
	}
	return &Session{
		cfg:    cfg,
		log:    logger,
		api:    api,
		tr:     tr,
		store:  store,
		state:  models.StateIdle,
		open:   true,
		typing: newTypingMonitor(cfg.TypingWindow),
	}
}

// SetOnChange регистрирует колбэк изменения view model (для привязки UI)
func (s *Session) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// StartChat начинает разговор. Строгий порядок побочных эффектов:
// свежая личность → start-session REST → сохранение хендла → подключение
// транспорта → регистрация ВСЕХ обработчиков → вход в комнату.
// Вход в комнату может почти синхронно вызвать chatAccepted от уже
// ожидающего сотрудника, поэтому обработчики обязаны стоять до join.
func (s *Session) StartChat(ctx context.Context, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		s.setError("Введите ваше имя.")
		return errors.New("widget: пустое имя")
	}

	s.mu.Lock()
	if s.state != models.StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("widget: чат уже начат (состояние %s)", s.state)
	}
	// всегда свежий guestId: переиспользование старого конфликтует
	// с устаревшей сессией на сервере
	identity := models.NewGuestIdentity(name)
	s.identity = identity
	s.mu.Unlock()

	handle, err := s.api.StartSession(ctx, identity.GuestID, s.cfg.ServiceCenterID, name)
	if err != nil {
		s.log.Error().Err(err).Str("guestId", identity.GuestID).Msg("StartChat: отказ start-session")
		s.setError(errStartChat)
		return fmt.Errorf("widget: start-session: %w", err)
	}

	if err := s.store.Save(storage.GuestState{
		GuestID:        identity.GuestID,
		DisplayName:    name,
		ConversationID: handle.ConversationID,
	}); err != nil {
		// не фатально: сессия живет, просто не переживет перезагрузку
		s.log.Warn().Err(err).Msg("StartChat: не удалось сохранить состояние")
	}

	s.mu.Lock()
	s.handle = handle
	s.state = models.StateWaiting
	s.messages = append(s.messages, models.NewSystemMessage(handle.ConversationID,
		fmt.Sprintf("Здравствуйте, %s! Ожидайте, сотрудник сервисного центра скоро подключится.", name)))
	s.mu.Unlock()
	s.notify()

	if err := s.connectAndJoin(handle, identity.GuestID); err != nil {
		s.resetLocal()
		s.setError(errStartChat)
		return err
	}

	s.log.Info().
		Str("conversationId", handle.ConversationID).
		Str("guestId", identity.GuestID).
		Msg("StartChat: сессия установлена")
	return nil
}

// connectAndJoin подключает транспорт, регистрирует обработчики и входит в комнату
func (s *Session) connectAndJoin(handle models.ConversationHandle, participantID string) error {
	if err := s.tr.Acquire(); err != nil {
		s.log.Error().Err(err).Msg("не удалось подключить транспорт")
		return err
	}
	s.mu.Lock()
	s.acquired = true
	s.mu.Unlock()

	// обработчики — до join, иначе chatAccepted можно потерять навсегда
	s.registerHandlers()

	if err := s.tr.JoinRoom(handle.ConversationID, participantID, "guest"); err != nil {
		return fmt.Errorf("widget: join: %w", err)
	}
	return nil
}

func (s *Session) registerHandlers() {
	s.tr.On(transport.EventNewMessage, s.onNewMessage)
	s.tr.On(transport.EventUserTyping, s.onUserTyping)
	s.tr.On(transport.EventChatAccepted, s.onChatAccepted)
	s.tr.On(transport.EventConversationClosed, s.onConversationClosed)
}

// Restore пытается продолжить разговор, сохраненный до перезагрузки страницы.
// Возвращает false, если восстанавливать нечего.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	st := s.store.Load()
	if st.ConversationID == "" || st.GuestID == "" {
		return false, nil
	}

	s.mu.Lock()
	if s.state != models.StateIdle {
		s.mu.Unlock()
		return false, fmt.Errorf("widget: восстановление возможно только из idle")
	}
	s.identity = models.GuestIdentity{GuestID: st.GuestID, DisplayName: st.DisplayName}
	s.handle = models.ConversationHandle{ConversationID: st.ConversationID, ServiceCenterID: s.cfg.ServiceCenterID}
	s.state = models.StateWaiting
	s.backfilling = true
	handle := s.handle
	s.mu.Unlock()

	if err := s.connectAndJoin(handle, st.GuestID); err != nil {
		s.resetLocal()
		s.setError(errStartChat)
		return false, err
	}

	go s.backfillHistory(handle.ConversationID)
	return true, nil
}

// SendMessage отправляет текст: немедленное оптимистичное добавление,
// затем fire-and-forget emit. При ошибке отправки оптимистичная запись
// остается в списке, откуда ее уберет только «Новый чат».
func (s *Session) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("widget: пустое сообщение")
	}
	return s.send(text)
}

// SendAttachment загружает файл и отправляет его одним видимым действием:
// валидация размера → upload → кодирование URL в content → отправка.
func (s *Session) SendAttachment(ctx context.Context, att models.SelectedAttachment, caption string) error {
	if err := att.Validate(); err != nil {
		s.setError(errTooLarge)
		return err
	}

	s.mu.Lock()
	canSend := s.canSendLocked()
	s.mu.Unlock()
	if !canSend {
		return errNotStarted
	}

	url, err := s.api.UploadFile(ctx, att.Filename, att.Data)
	if err != nil {
		s.log.Error().Err(err).Str("file", att.Filename).Msg("SendAttachment: загрузка не удалась")
		s.setError(errUpload)
		return fmt.Errorf("widget: upload: %w", err)
	}

	return s.send(models.EncodeContent(url, strings.TrimSpace(caption)))
}

func (s *Session) send(content string) error {
	now := time.Now()
	ref := models.NewTempID(now)

	s.mu.Lock()
	if !s.canSendLocked() {
		s.mu.Unlock()
		return errNotStarted
	}
	msg := models.Message{
		ID:             ref,
		ClientRef:      ref,
		ConversationID: s.handle.ConversationID,
		Content:        content,
		SenderID:       s.identity.GuestID,
		SenderType:     models.SenderGuest,
		SenderName:     s.identity.DisplayName,
		SentAt:         now,
	}
	s.messages = append(s.messages, msg)
	payload := transport.MessagePayload{
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderType:     msg.SenderType,
		SenderName:     msg.SenderName,
		Content:        content,
		ClientRef:      ref,
		Timestamp:      now,
	}
	s.mu.Unlock()
	s.notify()

	if err := s.tr.SendMessage(payload); err != nil {
		s.log.Error().Err(err).Msg("send: emit не удался")
		s.setError(errSendMsg)
		return err
	}
	return nil
}

// NotifyTyping шлет сигнал «печатает» — только при непустом черновике
// и существующем хендле разговора
func (s *Session) NotifyTyping(draft string) {
	if strings.TrimSpace(draft) == "" {
		return
	}
	s.mu.Lock()
	ok := s.canSendLocked()
	convID := s.handle.ConversationID
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = s.tr.SendTyping(convID)
}

// NewChat — локальный сброс в idle: личность, хендл, сообщения и ошибка
// очищаются, сетевых событий не отправляется
func (s *Session) NewChat() {
	s.resetLocal()
	if err := s.store.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("NewChat: не удалось очистить хранилище")
	}
	s.notify()
}

// resetLocal сбрасывает состояние и отпускает транспорт, если он был взят
func (s *Session) resetLocal() bool {
	s.mu.Lock()
	wasAcquired := s.acquired
	s.state = models.StateIdle
	s.identity = models.GuestIdentity{}
	s.handle = models.ConversationHandle{}
	s.messages = nil
	s.lastErr = ""
	s.acquired = false
	s.backfilling = false
	s.backfillBuf = nil
	s.typing.Clear()
	s.mu.Unlock()

	if wasAcquired {
		s.tr.Release()
	}
	return wasAcquired
}

// SetOpen отражает видимость панели виджета. Свернутый виджет рвет
// соединение, только если разговор еще не активен: живой разговор
// обязан пережить сворачивание.
func (s *Session) SetOpen(open bool) {
	s.mu.Lock()
	s.open = open
	release := !open && s.state != models.StateActive && s.acquired
	if release {
		s.acquired = false
	}
	s.mu.Unlock()

	if release {
		s.tr.Release()
	}
	s.notify()
}

// --- view model ---

// State возвращает текущее состояние подключения
func (s *Session) State() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages возвращает копию упорядоченного списка сообщений
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// IsTyping — индикатор «собеседник печатает»
func (s *Session) IsTyping() bool { return s.typing.Active() }

// CanSend сообщает, принимает ли ввод текущее состояние (заморожен после closed)
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSendLocked()
}

func (s *Session) canSendLocked() bool {
	return (s.state == models.StateWaiting || s.state == models.StateActive) && !s.handle.IsZero()
}

// Err возвращает текст последней ошибки для показа в виджете ("" — ошибок нет)
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError скрывает сообщение об ошибке (пользователь закрыл его)
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

// Identity возвращает текущую гостевую личность
func (s *Session) Identity() models.GuestIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Handle возвращает хендл активного разговора
func (s *Session) Handle() models.ConversationHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
