package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// wsTestServer принимает WebSocket-соединения, складывает входящие кадры
// в канал и умеет отправлять кадры клиенту
type wsTestServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received chan Envelope
	accepted int32
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{received: make(chan Envelope, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&s.accepted, 1)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(raw, &env); err == nil {
				s.received <- env
			}
		}
	}))
	return s
}

func (s *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsTestServer) push(t *testing.T, data []byte) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	conn := s.conns[len(s.conns)-1]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func (s *wsTestServer) waitFrame(t *testing.T) Envelope {
	t.Helper()
	select {
	case env := <-s.received:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("кадр от клиента не пришел")
		return Envelope{}
	}
}

func TestAcquireIdempotent(t *testing.T) {
	srv := newWSTestServer(t)
	defer srv.Close()

	m := NewManager(srv.wsURL(), zerolog.Nop())
	require.NoError(t, m.Acquire())
	require.NoError(t, m.Acquire())
	assert.True(t, m.Connected())

	// одно логическое соединение на два Acquire
	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.accepted))

	// первый Release соединение не закрывает, второй — закрывает
	m.Release()
	assert.True(t, m.Connected())
	m.Release()
	assert.False(t, m.Connected())
}

func TestAcquireFailure(t *testing.T) {
	m := NewManager("ws://127.0.0.1:1/ws", zerolog.Nop())
	err := m.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.False(t, m.Connected())
}

func TestJoinRoomEmit(t *testing.T) {
	srv := newWSTestServer(t)
	defer srv.Close()

	m := NewManager(srv.wsURL(), zerolog.Nop())
	require.NoError(t, m.Acquire())
	defer m.Teardown()

	require.NoError(t, m.JoinRoom("conv-1", "guest-1", "guest"))

	env := srv.waitFrame(t)
	assert.Equal(t, EventJoin, env.Type)

	var p JoinPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "conv-1", p.ConversationID)
	assert.Equal(t, "guest-1", p.ParticipantID)
	assert.Equal(t, "guest", p.Role)
}

func TestHandlerReregistration(t *testing.T) {
	srv := newWSTestServer(t)
	defer srv.Close()

	m := NewManager(srv.wsURL(), zerolog.Nop())
	require.NoError(t, m.Acquire())
	defer m.Teardown()

	var first, second atomic.Int32
	m.On(EventChatAccepted, func(json.RawMessage) { first.Add(1) })
	// повторная регистрация снимает прежний обработчик: двойной доставки нет
	m.On(EventChatAccepted, func(json.RawMessage) { second.Add(1) })

	data, err := NewEnvelope(EventChatAccepted, ChatAcceptedPayload{ConversationID: "conv-1", StaffID: "s1"})
	require.NoError(t, err)
	srv.push(t, data)

	require.Eventually(t, func() bool { return second.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestBatchedFrames(t *testing.T) {
	srv := newWSTestServer(t)
	defer srv.Close()

	m := NewManager(srv.wsURL(), zerolog.Nop())
	require.NoError(t, m.Acquire())
	defer m.Teardown()

	var got atomic.Int32
	m.On(EventUserTyping, func(json.RawMessage) { got.Add(1) })

	// сервер склеивает накопленные кадры через \n в одно сообщение
	one, err := NewEnvelope(EventUserTyping, struct{}{})
	require.NoError(t, err)
	srv.push(t, append(append(one, '\n'), one...))

	require.Eventually(t, func() bool { return got.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestTeardownWithoutConnection(t *testing.T) {
	m := NewManager("ws://127.0.0.1:1/ws", zerolog.Nop())

	// Teardown без соединения — no-op
	m.Teardown()

	err := m.SendMessage(MessagePayload{ConversationID: "conv-1", Content: "hi"})
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	err = m.SendTyping("conv-1")
	assert.ErrorIs(t, err, ErrTransportUnavailable)
}

func TestTeardownClearsHandlers(t *testing.T) {
	srv := newWSTestServer(t)
	defer srv.Close()

	m := NewManager(srv.wsURL(), zerolog.Nop())
	require.NoError(t, m.Acquire())

	var got atomic.Int32
	m.On(EventNewMessage, func(json.RawMessage) { got.Add(1) })
	m.Teardown()

	// после Teardown обработчиков нет и соединения нет
	require.NoError(t, m.Acquire())
	defer m.Teardown()

	data, err := NewEnvelope(EventNewMessage, struct{}{})
	require.NoError(t, err)
	srv.push(t, data)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), got.Load())
}
