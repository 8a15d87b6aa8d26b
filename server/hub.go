package server

import (
	"github.com/rs/zerolog"
)

type joinRequest struct {
	client *Client
	room   string
}

type roomMessage struct {
	room    string
	data    []byte
	exclude *Client // не доставлять отправителю (например, typing)
}

// Hub обрабатывает WebSocket-соединения и комнаты разговоров
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Комнаты: conversationId → участники
	rooms map[string]map[*Client]bool

	// Регистрация клиента
	Register chan *Client

	// Отмена регистрации клиента
	Unregister chan *Client

	joins     chan joinRequest
	broadcast chan roomMessage

	log zerolog.Logger
}

// NewHub создает новый Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		joins:      make(chan joinRequest),
		broadcast:  make(chan roomMessage),
		log:        logger,
	}
}

// Run запускает цикл обработки Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			h.log.Info().Int("clients", len(h.clients)).Msg("клиент подключился")

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.leaveRoom(client)
				delete(h.clients, client)
				close(client.send)
				h.log.Info().Int("clients", len(h.clients)).Msg("клиент отключился")
			}

		case req := <-h.joins:
			h.leaveRoom(req.client)
			req.client.room = req.room
			if h.rooms[req.room] == nil {
				h.rooms[req.room] = make(map[*Client]bool)
			}
			h.rooms[req.room][req.client] = true
			h.log.Info().
				Str("room", req.room).
				Str("participant", req.client.ID).
				Str("role", req.client.Role).
				Msg("вход в комнату")

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.room] {
				if client == msg.exclude {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					h.leaveRoom(client)
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Join помещает клиента в комнату разговора
func (h *Hub) Join(client *Client, room string) {
	h.joins <- joinRequest{client: client, room: room}
}

// SendToRoom доставляет кадр всем участникам комнаты
func (h *Hub) SendToRoom(room string, data []byte) {
	h.broadcast <- roomMessage{room: room, data: data}
}

// SendToRoomExcept доставляет кадр всем участникам комнаты, кроме одного
func (h *Hub) SendToRoomExcept(room string, data []byte, except *Client) {
	h.broadcast <- roomMessage{room: room, data: data, exclude: except}
}

func (h *Hub) leaveRoom(client *Client) {
	if client.room == "" {
		return
	}
	if members, ok := h.rooms[client.room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = ""
}
