// Package server — референсный бэкенд гостевого чата для разработки и тестов
// виджета: REST-интерфейсы из контракта клиента плюс WebSocket-хаб комнат.
package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/egor/warrantychat/middleware"
)

// Server связывает хранилище, хаб и HTTP-обработчики
type Server struct {
	store     *Store
	hub       *Hub
	log       zerolog.Logger
	publicURL string // базовый URL для ссылок на загруженные файлы
}

// New создает сервер. publicURL подставляется в URL загруженных файлов.
func New(store *Store, hub *Hub, publicURL string, logger zerolog.Logger) *Server {
	return &Server{
		store:     store,
		hub:       hub,
		log:       logger,
		publicURL: publicURL,
	}
}

// Router собирает маршруты gin
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.log))

	// CORS для взаимодействия с фронтендом виджета
	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	api := r.Group("/api")
	{
		// Гостевая часть (публичная)
		api.POST("/guest/start-session", s.StartGuestSession)
		api.GET("/conversations/:id/messages", s.GetConversationMessages)
		api.POST("/upload", s.UploadFile)

		// Сторона сотрудника: принять/завершить разговор
		api.POST("/conversations/:id/accept", s.AcceptConversation)
		api.POST("/conversations/:id/close", s.CloseConversation)
	}

	r.GET("/files/:id", s.ServeFile)

	// WebSocket эндпоинт
	r.GET("/ws", s.ServeWs)

	return r
}
