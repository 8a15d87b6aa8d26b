package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/egor/warrantychat/models"
	"github.com/egor/warrantychat/transport"
)

// StartGuestSession создает разговор для анонимного гостя.
// Повторный вызов безопасен: каждая попытка приходит со свежим guestId
// и получает свежий разговор.
func (s *Server) StartGuestSession(c *gin.Context) {
	var req struct {
		GuestID         string `json:"guestId" binding:"required"`
		ServiceCenterID string `json:"serviceCenterId"`
		DisplayName     string `json:"displayName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Необходимы поля guestId и displayName"})
		return
	}
	if req.ServiceCenterID == "" {
		req.ServiceCenterID = "default"
	}

	conv := s.store.CreateConversation(req.GuestID, req.DisplayName, req.ServiceCenterID)
	s.log.Info().
		Str("conversationId", conv.ID.String()).
		Str("guestId", req.GuestID).
		Str("serviceCenterId", req.ServiceCenterID).
		Msg("создан гостевой разговор")

	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID.String()})
}

// GetConversationMessages возвращает историю разговора
func (s *Server) GetConversationMessages(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный формат id разговора"})
		return
	}

	messages, err := s.store.Messages(convID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Разговор не найден"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UploadFile принимает multipart-файл и возвращает публичный URL
func (s *Server) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не передан"})
		return
	}
	if header.Size > models.MaxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Файл превышает 10 МБ"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось прочитать файл"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось прочитать файл"})
		return
	}

	id := s.store.SaveFile(data)

	// без настроенного PUBLIC_URL ссылка строится от хоста запроса
	base := s.publicURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}

	s.log.Info().Str("file", header.Filename).Int("size", len(data)).Msg("файл загружен")
	c.JSON(http.StatusOK, gin.H{"url": base + "/files/" + id})
}

// ServeFile отдает загруженный файл
func (s *Server) ServeFile(c *gin.Context) {
	data, ok := s.store.GetFile(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Файл не найден"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// AcceptConversation — сотрудник принимает разговор; комната получает chatAccepted
func (s *Server) AcceptConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный формат id разговора"})
		return
	}

	var req struct {
		StaffID string `json:"staffId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Необходимо поле staffId"})
		return
	}

	conv, err := s.store.AcceptConversation(convID, req.StaffID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	data, err := transport.NewEnvelope(transport.EventChatAccepted, transport.ChatAcceptedPayload{
		ConversationID: conv.ID.String(),
		StaffID:        req.StaffID,
	})
	if err == nil {
		s.hub.SendToRoom(conv.ID.String(), data)
	}

	s.log.Info().Str("conversationId", conv.ID.String()).Str("staffId", req.StaffID).Msg("разговор принят")
	c.JSON(http.StatusOK, gin.H{"status": conv.Status})
}

// CloseConversation — сотрудник завершает разговор; комната получает conversationClosed
func (s *Server) CloseConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный формат id разговора"})
		return
	}

	var req struct {
		ClosedBy string `json:"closedBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Необходимо поле closedBy"})
		return
	}

	conv, err := s.store.CloseConversation(convID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	data, err := transport.NewEnvelope(transport.EventConversationClosed, transport.ConversationClosedPayload{
		ConversationID: conv.ID.String(),
		ClosedBy:       req.ClosedBy,
	})
	if err == nil {
		s.hub.SendToRoom(conv.ID.String(), data)
	}

	s.log.Info().Str("conversationId", conv.ID.String()).Str("closedBy", req.ClosedBy).Msg("разговор завершен")
	c.JSON(http.StatusOK, gin.H{"status": conv.Status})
}
