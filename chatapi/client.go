// Package chatapi — типизированный REST-клиент бэкенда гостевого чата:
// старт сессии, история сообщений, загрузка файлов.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/egor/warrantychat/models"
)

// Client — клиент REST API гостевого чата
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient создает клиент для указанного базового URL
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type startSessionRequest struct {
	GuestID         string `json:"guestId"`
	ServiceCenterID string `json:"serviceCenterId"`
	DisplayName     string `json:"displayName"`
}

type startSessionResponse struct {
	ConversationID string `json:"conversationId"`
}

// StartSession запрашивает у сервера хендл разговора для гостя.
// Безопасно повторяется: каждая новая попытка приходит со свежим guestId.
func (c *Client) StartSession(ctx context.Context, guestID, serviceCenterID, displayName string) (models.ConversationHandle, error) {
	body, err := json.Marshal(startSessionRequest{
		GuestID:         guestID,
		ServiceCenterID: serviceCenterID,
		DisplayName:     displayName,
	})
	if err != nil {
		return models.ConversationHandle{}, fmt.Errorf("chatapi: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/api/guest/start-session", bytes.NewReader(body))
	if err != nil {
		return models.ConversationHandle{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp startSessionResponse
	if err := c.do(req, &resp); err != nil {
		return models.ConversationHandle{}, err
	}
	if resp.ConversationID == "" {
		return models.ConversationHandle{}, fmt.Errorf("chatapi: сервер не вернул conversationId")
	}

	return models.ConversationHandle{
		ConversationID:  resp.ConversationID,
		ServiceCenterID: serviceCenterID,
	}, nil
}

type historyResponse struct {
	Messages []models.Message `json:"messages"`
}

// GetMessageHistory загружает историю разговора. Сервер отдает senderType
// в своем регистре (наблюдался верхний) — нормализуем при чтении.
func (c *Client) GetMessageHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/api/conversations/"+conversationID+"/messages", nil)
	if err != nil {
		return nil, err
	}

	var resp historyResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	for i := range resp.Messages {
		resp.Messages[i].Normalize()
	}
	return resp.Messages, nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadFile загружает файл и возвращает публичный URL,
// который подставляется в content сообщения как есть
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("chatapi: multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("chatapi: чтение файла: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("chatapi: сервер не вернул url файла")
	}
	return resp.URL, nil
}

// do выполняет запрос и разбирает JSON-ответ либо поле error
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("chatapi: %s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("chatapi: HTTP %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chatapi: decode: %w", err)
	}
	return nil
}
