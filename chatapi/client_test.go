package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egor/warrantychat/models"
)

func TestStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/guest/start-session", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "guest-1", req["guestId"])
		assert.Equal(t, "sc-1", req["serviceCenterId"])
		assert.Equal(t, "Алиса", req["displayName"])

		_ = json.NewEncoder(w).Encode(map[string]string{"conversationId": "conv-99"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	handle, err := c.StartSession(context.Background(), "guest-1", "sc-1", "Алиса")
	require.NoError(t, err)
	assert.Equal(t, "conv-99", handle.ConversationID)
	assert.Equal(t, "sc-1", handle.ServiceCenterID)
}

func TestStartSessionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Необходимы поля guestId и displayName"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.StartSession(context.Background(), "guest-1", "sc-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Необходимы поля")
	assert.Contains(t, err.Error(), "400")
}

func TestGetMessageHistoryNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/conv-1/messages", r.URL.Path)
		// сервер отдает senderType в верхнем регистре
		_, _ = w.Write([]byte(`{"messages":[
			{"messageId":"m1","content":"привет","senderId":"guest-1","senderType":"GUEST"},
			{"messageId":"m2","content":"здравствуйте","senderId":"s1","senderType":"STAFF"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	msgs, err := c.GetMessageHistory(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderGuest, msgs[0].SenderType)
	assert.Equal(t, models.SenderStaff, msgs[1].SenderType)
}

func TestUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "damage.png", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]string{"url": "http://cdn.local/files/abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	url, err := c.UploadFile(context.Background(), "damage.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/files/abc", url)
}

func TestUploadFileError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.UploadFile(context.Background(), "a.bin", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
