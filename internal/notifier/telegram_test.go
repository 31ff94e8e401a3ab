package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *TelegramClient {
	return &TelegramClient{
		baseURL: serverURL,
		token:   "test-token",
		http:    resty.New().SetTimeout(5 * time.Second),
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "2021a_fe.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func TestSendDocument(t *testing.T) {
	var gotPath, gotChatID, gotCaption, gotParseMode, gotFileName string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotChatID = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")
		gotParseMode = r.FormValue("parse_mode")

		_, header, err := r.FormFile("document")
		require.NoError(t, err)
		gotFileName = header.Filename

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.SendDocument(context.Background(), "42", "<b>caption</b>", writeTempFile(t, "zip"))
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendDocument", gotPath)
	assert.Equal(t, "42", gotChatID)
	assert.Equal(t, "<b>caption</b>", gotCaption)
	assert.Equal(t, "HTML", gotParseMode)
	assert.Equal(t, "2021a_fe.zip", gotFileName)
}

func TestSendDocument_BadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.SendDocument(context.Background(), "42", "caption", writeTempFile(t, "zip"))
	require.Error(t, err)

	var badRequest *BadRequestError
	require.True(t, errors.As(err, &badRequest))
	assert.Equal(t, "42", badRequest.ChatID)
	assert.Equal(t, "Bad Request: chat not found", badRequest.Description)
}

func TestSendDocument_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.SendDocument(context.Background(), "42", "caption", writeTempFile(t, "zip"))
	require.Error(t, err)

	var badRequest *BadRequestError
	assert.False(t, errors.As(err, &badRequest))
	assert.Contains(t, err.Error(), "status 502")
}
