package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSendText(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/botabc/sendMessage", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "chat", payload["chat_id"])
		assert.Equal(t, "hello", payload["text"])
	}))
	defer srv.Close()

	tg := NewTelegram("abc", "chat")
	tg.BaseURL = srv.URL
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTelegramRequiresCredentials(t *testing.T) {
	assert.Error(t, NewTelegram("", "").SendText(context.Background(), "x"))
}

func TestCardMarkdown(t *testing.T) {
	c := Card{Icon: "!", Title: "Stop_loss", Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	c.Add("rate", 4100)
	c.Add("skip", "")
	c.Add("size", "1```")
	out := c.Markdown()
	assert.Contains(t, out, "*! Stop\\_loss*")
	assert.Contains(t, out, "rate: 4100")
	assert.Contains(t, out, "size: 1'''")
	assert.NotContains(t, out, "skip")
	assert.Contains(t, out, "2024-01-02 03:04:05 UTC")
}
