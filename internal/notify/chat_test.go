package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

func TestChatSenderPostsJSONPayload(t *testing.T) {
	t.Parallel()

	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewChatSender(ChatConfig{Timeout: 5 * time.Second})
	err := s.Send(context.Background(), srv.URL, seminar.Message{TextBody: "セミナー情報 1件"})
	require.NoError(t, err)
	assert.Contains(t, got.Text, "セミナー情報 1件")
	assert.Contains(t, got.Text, "海技士セミナー情報")
}

func TestChatSenderNon2xxIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewChatSender(ChatConfig{Timeout: 5 * time.Second})
	err := s.Send(context.Background(), srv.URL, seminar.Message{TextBody: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestChatSenderChannel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, seminar.ChannelChat, NewChatSender(ChatConfig{}).Channel())
}
