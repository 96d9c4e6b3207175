package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// ChatConfig bounds the chat webhook channel.
type ChatConfig struct {
	Timeout time.Duration
}

// ChatSender posts messages to a chat webhook. The route address is the
// webhook URL itself.
type ChatSender struct {
	client *http.Client
}

// NewChatSender builds a ChatSender.
func NewChatSender(cfg ChatConfig) *ChatSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ChatSender{client: &http.Client{Timeout: timeout}}
}

// Channel reports the chat channel.
func (s *ChatSender) Channel() seminar.Channel { return seminar.ChannelChat }

type chatPayload struct {
	Text string `json:"text"`
}

// Send posts the text body as a JSON payload to the webhook address.
func (s *ChatSender) Send(ctx context.Context, address string, msg seminar.Message) error {
	body, err := json.Marshal(chatPayload{Text: "*海技士セミナー情報*\n\n" + msg.TextBody})
	if err != nil {
		return fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post chat webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat webhook returned status %d", resp.StatusCode)
	}
	return nil
}
