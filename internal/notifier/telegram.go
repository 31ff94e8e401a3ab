// Package notifier sends downloaded files to messaging channels.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const telegramBaseURL = "https://api.telegram.org"

// BadRequestError represents a malformed-request rejection from the Bot API,
// such as an oversized document or an unknown chat.
type BadRequestError struct {
	ChatID      string
	Description string
	Err         error
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("telegram rejected request for chat %s: %s", e.ChatID, e.Description)
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// TelegramClient talks to the Telegram Bot API.
type TelegramClient struct {
	baseURL string
	token   string
	http    *resty.Client
}

func NewTelegramClient(token string, timeout time.Duration) *TelegramClient {
	return &TelegramClient{
		baseURL: telegramBaseURL,
		token:   token,
		http:    resty.New().SetTimeout(timeout),
	}
}

// SendDocument uploads the file at filePath to the chat with an HTML caption.
func (c *TelegramClient) SendDocument(ctx context.Context, chatID, caption, filePath string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetFile("document", filePath).
		SetFormData(map[string]string{
			"chat_id":    chatID,
			"caption":    caption,
			"parse_mode": "HTML",
		}).
		Post(fmt.Sprintf("%s/bot%s/sendDocument", c.baseURL, c.token))
	if err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}

	if res.StatusCode() >= http.StatusBadRequest && res.StatusCode() < http.StatusInternalServerError {
		return &BadRequestError{ChatID: chatID, Description: apiDescription(res.Body())}
	}

	if !res.IsSuccess() {
		return fmt.Errorf("telegram API returned status %d", res.StatusCode())
	}

	return nil
}

func apiDescription(body []byte) string {
	var apiResp struct {
		Description string `json:"description"`
	}

	if err := json.Unmarshal(body, &apiResp); err != nil || apiResp.Description == "" {
		return "unknown error"
	}

	return apiResp.Description
}
