package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Telegram implements Gateway over the Telegram Bot API.  Only the two
// methods the core needs are wired: sendMessage and editMessageText.
type Telegram struct {
	token  string
	base   string
	client *http.Client
}

// NewTelegram returns a Telegram gateway for the given bot token.
func NewTelegram(token string) *Telegram {
	return &Telegram{
		token:  token,
		base:   "https://api.telegram.org",
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewTelegramWithBase is NewTelegram with an overridable API host, for
// tests and self-hosted bot API servers.
func NewTelegramWithBase(token, base string) *Telegram {
	t := NewTelegram(token)
	t.base = base
	return t
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send delivers text to the chat and returns the Telegram message id.
// Buttons, when present, are laid out as one row.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string, buttons []Button) (int64, error) {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if len(buttons) > 0 {
		row := make([]inlineButton, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, inlineButton{Text: b.Text, CallbackData: b.Data})
		}
		body["reply_markup"] = inlineMarkup{InlineKeyboard: [][]inlineButton{row}}
	}
	resp, err := t.call(ctx, "sendMessage", body)
	if err != nil {
		return 0, err
	}
	return resp.Result.MessageID, nil
}

// Edit replaces the text of a previously sent message.  Omitting
// reply_markup drops whatever buttons the original carried.
func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int64, text string) error {
	_, err := t.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	})
	return err
}

func (t *Telegram) call(ctx context.Context, method string, body map[string]interface{}) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/bot%s/%s", t.base, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("telegram %s: bad response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram %s: %s", method, parsed.Description)
	}
	return &parsed, nil
}
