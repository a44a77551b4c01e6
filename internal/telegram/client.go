// Package telegram is a small Bot API client: outbound messages, inline
// keyboards, callback answers, documents by URL, webhook registration and
// long polling.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIBaseURL is the public Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// Client calls Bot API methods over HTTPS JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for token. An empty apiBase uses
// DefaultAPIBaseURL; a non-positive timeout defaults to 30s.
func NewClient(apiBase, token string, timeout time.Duration) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    fmt.Sprintf("%s/bot%s", strings.TrimRight(apiBase, "/"), token),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendMessage sends text to chatID with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error) {
	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg Message
	if err := c.call(ctx, c.httpClient, "sendMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText replaces the text and keyboard of an existing message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, c.httpClient, "editMessageText", body, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast
// or an alert.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error {
	body := map[string]any{
		"callback_query_id": callbackQueryID,
	}
	if text != "" {
		body["text"] = text
	}
	if showAlert {
		body["show_alert"] = true
	}
	return c.call(ctx, c.httpClient, "answerCallbackQuery", body, nil)
}

// SendDocument asks Telegram to fetch documentURL and send it to chatID.
func (c *Client) SendDocument(ctx context.Context, chatID int64, documentURL, caption string) (*Message, error) {
	body := map[string]any{
		"chat_id":  chatID,
		"document": documentURL,
	}
	if caption != "" {
		body["caption"] = caption
	}
	var msg Message
	if err := c.call(ctx, c.httpClient, "sendDocument", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendPhoto asks Telegram to fetch photoURL and send it to chatID.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) (*Message, error) {
	body := map[string]any{
		"chat_id": chatID,
		"photo":   photoURL,
	}
	if caption != "" {
		body["caption"] = caption
	}
	var msg Message
	if err := c.call(ctx, c.httpClient, "sendPhoto", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetWebhook registers webhookURL. A non-empty secret is echoed back by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	body := map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		body["secret_token"] = secret
	}
	return c.call(ctx, c.httpClient, "setWebhook", body, nil)
}

// DeleteWebhook removes any registered webhook so getUpdates can be used.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, c.httpClient, "deleteWebhook", nil, nil)
}

// GetUpdates long-polls for updates starting at offset. timeout is in
// seconds (0-60); the HTTP deadline is extended past it.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	body := map[string]any{
		"timeout":         timeout,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset > 0 {
		body["offset"] = offset
	}
	client := &http.Client{
		Transport: c.httpClient.Transport,
		Timeout:   time.Duration(timeout+10) * time.Second,
	}
	var updates []Update
	if err := c.call(ctx, client, "getUpdates", body, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, client *http.Client, method string, body map[string]any, out any) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, method)

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: marshal request body: %w", method, err)
		}
		payload = b
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram %s: create request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: send request: %w", method, redactToken(err))
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if !result.OK {
		apiErr := &APIError{Method: method, ErrorCode: result.ErrorCode, Description: result.Description}
		if apiErr.ErrorCode == 0 {
			apiErr.ErrorCode = resp.StatusCode
		}
		if result.Parameters != nil {
			apiErr.RetryAfter = result.Parameters.RetryAfter
		}
		return apiErr
	}
	if out != nil && len(result.Result) > 0 {
		if err := json.Unmarshal(result.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// redactToken strips the request URL (which embeds the bot token) from
// transport errors so it never reaches the logs.
func redactToken(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
