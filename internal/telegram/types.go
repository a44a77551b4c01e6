package telegram

import (
	"encoding/json"
	"strings"
)

// Update is one inbound event from the Bot API.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Sender returns the user behind the update, or nil for channel posts and
// other sender-less updates.
func (u *Update) Sender() *User {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From
	}
	return nil
}

// CallbackQuery is sent when a user presses an inline keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Message is a chat message.
type Message struct {
	MessageID      int64     `json:"message_id"`
	From           *User     `json:"from,omitempty"`
	Chat           *Chat     `json:"chat"`
	Date           int64     `json:"date"`
	Text           string    `json:"text,omitempty"`
	Caption        string    `json:"caption,omitempty"`
	ReplyToMessage *Message  `json:"reply_to_message,omitempty"`
	Document       *Document `json:"document,omitempty"`
}

// ChatID returns the id of the chat the message belongs to, or 0.
func (m *Message) ChatID() int64 {
	if m == nil || m.Chat == nil {
		return 0
	}
	return m.Chat.ID
}

// Command splits "/cmd@bot args" into "cmd" and "args". ok is false for
// messages that are not commands.
func (m *Message) Command() (cmd, args string, ok bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest := text[1:], ""
	if i := strings.IndexAny(head, " \t\n"); i >= 0 {
		head, rest = head[:i], head[i+1:]
	}
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName prefers the first name, then the username, then "User".
func (u *User) DisplayName() string {
	if u == nil {
		return "User"
	}
	if n := strings.TrimSpace(u.FirstName); n != "" {
		return n
	}
	if u.Username != "" {
		return u.Username
	}
	return "User"
}

// Chat identifies a conversation.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Document is a file attached to a message.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// InlineKeyboardButton is one button under a message. Exactly one of
// CallbackData or URL is set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// InlineKeyboardMarkup is the reply_markup for inline keyboards.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// NewInlineKeyboard builds a markup from rows.
func NewInlineKeyboard(rows ...[]InlineKeyboardButton) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}
