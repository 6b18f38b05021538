package notification

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to a chat through the Bot API using
// MarkdownV2 formatting.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewTelegramNotifier creates a notifier for the bot token issued by
// @BotFather and the target chat, group or channel ID.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{
		ChatID:    t.chatID,
		Text:      levelEmoji(alert.Level) + " *" + escapeMarkdown(alertTitle(alert)) + "*\n\n" + escapeMarkdown(alert.Message),
		ParseMode: "MarkdownV2",
	}
	url := t.apiBase + "/bot" + t.botToken + "/sendMessage"
	return postJSON(ctx, t.client, url, msg, "telegram", alert.Title)
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func levelEmoji(l AlertLevel) string {
	switch l {
	case AlertWarning:
		return "⚠️"
	case AlertCritical:
		return "🚨"
	}
	return "ℹ️"
}

// alertTitle prefixes the symbol when set.
func alertTitle(a Alert) string {
	if a.Symbol == "" {
		return a.Title
	}
	return a.Symbol + " " + a.Title
}

// markdownEscaper escapes every character MarkdownV2 reserves.
var markdownEscaper = strings.NewReplacer(
	`_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
