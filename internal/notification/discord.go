package notification

import (
	"context"
	"net/http"
	"time"
)

// DiscordNotifier posts alerts to a Discord channel webhook as embeds.
type DiscordNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordNotifier creates a Discord notifier for a channel webhook URL.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		username:   "gridbot",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (d *DiscordNotifier) Send(ctx context.Context, alert Alert) error {
	msg := discordMessage{
		Username: d.username,
		Embeds: []discordEmbed{{
			Title:       levelEmoji(alert.Level) + " " + alertTitle(alert),
			Description: alert.Message,
			Color:       levelColor(alert.Level),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	return postJSON(ctx, d.client, d.webhookURL, msg, "discord", alert.Title)
}

func levelColor(l AlertLevel) int {
	switch l {
	case AlertWarning:
		return 0xF1C40F
	case AlertCritical:
		return 0xE74C3C
	}
	return 0x2ECC71
}
