package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     newClient(),
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var lines []string
	for _, v := range n.Videos {
		lines = append(lines, fmt.Sprintf("%d. [%s](%s) %s [%s]", v.Rank, v.Title, v.URL, v.Channel, v.Source))
	}

	embed := map[string]any{
		"title":       fmt.Sprintf("📈 %s", n.Title),
		"url":         n.URL,
		"description": fmt.Sprintf("**Score:** %.2f | **Confidence:** %.2f\n\n%s\n\n%s", n.Score, n.Confidence, n.Body, strings.Join(lines, "\n")),
		"color":       0xFF0033,
		"timestamp":   n.SentAt.Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	return post(ctx, d.client, "discord webhook", d.webhookURL, body, nil)
}
