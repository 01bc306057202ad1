package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     newClient(),
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	// Text is the fallback shown in notifications.
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	msg := slackMessage{
		Text: n.Title,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: "📈 " + n.Title}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("<%s|%s>", n.URL, n.Body)}, Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Region*\n%s", n.Region)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Score*\n%.2f (confidence %.2f)", n.Score, n.Confidence)},
			}},
		},
	}

	if len(n.Videos) > 0 {
		ctxBlock := slackBlock{Type: "context"}
		for _, v := range n.Videos {
			ctxBlock.Elements = append(ctxBlock.Elements, slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("%d. <%s|%s> (%s) %.2f", v.Rank, v.URL, v.Title, v.Channel, v.Score),
			})
		}
		msg.Blocks = append(msg.Blocks, ctxBlock)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	return post(ctx, s.client, "slack webhook", s.webhookURL, body, nil)
}
