// Package alert delivers ranking notifications to chat and webhook destinations.
package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/vidradar/pkg/trend"
)

const maxListed = 5

// Video is one ranked video in a notification.
type Video struct {
	ID      string  `json:"id"`
	Rank    int     `json:"rank"`
	Title   string  `json:"title"`
	Channel string  `json:"channel"`
	URL     string  `json:"url"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	URL        string    `json:"url"`
	Query      string    `json:"query"`
	Region     string    `json:"region"`
	RunID      string    `json:"run_id,omitempty"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Videos     []Video   `json:"videos"`
	SentAt     time.Time `json:"sent_at"`
}

// FromRanking builds a notification about the new leader of a ranking.
// It returns nil when the ranking has no results.
func FromRanking(r *trend.Ranking) *Notification {
	top, ok := r.Top()
	if !ok {
		return nil
	}

	n := &Notification{
		Title:      fmt.Sprintf("New #1 in %s: %s", r.Region, top.Record.Title),
		Body:       fmt.Sprintf("%s by %s, %d views in %.1fh", top.Record.Title, top.Record.Channel, top.Record.Views, top.Record.AgeHours),
		URL:        top.Record.URL(),
		Query:      r.Query,
		Region:     r.Region,
		RunID:      r.ID,
		Score:      top.NormalizedScore,
		Confidence: top.Confidence,
		SentAt:     time.Now().UTC(),
	}
	if r.Query != "" {
		n.Title = fmt.Sprintf("New #1 for %q in %s: %s", r.Query, r.Region, top.Record.Title)
	}
	for _, res := range r.Results[:min(maxListed, len(r.Results))] {
		n.Videos = append(n.Videos, Video{
			ID:      res.Record.ID,
			Rank:    res.Rank,
			Title:   res.Record.Title,
			Channel: res.Record.Channel,
			URL:     res.Record.URL(),
			Source:  string(res.Record.Source),
			Score:   res.NormalizedScore,
		})
	}
	return n
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil || n == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func newClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// post sends a JSON body and reports non-2xx responses as errors.
func post(ctx context.Context, client *http.Client, name, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", name, resp.StatusCode)
	}
	return nil
}
