package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EmailSink logs the customer email that would be sent. Outbound mail is not wired yet.
type EmailSink struct {
	logger *zap.Logger
	from   string
	types  map[string]bool
}

// NewEmailSink handles job.created and job.completed for customers with an email address.
func NewEmailSink(logger *zap.Logger, from string) *EmailSink {
	return &EmailSink{
		logger: logger,
		from:   from,
		types: map[string]bool{
			EventJobCreated:   true,
			EventJobCompleted: true,
		},
	}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(_ context.Context, ev Event) error {
	if !s.types[ev.Type] || ev.CustomerEmail == "" {
		return nil
	}
	s.logger.Info("Email notification",
		zap.String("from", s.from),
		zap.String("to", ev.CustomerEmail),
		zap.String("subject", ev.Title),
		zap.String("body", ev.Message),
		zap.String("job_number", ev.JobNumber),
	)
	return nil
}

// RedisPublisher publishes events as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = "repair:events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// WebhookSink POSTs events to an HTTP endpoint.
type WebhookSink struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewWebhookSink(url, token string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookSink{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Repair-Event", ev.Type)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
