// Package events publishes scrape progress to a Redis stream so other
// services can follow a run while it is in flight.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeKeywordStarted  EventType = "KEYWORD_STARTED"
	EventTypeProductScraped  EventType = "PRODUCT_SCRAPED"
	EventTypeKeywordFinished EventType = "KEYWORD_FINISHED"
)

// Event is the payload written to the progress stream.
type Event struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Keyword   string    `json:"keyword"`
	ProductID string    `json:"product_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Status    string    `json:"status,omitempty"`
	Products  int       `json:"products,omitempty"`
	Reviews   int       `json:"reviews,omitempty"`
	Error     string    `json:"error,omitempty"`
	Source    string    `json:"source"`
}

func KeywordStarted(keyword string, resumed bool) *Event {
	status := "fresh"
	if resumed {
		status = "resumed"
	}
	return &Event{EventType: EventTypeKeywordStarted, Keyword: keyword, Status: status}
}

func ProductScraped(keyword string, p *models.ProductRecord) *Event {
	return &Event{
		EventType: EventTypeProductScraped,
		Keyword:   keyword,
		ProductID: p.ID,
		URL:       p.URL,
		Reviews:   p.ReviewsScraped(),
	}
}

func KeywordFinished(keyword, status string, products, reviews int, err error) *Event {
	ev := &Event{
		EventType: EventTypeKeywordFinished,
		Keyword:   keyword,
		Status:    status,
		Products:  products,
		Reviews:   reviews,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
	Close() error
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type RedisPublisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewRedisPublisher(client RedisClient, stream string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// New connects to Redis when an address is configured. Events are best
// effort: without an address, or when Redis is unreachable, it returns a
// no-op publisher.
func New(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) Publisher {
	if cfg.RedisAddr == "" {
		return NopPublisher{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("redis unreachable, progress events disabled",
			"component", "event_publisher",
			"addr", cfg.RedisAddr,
			"error", err)
		return NopPublisher{}
	}

	return NewRedisPublisher(client, cfg.Stream, logger)
}

func (p *RedisPublisher) Publish(ctx context.Context, ev *Event) error {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Source == "" {
		ev.Source = "nykaa-scraper"
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"type":       string(ev.EventType),
			"keyword":    ev.Keyword,
			"event_id":   ev.EventID,
			"timestamp":  fmt.Sprintf("%d", ev.Timestamp.UnixNano()),
			"event_type": string(ev.EventType),
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"type", ev.EventType,
		"event_id", ev.EventID,
		"keyword", ev.Keyword,
		"stream_id", id,
	)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

func (NopPublisher) Close() error { return nil }
