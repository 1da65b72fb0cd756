package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("successful publish", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		pub := NewRedisPublisher(mockRedis, "stream:scraper_progress", testLogger())

		product := models.NewProduct("42", "https://www.nykaa.com/kajal/p/42")
		product.Reviews = []models.ReviewRecord{{Author: models.Author{Name: "Riya"}, Rating: 5, Body: "ok"}}

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			if args.Stream != "stream:scraper_progress" {
				return false
			}
			if args.Values.(map[string]interface{})["type"] != "PRODUCT_SCRAPED" {
				return false
			}

			var ev Event
			if err := json.Unmarshal([]byte(args.Values.(map[string]interface{})["data"].(string)), &ev); err != nil {
				return false
			}
			return ev.ProductID == "42" && ev.Reviews == 1 && ev.Keyword == "kajal" && ev.Source == "nykaa-scraper"
		})).Return(nil)

		ev := ProductScraped("kajal", product)
		require.NoError(t, pub.Publish(ctx, ev))

		assert.NotEmpty(t, ev.EventID)
		assert.False(t, ev.Timestamp.IsZero())
		mockRedis.AssertExpectations(t)
	})

	t.Run("keeps caller event id", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		pub := NewRedisPublisher(mockRedis, "progress", testLogger())

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]interface{})["event_id"] == "fixed-id"
		})).Return(nil)

		ev := KeywordStarted("serum", true)
		ev.EventID = "fixed-id"
		require.NoError(t, pub.Publish(ctx, ev))
		assert.Equal(t, "resumed", ev.Status)
		mockRedis.AssertExpectations(t)
	})

	t.Run("redis error", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		pub := NewRedisPublisher(mockRedis, "progress", testLogger())

		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused"))

		err := pub.Publish(ctx, KeywordFinished("toner", "error", 1, 2, errors.New("session closed")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to publish to redis")
	})
}

func TestRedisPublisher_Close(t *testing.T) {
	mockRedis := new(MockRedisClient)
	mockRedis.On("Close").Return(nil)

	pub := NewRedisPublisher(mockRedis, "progress", testLogger())
	require.NoError(t, pub.Close())
	mockRedis.AssertExpectations(t)
}

func TestKeywordFinished(t *testing.T) {
	ev := KeywordFinished("toner", "error", 3, 9, errors.New("boom"))

	assert.Equal(t, EventTypeKeywordFinished, ev.EventType)
	assert.Equal(t, "boom", ev.Error)
	assert.Equal(t, 3, ev.Products)
	assert.Equal(t, 9, ev.Reviews)

	assert.Empty(t, KeywordFinished("toner", "completed", 3, 9, nil).Error)
}

func TestNew_WithoutAddress(t *testing.T) {
	pub := New(context.Background(), config.EventsConfig{}, testLogger())

	assert.IsType(t, NopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), KeywordStarted("kajal", false)))
	assert.NoError(t, pub.Close())
}

func TestNew_UnreachableRedisFallsBackToNop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pub := New(ctx, config.EventsConfig{RedisAddr: "127.0.0.1:1", Stream: "scraper:events"}, testLogger())

	assert.IsType(t, NopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), KeywordStarted("kajal", false)))
}
