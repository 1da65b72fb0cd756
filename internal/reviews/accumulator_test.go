package reviews

import (
	"fmt"
	"testing"

	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/stretchr/testify/assert"
)

func review(i int) models.ReviewRecord {
	return models.ReviewRecord{
		Author: models.Author{Name: fmt.Sprintf("user%d", i)},
		Rating: 4,
		Body:   fmt.Sprintf("review body number %d", i),
		Date:   "2024-01-01",
	}
}

func batch(from, to int) []models.ReviewRecord {
	var out []models.ReviewRecord
	for i := from; i < to; i++ {
		out = append(out, review(i))
	}
	return out
}

func TestAccumulator_DedupIdempotence(t *testing.T) {
	acc := NewAccumulator()

	assert.Equal(t, 5, acc.Add(batch(0, 5)))
	assert.Equal(t, 3, acc.Add(batch(3, 8)))
	assert.Equal(t, 8, acc.Len())

	assert.Equal(t, 0, acc.Add(batch(0, 8)))
	assert.Equal(t, 8, acc.Len())
}

func TestAccumulator_PreservesFirstSeenOrder(t *testing.T) {
	acc := NewAccumulator()
	acc.Add([]models.ReviewRecord{review(3), review(1)})
	acc.Add([]models.ReviewRecord{review(2), review(1)})

	got := acc.Reviews(0)
	assert.Equal(t, []string{"user3", "user1", "user2"}, []string{
		got[0].Author.Name, got[1].Author.Name, got[2].Author.Name,
	})
}

func TestAccumulator_SkipsInvalid(t *testing.T) {
	anonymous := review(1)
	anonymous.Author.Name = models.AnonymousAuthor
	unrated := review(2)
	unrated.Rating = 0
	empty := review(3)
	empty.Body = ""

	acc := NewAccumulator()
	assert.Equal(t, 0, acc.Add([]models.ReviewRecord{anonymous, unrated, empty}))

	titleOnly := review(4)
	titleOnly.Body = ""
	titleOnly.Title = "Loved it"
	assert.Equal(t, 1, acc.Add([]models.ReviewRecord{titleOnly}))
}

func TestAccumulator_FingerprintUsesBodyPrefix(t *testing.T) {
	long := review(1)
	long.Body = "This mascara holds curl all day and never flakes at all, really"
	sameStart := long
	sameStart.Body = long.Body[:50] + " but a different tail"

	acc := NewAccumulator()
	assert.Equal(t, 1, acc.Add([]models.ReviewRecord{long, sameStart}))
}

func TestAccumulator_ReviewsLimit(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(batch(0, 10))

	assert.Len(t, acc.Reviews(4), 4)
	assert.Len(t, acc.Reviews(50), 10)
	assert.Len(t, acc.Reviews(0), 10)
	assert.Equal(t, "user0", acc.Reviews(4)[0].Author.Name)
}
