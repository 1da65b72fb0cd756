package parser

import (
	"net/url"
	"testing"

	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductID(t *testing.T) {
	assert.Equal(t, "123", ProductID("https://www.nykaa.com/foo/p/123?skuId=9"))
	assert.Equal(t, models.UnknownID, ProductID("https://www.nykaa.com/brands/foo"))
}

func TestReviewsURL(t *testing.T) {
	tests := []struct {
		name       string
		productURL string
		want       string
	}{
		{
			name:       "slug and id",
			productURL: "https://www.nykaa.com/lakme-eyeconic-kajal/p/556677?skuId=1",
			want:       "https://www.nykaa.com/lakme-eyeconic-kajal/reviews/556677?ptype=reviews",
		},
		{
			name:       "no slug",
			productURL: "https://www.nykaa.com/p/556677",
			want:       "https://www.nykaa.com/p/556677/reviews",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReviewsURL("https://www.nykaa.com/", tt.productURL))
		})
	}
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t,
		"https://www.nykaa.com/search/result/?q=lip%20gloss&page_no=2&sort=popularity",
		SearchURL("https://www.nykaa.com", "/search/result/", "lip gloss", 2))

	tests := []struct {
		keyword string
		want    string
	}{
		{"lip & cheek", "lip & cheek"},
		{"c+c serum", "c+c serum"},
		{"100% matte", "100% matte"},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			u, err := url.Parse(SearchURL("https://www.nykaa.com", "", tt.keyword, 1))
			require.NoError(t, err)
			q := u.Query()
			assert.Equal(t, tt.want, q.Get("q"))
			assert.Equal(t, "1", q.Get("page_no"))
			assert.Equal(t, "popularity", q.Get("sort"))
		})
	}
}
