package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/checkpoint"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"), nil)
	require.NoError(t, err)
	w.now = func() time.Time { return fixedNow }
	return w
}

func sampleProducts() []models.ProductRecord {
	a := models.NewProduct("101", "https://www.nykaa.com/lakme-kajal/p/101")
	a.Name = "Lakme Eyeconic Kajal"
	a.Brand = "Lakme"
	a.Price = 299
	a.DiscountedPrice = 254.15
	a.Rating = 4.3
	a.ReviewCount = 1200
	a.Availability = models.InStock
	a.Reviews = []models.ReviewRecord{
		{Author: models.Author{Name: "Riya"}, Rating: 5, Body: "Lasts all day"},
		{Author: models.Author{Name: "Asha"}, Rating: 4, Title: "Good"},
	}

	b := models.NewProduct("102", "https://www.nykaa.com/maybelline-kajal/p/102")
	b.Name = "Maybelline Colossal Kajal, Black"
	b.Price = 199

	return []models.ProductRecord{*a, *b}
}

func TestSafeKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"lipstick", "lipstick"},
		{"lip gloss", "lip_gloss"},
		{"kohl/kajal", "kohl_kajal"},
		{"  serum ", "serum"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeKeyword(tt.in))
		})
	}
}

func TestWriter_WriteKeyword(t *testing.T) {
	w := newTestWriter(t)
	res := NewKeywordResult("eye liner", StatusCompleted, sampleProducts(), fixedNow)

	files, err := w.WriteKeyword(res)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(w.Dir(), "eye_liner_20240309_140507.json"), files.JSON)
	assert.Equal(t, filepath.Join(w.Dir(), "eye_liner_20240309_140507.csv"), files.CSV)

	t.Run("json document", func(t *testing.T) {
		data, err := os.ReadFile(files.JSON)
		require.NoError(t, err)

		var doc struct {
			Metadata map[string]any   `json:"scrape_metadata"`
			Products []map[string]any `json:"products"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))

		assert.Equal(t, "eye liner", doc.Metadata["keyword"])
		assert.Equal(t, float64(2), doc.Metadata["total_products"])
		assert.Equal(t, float64(2), doc.Metadata["total_reviews"])
		assert.Equal(t, "completed", doc.Metadata["status"])
		require.Len(t, doc.Products, 2)
		assert.Equal(t, "101", doc.Products[0]["product_id"])
	})

	t.Run("csv companion", func(t *testing.T) {
		data, err := os.ReadFile(files.CSV)
		require.NoError(t, err)

		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)

		assert.Equal(t, csvHeader, rows[0])
		assert.Equal(t, []string{
			"101", "Lakme Eyeconic Kajal", "Lakme", "Unknown", "299", "254.15",
			"4.3", "1200", "2", "In Stock", "https://www.nykaa.com/lakme-kajal/p/101",
		}, rows[1])
		assert.Equal(t, "Maybelline Colossal Kajal, Black", rows[2][1])
		assert.Empty(t, rows[2][5])
		assert.Equal(t, "0", rows[2][8])
	})
}

func TestWriter_WriteKeywordEmpty(t *testing.T) {
	w := newTestWriter(t)

	files, err := w.WriteKeyword(NewKeywordResult("toner", StatusInterrupted, nil, fixedNow))
	require.NoError(t, err)

	data, err := os.ReadFile(files.JSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"products": []`)
}

func TestWriter_WriteSummary(t *testing.T) {
	w := newTestWriter(t)
	sum := &RunSummary{
		RunID:      "run-1",
		StartedAt:  fixedNow.Add(-time.Minute),
		FinishedAt: fixedNow,
		Keywords:   []string{"kajal", "toner"},
		Summaries: []KeywordSummary{
			{Keyword: "kajal", Status: StatusCompleted, TotalProducts: 2, TotalReviews: 7},
			{Keyword: "toner", Status: StatusError, TotalProducts: 1, TotalReviews: 3, Error: "session closed"},
		},
	}

	path, err := w.WriteSummary(sum)
	require.NoError(t, err)
	assert.Equal(t, "scraping_summary_20240309_140507.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got RunSummary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 3, got.TotalProducts())
	assert.Equal(t, 10, got.TotalReviews())
	assert.Equal(t, 1, got.CountByStatus(StatusError))
}

func TestRenderTables(t *testing.T) {
	t.Run("summary", func(t *testing.T) {
		var buf bytes.Buffer
		RenderSummary(&buf, &RunSummary{
			RunID:     "abc",
			Summaries: []KeywordSummary{{Keyword: "kajal", Status: StatusCompleted, TotalProducts: 4}},
		})
		assert.Contains(t, buf.String(), "kajal")
		assert.Contains(t, buf.String(), "1/1")
	})

	t.Run("checkpoints", func(t *testing.T) {
		var buf bytes.Buffer
		RenderCheckpoints(&buf, []checkpoint.Summary{
			{Keyword: "serum", Status: checkpoint.StatusInterrupted, ProgressPercent: 40, SmartResume: true, CachedURLs: 10},
		})
		assert.Contains(t, buf.String(), "serum")
		assert.Contains(t, buf.String(), "40.0%")
		assert.Contains(t, buf.String(), "yes (10 urls)")
	})

	t.Run("reviews", func(t *testing.T) {
		var buf bytes.Buffer
		RenderReviews(&buf, []models.ReviewRecord{{Author: models.Author{Name: "Meera"}, Rating: 5, Body: "Smudge proof"}})
		assert.Contains(t, buf.String(), "Meera")
	})
}
