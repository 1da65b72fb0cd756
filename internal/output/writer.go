// Package output writes the per-keyword result files and the run summary.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

const timestampLayout = "20060102_150405"

// Terminal keyword statuses as they appear in output files.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusError       = "error"
)

type ScrapeMetadata struct {
	Date                time.Time `json:"date"`
	Keyword             string    `json:"keyword"`
	TotalProducts       int       `json:"total_products"`
	TotalReviews        int       `json:"total_reviews"`
	Status              string    `json:"status"`
	Error               string    `json:"error,omitempty"`
	CheckpointPreserved bool      `json:"checkpoint_preserved,omitempty"`
}

// KeywordResult is the document written for one keyword.
type KeywordResult struct {
	Metadata ScrapeMetadata         `json:"scrape_metadata"`
	Products []models.ProductRecord `json:"products"`
}

func NewKeywordResult(keyword, status string, products []models.ProductRecord, at time.Time) *KeywordResult {
	if products == nil {
		products = make([]models.ProductRecord, 0)
	}
	return &KeywordResult{
		Metadata: ScrapeMetadata{
			Date:          at,
			Keyword:       keyword,
			TotalProducts: len(products),
			TotalReviews:  models.TotalReviews(products),
			Status:        status,
		},
		Products: products,
	}
}

// Files lists what WriteKeyword produced.
type Files struct {
	JSON string `json:"json"`
	CSV  string `json:"csv"`
}

type Writer struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{
		dir:    dir,
		logger: logger.With("component", "output_writer"),
		now:    time.Now,
	}, nil
}

func (w *Writer) Dir() string {
	return w.dir
}

// SafeKeyword is the file-name form of a keyword.
func SafeKeyword(keyword string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(strings.TrimSpace(keyword))
}

// WriteKeyword writes <keyword>_<timestamp>.json and its CSV companion.
func (w *Writer) WriteKeyword(res *KeywordResult) (*Files, error) {
	stem := filepath.Join(w.dir, SafeKeyword(res.Metadata.Keyword)+"_"+w.now().Format(timestampLayout))
	files := &Files{JSON: stem + ".json", CSV: stem + ".csv"}

	data, err := encodeJSON(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keyword result: %w", err)
	}
	if err := os.WriteFile(files.JSON, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write keyword result: %w", err)
	}

	table, err := productCSV(res.Products)
	if err != nil {
		return nil, fmt.Errorf("failed to encode csv summary: %w", err)
	}
	if err := os.WriteFile(files.CSV, table, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write csv summary: %w", err)
	}

	w.logger.Info("keyword data saved",
		"keyword", res.Metadata.Keyword,
		"products", res.Metadata.TotalProducts,
		"reviews", res.Metadata.TotalReviews,
		"json", files.JSON,
		"csv", files.CSV,
	)
	return files, nil
}

var csvHeader = []string{
	"product_id", "name", "brand", "category", "price", "discounted_price",
	"rating", "review_count", "reviews_scraped", "availability", "product_url",
}

func productCSV(products []models.ProductRecord) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range products {
		p := &products[i]
		discounted := ""
		if p.DiscountedPrice > 0 {
			discounted = formatFloat(p.DiscountedPrice)
		}
		record := []string{
			p.ID,
			p.Name,
			p.Brand,
			p.Category,
			formatFloat(p.Price),
			discounted,
			formatFloat(p.Rating),
			strconv.Itoa(p.ReviewCount),
			strconv.Itoa(p.ReviewsScraped()),
			p.Availability,
			p.URL,
		}
		if err := cw.Write(record); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	return buf.Bytes(), cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
