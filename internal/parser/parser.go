package parser

import (
	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

// Parser turns rendered page content into typed records. Implementations do
// no I/O.
type Parser interface {
	ExtractProduct(html string, productURL string) Result[*models.ProductRecord]
	ExtractReviews(html string) []models.ReviewRecord
	ExtractProductLinks(html string, baseURL string) []string
	HasNoResults(html string) bool
}
