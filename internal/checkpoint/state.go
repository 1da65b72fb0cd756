package checkpoint

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

// FormatVersion is bumped whenever the persisted layout changes. Documents
// with any other version are rejected on load.
const FormatVersion = 2

type Status string

const (
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusError       Status = "error"
)

// URLSet is a set of URLs persisted as a sorted list.
type URLSet map[string]struct{}

func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

func (s URLSet) Add(url string) { s[url] = struct{}{} }

func (s URLSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (s URLSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *URLSet) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return err
	}
	*s = NewURLSet(urls...)
	return nil
}

// Metadata carries progress and smart-resume information.
type Metadata struct {
	Status           Status  `json:"status"`
	TotalURLs        int     `json:"total_urls"`
	ProcessedCount   int     `json:"processed_count"`
	ProgressPercent  float64 `json:"progress_percentage"`
	Remaining        int     `json:"remaining_urls"`
	LastProcessedURL string  `json:"last_processed_url,omitempty"`
	LastError        string  `json:"last_error,omitempty"`
	LastErrorURL     string  `json:"last_error_url,omitempty"`

	URLScrapingCompleted bool       `json:"url_scraping_completed"`
	AllProductURLs       []string   `json:"all_product_urls,omitempty"`
	MaxProductsRequested int        `json:"max_products_requested"`
	URLScrapingAt        *time.Time `json:"url_scraping_timestamp,omitempty"`
}

// State is the persisted progress of one keyword.
type State struct {
	FormatVersion      int                    `json:"format_version"`
	Keyword            string                 `json:"keyword"`
	AccumulatedRecords []models.ProductRecord `json:"accumulated_records"`
	ProcessedURLs      URLSet                 `json:"processed_urls"`
	Metadata           Metadata               `json:"metadata"`
	SavedAt            time.Time              `json:"saved_at"`
}

func NewState(keyword string) *State {
	return &State{
		FormatVersion:      FormatVersion,
		Keyword:            keyword,
		AccumulatedRecords: make([]models.ProductRecord, 0),
		ProcessedURLs:      NewURLSet(),
		Metadata:           Metadata{Status: StatusInProgress},
	}
}

// RefreshProgress recomputes the derived progress fields.
func (s *State) RefreshProgress() {
	total := s.Metadata.TotalURLs
	processed := len(s.ProcessedURLs)

	s.Metadata.ProcessedCount = processed
	s.Metadata.ProgressPercent = float64(processed) / float64(max(1, total)) * 100
	s.Metadata.Remaining = max(0, total-processed)
}

// RecordSearch caches the product URL list for later resumes.
func (s *State) RecordSearch(urls []string, maxProducts int, at time.Time) {
	s.Metadata.URLScrapingCompleted = true
	s.Metadata.AllProductURLs = append([]string(nil), urls...)
	s.Metadata.MaxProductsRequested = maxProducts
	s.Metadata.TotalURLs = len(urls)
	s.Metadata.URLScrapingAt = &at
}

// CachedURLs returns the cached product URLs when they cover maxProducts,
// truncated to that count.
func (s *State) CachedURLs(maxProducts int) ([]string, bool) {
	m := s.Metadata
	if !m.URLScrapingCompleted || len(m.AllProductURLs) == 0 || maxProducts > m.MaxProductsRequested {
		return nil, false
	}
	urls := m.AllProductURLs
	if len(urls) > maxProducts {
		urls = urls[:maxProducts]
	}
	return append([]string(nil), urls...), true
}

// Validate checks a decoded document against the keyword it was loaded for.
func (s *State) Validate(keyword string) error {
	if s.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format version %d", s.FormatVersion)
	}
	if s.Keyword != keyword {
		return fmt.Errorf("checkpoint belongs to keyword %q", s.Keyword)
	}
	if s.AccumulatedRecords == nil || s.ProcessedURLs == nil {
		return fmt.Errorf("missing required fields")
	}
	return nil
}
