package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// KeywordSummary is one keyword's line in the run summary.
type KeywordSummary struct {
	Keyword       string        `json:"keyword"`
	Status        string        `json:"status"`
	TotalProducts int           `json:"total_products"`
	TotalReviews  int           `json:"total_reviews"`
	Resumed       bool          `json:"resumed,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	OutputFile    string        `json:"output_file,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type RunSummary struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"scrape_started"`
	FinishedAt time.Time        `json:"scrape_finished"`
	Keywords   []string         `json:"keywords"`
	Workers    int              `json:"workers"`
	FastMode   bool             `json:"fast_mode"`
	Summaries  []KeywordSummary `json:"keyword_summaries"`
}

func (s *RunSummary) TotalProducts() int {
	total := 0
	for _, k := range s.Summaries {
		total += k.TotalProducts
	}
	return total
}

func (s *RunSummary) TotalReviews() int {
	total := 0
	for _, k := range s.Summaries {
		total += k.TotalReviews
	}
	return total
}

// CountByStatus reports how many keywords ended in status.
func (s *RunSummary) CountByStatus(status string) int {
	n := 0
	for _, k := range s.Summaries {
		if k.Status == status {
			n++
		}
	}
	return n
}

// WriteSummary writes scraping_summary_<timestamp>.json and returns its path.
func (w *Writer) WriteSummary(s *RunSummary) (string, error) {
	path := filepath.Join(w.dir, "scraping_summary_"+w.now().Format(timestampLayout)+".json")

	data, err := encodeJSON(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}

	w.logger.Info("summary report saved",
		"run_id", s.RunID,
		"file", path,
		"products", s.TotalProducts(),
		"reviews", s.TotalReviews(),
	)
	return path, nil
}
