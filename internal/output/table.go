package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/maltedev/nykaa-review-scraper/internal/checkpoint"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// RenderSummary prints one row per keyword plus a totals footer.
func RenderSummary(w io.Writer, s *RunSummary) {
	t := newTable(w)
	t.SetTitle("Run " + s.RunID)
	t.AppendHeader(table.Row{"Keyword", "Status", "Products", "Reviews", "Duration", "Error"})

	for _, k := range s.Summaries {
		t.AppendRow(table.Row{
			k.Keyword,
			k.Status,
			k.TotalProducts,
			k.TotalReviews,
			k.Duration.Round(time.Second),
			k.Error,
		})
	}

	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d/%d completed", s.CountByStatus(StatusCompleted), len(s.Summaries)),
		s.TotalProducts(),
		s.TotalReviews(),
		s.FinishedAt.Sub(s.StartedAt).Round(time.Second),
		"",
	})
	t.Render()
}

func RenderCheckpoints(w io.Writer, list []checkpoint.Summary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Keyword", "Status", "Products", "Processed", "Progress", "Smart Resume", "Saved At"})

	for _, c := range list {
		resume := "no"
		if c.SmartResume {
			resume = fmt.Sprintf("yes (%d urls)", c.CachedURLs)
		}
		t.AppendRow(table.Row{
			c.Keyword,
			c.Status,
			c.Products,
			c.ProcessedURLs,
			fmt.Sprintf("%.1f%%", c.ProgressPercent),
			resume,
			c.SavedAt.Local().Format(time.DateTime),
		})
	}
	t.Render()
}

// RenderReviews prints a short preview of each review.
func RenderReviews(w io.Writer, reviews []models.ReviewRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Author", "Rating", "Date", "Title", "Body"})

	for i, r := range reviews {
		t.AppendRow(table.Row{i + 1, r.Author.Name, r.Rating, r.Date, preview(r.Title, 30), preview(r.Body, 60)})
	}
	t.Render()
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
