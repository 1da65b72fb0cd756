package reviews

import (
	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

// Accumulator keeps valid reviews keyed by fingerprint in first-seen order.
type Accumulator struct {
	records []models.ReviewRecord
	seen    map[models.Fingerprint]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[models.Fingerprint]struct{})}
}

// Add inserts every valid review whose fingerprint is new and returns how
// many were inserted. Re-adding a seen batch is a no-op.
func (a *Accumulator) Add(batch []models.ReviewRecord) int {
	added := 0
	for i := range batch {
		r := batch[i]
		if !r.Valid() {
			continue
		}
		fp := r.Fingerprint()
		if _, ok := a.seen[fp]; ok {
			continue
		}
		a.seen[fp] = struct{}{}
		a.records = append(a.records, r)
		added++
	}
	return added
}

func (a *Accumulator) Len() int {
	return len(a.records)
}

// Reviews returns at most limit reviews in insertion order. A limit of zero
// or less returns everything.
func (a *Accumulator) Reviews(limit int) []models.ReviewRecord {
	n := len(a.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.ReviewRecord, n)
	copy(out, a.records[:n])
	return out
}
