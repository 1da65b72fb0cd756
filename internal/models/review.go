package models

import (
	"strings"
)

const AnonymousAuthor = "Anonymous"

// MaxRating is the top of the star scale; ratings range over [1, MaxRating].
const MaxRating = 5

// fingerprintBodyLen is the number of body runes that participate in dedup.
const fingerprintBodyLen = 50

type ReviewRecord struct {
	ID           string   `json:"review_id,omitempty"`
	Author       Author   `json:"user_info"`
	Rating       int      `json:"rating"`
	Title        string   `json:"title"`
	Body         string   `json:"content"`
	Date         string   `json:"date"`
	HelpfulCount int      `json:"helpful_count"`
	Images       []string `json:"images"`
	Pros         []string `json:"pros"`
	Cons         []string `json:"cons"`
}

type Author struct {
	Name     string `json:"username"`
	Verified bool   `json:"verified_purchase"`
}

// Fingerprint identifies a review across extraction passes.
type Fingerprint struct {
	Author     string
	Rating     int
	BodyPrefix string
	Date       string
}

func (r *ReviewRecord) Fingerprint() Fingerprint {
	body := []rune(r.Body)
	if len(body) > fingerprintBodyLen {
		body = body[:fingerprintBodyLen]
	}
	return Fingerprint{
		Author:     r.Author.Name,
		Rating:     r.Rating,
		BodyPrefix: string(body),
		Date:       r.Date,
	}
}

// Valid reports whether the review may enter a result set: a positive
// rating, some text, and a named author.
func (r *ReviewRecord) Valid() bool {
	if r.Rating <= 0 || r.Rating > MaxRating {
		return false
	}
	if strings.TrimSpace(r.Body) == "" && strings.TrimSpace(r.Title) == "" {
		return false
	}
	return r.Author.Name != "" && r.Author.Name != AnonymousAuthor
}

// NormalizeDate keeps only the date part of timestamps such as
// "2024-03-01 10:22:05" or "2024-03-01T10:22:05Z".
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) <= 10 {
		return raw
	}
	if i := strings.IndexAny(raw, " T"); i > 0 {
		return raw[:i]
	}
	return raw
}
