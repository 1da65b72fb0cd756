package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

var productIDPattern = regexp.MustCompile(`/p/(\d+)`)

// ProductID returns the numeric id in a product URL, or models.UnknownID.
func ProductID(productURL string) string {
	if m := productIDPattern.FindStringSubmatch(productURL); m != nil {
		return m[1]
	}
	return models.UnknownID
}

// ProductSlug returns the path segment preceding "/p/".
func ProductSlug(productURL string) string {
	u, err := url.Parse(productURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "p" {
			return parts[i-1]
		}
	}
	return ""
}

// ReviewsURL builds the dedicated review listing URL for a product. Without
// a slug the product URL itself is suffixed with /reviews.
func ReviewsURL(baseURL, productURL string) string {
	id := ProductID(productURL)
	slug := ProductSlug(productURL)
	if id == models.UnknownID || slug == "" {
		return strings.TrimRight(productURL, "/") + "/reviews"
	}
	return fmt.Sprintf("%s/%s/reviews/%s?ptype=reviews", strings.TrimRight(baseURL, "/"), slug, id)
}

// SearchURL builds the popularity-sorted result page URL for a keyword.
func SearchURL(baseURL, path, keyword string, page int) string {
	if path == "" {
		path = "/search/result/"
	}
	q := strings.ReplaceAll(url.QueryEscape(keyword), "+", "%20")
	return fmt.Sprintf("%s%s?q=%s&page_no=%d&sort=popularity",
		strings.TrimRight(baseURL, "/"), path, q, page)
}
