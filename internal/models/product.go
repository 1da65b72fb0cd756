package models

import (
	"time"
)

// ProductRecord is one scraped product with its collected reviews.
type ProductRecord struct {
	ID              string            `json:"product_id"`
	URL             string            `json:"product_url"`
	Name            string            `json:"name"`
	Brand           string            `json:"brand"`
	Category        string            `json:"category"`
	Subcategory     string            `json:"subcategory"`
	Price           float64           `json:"price"`
	DiscountedPrice float64           `json:"discounted_price,omitempty"`
	DiscountPercent float64           `json:"discount_percentage,omitempty"`
	Rating          float64           `json:"rating"`
	ReviewCount     int               `json:"review_count"`
	Description     string            `json:"description"`
	Images          []string          `json:"images"`
	Variants        []Variant         `json:"variants"`
	Specifications  map[string]string `json:"specifications"`
	Availability    string            `json:"availability"`
	Seller          Seller            `json:"seller_info"`
	Reviews         []ReviewRecord    `json:"reviews"`
	ScrapedAt       time.Time         `json:"scraped_at"`
}

type Variant struct {
	ID              string  `json:"variant_id,omitempty"`
	Name            string  `json:"name"`
	Price           float64 `json:"price,omitempty"`
	DiscountedPrice float64 `json:"discounted_price,omitempty"`
	Availability    string  `json:"availability,omitempty"`
}

type Seller struct {
	Name          string `json:"seller_name,omitempty"`
	Brand         string `json:"brand_name"`
	OfficialStore bool   `json:"official_store"`
}

const (
	Unknown    = "Unknown"
	InStock    = "In Stock"
	OutOfStock = "Out of Stock"
	UnknownID  = "unknown"
)

// NewProduct returns a record carrying the defaults used when a field
// cannot be extracted.
func NewProduct(id, url string) *ProductRecord {
	return &ProductRecord{
		ID:             id,
		URL:            url,
		Name:           Unknown,
		Brand:          Unknown,
		Category:       Unknown,
		Subcategory:    Unknown,
		Availability:   Unknown,
		Images:         make([]string, 0),
		Variants:       make([]Variant, 0),
		Specifications: make(map[string]string),
		Reviews:        make([]ReviewRecord, 0),
	}
}

// ReviewsScraped reports how many reviews were attached.
func (p *ProductRecord) ReviewsScraped() int {
	return len(p.Reviews)
}

func TotalReviews(products []ProductRecord) int {
	total := 0
	for i := range products {
		total += len(products[i].Reviews)
	}
	return total
}
