package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/nykaa-review-scraper/internal/config"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
)

type NykaaParser struct {
	sel            *config.Selectors
	reviewPatterns []*regexp.Regexp
	numberPattern  *regexp.Regexp
}

var _ Parser = (*NykaaParser)(nil)

func NewNykaaParser(sel *config.Selectors) (*NykaaParser, error) {
	if sel == nil {
		sel = config.DefaultSelectors()
	}

	p := &NykaaParser{
		sel:           sel,
		numberPattern: regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`),
	}

	for _, raw := range sel.Reviews.BlobPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to compile review pattern %q: %w", raw, err)
		}
		p.reviewPatterns = append(p.reviewPatterns, re)
	}

	return p, nil
}

// ExtractProduct prefers the embedded state blob and falls back to the
// catalog selectors. NotFound means no product name could be located.
func (p *NykaaParser) ExtractProduct(html string, productURL string) Result[*models.ProductRecord] {
	doc := NewDocument(html)
	return FirstFound(doc,
		Strategy[*models.ProductRecord]{
			Name:    "preloaded_state",
			Extract: func(d *Document) Result[*models.ProductRecord] { return p.productFromBlob(d, productURL) },
		},
		Strategy[*models.ProductRecord]{
			Name:    "selectors",
			Extract: func(d *Document) Result[*models.ProductRecord] { return p.productFromSelectors(d, productURL) },
		},
	)
}

func (p *NykaaParser) productFromBlob(doc *Document, productURL string) Result[*models.ProductRecord] {
	state, ok := p.preloadedState(doc.Raw)
	if !ok {
		return NotFound[*models.ProductRecord]()
	}

	details := asMap(asMap(state["productPage"])["productDetails"])
	name := asString(details["name"])
	if name == "" {
		return NotFound[*models.ProductRecord]()
	}

	id := firstString(details, "parentId", "id")
	if id == "" {
		id = ProductID(productURL)
	}

	product := models.NewProduct(id, productURL)
	product.Name = name
	product.Brand = orUnknown(asString(details["brandName"]))
	categories := asMap(details["primaryCategories"])
	product.Category = orUnknown(asString(asMap(categories["l2"])["name"]))
	product.Subcategory = orUnknown(asString(asMap(categories["l3"])["name"]))
	product.Price = asFloat(details["mrp"])
	product.DiscountedPrice = asFloat(details["offerPrice"])
	product.DiscountPercent = asFloat(details["discount"])
	product.Rating = asFloat(details["rating"])
	product.ReviewCount = asInt(details["reviewCount"])
	product.Description = asString(details["description"])
	if img := asString(details["imageUrl"]); img != "" {
		product.Images = append(product.Images, img)
	}
	if asBool(details["inStock"]) {
		product.Availability = models.InStock
	} else {
		product.Availability = models.OutOfStock
	}
	product.Seller = models.Seller{Brand: asString(details["brandName"])}

	for _, raw := range asSlice(details["variants"]) {
		v := asMap(raw)
		variant := models.Variant{
			ID:              firstString(v, "id", "sku"),
			Name:            firstString(v, "name", "variantName"),
			Price:           asFloat(v["mrp"]),
			DiscountedPrice: asFloat(v["offerPrice"]),
		}
		if _, ok := v["inStock"]; ok {
			variant.Availability = models.OutOfStock
			if asBool(v["inStock"]) {
				variant.Availability = models.InStock
			}
		}
		if variant.Name != "" {
			product.Variants = append(product.Variants, variant)
		}
	}

	return Found(product, "preloaded_state")
}

// preloadedState decodes the object assigned to the blob marker. A marker
// followed by a truncated object yields nothing.
func (p *NykaaParser) preloadedState(raw string) (map[string]any, bool) {
	marker := p.sel.Product.BlobMarker
	if marker == "" {
		return nil, false
	}

	idx := strings.Index(raw, marker)
	if idx < 0 {
		return nil, false
	}

	rest := raw[idx+len(marker):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return nil, false
	}
	open := strings.IndexByte(rest[eq:], '{')
	if open < 0 {
		return nil, false
	}

	span, ok := BalancedSpan(rest, eq+open)
	if !ok {
		return nil, false
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(span), &state); err != nil {
		return nil, false
	}
	return state, true
}

func (p *NykaaParser) productFromSelectors(doc *Document, productURL string) Result[*models.ProductRecord] {
	name := FirstFound(doc, TextStrategies(p.sel.Product.Name)...)
	if !name.Found {
		return NotFound[*models.ProductRecord]()
	}

	product := models.NewProduct(ProductID(productURL), productURL)
	product.Name = name.Value
	product.Brand = FirstFound(doc, TextStrategies(p.sel.Product.Brand)...).OrElse(models.Unknown)
	product.Seller = models.Seller{Brand: product.Brand}
	product.Description = FirstFound(doc, TextStrategies(p.sel.Product.Description)...).OrElse("")

	if price := FirstFound(doc, TextStrategies(p.sel.Product.Price)...); price.Found {
		product.Price = p.parseNumber(price.Value)
	}
	if rating := FirstFound(doc, TextStrategies(p.sel.Product.Rating)...); rating.Found {
		product.Rating = p.parseNumber(rating.Value)
	}

	if dom, err := doc.DOM(); err == nil {
		seen := make(map[string]struct{})
		for _, sel := range p.sel.Product.Images {
			dom.Find(sel).Each(func(_ int, s *goquery.Selection) {
				src, ok := s.Attr("src")
				if !ok || src == "" {
					return
				}
				if _, dup := seen[src]; dup {
					return
				}
				seen[src] = struct{}{}
				product.Images = append(product.Images, src)
			})
		}
	}

	return Found(product, name.Source)
}

// ExtractReviews returns the reviews visible in the current page content.
// Embedded JSON arrays are tried pattern by pattern before review cards.
func (p *NykaaParser) ExtractReviews(html string) []models.ReviewRecord {
	doc := NewDocument(html)

	strategies := make([]Strategy[[]models.ReviewRecord], 0, len(p.reviewPatterns)+1)
	for _, re := range p.reviewPatterns {
		re := re
		strategies = append(strategies, Strategy[[]models.ReviewRecord]{
			Name: "json:" + re.String(),
			Extract: func(d *Document) Result[[]models.ReviewRecord] {
				return p.reviewsFromBlob(d.Raw, re)
			},
		})
	}
	strategies = append(strategies, Strategy[[]models.ReviewRecord]{
		Name:    "cards",
		Extract: p.reviewsFromCards,
	})

	return FirstFound(doc, strategies...).Value
}

func (p *NykaaParser) reviewsFromBlob(raw string, re *regexp.Regexp) Result[[]models.ReviewRecord] {
	for _, loc := range re.FindAllStringIndex(raw, -1) {
		open := loc[1] - 1
		elems, _ := ArrayElements(raw, open)

		var reviews []models.ReviewRecord
		for _, el := range elems {
			var data map[string]any
			if err := json.Unmarshal([]byte(el), &data); err != nil {
				continue
			}
			reviews = append(reviews, reviewFromJSON(data))
		}

		if len(reviews) > 0 {
			return Found(reviews, "json:"+re.String())
		}
	}
	return NotFound[[]models.ReviewRecord]()
}

func reviewFromJSON(data map[string]any) models.ReviewRecord {
	author := firstString(data, "name", "userName")
	if author == "" {
		author = models.AnonymousAuthor
	}

	review := models.ReviewRecord{
		ID: firstString(data, "id", "reviewId"),
		Author: models.Author{
			Name:     author,
			Verified: asString(data["label"]) == "Verified Buyer" || asBool(data["isBuyer"]),
		},
		Rating:       asInt(data["rating"]),
		Title:        asString(data["title"]),
		Body:         firstString(data, "description", "content"),
		Date:         models.NormalizeDate(firstString(data, "createdOn", "date")),
		HelpfulCount: asInt(data["likeCount"]),
		Images:       make([]string, 0),
		Pros:         make([]string, 0),
		Cons:         make([]string, 0),
	}

	for _, img := range asSlice(data["images"]) {
		switch v := img.(type) {
		case string:
			review.Images = append(review.Images, v)
		case map[string]any:
			if u := firstString(v, "url", "imageUrl"); u != "" {
				review.Images = append(review.Images, u)
			}
		}
	}

	return review
}

func (p *NykaaParser) reviewsFromCards(doc *Document) Result[[]models.ReviewRecord] {
	dom, err := doc.DOM()
	if err != nil {
		return NotFound[[]models.ReviewRecord]()
	}

	sel := p.sel.Reviews
	for _, cardSel := range sel.Card {
		var reviews []models.ReviewRecord
		dom.Find(cardSel).Each(func(_ int, card *goquery.Selection) {
			author := firstText(card, sel.Author)
			if author == "" {
				author = models.AnonymousAuthor
			}
			reviews = append(reviews, models.ReviewRecord{
				Author: models.Author{
					Name:     author,
					Verified: strings.Contains(strings.ToLower(card.Text()), "verified buyer"),
				},
				Rating:       int(p.parseNumber(firstText(card, sel.Rating))),
				Title:        firstText(card, sel.Title),
				Body:         firstText(card, sel.Body),
				Date:         models.NormalizeDate(firstText(card, sel.Date)),
				HelpfulCount: int(p.parseNumber(firstText(card, sel.Helpful))),
				Images:       make([]string, 0),
				Pros:         make([]string, 0),
				Cons:         make([]string, 0),
			})
		})
		if len(reviews) > 0 {
			return Found(reviews, "cards:"+cardSel)
		}
	}

	return NotFound[[]models.ReviewRecord]()
}

// ExtractProductLinks lists product URLs in page order, absolute, without
// query strings and without duplicates.
func (p *NykaaParser) ExtractProductLinks(html string, baseURL string) []string {
	dom, err := NewDocument(html).DOM()
	if err != nil {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	dom.Find(p.sel.Search.ProductLinks).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.Contains(href, "/p/") {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.RawQuery = ""
		abs.Fragment = ""

		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}

func (p *NykaaParser) HasNoResults(html string) bool {
	lower := strings.ToLower(html)
	for _, phrase := range p.sel.Search.NoResultsPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func (p *NykaaParser) parseNumber(text string) float64 {
	match := p.numberPattern.FindString(text)
	if match == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}
